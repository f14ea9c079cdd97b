// Package sse exposes backplane bus topics as Server-Sent Event streams,
// the read-only counterpart to internal/bus's publish/subscribe contract.
package sse

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/kadirpekel/backplane/internal/bus"
)

// Handler subscribes a new connection to topic on bus b and streams every
// message published on it as an SSE frame until the client disconnects.
func Handler(b bus.Bus, topic string, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "streaming unsupported", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)
		flusher.Flush()

		ctx := r.Context()
		sub, err := b.Subscribe(ctx, topic)
		if err != nil {
			logger.Error("sse: failed to subscribe", "topic", topic, "error", err)
			return
		}
		defer sub.Close()

		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-sub.C():
				if !ok {
					return
				}
				if _, err := fmt.Fprintf(w, "data: %s\n\n", msg.Payload); err != nil {
					logger.Warn("sse: write failed, closing stream", "topic", topic, "error", err)
					return
				}
				flusher.Flush()
			}
		}
	}
}
