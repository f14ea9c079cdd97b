package main

import (
	"context"
	"errors"
	"net/http"
	"time"
)

// httpServer wraps net/http.Server with the start/shutdown shape the
// backplane shares with every other long-running loop: Start blocks until
// either ListenAndServe fails or ctx is cancelled, and a cancelled ctx
// triggers a bounded graceful shutdown rather than an abrupt close.
type httpServer struct {
	addr    string
	handler http.Handler
	server  *http.Server
}

func (h *httpServer) Start(ctx context.Context) error {
	h.server = &http.Server{
		Addr:         h.addr,
		Handler:      h.handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := h.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return h.server.Shutdown(shutdownCtx)
	}
}
