package sse

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kadirpekel/backplane/internal/bus"
)

func TestHandlerStreamsPublishedMessages(t *testing.T) {
	b := bus.NewMemBus()
	defer b.Close()

	server := httptest.NewServer(Handler(b, bus.TopicSystem, slog.Default()))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, server.URL, nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("expected text/event-stream content type, got %q", ct)
	}

	// Give the server time to subscribe before publishing.
	time.Sleep(50 * time.Millisecond)
	if _, err := b.Publish(ctx, bus.TopicSystem, []byte(`{"hello":"world"}`)); err != nil {
		t.Fatalf("publish: %v", err)
	}

	reader := bufio.NewReader(resp.Body)
	line, err := readDataLine(reader)
	if err != nil {
		t.Fatalf("read sse frame: %v", err)
	}
	if !strings.Contains(line, `{"hello":"world"}`) {
		t.Fatalf("expected payload in frame, got %q", line)
	}
}

func readDataLine(r *bufio.Reader) (string, error) {
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return "", err
		}
		if strings.HasPrefix(line, "data: ") {
			return line, nil
		}
		if err == io.EOF {
			return "", io.EOF
		}
	}
}
