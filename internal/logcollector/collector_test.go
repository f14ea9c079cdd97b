package logcollector

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/kadirpekel/backplane/internal/bus"
)

type fakeSource struct {
	name string
	body string
}

func (f *fakeSource) Name() string { return f.name }

func (f *fakeSource) Open(ctx context.Context) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader(f.body)), nil
}

func TestCollectorPublishesLinesAndEvents(t *testing.T) {
	b := bus.NewMemBus()
	defer b.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	logSub, err := b.Subscribe(ctx, bus.TopicLogs)
	if err != nil {
		t.Fatalf("subscribe logs: %v", err)
	}
	defer logSub.Close()

	taskSub, err := b.Subscribe(ctx, bus.TopicTask)
	if err != nil {
		t.Fatalf("subscribe task: %v", err)
	}
	defer taskSub.Close()

	src := &fakeSource{name: "api", body: "rm -rf / attempted\nPublished task.created event for task t-1\n"}
	c := New(b, slog.Default(), src)

	runCtx, runCancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer runCancel()
	c.Run(runCtx)

	select {
	case msg := <-logSub.C():
		var line Line
		if err := json.Unmarshal(msg.Payload, &line); err != nil {
			t.Fatalf("unmarshal line: %v", err)
		}
		if !line.HighRisk {
			t.Error("expected first line flagged high risk")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for log line")
	}

	select {
	case msg := <-taskSub.C():
		if !strings.Contains(string(msg.Payload), "task.created") {
			t.Errorf("unexpected event payload: %s", msg.Payload)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for task event")
	}
}

func TestIsHighRisk(t *testing.T) {
	if !isHighRisk("running DROP TABLE users") {
		t.Error("expected DROP TABLE to be flagged")
	}
	if isHighRisk("normal startup line") {
		t.Error("did not expect normal line to be flagged")
	}
}

func TestClassifyIcon(t *testing.T) {
	if got := classifyIcon("service started successfully"); got != "🟢" {
		t.Errorf("icon = %q", got)
	}
	if got := classifyIcon("ERROR: connection refused"); got != "🔴" {
		t.Errorf("icon = %q", got)
	}
}
