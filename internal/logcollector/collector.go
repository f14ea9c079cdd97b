// Package logcollector tails container log streams, timestamps and tags
// each line, scans it for dangerous commands, republishes it to the bus's
// logs topic, and hands it to the event detector for structured event
// extraction. It is grounded on the source project's log collector
// services, which do the same three jobs (prefixing, safety audit,
// event detection) per container.
package logcollector

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/kadirpekel/backplane/internal/bus"
	"github.com/kadirpekel/backplane/internal/eventdetector"
)

// ContainerLogSource yields the live stdout/stderr stream for one named
// container. Implementations wrap a docker client, a kubernetes pod log
// stream, or (in tests) a canned reader.
type ContainerLogSource interface {
	// Name is the service name stamped onto every line from this source.
	Name() string
	// Open returns a fresh reader of the container's log stream. Collector
	// calls it again to reconnect after the previous reader ends.
	Open(ctx context.Context) (io.ReadCloser, error)
}

// riskKeywords flags destructive commands for a HIGH RISK audit alert,
// mirroring the source project's log collector safety audit.
var riskKeywords = []string{
	"rm -rf", "RM -RF",
	"DELETE FROM", "delete from",
	"DROP TABLE", "drop table",
	"SHUTDOWN", "shutdown",
	"TERMINATE", "terminate",
	"WIPE", "wipe",
}

// iconClasses assigns a single icon to a line based on the first keyword
// class it matches; classes are mutually exclusive and checked in order.
var iconClasses = []struct {
	icon     string
	keywords []string
}{
	{"🔴", []string{"error", "exception", "traceback", "failed"}},
	{"🟡", []string{"warning", "warn", "deprecated"}},
	{"🟢", []string{"started", "ready", "listening", "connected"}},
	{"🔵", []string{"info"}},
}

// Line is one collected, tagged log line ready for publication.
type Line struct {
	Timestamp string `json:"timestamp"`
	Service   string `json:"service"`
	Icon      string `json:"icon,omitempty"`
	Text      string `json:"text"`
	HighRisk  bool   `json:"high_risk,omitempty"`
}

// Collector tails a set of ContainerLogSources, one goroutine each, and
// publishes every line to bus.TopicLogs plus any detected event to its own
// topic.
type Collector struct {
	bus     bus.Bus
	sources []ContainerLogSource
	logger  *slog.Logger

	encode func(Line) ([]byte, error)
}

// New builds a Collector that publishes through b. encode defaults to a
// compact JSON encoding; callers needing a different wire format can swap
// it in before calling Run.
func New(b bus.Bus, logger *slog.Logger, sources ...ContainerLogSource) *Collector {
	return &Collector{
		bus:     b,
		sources: sources,
		logger:  logger,
		encode:  encodeLineJSON,
	}
}

// Run tails every configured source until ctx is cancelled. Each source
// reconnects independently: a failed Open is retried with exponential
// backoff, and a stream that ends is reopened at once, so one crashed
// container never stalls the others.
func (c *Collector) Run(ctx context.Context) {
	for _, src := range c.sources {
		go c.runSource(ctx, src)
	}
	<-ctx.Done()
}

func (c *Collector) runSource(ctx context.Context, src ContainerLogSource) {
	backoff := time.Second
	const maxBackoff = 30 * time.Second

	for {
		if ctx.Err() != nil {
			return
		}

		rc, err := src.Open(ctx)
		if err != nil {
			c.logger.Warn("log source open failed, retrying", "service", src.Name(), "error", err, "backoff", backoff)
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			backoff = min(backoff*2, maxBackoff)
			continue
		}
		backoff = time.Second

		c.tail(ctx, src.Name(), rc)
		rc.Close()

		if ctx.Err() != nil {
			return
		}
		// Stream ended (e.g. container restarted): reconnect immediately.
	}
}

func (c *Collector) tail(ctx context.Context, service string, r io.Reader) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		c.process(ctx, service, scanner.Text())
	}
}

func (c *Collector) process(ctx context.Context, service, raw string) {
	if strings.TrimSpace(raw) == "" {
		return
	}

	line := Line{
		Timestamp: time.Now().UTC().Format("15:04:05"),
		Service:   service,
		Icon:      classifyIcon(raw),
		Text:      raw,
		HighRisk:  isHighRisk(raw),
	}

	if line.HighRisk {
		c.logger.Warn("HIGH RISK command observed in logs", "service", service, "line", raw)
	}

	payload, err := c.encode(line)
	if err != nil {
		c.logger.Error("encode log line", "service", service, "error", err)
		return
	}
	if _, err := c.bus.Publish(ctx, bus.TopicLogs, payload); err != nil {
		c.logger.Error("publish log line", "service", service, "error", err)
	}

	topic, event, ok := eventdetector.Detect(raw, service)
	if !ok || !eventdetector.ShouldPublish(event) {
		return
	}
	eventPayload, err := encodeEventJSON(event)
	if err != nil {
		c.logger.Error("encode detected event", "service", service, "error", err)
		return
	}
	if _, err := c.bus.Publish(ctx, topic, eventPayload); err != nil {
		c.logger.Error("publish detected event", "service", service, "topic", topic, "error", err)
	}
}

func isHighRisk(line string) bool {
	upper := strings.ToUpper(line)
	for _, kw := range riskKeywords {
		if strings.Contains(upper, strings.ToUpper(kw)) {
			return true
		}
	}
	return false
}

func classifyIcon(line string) string {
	lower := strings.ToLower(line)
	for _, class := range iconClasses {
		for _, kw := range class.keywords {
			if strings.Contains(lower, kw) {
				return class.icon
			}
		}
	}
	return ""
}

func min(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}
