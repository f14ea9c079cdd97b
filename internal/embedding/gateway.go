package embedding

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"
)

const (
	// maxRunes truncates oversized input before it reaches a provider.
	maxRunes = 8000

	// vectorWidth is the fixed dimension every Gateway result is padded to.
	vectorWidth = 1536

	// minRequestInterval enforces a floor between provider round-trips in
	// batch/backfill loops, independent of any provider-side rate limit.
	minRequestInterval = 500 * time.Millisecond
)

// Gateway wraps an Embedder with the contract the rest of the backplane
// depends on: truncation, a fixed output width, graceful degradation on
// provider failure, and a floor on inter-request spacing during backfills.
//
// A Gateway never returns an error from Embed/EmbedBatch — provider failures
// degrade to a nil vector so callers can skip indexing rather than fail the
// operation that triggered the embedding.
type Gateway struct {
	embedder Embedder

	mu       sync.Mutex
	lastCall time.Time
}

// NewGateway wraps embedder. A nil embedder is valid: every Embed/EmbedBatch
// call then returns nil vectors, so semantic search degrades to empty results
// instead of panicking.
func NewGateway(embedder Embedder) *Gateway {
	return &Gateway{embedder: embedder}
}

// Embed returns a vectorWidth-dimension embedding for text, or nil if text is
// empty/whitespace, the embedder is unset, or the provider call failed.
func (g *Gateway) Embed(ctx context.Context, text string) ([]float32, error) {
	if g == nil || g.embedder == nil {
		return nil, nil
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}
	text = truncateRunes(text, maxRunes)

	g.throttle()

	vec, err := g.embedder.Embed(ctx, text)
	if err != nil {
		slog.Warn("embedding call failed, degrading to nil vector", "error", err, "provider", g.embedder.Model())
		return nil, nil
	}
	return normalize(vec), nil
}

// EmbedBatch embeds each text in texts, preserving order. A per-item failure
// degrades that slot to nil rather than aborting the whole batch; callers
// must expect nil entries in the result.
func (g *Gateway) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if g == nil || g.embedder == nil || len(texts) == 0 {
		return make([][]float32, len(texts)), nil
	}

	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, _ := g.Embed(ctx, text)
		out[i] = vec
	}
	return out, nil
}

// throttle blocks until at least minRequestInterval has elapsed since the
// previous provider call, so batch backfills never hammer a rate-limited API.
func (g *Gateway) throttle() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if wait := minRequestInterval - time.Since(g.lastCall); wait > 0 {
		time.Sleep(wait)
	}
	g.lastCall = time.Now()
}

// Dimension reports the Gateway's fixed output width, regardless of what the
// underlying provider natively produces.
func (g *Gateway) Dimension() int { return vectorWidth }

// VectorWidth reports the fixed embedding width every Gateway normalizes to,
// for callers (e.g. vector store collection setup) that need it before a
// Gateway instance exists.
func VectorWidth() int { return vectorWidth }

// Close releases the underlying embedder's resources.
func (g *Gateway) Close() error {
	if g == nil || g.embedder == nil {
		return nil
	}
	return g.embedder.Close()
}

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}

// normalize pads vec to vectorWidth with zeros and never returns a vector
// wider than vectorWidth.
func normalize(vec []float32) []float32 {
	if vec == nil {
		return nil
	}
	if len(vec) >= vectorWidth {
		return vec[:vectorWidth]
	}
	padded := make([]float32, vectorWidth)
	copy(padded, vec)
	return padded
}
