package embedding

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeEmbedder struct {
	dim     int
	err     error
	calls   []string
	vectors map[string][]float32
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	f.calls = append(f.calls, text)
	if f.err != nil {
		return nil, f.err
	}
	if v, ok := f.vectors[text]; ok {
		return v, nil
	}
	return make([]float32, f.dim), nil
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := f.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (f *fakeEmbedder) Dimension() int { return f.dim }
func (f *fakeEmbedder) Model() string  { return "fake" }
func (f *fakeEmbedder) Close() error   { return nil }

func TestGatewayEmptyTextShortCircuits(t *testing.T) {
	fake := &fakeEmbedder{dim: 384}
	g := NewGateway(fake)

	vec, err := g.Embed(context.Background(), "   ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if vec != nil {
		t.Fatalf("expected nil vector for empty text, got %v", vec)
	}
	if len(fake.calls) != 0 {
		t.Fatalf("expected provider not to be called, got %d calls", len(fake.calls))
	}
}

func TestGatewayNilEmbedderDegrades(t *testing.T) {
	g := NewGateway(nil)
	vec, err := g.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if vec != nil {
		t.Fatalf("expected nil vector with no embedder configured")
	}
}

func TestGatewayPadsShortVectors(t *testing.T) {
	fake := &fakeEmbedder{dim: 384}
	g := NewGateway(fake)

	vec, err := g.Embed(context.Background(), "hello world")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(vec) != vectorWidth {
		t.Fatalf("vector width = %d, want %d", len(vec), vectorWidth)
	}
}

func TestGatewayTruncatesLongVectors(t *testing.T) {
	fake := &fakeEmbedder{dim: 3072}
	g := NewGateway(fake)

	vec, err := g.Embed(context.Background(), "hello world")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(vec) != vectorWidth {
		t.Fatalf("vector width = %d, want %d", len(vec), vectorWidth)
	}
}

func TestGatewayTruncatesLongText(t *testing.T) {
	fake := &fakeEmbedder{dim: 1536}
	g := NewGateway(fake)

	long := make([]byte, maxRunes+500)
	for i := range long {
		long[i] = 'a'
	}

	if _, err := g.Embed(context.Background(), string(long)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(fake.calls) != 1 {
		t.Fatalf("expected exactly one provider call, got %d", len(fake.calls))
	}
	if len([]rune(fake.calls[0])) != maxRunes {
		t.Fatalf("provider received %d runes, want %d", len([]rune(fake.calls[0])), maxRunes)
	}
}

func TestGatewayProviderErrorDegradesToNil(t *testing.T) {
	fake := &fakeEmbedder{dim: 1536, err: errors.New("provider unavailable")}
	g := NewGateway(fake)

	vec, err := g.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Embed should never surface the provider error, got %v", err)
	}
	if vec != nil {
		t.Fatalf("expected nil vector on provider failure, got %v", vec)
	}
}

func TestGatewayEmbedBatchPreservesOrder(t *testing.T) {
	fake := &fakeEmbedder{
		dim: 8,
		vectors: map[string][]float32{
			"a": {1, 0, 0, 0, 0, 0, 0, 0},
			"b": {0, 1, 0, 0, 0, 0, 0, 0},
			"c": {0, 0, 1, 0, 0, 0, 0, 0},
		},
	}
	g := NewGateway(fake)

	vecs, err := g.EmbedBatch(context.Background(), []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(vecs) != 3 {
		t.Fatalf("expected 3 vectors, got %d", len(vecs))
	}
	if vecs[0][0] != 1 || vecs[1][1] != 1 || vecs[2][2] != 1 {
		t.Fatalf("EmbedBatch did not preserve input order: %v", vecs)
	}
}

func TestGatewayThrottlesBetweenCalls(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping inter-request throttle timing check in short mode")
	}
	fake := &fakeEmbedder{dim: 8}
	g := NewGateway(fake)

	start := time.Now()
	g.Embed(context.Background(), "first")
	g.Embed(context.Background(), "second")
	if elapsed := time.Since(start); elapsed < minRequestInterval {
		t.Fatalf("expected at least %v between calls, got %v", minRequestInterval, elapsed)
	}
}
