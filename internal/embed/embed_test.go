package embed

import (
	"context"
	"errors"
	"io"
	"log"
	"math"
	"testing"
)

type flakyProvider struct {
	failures int
	calls    int
}

func (p *flakyProvider) CreateEmbedding(_ context.Context, texts []string) ([][]float32, error) {
	p.calls++
	if p.calls <= p.failures {
		return nil, errors.New("connection refused")
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 2, 2}
	}
	return out, nil
}

func discardLogger() *log.Logger { return log.New(io.Discard, "", 0) }

func TestLocalDeterministic(t *testing.T) {
	p := NewLocal(64)
	a, err := p.CreateEmbedding(context.Background(), []string{"the capital of France"})
	if err != nil {
		t.Fatalf("CreateEmbedding: %v", err)
	}
	b, _ := p.CreateEmbedding(context.Background(), []string{"the capital of France"})
	for i := range a[0] {
		if a[0][i] != b[0][i] {
			t.Fatal("local embedder not deterministic")
		}
	}
}

func TestLocalSimilarTextCloser(t *testing.T) {
	p := NewLocal(256)
	vecs, err := p.CreateEmbedding(context.Background(), []string{
		"the capital of France is Paris",
		"what is the capital of France",
		"completely unrelated text about gardening tools",
	})
	if err != nil {
		t.Fatalf("CreateEmbedding: %v", err)
	}
	for i := range vecs {
		vecs[i] = Normalize(vecs[i])
	}
	related := dot(vecs[0], vecs[1])
	unrelated := dot(vecs[0], vecs[2])
	if related <= unrelated {
		t.Fatalf("related similarity %f not above unrelated %f", related, unrelated)
	}
}

func TestServiceNormalizes(t *testing.T) {
	svc := NewService(&flakyProvider{}, 8, 1, discardLogger())
	vecs, err := svc.EmbedMany(context.Background(), []string{"a"})
	if err != nil {
		t.Fatalf("EmbedMany: %v", err)
	}
	var sum float64
	for _, x := range vecs[0] {
		sum += float64(x) * float64(x)
	}
	if math.Abs(sum-1) > 1e-5 {
		t.Fatalf("vector not unit length: %f", sum)
	}
}

func TestServiceRetriesTransientFailure(t *testing.T) {
	p := &flakyProvider{failures: 2}
	svc := NewService(p, 8, 3, discardLogger())
	if _, err := svc.EmbedMany(context.Background(), []string{"a", "b"}); err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
	if p.calls != 3 {
		t.Fatalf("expected 3 calls, got %d", p.calls)
	}
}

func TestServiceUnavailableAfterRetries(t *testing.T) {
	svc := NewService(&flakyProvider{failures: 100}, 8, 2, discardLogger())
	_, err := svc.EmbedMany(context.Background(), []string{"a"})
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestServiceBatches(t *testing.T) {
	p := &flakyProvider{}
	svc := NewService(p, 2, 1, discardLogger())
	texts := []string{"a", "b", "c", "d", "e"}
	vecs, err := svc.EmbedMany(context.Background(), texts)
	if err != nil {
		t.Fatalf("EmbedMany: %v", err)
	}
	if len(vecs) != len(texts) {
		t.Fatalf("got %d vectors for %d texts", len(vecs), len(texts))
	}
	if p.calls != 3 {
		t.Fatalf("expected 3 batch calls, got %d", p.calls)
	}
}

func dot(a, b []float32) float64 {
	var s float64
	for i := range a {
		s += float64(a[i]) * float64(b[i])
	}
	return s
}
