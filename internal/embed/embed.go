// Package embed maps chunk text to fixed-dimension dense vectors.
package embed

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/mohammad-safakhou/docchat/config"
)

// ErrUnavailable is returned when the underlying model cannot be reached or
// loaded after bounded retries. The session manager treats it as fatal for
// the indexing build.
var ErrUnavailable = errors.New("embedding unavailable")

// Provider generates embeddings for a batch of texts. Implementations must be
// deterministic for identical input text.
type Provider interface {
	CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error)
}

// NewProvider builds the provider selected by cfg.Provider.
func NewProvider(cfg config.EmbeddingConfig) (Provider, error) {
	switch cfg.Provider {
	case "openai":
		return NewOpenAI(cfg.APIKey, cfg.Model, cfg.BaseURL, cfg.Timeout), nil
	case "ollama":
		return NewOllama(cfg.BaseURL, cfg.Model, cfg.Timeout), nil
	case "", "local":
		return NewLocal(cfg.Dimension), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}
}

// Service wraps a Provider with bounded batches, bounded retry and L2
// normalization, so index insertion can rely on inner-product similarity.
type Service struct {
	provider   Provider
	batchSize  int
	maxRetries int
	logger     *log.Logger
}

func NewService(p Provider, batchSize, maxRetries int, logger *log.Logger) *Service {
	if batchSize <= 0 {
		batchSize = 32
	}
	if maxRetries <= 0 {
		maxRetries = 3
	}
	if logger == nil {
		logger = log.New(log.Writer(), "[EMBED] ", log.LstdFlags)
	}
	return &Service{provider: p, batchSize: batchSize, maxRetries: maxRetries, logger: logger}
}

// EmbedMany embeds texts in order, batch by batch. A transient provider
// failure is retried with backoff; exhausting retries yields ErrUnavailable.
func (s *Service) EmbedMany(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += s.batchSize {
		end := start + s.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		vecs, err := s.embedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		for _, v := range vecs {
			out = append(out, Normalize(v))
		}
	}
	return out, nil
}

func (s *Service) embedBatch(ctx context.Context, batch []string) ([][]float32, error) {
	var lastErr error
	for attempt := 1; attempt <= s.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		vecs, err := s.provider.CreateEmbedding(ctx, batch)
		if err == nil {
			if len(vecs) != len(batch) {
				return nil, fmt.Errorf("%w: got %d vectors for %d texts", ErrUnavailable, len(vecs), len(batch))
			}
			return vecs, nil
		}
		lastErr = err
		s.logger.Printf("embedding attempt %d/%d failed: %v", attempt, s.maxRetries, err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(attempt) * 200 * time.Millisecond):
		}
	}
	return nil, fmt.Errorf("%w: %v", ErrUnavailable, lastErr)
}

// Normalize rescales v to unit L2 length. A zero vector is returned as is.
func Normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	norm := math.Sqrt(sum)
	if norm == 0 {
		return v
	}
	for i, x := range v {
		v[i] = float32(float64(x) / norm)
	}
	return v
}
