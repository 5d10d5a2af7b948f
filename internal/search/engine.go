// Package search fuses the vector and keyword signals of a session's indexes
// into one ranked result list.
package search

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mohammad-safakhou/docchat/config"
	"github.com/mohammad-safakhou/docchat/internal/embed"
	"github.com/mohammad-safakhou/docchat/internal/index"
	"github.com/mohammad-safakhou/docchat/internal/session"
	"github.com/mohammad-safakhou/docchat/internal/telemetry"
)

// ErrEmptyQuery is returned for a blank query string.
var ErrEmptyQuery = errors.New("empty query")

// Result is one ranked chunk with provenance and the per-signal scores that
// produced its fused score.
type Result struct {
	ChunkID      string  `json:"chunk_id"`
	DocumentID   string  `json:"document_id"`
	Filename     string  `json:"filename"`
	Page         int     `json:"page"`
	Start        int     `json:"start"`
	End          int     `json:"end"`
	Text         string  `json:"text"`
	Score        float64 `json:"score"`
	VectorScore  float64 `json:"vector_score"`
	KeywordScore float64 `json:"keyword_score"`
}

// Response carries the ranked results plus the session state they were served
// under, so callers can tell a complete answer from a best-effort one taken
// mid-build.
type Response struct {
	SessionID string        `json:"session_id"`
	State     session.State `json:"state"`
	Results   []Result      `json:"results"`
}

// Engine runs hybrid retrieval: embed the query, fan out to both indexes in
// parallel, min-max normalize each list and combine with fixed weights.
type Engine struct {
	sessions *session.Manager
	embedder *embed.Service
	cfg      config.RetrievalConfig
	metrics  *telemetry.Metrics
	logger   *log.Logger
}

func NewEngine(sessions *session.Manager, embedder *embed.Service, cfg config.RetrievalConfig, m *telemetry.Metrics, logger *log.Logger) *Engine {
	if cfg.CandidateK <= 0 {
		cfg.CandidateK = 20
	}
	if cfg.TopN <= 0 {
		cfg.TopN = 8
	}
	if cfg.VectorWeight+cfg.KeywordWeight <= 0 {
		cfg.VectorWeight, cfg.KeywordWeight = 0.6, 0.4
	}
	if logger == nil {
		logger = log.New(log.Writer(), "[SEARCH] ", log.LstdFlags)
	}
	return &Engine{sessions: sessions, embedder: embedder, cfg: cfg, metrics: m, logger: logger}
}

// Query answers text against the session's committed chunks. Sessions still
// indexing (or in error) are served best-effort as long as at least one chunk
// is committed; before that the query fails with session.ErrIndexNotReady.
func (e *Engine) Query(ctx context.Context, sessionID, text string) (Response, error) {
	start := time.Now()
	resp, err := e.query(ctx, sessionID, text)
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	e.metrics.QueryServed(time.Since(start), outcome)
	return resp, err
}

func (e *Engine) query(ctx context.Context, sessionID, text string) (Response, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Response{}, ErrEmptyQuery
	}
	s, err := e.sessions.Get(sessionID)
	if err != nil {
		return Response{}, err
	}
	if s.CommittedChunks() == 0 {
		return Response{}, session.ErrIndexNotReady
	}

	vecs, err := e.embedder.EmbedMany(ctx, []string{text})
	if err != nil {
		return Response{}, fmt.Errorf("embed query: %w", err)
	}
	qvec := vecs[0]

	vecIdx, kwIdx := s.Searchers()
	var vecHits, kwHits []index.Hit
	var g errgroup.Group
	g.Go(func() error {
		var err error
		vecHits, err = vecIdx.Search(index.Query{Vector: qvec}, e.cfg.CandidateK)
		return err
	})
	g.Go(func() error {
		var err error
		kwHits, err = kwIdx.Search(index.Query{Text: text}, e.cfg.CandidateK)
		return err
	})
	if err := g.Wait(); err != nil {
		return Response{}, fmt.Errorf("search session %s: %w", sessionID, err)
	}

	results := e.fuse(s, vecHits, kwHits)
	if len(results) > e.cfg.TopN {
		results = results[:e.cfg.TopN]
	}
	st := s.Status()
	e.logger.Printf("session %s: query served %d result(s) (state=%s, vector=%d, keyword=%d candidates)",
		sessionID, len(results), st.State, len(vecHits), len(kwHits))
	return Response{SessionID: sessionID, State: st.State, Results: results}, nil
}

// fuse merges the two candidate lists. Each list is min-max normalized to
// [0,1]; a chunk absent from a list contributes 0 for that signal. Ties in
// fused score fall back to document order, then page, then chunk offset.
func (e *Engine) fuse(s *session.Session, vecHits, kwHits []index.Hit) []Result {
	vecNorm := normalize(vecHits)
	kwNorm := normalize(kwHits)

	ids := make(map[string]struct{}, len(vecNorm)+len(kwNorm))
	for id := range vecNorm {
		ids[id] = struct{}{}
	}
	for id := range kwNorm {
		ids[id] = struct{}{}
	}

	type ranked struct {
		Result
		docOrdinal int
	}
	candidates := make([]ranked, 0, len(ids))
	for id := range ids {
		rec, ok := s.Chunk(id)
		if !ok {
			continue
		}
		vs := vecNorm[id]
		ks := kwNorm[id]
		candidates = append(candidates, ranked{
			Result: Result{
				ChunkID:      rec.ID,
				DocumentID:   rec.DocID,
				Filename:     rec.Filename,
				Page:         rec.Page,
				Start:        rec.Start,
				End:          rec.End,
				Text:         rec.Text,
				Score:        e.cfg.VectorWeight*vs + e.cfg.KeywordWeight*ks,
				VectorScore:  vs,
				KeywordScore: ks,
			},
			docOrdinal: rec.DocOrdinal,
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.docOrdinal != b.docOrdinal {
			return a.docOrdinal < b.docOrdinal
		}
		if a.Page != b.Page {
			return a.Page < b.Page
		}
		return a.Start < b.Start
	})

	out := make([]Result, len(candidates))
	for i, c := range candidates {
		out[i] = c.Result
	}
	return out
}

// normalize rescales a hit list's scores to [0,1] by min-max. A list whose
// scores are all equal maps to 1.0 so a single strong signal still counts.
func normalize(hits []index.Hit) map[string]float64 {
	if len(hits) == 0 {
		return nil
	}
	lo, hi := hits[0].Score, hits[0].Score
	for _, h := range hits[1:] {
		if h.Score < lo {
			lo = h.Score
		}
		if h.Score > hi {
			hi = h.Score
		}
	}
	out := make(map[string]float64, len(hits))
	for _, h := range hits {
		if hi == lo {
			out[h.ChunkID] = 1
			continue
		}
		out[h.ChunkID] = (h.Score - lo) / (hi - lo)
	}
	return out
}
