package session

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mohammad-safakhou/docchat/internal/chunk"
	"github.com/mohammad-safakhou/docchat/internal/embed"
	"github.com/mohammad-safakhou/docchat/internal/extract"
	"github.com/mohammad-safakhou/docchat/internal/index"
	"github.com/mohammad-safakhou/docchat/internal/telemetry"
)

// Limits are the intake ceilings enforced before extraction starts.
type Limits struct {
	MaxFileBytes    int64
	MaxSessionBytes int64
	MaxSessionFiles int
}

// UploadFile is one file of an upload batch.
type UploadFile struct {
	Name string
	Data []byte

	docID string
}

// Manager owns the session registry. Each session's build runs on its own
// goroutine tied to the manager's root context, so an HTTP client going away
// does not abort indexing but shutting the manager down does.
type Manager struct {
	limits    Limits
	ttl       time.Duration
	extractor *extract.Extractor
	chunker   *chunk.Chunker
	embedder  *embed.Service
	archive   Archiver
	metrics   *telemetry.Metrics
	logger    *log.Logger

	rootCtx context.Context
	stop    context.CancelFunc

	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewManager(limits Limits, ttl time.Duration, ex *extract.Extractor, ch *chunk.Chunker, em *embed.Service, ar Archiver, m *telemetry.Metrics, logger *log.Logger) *Manager {
	if ar == nil {
		ar = NopArchiver{}
	}
	if logger == nil {
		logger = log.New(log.Writer(), "[SESSION] ", log.LstdFlags)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		limits:    limits,
		ttl:       ttl,
		extractor: ex,
		chunker:   ch,
		embedder:  em,
		archive:   ar,
		metrics:   m,
		logger:    logger,
		rootCtx:   ctx,
		stop:      cancel,
		sessions:  make(map[string]*Session),
	}
}

// Get looks up a session and refreshes its activity clock.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	s.touch()
	return s, nil
}

// Status reports a session's current counters and state.
func (m *Manager) Status(id string) (Status, error) {
	s, err := m.Get(id)
	if err != nil {
		return Status{}, err
	}
	return s.Status(), nil
}

// Upload validates an upload batch against the intake limits, registers its
// documents and starts the background build. An empty sessionID creates a
// fresh session; ids are unguessable and always server-generated. The whole
// batch is rejected if any limit would be exceeded, and rejected with
// ErrIndexingInProgress while a previous build is still running.
func (m *Manager) Upload(sessionID string, files []UploadFile) (string, error) {
	if len(files) == 0 {
		return "", fmt.Errorf("%w: empty batch", ErrUploadLimit)
	}
	var batchBytes int64
	for _, f := range files {
		if int64(len(f.Data)) > m.limits.MaxFileBytes {
			return "", LimitError{Kind: "file_bytes", Usage: int64(len(f.Data)), Limit: m.limits.MaxFileBytes}
		}
		batchBytes += int64(len(f.Data))
	}
	s, err := m.ensure(sessionID)
	if err != nil {
		return "", err
	}

	st := s.Status()
	if len(st.Documents)+len(files) > m.limits.MaxSessionFiles {
		return "", LimitError{Kind: "session_files", Usage: int64(len(st.Documents) + len(files)), Limit: int64(m.limits.MaxSessionFiles)}
	}
	if st.TotalBytes+batchBytes > m.limits.MaxSessionBytes {
		return "", LimitError{Kind: "session_bytes", Usage: st.TotalBytes + batchBytes, Limit: m.limits.MaxSessionBytes}
	}

	for i := range files {
		files[i].docID = uuid.NewString()
	}
	buildCtx, cancel := context.WithCancel(m.rootCtx)
	docs, ok := s.beginBatch(files, batchBytes, cancel)
	if !ok {
		cancel()
		return "", ErrIndexingInProgress
	}

	m.metrics.UploadAccepted(len(files), batchBytes)
	m.logger.Printf("session %s: accepted batch of %d file(s), %d bytes", s.ID, len(files), batchBytes)
	go m.build(buildCtx, s, files, docs)
	return s.ID, nil
}

func (m *Manager) ensure(id string) (*Session, error) {
	if id != "" {
		m.mu.RLock()
		s, ok := m.sessions[id]
		m.mu.RUnlock()
		if !ok {
			return nil, ErrSessionNotFound
		}
		return s, nil
	}
	kw, err := index.NewKeyword()
	if err != nil {
		return nil, fmt.Errorf("create keyword index: %w", err)
	}
	s := newSession(uuid.NewString(), kw)
	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()
	return s, nil
}

// build runs the extract -> chunk -> embed -> commit pipeline for one batch.
// The first fatal document failure moves the session to error; chunks already
// committed (from this or earlier batches) stay queryable.
func (m *Manager) build(ctx context.Context, s *Session, files []UploadFile, docs []Document) {
	start := time.Now()
	var fatal error

	for i, f := range files {
		if ctx.Err() != nil {
			m.logger.Printf("session %s: build cancelled", s.ID)
			return
		}
		doc := docs[i]
		if err := m.indexDocument(ctx, s, f, doc); err != nil {
			if ctx.Err() != nil {
				m.logger.Printf("session %s: build cancelled", s.ID)
				return
			}
			fatal = fmt.Errorf("document %q: %w", f.Name, err)
			m.logger.Printf("session %s: %v", s.ID, fatal)
			break
		}
	}

	s.finishBatch(fatal)
	m.metrics.BuildFinished(time.Since(start), fatal == nil)
	if fatal == nil {
		m.logger.Printf("session %s: batch indexed in %s (%d chunks total)", s.ID, time.Since(start).Round(time.Millisecond), s.CommittedChunks())
	}
}

func (m *Manager) indexDocument(ctx context.Context, s *Session, f UploadFile, doc Document) error {
	pages, err := m.extractor.Extract(ctx, f.Data)
	if err != nil {
		outcome := OutcomeFailed
		if len(pages) > 0 {
			// extraction succeeded structurally but no page had a text layer
			outcome = OutcomeScanned
		}
		s.finishDocument(doc.ID, len(pages), outcome)
		return err
	}

	chunks := m.chunker.Split(doc.ID, pages)
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vecs, err := m.embedder.EmbedMany(ctx, texts)
	if err != nil {
		s.finishDocument(doc.ID, len(pages), OutcomeFailed)
		return err
	}

	for i, c := range chunks {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		rec := ChunkRecord{
			Chunk:      c,
			Filename:   f.Name,
			DocOrdinal: doc.Ordinal,
			Vector:     vecs[i],
		}
		if err := s.commitChunk(rec); err != nil {
			return err
		}
		m.metrics.ChunkIndexed()
		if err := m.archive.SaveChunk(ctx, s.ID, rec); err != nil {
			// the archive is an offline copy, never a correctness dependency
			m.logger.Printf("session %s: archive chunk %s: %v", s.ID, rec.ID, err)
		}
	}
	s.finishDocument(doc.ID, len(pages), OutcomeOK)
	return nil
}

// Teardown removes a session, cancels its build and frees its indexes.
func (m *Manager) Teardown(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	m.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}
	s.close()
	if err := m.archive.DropSession(context.Background(), id); err != nil {
		m.logger.Printf("session %s: drop archive: %v", id, err)
	}
	m.metrics.SessionClosed()
	m.logger.Printf("session %s: torn down", id)
	return nil
}

// Sweep removes every session idle longer than the TTL and returns how many
// were expired.
func (m *Manager) Sweep() int {
	if m.ttl <= 0 {
		return 0
	}
	cutoff := time.Now().Add(-m.ttl)
	m.mu.RLock()
	var expired []string
	for id, s := range m.sessions {
		if s.idleSince().Before(cutoff) {
			expired = append(expired, id)
		}
	}
	m.mu.RUnlock()
	for _, id := range expired {
		if err := m.Teardown(id); err == nil {
			m.logger.Printf("session %s: expired after %s idle", id, m.ttl)
		}
	}
	return len(expired)
}

// StartSweeper runs Sweep on a ticker until ctx is cancelled.
func (m *Manager) StartSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				if n := m.Sweep(); n > 0 {
					m.logger.Printf("sweep expired %d session(s)", n)
				}
			}
		}
	}()
}

// Close cancels all in-flight builds and tears down every session.
func (m *Manager) Close() {
	m.stop()
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()
	for _, s := range sessions {
		s.close()
	}
}
