// Package session owns the per-session lifecycle: document intake,
// background indexing builds, status reporting, expiry and teardown.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/mohammad-safakhou/docchat/internal/chunk"
	"github.com/mohammad-safakhou/docchat/internal/index"
)

// State is the indexing state machine of a session.
type State string

const (
	StatePending  State = "pending"
	StateIndexing State = "indexing"
	StateDone     State = "done"
	StateError    State = "error"
)

// Outcome records what extraction made of a document.
type Outcome string

const (
	OutcomeOK      Outcome = "ok"
	OutcomeScanned Outcome = "scanned"
	OutcomeFailed  Outcome = "failed"
)

// Document is one uploaded file within a session.
type Document struct {
	ID       string  `json:"id"`
	Filename string  `json:"filename"`
	Size     int64   `json:"size"`
	Pages    int     `json:"pages"`
	Ordinal  int     `json:"ordinal"` // upload order across the session
	Outcome  Outcome `json:"outcome"`
}

// ChunkRecord is a committed chunk plus everything the query path needs to
// return it: provenance, text and its embedding.
type ChunkRecord struct {
	chunk.Chunk
	Filename   string    `json:"filename"`
	DocOrdinal int       `json:"doc_ordinal"`
	Vector     []float32 `json:"vector"`
}

// Status is a point-in-time snapshot of a session, safe to serialize while
// the build keeps running.
type Status struct {
	SessionID    string     `json:"session_id"`
	State        State      `json:"state"`
	FilesTotal   int        `json:"files_total"`
	FilesIndexed int        `json:"files_indexed"`
	TotalBytes   int64      `json:"total_bytes"`
	Chunks       int        `json:"chunks"`
	Documents    []Document `json:"documents"`
	Error        string     `json:"error,omitempty"`
}

// Session holds the private indexes and bookkeeping of one user session.
// All mutation happens under mu; the background build commits one chunk at a
// time so concurrent status reads and queries observe a consistent prefix.
type Session struct {
	ID        string
	CreatedAt time.Time

	mu           sync.RWMutex
	lastActive   time.Time
	state        State
	errDetail    string
	filesTotal   int
	filesIndexed int
	totalBytes   int64
	docs         []Document
	chunks       map[string]ChunkRecord
	vector       *index.Vector
	keyword      *index.Keyword
	cancelBuild  context.CancelFunc
	closed       bool
}

func newSession(id string, kw *index.Keyword) *Session {
	now := time.Now()
	return &Session{
		ID:         id,
		CreatedAt:  now,
		lastActive: now,
		state:      StatePending,
		chunks:     make(map[string]ChunkRecord),
		vector:     index.NewVector(),
		keyword:    kw,
	}
}

func (s *Session) touch() {
	s.mu.Lock()
	s.lastActive = time.Now()
	s.mu.Unlock()
}

func (s *Session) idleSince() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastActive
}

// Status returns the current counters. Counters move only forward during a
// build, and files_indexed reaches files_total exactly when the state flips
// to done.
func (s *Session) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	docs := make([]Document, len(s.docs))
	copy(docs, s.docs)
	return Status{
		SessionID:    s.ID,
		State:        s.state,
		FilesTotal:   s.filesTotal,
		FilesIndexed: s.filesIndexed,
		TotalBytes:   s.totalBytes,
		Chunks:       len(s.chunks),
		Documents:    docs,
		Error:        s.errDetail,
	}
}

// Searchers exposes the session's indexes to the query engine.
func (s *Session) Searchers() (vector, keyword index.Searcher) {
	return s.vector, s.keyword
}

// Chunk resolves a committed chunk id.
func (s *Session) Chunk(id string) (ChunkRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.chunks[id]
	return rec, ok
}

// CommittedChunks reports how many chunks are queryable right now.
func (s *Session) CommittedChunks() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks)
}

// beginBatch transitions pending/done -> indexing and registers the batch's
// documents. Returns false while another build is running.
func (s *Session) beginBatch(files []UploadFile, batchBytes int64, cancel context.CancelFunc) ([]Document, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateIndexing {
		return nil, false
	}
	docs := make([]Document, 0, len(files))
	for i, f := range files {
		docs = append(docs, Document{
			ID:       f.docID,
			Filename: f.Name,
			Size:     int64(len(f.Data)),
			Ordinal:  len(s.docs) + i,
		})
	}
	s.state = StateIndexing
	s.errDetail = ""
	s.filesTotal = len(files)
	s.filesIndexed = 0
	s.totalBytes += batchBytes
	s.docs = append(s.docs, docs...)
	s.lastActive = time.Now()
	s.cancelBuild = cancel
	return docs, true
}

// commitChunk makes one chunk visible to queries. Insertion is idempotent so
// a retried build never duplicates entries. The record is published last, so
// a concurrent query resolves a chunk only once both signals carry it.
func (s *Session) commitChunk(rec ChunkRecord) error {
	s.mu.RLock()
	closed, kw := s.closed, s.keyword
	s.mu.RUnlock()
	if closed {
		return ErrSessionNotFound
	}
	// bleve serializes its own writes; keep it outside our lock.
	if err := kw.Add(rec.ID, rec.Text); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionNotFound
	}
	s.vector.Add(rec.ID, rec.Vector)
	s.chunks[rec.ID] = rec
	return nil
}

func (s *Session) finishDocument(docID string, pages int, outcome Outcome) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	for i := range s.docs {
		if s.docs[i].ID == docID {
			s.docs[i].Pages = pages
			s.docs[i].Outcome = outcome
			break
		}
	}
	if outcome == OutcomeOK {
		s.filesIndexed++
	}
}

func (s *Session) finishBatch(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.cancelBuild = nil
	if err != nil {
		s.state = StateError
		s.errDetail = err.Error()
		return
	}
	s.state = StateDone
}

// close cancels any in-flight build and releases the indexes. Further commits
// from a racing build goroutine become no-ops.
func (s *Session) close() {
	s.mu.Lock()
	cancel := s.cancelBuild
	s.cancelBuild = nil
	s.closed = true
	kw := s.keyword
	s.chunks = map[string]ChunkRecord{}
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	if kw != nil {
		_ = kw.Close()
	}
}
