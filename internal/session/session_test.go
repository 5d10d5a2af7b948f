package session

import (
	"errors"
	"testing"

	"github.com/mohammad-safakhou/docchat/internal/chunk"
	"github.com/mohammad-safakhou/docchat/internal/index"
)

func newBareSession(t *testing.T) *Session {
	t.Helper()
	kw, err := index.NewKeyword()
	if err != nil {
		t.Fatalf("NewKeyword: %v", err)
	}
	s := newSession("s1", kw)
	t.Cleanup(s.close)
	return s
}

func testRecord() ChunkRecord {
	return ChunkRecord{
		Chunk:    chunk.Chunk{ID: "d1#000", DocID: "d1", Page: 1, Text: "alpha beta gamma"},
		Filename: "a.pdf",
		Vector:   []float32{1, 0},
	}
}

func TestCommitChunkPublishesAfterBothSignals(t *testing.T) {
	s := newBareSession(t)
	if _, ok := s.Chunk("d1#000"); ok {
		t.Fatal("chunk resolvable before commit")
	}
	if err := s.commitChunk(testRecord()); err != nil {
		t.Fatalf("commitChunk: %v", err)
	}
	got, ok := s.Chunk("d1#000")
	if !ok || got.Text != "alpha beta gamma" {
		t.Fatalf("committed chunk not resolvable: %+v ok=%v", got, ok)
	}
	// a resolvable chunk must be present in both indexes
	if s.vector.Len() != 1 || s.keyword.Len() != 1 {
		t.Fatalf("index sizes vector=%d keyword=%d, want 1/1", s.vector.Len(), s.keyword.Len())
	}
	if s.CommittedChunks() != 1 {
		t.Fatalf("CommittedChunks = %d, want 1", s.CommittedChunks())
	}

	// recommit is a no-op in every structure
	if err := s.commitChunk(testRecord()); err != nil {
		t.Fatalf("recommit: %v", err)
	}
	if s.vector.Len() != 1 || s.keyword.Len() != 1 || s.CommittedChunks() != 1 {
		t.Fatalf("recommit duplicated entries: vector=%d keyword=%d chunks=%d",
			s.vector.Len(), s.keyword.Len(), s.CommittedChunks())
	}
}

func TestCommitChunkAfterClose(t *testing.T) {
	s := newBareSession(t)
	s.close()
	if err := s.commitChunk(testRecord()); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("commit after close: got %v, want ErrSessionNotFound", err)
	}
	if s.CommittedChunks() != 0 {
		t.Fatalf("closed session accepted a chunk: %d", s.CommittedChunks())
	}
}
