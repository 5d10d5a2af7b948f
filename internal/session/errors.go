package session

import (
	"errors"
	"fmt"
)

var (
	// ErrSessionNotFound is returned for a session id that was never created
	// or has already been torn down.
	ErrSessionNotFound = errors.New("session not found")

	// ErrIndexingInProgress is returned when an upload arrives while the
	// session's build is still running. Uploads are rejected, not queued;
	// callers retry after polling status.
	ErrIndexingInProgress = errors.New("indexing in progress")

	// ErrIndexNotReady is returned when a query arrives before any chunk of
	// the session has been committed to the indexes.
	ErrIndexNotReady = errors.New("index not ready")

	// ErrUploadLimit is the sentinel wrapped by LimitError.
	ErrUploadLimit = errors.New("upload limit exceeded")
)

// LimitError reports which intake limit an upload batch violated. The whole
// batch is rejected; nothing is partially ingested.
type LimitError struct {
	Kind  string // "file_bytes", "session_bytes", "session_files"
	Usage int64
	Limit int64
}

func (e LimitError) Error() string {
	return fmt.Sprintf("upload %s limit exceeded: usage=%d limit=%d", e.Kind, e.Usage, e.Limit)
}

func (e LimitError) Unwrap() error { return ErrUploadLimit }
