// Package session owns the set of live upload sessions. A session associates
// an opaque key with the vector index built from one uploaded document, the
// on-disk source file, and a last-access timestamp that drives TTL eviction.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/docusense/docchat/internal/index"
)

// ErrNotFound indicates the session was evicted or never created; callers
// must treat it as "document must be re-uploaded", not a transient failure.
var ErrNotFound = errors.New("session not found")

// Session is the state associated with one ingested document.
type Session struct {
	Key        string
	Index      index.Index
	SourceFile string
	LastAccess time.Time
}

// Store provides at-most-one-entry-per-key session storage with TTL
// eviction. Put, Touch and Sweep may be invoked concurrently from request
// handlers and the background sweeper; implementations serialize mutations.
type Store interface {
	// Put stores a session under key, replacing any existing entry wholesale
	// (last writer wins) and refreshing its last-access time. A replaced
	// entry's source file is deleted so eviction and cleanup stay paired.
	Put(ctx context.Context, key string, chunks []string, vectors [][]float32, sourceFile string) error

	// Touch refreshes the session's last-access time and returns it, or
	// ErrNotFound.
	Touch(ctx context.Context, key string) (*Session, error)

	// Sweep evicts every session idle past the TTL relative to now and
	// deletes its source file. Per-entry failures are logged and do not abort
	// the sweep. Returns the number of evicted sessions.
	Sweep(ctx context.Context, now time.Time) int

	Close() error
}
