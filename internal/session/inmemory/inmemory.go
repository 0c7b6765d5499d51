// Package inmemory is the default session store: a process-wide map guarded
// by a mutex, swept periodically to evict sessions idle past the TTL.
package inmemory

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/docusense/docchat/internal/index/memory"
	"github.com/docusense/docchat/internal/session"
)

type Store struct {
	mu       sync.Mutex
	sessions map[string]*session.Session
	ttl      time.Duration
	now      func() time.Time
	logger   *log.Logger
}

// New creates an in-memory session store with the given idle TTL.
func New(ttl time.Duration, logger *log.Logger) *Store {
	return NewWithClock(ttl, logger, time.Now)
}

// NewWithClock creates a store reading time from the given clock, so eviction
// timing is deterministic in tests.
func NewWithClock(ttl time.Duration, logger *log.Logger, now func() time.Time) *Store {
	return &Store{
		sessions: make(map[string]*session.Session),
		ttl:      ttl,
		now:      now,
		logger:   logger,
	}
}

func (s *Store) Put(_ context.Context, key string, chunks []string, vectors [][]float32, sourceFile string) error {
	idx, err := memory.New(chunks, vectors)
	if err != nil {
		return fmt.Errorf("building index for session %s: %w", key, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.sessions[key]; ok && old.SourceFile != sourceFile {
		s.removeFile(old.SourceFile)
	}
	// replacement is modeled as delete+insert; the old session value is
	// never mutated, so readers holding it stay consistent
	s.sessions[key] = &session.Session{
		Key:        key,
		Index:      idx,
		SourceFile: sourceFile,
		LastAccess: s.now(),
	}
	return nil
}

func (s *Store) Touch(_ context.Context, key string) (*session.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[key]
	if !ok {
		return nil, session.ErrNotFound
	}
	if t := s.now(); t.After(sess.LastAccess) {
		sess.LastAccess = t
	}
	cp := *sess
	return &cp, nil
}

func (s *Store) Sweep(_ context.Context, now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	evicted := 0
	for key, sess := range s.sessions {
		if now.Sub(sess.LastAccess) <= s.ttl {
			continue
		}
		delete(s.sessions, key)
		s.removeFile(sess.SourceFile)
		evicted++
	}
	return evicted
}

func (s *Store) Close() error { return nil }

// removeFile is best-effort; a file that is already gone is not an error
// worth aborting a sweep for.
func (s *Store) removeFile(path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		s.logger.Printf("removing %s: %v", path, err)
	}
}
