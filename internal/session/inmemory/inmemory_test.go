package inmemory

import (
	"context"
	"errors"
	"io"
	"log"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/docusense/docchat/internal/session"
)

var testVec = [][]float32{{1, 0}}

func testLogger() *log.Logger { return log.New(io.Discard, "", 0) }

// clock is an adjustable test clock.
type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newClock() *clock { return &clock{t: time.Unix(1700000000, 0)} }

func tempFile(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte("%PDF"), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestTouchUnknownKey(t *testing.T) {
	st := New(time.Hour, testLogger())
	_, err := st.Touch(context.Background(), "nope")
	if !errors.Is(err, session.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPutThenTouch(t *testing.T) {
	ck := newClock()
	st := NewWithClock(time.Hour, testLogger(), ck.now)
	ctx := context.Background()

	if err := st.Put(ctx, "k", []string{"chunk"}, testVec, ""); err != nil {
		t.Fatalf("Put: %v", err)
	}
	ck.advance(10 * time.Minute)
	sess, err := st.Touch(ctx, "k")
	if err != nil {
		t.Fatalf("Touch: %v", err)
	}
	if !sess.LastAccess.Equal(ck.t) {
		t.Fatalf("LastAccess not refreshed: %v vs %v", sess.LastAccess, ck.t)
	}
	if sess.Index == nil {
		t.Fatal("session has no index")
	}
}

func TestSweepEvictsIdleSessionAndRemovesFile(t *testing.T) {
	ck := newClock()
	st := NewWithClock(time.Hour, testLogger(), ck.now)
	ctx := context.Background()
	file := tempFile(t, "doc.pdf")

	if err := st.Put(ctx, "k", []string{"chunk"}, testVec, file); err != nil {
		t.Fatalf("Put: %v", err)
	}

	ck.advance(time.Hour + time.Second)
	if n := st.Sweep(ctx, ck.t); n != 1 {
		t.Fatalf("expected 1 eviction, got %d", n)
	}
	if _, err := st.Touch(ctx, "k"); !errors.Is(err, session.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after sweep, got %v", err)
	}
	if _, err := os.Stat(file); !os.IsNotExist(err) {
		t.Fatalf("source file not removed: %v", err)
	}
}

func TestSweepKeepsFreshSessions(t *testing.T) {
	ck := newClock()
	st := NewWithClock(time.Hour, testLogger(), ck.now)
	ctx := context.Background()

	if err := st.Put(ctx, "k", []string{"chunk"}, testVec, ""); err != nil {
		t.Fatalf("Put: %v", err)
	}
	// exactly at the TTL boundary the session survives
	ck.advance(time.Hour)
	if n := st.Sweep(ctx, ck.t); n != 0 {
		t.Fatalf("expected 0 evictions, got %d", n)
	}
	if _, err := st.Touch(ctx, "k"); err != nil {
		t.Fatalf("Touch after sweep: %v", err)
	}
}

func TestTouchPostponesEviction(t *testing.T) {
	ck := newClock()
	st := NewWithClock(time.Hour, testLogger(), ck.now)
	ctx := context.Background()

	if err := st.Put(ctx, "k", []string{"chunk"}, testVec, ""); err != nil {
		t.Fatalf("Put: %v", err)
	}
	ck.advance(50 * time.Minute)
	if _, err := st.Touch(ctx, "k"); err != nil {
		t.Fatalf("Touch: %v", err)
	}
	// 50 more minutes pass: past the original deadline, within the refreshed one
	ck.advance(50 * time.Minute)
	if n := st.Sweep(ctx, ck.t); n != 0 {
		t.Fatalf("expected 0 evictions, got %d", n)
	}
}

func TestPutReplacesSessionAndRemovesOldFile(t *testing.T) {
	ck := newClock()
	st := NewWithClock(time.Hour, testLogger(), ck.now)
	ctx := context.Background()
	oldFile := tempFile(t, "old.pdf")
	newFile := tempFile(t, "new.pdf")

	if err := st.Put(ctx, "k", []string{"first"}, testVec, oldFile); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := st.Put(ctx, "k", []string{"second"}, testVec, newFile); err != nil {
		t.Fatalf("second Put: %v", err)
	}

	if _, err := os.Stat(oldFile); !os.IsNotExist(err) {
		t.Fatalf("replaced source file not removed: %v", err)
	}
	if _, err := os.Stat(newFile); err != nil {
		t.Fatalf("new source file missing: %v", err)
	}
	sess, err := st.Touch(ctx, "k")
	if err != nil {
		t.Fatalf("Touch: %v", err)
	}
	if sess.SourceFile != newFile {
		t.Fatalf("session points at %s, want %s", sess.SourceFile, newFile)
	}
}

func TestSweepMissingFileIsNotFatal(t *testing.T) {
	ck := newClock()
	st := NewWithClock(time.Hour, testLogger(), ck.now)
	ctx := context.Background()

	if err := st.Put(ctx, "k", []string{"chunk"}, testVec, filepath.Join(t.TempDir(), "already-gone.pdf")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	ck.advance(2 * time.Hour)
	if n := st.Sweep(ctx, ck.t); n != 1 {
		t.Fatalf("expected 1 eviction, got %d", n)
	}
}
