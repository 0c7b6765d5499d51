package postgres

import (
	"context"
	"errors"
	"io"
	"log"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"

	"github.com/docusense/docchat/internal/index"
	"github.com/docusense/docchat/internal/session"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	st := NewWithDB(db, time.Hour, log.New(io.Discard, "", 0))
	return st, mock
}

func TestTouchFound(t *testing.T) {
	st, mock := newMockStore(t)
	mock.ExpectQuery(`UPDATE sessions SET last_access = GREATEST(last_access, $2) WHERE key = $1 RETURNING source_file`).
		WithArgs("k", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"source_file"}).AddRow("/uploads/k.pdf"))

	sess, err := st.Touch(context.Background(), "k")
	if err != nil {
		t.Fatalf("Touch: %v", err)
	}
	if sess.SourceFile != "/uploads/k.pdf" {
		t.Fatalf("unexpected source file %q", sess.SourceFile)
	}
	if sess.Index == nil {
		t.Fatal("session has no index")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestTouchNotFound(t *testing.T) {
	st, mock := newMockStore(t)
	mock.ExpectQuery(`UPDATE sessions SET last_access = GREATEST(last_access, $2) WHERE key = $1 RETURNING source_file`).
		WithArgs("k", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"source_file"}))

	_, err := st.Touch(context.Background(), "k")
	if !errors.Is(err, session.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestPutReplacesExistingSession(t *testing.T) {
	st, mock := newMockStore(t)
	mock.ExpectBegin()
	mock.ExpectQuery(`DELETE FROM sessions WHERE key = $1 RETURNING source_file`).
		WithArgs("k").
		WillReturnRows(sqlmock.NewRows([]string{"source_file"})) // no previous entry
	mock.ExpectExec(`INSERT INTO sessions (key, source_file, last_access) VALUES ($1, $2, $3)`).
		WithArgs("k", "/uploads/k.pdf", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO chunks (session_key, chunk_index, content, embedding) VALUES ($1, $2, $3, $4)`).
		WithArgs("k", 0, "chunk one", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`INSERT INTO chunks (session_key, chunk_index, content, embedding) VALUES ($1, $2, $3, $4)`).
		WithArgs("k", 1, "chunk two", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectCommit()

	err := st.Put(context.Background(), "k",
		[]string{"chunk one", "chunk two"},
		[][]float32{{1, 0}, {0, 1}},
		"/uploads/k.pdf",
	)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestPutLengthMismatch(t *testing.T) {
	st, _ := newMockStore(t)
	err := st.Put(context.Background(), "k", []string{"a", "b"}, [][]float32{{1}}, "")
	if err == nil {
		t.Fatal("expected error for mismatched slices")
	}
}

func TestSweepDeletesExpiredSessions(t *testing.T) {
	st, mock := newMockStore(t)
	mock.ExpectQuery(`SELECT key, source_file FROM sessions WHERE last_access < $1`).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"key", "source_file"}).
			AddRow("a", "").
			AddRow("b", ""))
	mock.ExpectExec(`DELETE FROM sessions WHERE key = ANY($1)`).
		WithArgs(pq.Array([]string{"a", "b"})).
		WillReturnResult(sqlmock.NewResult(0, 2))

	if n := st.Sweep(context.Background(), time.Now()); n != 2 {
		t.Fatalf("expected 2 evictions, got %d", n)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestSweepNothingExpired(t *testing.T) {
	st, mock := newMockStore(t)
	mock.ExpectQuery(`SELECT key, source_file FROM sessions WHERE last_access < $1`).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"key", "source_file"}))

	if n := st.Sweep(context.Background(), time.Now()); n != 0 {
		t.Fatalf("expected 0 evictions, got %d", n)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestIndexVectorSearch(t *testing.T) {
	st, mock := newMockStore(t)
	mock.ExpectQuery(`SELECT chunk_index, content FROM chunks WHERE session_key = $1 ORDER BY embedding <-> $2 LIMIT $3`).
		WithArgs("k", sqlmock.AnyArg(), 3).
		WillReturnRows(sqlmock.NewRows([]string{"chunk_index", "content"}).
			AddRow(2, "closest").
			AddRow(0, "second"))

	ix := &Index{db: st.db, key: "k"}
	hits, err := ix.VectorSearch(context.Background(), []float32{1, 0}, 3)
	if err != nil {
		t.Fatalf("VectorSearch: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("expected 2 hits, got %d", len(hits))
	}
	if hits[0].ChunkID != 2 || hits[0].Rank != 1 {
		t.Fatalf("unexpected first hit: %+v", hits[0])
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestIndexKeywordSearchUnsupported(t *testing.T) {
	ix := &Index{}
	_, err := ix.KeywordSearch(context.Background(), "q", 3)
	if !errors.Is(err, index.ErrKeywordSearchUnsupported) {
		t.Fatalf("expected ErrKeywordSearchUnsupported, got %v", err)
	}
}
