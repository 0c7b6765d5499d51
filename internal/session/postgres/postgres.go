// Package postgres persists sessions and chunk embeddings in postgres with
// pgvector, so retrieval runs as a nearest-neighbor query in the database.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"

	"github.com/docusense/docchat/internal/index"
	"github.com/docusense/docchat/internal/session"
)

type Store struct {
	db     *sql.DB
	ttl    time.Duration
	now    func() time.Time
	logger *log.Logger
}

// New opens a postgres connection pool and returns a session store.
func New(dsn string, ttl time.Duration, logger *log.Logger) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to open database connection: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxIdleTime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}
	return NewWithDB(db, ttl, logger), nil
}

// NewWithDB wraps an existing database handle; used by tests.
func NewWithDB(db *sql.DB, ttl time.Duration, logger *log.Logger) *Store {
	return &Store{db: db, ttl: ttl, now: time.Now, logger: logger}
}

func (s *Store) Put(ctx context.Context, key string, chunks []string, vectors [][]float32, sourceFile string) error {
	if len(chunks) != len(vectors) {
		return errors.New("chunks and vectors length mismatch")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning session put: %w", err)
	}
	defer tx.Rollback()

	var oldFile sql.NullString
	err = tx.QueryRowContext(ctx, `DELETE FROM sessions WHERE key = $1 RETURNING source_file`, key).Scan(&oldFile)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("replacing session %s: %w", key, err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO sessions (key, source_file, last_access) VALUES ($1, $2, $3)`,
		key, sourceFile, s.now(),
	); err != nil {
		return fmt.Errorf("inserting session %s: %w", key, err)
	}

	for i, chunk := range chunks {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO chunks (session_key, chunk_index, content, embedding) VALUES ($1, $2, $3, $4)`,
			key, i, chunk, pgvector.NewVector(vectors[i]),
		); err != nil {
			return fmt.Errorf("inserting chunk %d of session %s: %w", i, key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing session %s: %w", key, err)
	}
	if oldFile.Valid && oldFile.String != sourceFile {
		s.removeFile(oldFile.String)
	}
	return nil
}

func (s *Store) Touch(ctx context.Context, key string) (*session.Session, error) {
	now := s.now()
	var sourceFile string
	err := s.db.QueryRowContext(ctx,
		`UPDATE sessions SET last_access = GREATEST(last_access, $2) WHERE key = $1 RETURNING source_file`,
		key, now,
	).Scan(&sourceFile)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, session.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("touching session %s: %w", key, err)
	}
	return &session.Session{
		Key:        key,
		Index:      &Index{db: s.db, key: key},
		SourceFile: sourceFile,
		LastAccess: now,
	}, nil
}

func (s *Store) Sweep(ctx context.Context, now time.Time) int {
	cutoff := now.Add(-s.ttl)
	rows, err := s.db.QueryContext(ctx, `SELECT key, source_file FROM sessions WHERE last_access < $1`, cutoff)
	if err != nil {
		s.logger.Printf("listing expired sessions: %v", err)
		return 0
	}
	defer rows.Close()

	var keys []string
	var files []string
	for rows.Next() {
		var key, file string
		if err := rows.Scan(&key, &file); err != nil {
			s.logger.Printf("scanning expired session: %v", err)
			continue
		}
		keys = append(keys, key)
		files = append(files, file)
	}
	if rows.Err() != nil {
		s.logger.Printf("iterating expired sessions: %v", rows.Err())
	}
	if len(keys) == 0 {
		return 0
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE key = ANY($1)`, pq.Array(keys)); err != nil {
		s.logger.Printf("deleting expired sessions: %v", err)
		return 0
	}
	for _, f := range files {
		s.removeFile(f)
	}
	return len(keys)
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) removeFile(path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		s.logger.Printf("removing %s: %v", path, err)
	}
}

// Index answers nearest-neighbor queries for one session straight from the
// chunks table.
type Index struct {
	db  *sql.DB
	key string
}

func (ix *Index) VectorSearch(ctx context.Context, vec []float32, k int) ([]index.Hit, error) {
	rows, err := ix.db.QueryContext(ctx,
		`SELECT chunk_index, content FROM chunks WHERE session_key = $1 ORDER BY embedding <-> $2 LIMIT $3`,
		ix.key, pgvector.NewVector(vec), k,
	)
	if err != nil {
		return nil, fmt.Errorf("vector search for session %s: %w", ix.key, err)
	}
	defer rows.Close()

	var out []index.Hit
	rank := 0
	for rows.Next() {
		var id int
		var content string
		if err := rows.Scan(&id, &content); err != nil {
			return nil, fmt.Errorf("scanning chunk: %w", err)
		}
		rank++
		out = append(out, index.Hit{ChunkID: id, Text: content, Rank: rank})
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterating chunks: %w", rows.Err())
	}
	return out, nil
}

func (ix *Index) KeywordSearch(context.Context, string, int) ([]index.Hit, error) {
	return nil, index.ErrKeywordSearchUnsupported
}
