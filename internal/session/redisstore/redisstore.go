// Package redisstore keeps session payloads in redis so sessions survive a
// process restart. Redis owns the idle TTL via key expiry; the sweep only
// reconciles source files whose session key has already expired.
package redisstore

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/docusense/docchat/internal/index/memory"
	"github.com/docusense/docchat/internal/session"
)

const (
	sessionKeyPrefix = "docchat:session:"
	sessionSetKey    = "docchat:sessions"
	sessionFilesKey  = "docchat:session_files"
)

// payload is the JSON shape stored under each session key.
type payload struct {
	Chunks     []string    `json:"chunks"`
	Vectors    [][]float32 `json:"vectors"`
	SourceFile string      `json:"source_file"`
}

type Store struct {
	client *redis.Client
	ttl    time.Duration
	logger *log.Logger
}

// New connects to redis and returns a session store with the given idle TTL.
func New(addr, password string, db int, ttl time.Duration, logger *log.Logger) (*Store, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed (%s): %w", addr, err)
	}
	return &Store{client: rdb, ttl: ttl, logger: logger}, nil
}

func (s *Store) Put(ctx context.Context, key string, chunks []string, vectors [][]float32, sourceFile string) error {
	data, err := json.Marshal(payload{Chunks: chunks, Vectors: vectors, SourceFile: sourceFile})
	if err != nil {
		return fmt.Errorf("marshaling session %s: %w", key, err)
	}

	if old, err := s.client.HGet(ctx, sessionFilesKey, key).Result(); err == nil && old != "" && old != sourceFile {
		s.removeFile(old)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, sessionKeyPrefix+key, data, s.ttl)
	pipe.HSet(ctx, sessionFilesKey, key, sourceFile)
	pipe.SAdd(ctx, sessionSetKey, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("storing session %s: %w", key, err)
	}
	return nil
}

func (s *Store) Touch(ctx context.Context, key string) (*session.Session, error) {
	data, err := s.client.Get(ctx, sessionKeyPrefix+key).Result()
	if err == redis.Nil {
		return nil, session.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading session %s: %w", key, err)
	}
	if err := s.client.Expire(ctx, sessionKeyPrefix+key, s.ttl).Err(); err != nil {
		return nil, fmt.Errorf("refreshing session %s: %w", key, err)
	}

	var p payload
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		return nil, fmt.Errorf("decoding session %s: %w", key, err)
	}
	// the index is rebuilt from the payload on each touch; documents are
	// bounded at 10MB so this stays cheap
	idx, err := memory.New(p.Chunks, p.Vectors)
	if err != nil {
		return nil, fmt.Errorf("rebuilding index for session %s: %w", key, err)
	}
	return &session.Session{
		Key:        key,
		Index:      idx,
		SourceFile: p.SourceFile,
		LastAccess: time.Now(),
	}, nil
}

// Sweep deletes source files left behind by keys redis has already expired.
// The now argument is unused; expiry is redis-native.
func (s *Store) Sweep(ctx context.Context, _ time.Time) int {
	keys, err := s.client.SMembers(ctx, sessionSetKey).Result()
	if err != nil {
		s.logger.Printf("listing sessions: %v", err)
		return 0
	}
	evicted := 0
	for _, key := range keys {
		exists, err := s.client.Exists(ctx, sessionKeyPrefix+key).Result()
		if err != nil {
			s.logger.Printf("checking session %s: %v", key, err)
			continue
		}
		if exists == 1 {
			continue
		}
		if path, err := s.client.HGet(ctx, sessionFilesKey, key).Result(); err == nil {
			s.removeFile(path)
		}
		s.client.HDel(ctx, sessionFilesKey, key)
		s.client.SRem(ctx, sessionSetKey, key)
		evicted++
	}
	return evicted
}

func (s *Store) Close() error { return s.client.Close() }

func (s *Store) removeFile(path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		s.logger.Printf("removing %s: %v", path, err)
	}
}
