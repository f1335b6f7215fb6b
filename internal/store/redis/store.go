// Package redis implements the JobStore on Redis. Each job record is a
// single JSON value under job:{job_id}; listing uses SCAN with a key
// prefix, so readers see a live view rather than a snapshot.
//
// Usage:
//
//	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	s := redisstore.New(client)
//	if err := s.Ping(ctx); err != nil { ... }
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	goredis "github.com/redis/go-redis/v9"

	"testdeck/internal/store"
)

// Compile-time interface check.
var _ store.JobStore = (*Store)(nil)

const keyPrefix = "job:"

// Option configures the Store.
type Option func(*Store)

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// Store implements store.JobStore backed by Redis.
type Store struct {
	client goredis.Cmdable
	closer func() error
	logger *slog.Logger
}

// New creates a Redis-backed store. The caller owns the client lifecycle.
func New(client goredis.Cmdable, opts ...Option) *Store {
	s := &Store{client: client, logger: slog.Default()}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Open parses a redis:// URL, creates a client for it, and returns a store
// that owns that client. No connection is made until the first command;
// call Ping to verify the server is reachable.
func Open(url string, opts ...Option) (*Store, error) {
	ropts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	client := goredis.NewClient(ropts)
	s := New(client, opts...)
	s.closer = client.Close
	return s, nil
}

func jobKey(jobID string) string { return keyPrefix + jobID }

// Put serializes the job as JSON and writes it under job:{id}.
func (s *Store) Put(ctx context.Context, job *store.Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job %s: %w", job.ID, err)
	}
	if err := s.client.Set(ctx, jobKey(job.ID), data, 0).Err(); err != nil {
		return store.Unavailable("put", err)
	}
	return nil
}

// Get returns the job or store.ErrNotFound.
func (s *Store) Get(ctx context.Context, jobID string) (*store.Job, error) {
	data, err := s.client.Get(ctx, jobKey(jobID)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, store.ErrNotFound
		}
		return nil, store.Unavailable("get", err)
	}
	var j store.Job
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job %s: %w", jobID, err)
	}
	return &j, nil
}

// Scan walks every job:* key with SCAN and returns the decoded records.
// Keys that vanish mid-scan are skipped.
func (s *Store) Scan(ctx context.Context) ([]*store.Job, error) {
	var (
		jobs   []*store.Job
		cursor uint64
	)
	for {
		keys, next, err := s.client.Scan(ctx, cursor, keyPrefix+"*", 100).Result()
		if err != nil {
			return nil, store.Unavailable("scan", err)
		}
		for _, key := range keys {
			data, err := s.client.Get(ctx, key).Bytes()
			if err != nil {
				if errors.Is(err, goredis.Nil) {
					continue // deleted between SCAN and GET
				}
				return nil, store.Unavailable("scan get", err)
			}
			var j store.Job
			if err := json.Unmarshal(data, &j); err != nil {
				s.logger.Warn("skipping undecodable job record",
					"key", key, "error", err)
				continue
			}
			jobs = append(jobs, &j)
		}
		cursor = next
		if cursor == 0 {
			return jobs, nil
		}
	}
}

// Delete removes the job key. Deleting a missing key is not an error.
func (s *Store) Delete(ctx context.Context, jobID string) error {
	if err := s.client.Del(ctx, jobKey(jobID)).Err(); err != nil {
		return store.Unavailable("delete", err)
	}
	return nil
}

// Ping verifies the Redis connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return store.Unavailable("ping", err)
	}
	return nil
}

// Close closes the client if this store opened it; otherwise the caller
// owns the client lifecycle and Close is a no-op.
func (s *Store) Close() error {
	if s.closer != nil {
		return s.closer()
	}
	return nil
}

// IsRedisURL reports whether url selects this backend.
func IsRedisURL(url string) bool {
	return strings.HasPrefix(url, "redis://") || strings.HasPrefix(url, "rediss://")
}
