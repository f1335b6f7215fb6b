// Package memory provides a fully in-memory JobStore. Safe for concurrent
// access. Intended for unit testing and local development
// (store_url=memory://).
package memory

import (
	"context"
	"sync"

	"testdeck/internal/store"
)

// Compile-time interface check.
var _ store.JobStore = (*Store)(nil)

// Store keeps job records in a mutex-guarded map.
type Store struct {
	mu   sync.RWMutex
	jobs map[string]*store.Job
}

// New returns a new empty Store.
func New() *Store {
	return &Store{jobs: make(map[string]*store.Job)}
}

// Put writes the job unconditionally.
func (m *Store) Put(_ context.Context, job *store.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[job.ID] = job.Clone()
	return nil
}

// Get returns the job or store.ErrNotFound.
func (m *Store) Get(_ context.Context, jobID string) (*store.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	j, ok := m.jobs[jobID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return j.Clone(), nil
}

// Scan returns a copy of every job in the store.
func (m *Store) Scan(_ context.Context) ([]*store.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*store.Job, 0, len(m.jobs))
	for _, j := range m.jobs {
		out = append(out, j.Clone())
	}
	return out, nil
}

// Delete removes the job. Missing jobs are ignored.
func (m *Store) Delete(_ context.Context, jobID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.jobs, jobID)
	return nil
}

// Ping always succeeds for the memory store.
func (m *Store) Ping(_ context.Context) error { return nil }

// Close is a no-op for the memory store.
func (m *Store) Close() error { return nil }
