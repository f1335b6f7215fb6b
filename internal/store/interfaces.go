package store

import "context"

// JobStore is a persistent map from job ID to job record.
//
// Put is atomic at the single-key level with read-your-writes semantics.
// Scan is finite but not snapshot-consistent: callers must not rely on any
// cross-key invariant during a scan and must re-Get a record before acting
// on it. All higher-level atomicity (dedup, status transitions) is built
// as read-modify-write against this interface.
type JobStore interface {
	// Put writes the job unconditionally.
	Put(ctx context.Context, job *Job) error

	// Get returns the job or ErrNotFound.
	Get(ctx context.Context, jobID string) (*Job, error)

	// Scan returns every job currently in the store.
	Scan(ctx context.Context) ([]*Job, error)

	// Delete removes the job. Deleting a missing job is not an error.
	Delete(ctx context.Context, jobID string) error

	// Ping verifies the backing store is reachable.
	Ping(ctx context.Context) error

	// Close releases any resources held by the store.
	Close() error
}
