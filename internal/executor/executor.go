// Package executor provides the TestExecutor contract the scheduler drives
// jobs through, plus the bundled implementations.
package executor

import (
	"context"
	"time"

	"testdeck/internal/store"
)

// Result is the outcome of one test run.
type Result struct {
	// Passed is true when the test run succeeded.
	Passed bool

	// Detail is a human-readable artifact: the result payload on pass,
	// the error payload on fail.
	Detail string

	// Duration is how long the run took on the device.
	Duration time.Duration
}

// Executor runs a single job on a device and reports the outcome. It must
// not mutate the job store; the scheduler owns all status transitions.
// Run may block for the duration of the test.
type Executor interface {
	Run(ctx context.Context, job *store.Job) (*Result, error)
}
