// Package store contains the persistence layer for testdeck.
package store

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Status represents the lifecycle state of a job.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusScheduled Status = "scheduled"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
	StatusRetrying  Status = "retrying"
)

// Valid reports whether s is one of the known lifecycle states.
func (s Status) Valid() bool {
	switch s {
	case StatusQueued, StatusScheduled, StatusRunning,
		StatusCompleted, StatusFailed, StatusCancelled, StatusRetrying:
		return true
	}
	return false
}

// Terminal reports whether the status is final. Terminal jobs never
// transition again except through an explicit retry.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// Active reports whether the job occupies (or is about to occupy) a device.
// Active jobs block duplicate submissions of the same test tuple.
func (s Status) Active() bool {
	return s == StatusQueued || s == StatusScheduled || s == StatusRunning
}

// Priority controls ordering inside a group.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Valid reports whether p is a known priority level.
func (p Priority) Valid() bool {
	return p == PriorityLow || p == PriorityMedium || p == PriorityHigh
}

// Rank returns the numeric rank used for sorting. Higher runs first.
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	}
	return 0
}

// Target identifies the kind of device a test run needs.
type Target string

const (
	TargetEmulator     Target = "emulator"
	TargetDevice       Target = "device"
	TargetBrowserstack Target = "browserstack"
)

// Valid reports whether t is a known target type.
func (t Target) Valid() bool {
	return t == TargetEmulator || t == TargetDevice || t == TargetBrowserstack
}

// Job is a single test-execution request with its full lifecycle state.
// The JobStore owns every record; other components hold transient copies
// that are read-modify-written back.
type Job struct {
	ID           string     `json:"job_id"`
	OrgID        string     `json:"org_id"`
	AppVersionID string     `json:"app_version_id"`
	TestPath     string     `json:"test_path"`
	Target       Target     `json:"target"`
	Priority     Priority   `json:"priority"`
	Status       Status     `json:"status"`
	Progress     int        `json:"progress"`
	Result       *string    `json:"result"`
	Error        *string    `json:"error"`
	RetryCount   int        `json:"retry_count"`
	MaxRetries   int        `json:"max_retries"`
	Timestamp    time.Time  `json:"timestamp"`
	StartedAt    *time.Time `json:"started_at"`
	CompletedAt  *time.Time `json:"completed_at"`
	DeviceID     *string    `json:"device_id"`
	AgentID      *string    `json:"agent_id"`
	GroupID      string     `json:"group_id"`
}

// Clone returns a deep copy of the job so callers can mutate it without
// racing with the store.
func (j *Job) Clone() *Job {
	cp := *j
	cp.Result = clonePtr(j.Result)
	cp.Error = clonePtr(j.Error)
	cp.StartedAt = clonePtr(j.StartedAt)
	cp.CompletedAt = clonePtr(j.CompletedAt)
	cp.DeviceID = clonePtr(j.DeviceID)
	cp.AgentID = clonePtr(j.AgentID)
	return &cp
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// GroupKey derives the group identifier from the identity tuple. Jobs that
// share a group can run back-to-back on one device without reinstalling
// the app build.
func GroupKey(orgID, appVersionID string, target Target) string {
	return fmt.Sprintf("%s_%s_%s", orgID, appVersionID, target)
}

// NewJobID generates a unique job identifier of the form
// job_{ms-since-epoch}_{8-hex}.
func NewJobID() string {
	suffix := uuid.NewString()[:8]
	return fmt.Sprintf("job_%d_%s", time.Now().UnixMilli(), suffix)
}

// ErrMaxRetriesExceeded is the canonical error payload written to a job
// whose retry budget is exhausted.
const ErrMaxRetriesExceeded = "Max retries exceeded"

// ErrServerRestart is the canonical error payload written to jobs reset by
// startup recovery.
const ErrServerRestart = "Job reset due to server restart"
