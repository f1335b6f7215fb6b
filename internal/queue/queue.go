// Package queue is the submission gateway and read API over the job store.
// It owns validation, deduplication, and the user-driven transitions
// (cancel, retry); the scheduler owns everything in between.
package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"testdeck/internal/store"
)

// Config carries the defaults applied to new submissions.
type Config struct {
	MaxRetries      int
	DefaultPriority store.Priority
	DefaultTarget   store.Target
}

// Queue validates and persists test-run submissions and serves reads.
type Queue struct {
	store  store.JobStore
	logger *slog.Logger
	cfg    Config
}

// New creates a Queue over the given store.
func New(s store.JobStore, logger *slog.Logger, cfg Config) *Queue {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.DefaultPriority == "" {
		cfg.DefaultPriority = store.PriorityMedium
	}
	if cfg.DefaultTarget == "" {
		cfg.DefaultTarget = store.TargetEmulator
	}
	return &Queue{store: s, logger: logger, cfg: cfg}
}

// SubmitRequest is a submission payload. The execution fields below the
// identity tuple are passed through verbatim to support state import.
type SubmitRequest struct {
	OrgID        string
	AppVersionID string
	TestPath     string
	Target       store.Target
	Priority     store.Priority
	Timestamp    *time.Time
	JobID        string

	Status      store.Status
	Progress    *int
	RetryCount  *int
	MaxRetries  *int
	StartedAt   *time.Time
	CompletedAt *time.Time
	DeviceID    *string
	AgentID     *string
}

// SubmitResult reports the outcome of a submission.
type SubmitResult struct {
	JobID     string
	Status    store.Status
	Message   string
	Duplicate bool
}

// Submit validates the payload, deduplicates against active jobs with the
// same identity tuple, and persists a new queued record.
func (q *Queue) Submit(ctx context.Context, req SubmitRequest) (*SubmitResult, error) {
	if req.Target == "" {
		req.Target = q.cfg.DefaultTarget
	}
	if req.Priority == "" {
		req.Priority = q.cfg.DefaultPriority
	}
	if err := q.validate(req); err != nil {
		return nil, err
	}

	// Dedup: an active job for the same tuple absorbs this submission.
	existing, err := q.store.Scan(ctx)
	if err != nil {
		return nil, err
	}
	for _, j := range existing {
		if j.OrgID == req.OrgID &&
			j.AppVersionID == req.AppVersionID &&
			j.TestPath == req.TestPath &&
			j.Target == req.Target &&
			j.Status.Active() {
			return &SubmitResult{
				JobID:     j.ID,
				Status:    j.Status,
				Message:   "duplicate",
				Duplicate: true,
			}, nil
		}
	}

	job := q.buildJob(req)
	if err := q.store.Put(ctx, job); err != nil {
		return nil, err
	}
	q.logger.Info("job submitted",
		"job_id", job.ID,
		"org_id", job.OrgID,
		"group_id", job.GroupID,
		"priority", job.Priority)
	return &SubmitResult{JobID: job.ID, Status: job.Status, Message: "queued"}, nil
}

func (q *Queue) validate(req SubmitRequest) error {
	if n := len(req.OrgID); n < 1 || n > 100 {
		return &store.ValidationError{Field: "org_id", Reason: "must be 1-100 characters"}
	}
	if n := len(req.AppVersionID); n < 1 || n > 100 {
		return &store.ValidationError{Field: "app_version_id", Reason: "must be 1-100 characters"}
	}
	if req.TestPath == "" {
		return &store.ValidationError{Field: "test_path", Reason: "must not be empty"}
	}
	if !req.Target.Valid() {
		return &store.ValidationError{Field: "target", Reason: fmt.Sprintf("unknown target %q", req.Target)}
	}
	if !req.Priority.Valid() {
		return &store.ValidationError{Field: "priority", Reason: fmt.Sprintf("unknown priority %q", req.Priority)}
	}
	if req.Status != "" && !req.Status.Valid() {
		return &store.ValidationError{Field: "status", Reason: fmt.Sprintf("unknown status %q", req.Status)}
	}
	return nil
}

func (q *Queue) buildJob(req SubmitRequest) *store.Job {
	job := &store.Job{
		ID:           req.JobID,
		OrgID:        req.OrgID,
		AppVersionID: req.AppVersionID,
		TestPath:     req.TestPath,
		Target:       req.Target,
		Priority:     req.Priority,
		Status:       store.StatusQueued,
		RetryCount:   0,
		Progress:     0,
		MaxRetries:   q.cfg.MaxRetries,
		Timestamp:    time.Now().UTC(),
		GroupID:      store.GroupKey(req.OrgID, req.AppVersionID, req.Target),
	}
	if job.ID == "" {
		job.ID = store.NewJobID()
	}
	if req.Timestamp != nil {
		job.Timestamp = req.Timestamp.UTC()
	}

	// State-import passthrough.
	if req.Status != "" {
		job.Status = req.Status
	}
	if req.Progress != nil {
		job.Progress = *req.Progress
	}
	if req.RetryCount != nil {
		job.RetryCount = *req.RetryCount
	}
	if req.MaxRetries != nil {
		job.MaxRetries = *req.MaxRetries
	}
	job.StartedAt = req.StartedAt
	job.CompletedAt = req.CompletedAt
	job.DeviceID = req.DeviceID
	job.AgentID = req.AgentID
	return job
}

// Get returns the job or store.ErrNotFound.
func (q *Queue) Get(ctx context.Context, jobID string) (*store.Job, error) {
	return q.store.Get(ctx, jobID)
}

// List returns jobs for an org, optionally filtered by status, ordered by
// submission time.
func (q *Queue) List(ctx context.Context, orgID string, status *store.Status) ([]*store.Job, error) {
	jobs, err := q.store.Scan(ctx)
	if err != nil {
		return nil, err
	}
	var out []*store.Job
	for _, j := range jobs {
		if j.OrgID != orgID {
			continue
		}
		if status != nil && j.Status != *status {
			continue
		}
		out = append(out, j)
	}
	sort.Slice(out, func(i, k int) bool {
		return out[i].Timestamp.Before(out[k].Timestamp)
	})
	return out, nil
}

// Cancel marks a non-terminal job cancelled. Cancelling a terminal job
// returns store.ErrInvalidState. Cancellation is last-writer-wins against
// a concurrent scheduler lock: the scheduler re-reads before execution and
// honors the terminal status.
func (q *Queue) Cancel(ctx context.Context, jobID string) (*store.Job, error) {
	job, err := q.store.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status.Terminal() {
		return nil, fmt.Errorf("%w: cannot cancel job in status %q", store.ErrInvalidState, job.Status)
	}

	now := time.Now().UTC()
	job.Status = store.StatusCancelled
	job.CompletedAt = &now
	if err := q.store.Put(ctx, job); err != nil {
		return nil, err
	}
	q.logger.Info("job cancelled", "job_id", job.ID)
	return job, nil
}

// Retry re-queues a failed job, consuming one retry. Only failed or
// retrying jobs with remaining budget are retriable; an exhausted job is
// pinned to failed with the canonical error.
func (q *Queue) Retry(ctx context.Context, jobID string) (*store.Job, error) {
	job, err := q.store.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status != store.StatusFailed && job.Status != store.StatusRetrying {
		return nil, fmt.Errorf("%w: cannot retry job in status %q", store.ErrInvalidState, job.Status)
	}
	if job.RetryCount >= job.MaxRetries {
		msg := store.ErrMaxRetriesExceeded
		job.Status = store.StatusFailed
		job.Error = &msg
		if err := q.store.Put(ctx, job); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s", store.ErrInvalidState, store.ErrMaxRetriesExceeded)
	}

	job.RetryCount++
	job.Status = store.StatusQueued
	job.Error = nil
	job.StartedAt = nil
	job.CompletedAt = nil
	job.DeviceID = nil
	job.AgentID = nil
	if err := q.store.Put(ctx, job); err != nil {
		return nil, err
	}
	q.logger.Info("job retried",
		"job_id", job.ID,
		"retry_count", job.RetryCount,
		"max_retries", job.MaxRetries)
	return job, nil
}

// Stats summarizes the queue by lifecycle state.
type Stats struct {
	Waiting   int `json:"waiting"`
	Active    int `json:"active"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	Total     int `json:"total"`
	Groups    int `json:"groups"`
}

// Stats runs a full scan and aggregates per-status counts plus the number
// of distinct non-terminal groups.
func (q *Queue) Stats(ctx context.Context) (*Stats, error) {
	jobs, err := q.store.Scan(ctx)
	if err != nil {
		return nil, err
	}
	stats := &Stats{Total: len(jobs)}
	groups := make(map[string]struct{})
	for _, j := range jobs {
		switch j.Status {
		case store.StatusQueued, store.StatusScheduled:
			stats.Waiting++
		case store.StatusRunning:
			stats.Active++
		case store.StatusCompleted:
			stats.Completed++
		case store.StatusFailed:
			stats.Failed++
		}
		if !j.Status.Terminal() {
			groups[j.GroupID] = struct{}{}
		}
	}
	stats.Groups = len(groups)
	return stats, nil
}

// GroupSummary describes one batch of compatible non-terminal jobs.
type GroupSummary struct {
	GroupID      string
	OrgID        string
	AppVersionID string
	Target       store.Target
	JobCount     int
	Status       store.Status
	OldestJob    time.Time
	NewestJob    time.Time

	// Jobs holds the members sorted by priority desc then submission
	// time asc — the in-group execution order.
	Jobs []*store.Job
}

// Groups buckets non-terminal jobs by group ID. Summaries are ordered by
// group ID so repeated calls are stable.
func (q *Queue) Groups(ctx context.Context) ([]*GroupSummary, error) {
	jobs, err := q.store.Scan(ctx)
	if err != nil {
		return nil, err
	}

	buckets := make(map[string][]*store.Job)
	for _, j := range jobs {
		if j.Status.Terminal() {
			continue
		}
		buckets[j.GroupID] = append(buckets[j.GroupID], j)
	}

	var out []*GroupSummary
	for groupID, members := range buckets {
		SortMembers(members)
		g := &GroupSummary{
			GroupID:      groupID,
			OrgID:        members[0].OrgID,
			AppVersionID: members[0].AppVersionID,
			Target:       members[0].Target,
			JobCount:     len(members),
			Status:       GroupStatus(members),
			OldestJob:    members[0].Timestamp,
			NewestJob:    members[0].Timestamp,
			Jobs:         members,
		}
		for _, j := range members {
			if j.Timestamp.Before(g.OldestJob) {
				g.OldestJob = j.Timestamp
			}
			if j.Timestamp.After(g.NewestJob) {
				g.NewestJob = j.Timestamp
			}
		}
		out = append(out, g)
	}
	sort.Slice(out, func(i, k int) bool { return out[i].GroupID < out[k].GroupID })
	return out, nil
}

// SortMembers orders jobs by priority desc then submission time asc, the
// execution order inside a group.
func SortMembers(jobs []*store.Job) {
	sort.SliceStable(jobs, func(i, k int) bool {
		if ri, rk := jobs[i].Priority.Rank(), jobs[k].Priority.Rank(); ri != rk {
			return ri > rk
		}
		return jobs[i].Timestamp.Before(jobs[k].Timestamp)
	})
}

// GroupStatus derives the aggregate status of a member set: running beats
// failed beats completed; anything else is queued.
func GroupStatus(jobs []*store.Job) store.Status {
	var anyRunning, anyFailed bool
	allCompleted := len(jobs) > 0
	for _, j := range jobs {
		switch j.Status {
		case store.StatusRunning:
			anyRunning = true
		case store.StatusFailed:
			anyFailed = true
		}
		if j.Status != store.StatusCompleted {
			allCompleted = false
		}
	}
	switch {
	case anyRunning:
		return store.StatusRunning
	case anyFailed:
		return store.StatusFailed
	case allCompleted:
		return store.StatusCompleted
	default:
		return store.StatusQueued
	}
}
