// Package scheduler drives jobs from queued to a terminal status. A single
// tick loop forms groups, locks members onto a device, and executes them
// sequentially through the injected executor.
//
// The job store has no compare-and-swap, so every transition re-reads the
// record and validates the expected pre-state before writing. That
// discipline, plus the scheduler being single-threaded, is the atomicity
// primitive for the whole core.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"testdeck/internal/executor"
	"testdeck/internal/pool"
	"testdeck/internal/queue"
	"testdeck/internal/store"
)

// Config holds scheduler tuning.
type Config struct {
	// TickInterval is the period between scheduling passes.
	TickInterval time.Duration
}

// Scheduler owns the tick loop and all status transitions between
// queued and terminal.
type Scheduler struct {
	store  store.JobStore
	queue  *queue.Queue
	pool   *pool.Pool
	exec   executor.Executor
	logger *slog.Logger
	cfg    Config

	ticksTotal   metric.Int64Counter
	jobsExecuted metric.Int64Counter
	jobsReset    metric.Int64Counter
}

// New creates a Scheduler. The executor is injected so tests can control
// latency and outcome.
func New(s store.JobStore, q *queue.Queue, p *pool.Pool, exec executor.Executor, logger *slog.Logger, cfg Config) *Scheduler {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = 5 * time.Second
	}

	meter := otel.Meter("testdeck-scheduler")
	ticks, err := meter.Int64Counter("testdeck.scheduler.ticks",
		metric.WithDescription("Completed scheduler ticks"))
	if err != nil {
		logger.Warn("failed to register tick counter", "error", err)
	}
	executed, err := meter.Int64Counter("testdeck.scheduler.jobs_executed",
		metric.WithDescription("Jobs driven to a terminal status"))
	if err != nil {
		logger.Warn("failed to register execution counter", "error", err)
	}
	reset, err := meter.Int64Counter("testdeck.scheduler.jobs_reset",
		metric.WithDescription("Jobs reset by startup recovery"))
	if err != nil {
		logger.Warn("failed to register recovery counter", "error", err)
	}

	return &Scheduler{
		store:        s,
		queue:        q,
		pool:         p,
		exec:         exec,
		logger:       logger,
		cfg:          cfg,
		ticksTotal:   ticks,
		jobsExecuted: executed,
		jobsReset:    reset,
	}
}

// Run performs startup recovery, then ticks until the context is
// cancelled. Ticks are not reentrant: a long execution simply delays the
// next tick.
func (s *Scheduler) Run(ctx context.Context) error {
	if err := s.Recover(ctx); err != nil {
		return err
	}

	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()

	s.logger.Info("scheduler started", "tick_interval", s.cfg.TickInterval)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Recover demotes every scheduled or running job back to queued. Agents
// and devices are process-local, so any job still bound to one after a
// restart is orphaned. Recovery does not consume a retry. Errors on
// individual records are logged and skipped.
func (s *Scheduler) Recover(ctx context.Context) error {
	jobs, err := s.store.Scan(ctx)
	if err != nil {
		return err
	}

	for _, job := range jobs {
		if job.Status != store.StatusScheduled && job.Status != store.StatusRunning {
			continue
		}
		prior := job.Status
		msg := store.ErrServerRestart
		job.Status = store.StatusQueued
		job.AgentID = nil
		job.DeviceID = nil
		job.StartedAt = nil
		job.Error = &msg
		if err := s.store.Put(ctx, job); err != nil {
			s.logger.Error("failed to reset job during recovery",
				"job_id", job.ID, "error", err)
			continue
		}
		if s.jobsReset != nil {
			s.jobsReset.Add(ctx, 1)
		}
		s.logger.Info("job reset due to server restart",
			"job_id", job.ID,
			"prior_status", prior,
			"group_id", job.GroupID)
	}
	return nil
}

// Tick runs one scheduling pass: skip if nothing is waiting, otherwise
// process every group that is queued or running. Store errors abandon the
// tick; the next one retries.
func (s *Scheduler) Tick(ctx context.Context) {
	if s.ticksTotal != nil {
		defer s.ticksTotal.Add(ctx, 1)
	}

	stats, err := s.queue.Stats(ctx)
	if err != nil {
		s.logger.Error("tick abandoned: stats failed", "error", err)
		return
	}
	if stats.Waiting == 0 {
		return
	}

	groups, err := s.queue.Groups(ctx)
	if err != nil {
		s.logger.Error("tick abandoned: group scan failed", "error", err)
		return
	}
	for _, g := range groups {
		if g.Status != store.StatusQueued && g.Status != store.StatusRunning {
			continue
		}
		s.processGroup(ctx, g)
	}
}

// processGroup assigns one device to the group and executes its members
// sequentially on it. Members already scheduled (mid-tick crash, or the
// normal scheduled→running hop) are resumed on their previously bound
// device when it is free.
func (s *Scheduler) processGroup(ctx context.Context, g *queue.GroupSummary) {
	var scheduled, queuedJobs []*store.Job
	for _, j := range g.Jobs {
		switch j.Status {
		case store.StatusScheduled:
			scheduled = append(scheduled, j)
		case store.StatusQueued:
			queuedJobs = append(queuedJobs, j)
		}
	}

	var (
		agent  *pool.Agent
		device *pool.Device
		batch  []*store.Job
	)
	if len(scheduled) > 0 {
		first := scheduled[0]
		if first.AgentID == nil || first.DeviceID == nil {
			s.logger.Warn("scheduled job missing device binding",
				"job_id", first.ID, "group_id", g.GroupID)
			return
		}
		ag, dev, ok := s.pool.Lookup(*first.AgentID, *first.DeviceID)
		if !ok || dev.Status != pool.DeviceAvailable {
			return
		}
		agent, device, batch = ag, dev, scheduled
	} else {
		if len(queuedJobs) == 0 {
			return
		}
		ag, dev, ok := s.pool.FindAvailable(g.Target)
		if !ok {
			// No capacity is advisory, not an error.
			return
		}
		agent, device, batch = ag, dev, queuedJobs
	}

	// Lock: re-read each member and claim it for this device. Another
	// path (cancel, import) may have moved it since the group scan.
	var locked []*store.Job
	for _, j := range batch {
		cur, err := s.store.Get(ctx, j.ID)
		if err != nil {
			if err != store.ErrNotFound {
				s.logger.Error("failed to re-read job for lock",
					"job_id", j.ID, "error", err)
			}
			continue
		}
		switch {
		case cur.Status == store.StatusQueued:
			cur.Status = store.StatusScheduled
			cur.AgentID = &agent.ID
			cur.DeviceID = &device.ID
			if err := s.store.Put(ctx, cur); err != nil {
				s.logger.Error("failed to lock job",
					"job_id", cur.ID, "error", err)
				continue
			}
			locked = append(locked, cur)
		case cur.Status == store.StatusScheduled &&
			cur.AgentID != nil && *cur.AgentID == agent.ID:
			locked = append(locked, cur)
		}
	}
	if len(locked) == 0 {
		return
	}

	ids := make([]string, len(locked))
	for i, j := range locked {
		ids[i] = j.ID
	}
	s.pool.Acquire(device, ids)
	defer s.pool.Release(device)

	s.logger.Info("group assigned",
		"group_id", g.GroupID,
		"agent_id", agent.ID,
		"device_id", device.ID,
		"jobs", len(locked))

	for i, j := range locked {
		s.runJob(ctx, j, i, len(locked))
	}
}

// runJob executes one locked job on the already-acquired device, honoring
// any terminal status written concurrently.
func (s *Scheduler) runJob(ctx context.Context, j *store.Job, idx, total int) {
	tracer := otel.Tracer("testdeck-scheduler")
	ctx, span := tracer.Start(ctx, "run_job",
		trace.WithAttributes(
			attribute.String("job.id", j.ID),
			attribute.String("job.group_id", j.GroupID),
			attribute.String("job.target", string(j.Target)),
			attribute.String("job.priority", string(j.Priority)),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
	defer span.End()

	cur, err := s.store.Get(ctx, j.ID)
	if err != nil {
		s.logger.Error("failed to re-read job before execution",
			"job_id", j.ID, "error", err)
		return
	}
	if cur.Status.Terminal() {
		s.logger.Info("skipping terminal job", "job_id", cur.ID, "status", cur.Status)
		return
	}

	now := time.Now().UTC()
	cur.Status = store.StatusRunning
	if cur.StartedAt == nil {
		cur.StartedAt = &now
	}
	if err := s.store.Put(ctx, cur); err != nil {
		// The job stays scheduled on disk; the next tick retries.
		s.logger.Error("failed to mark job running",
			"job_id", cur.ID, "error", err)
		return
	}

	result, execErr := s.exec.Run(ctx, cur)
	if execErr != nil {
		span.RecordError(execErr)
	}

	// The outcome write must not clobber a cancellation that landed
	// during execution: the test finished on the device, its outcome is
	// discarded.
	after, err := s.store.Get(ctx, j.ID)
	if err != nil {
		s.logger.Error("failed to re-read job after execution",
			"job_id", j.ID, "error", err)
		return
	}
	if after.Status.Terminal() {
		s.logger.Info("discarding outcome of concurrently finalized job",
			"job_id", after.ID, "status", after.Status)
		return
	}
	wasRunning := after.Status == store.StatusRunning

	done := time.Now().UTC()
	switch {
	case execErr != nil:
		msg := execErr.Error()
		after.Status = store.StatusFailed
		after.Error = &msg
	case result.Passed:
		after.Status = store.StatusCompleted
		after.Result = &result.Detail
		after.Error = nil
	default:
		after.Status = store.StatusFailed
		after.Error = &result.Detail
	}
	after.CompletedAt = &done
	if wasRunning && after.Status == store.StatusCompleted {
		after.Progress = 100
	}

	if err := s.store.Put(ctx, after); err != nil {
		s.logger.Error("failed to persist job outcome",
			"job_id", after.ID, "error", err)
		return
	}
	if s.jobsExecuted != nil {
		s.jobsExecuted.Add(ctx, 1,
			metric.WithAttributes(attribute.String("status", string(after.Status))))
	}
	span.SetAttributes(attribute.String("job.status", string(after.Status)))
	s.logger.Info("job finished",
		"job_id", after.ID,
		"status", after.Status,
		"position", idx+1,
		"batch_size", total)
}
