package memory

import (
	"context"
	"testing"
	"time"

	"testdeck/internal/store"
)

func newJob(id string, status store.Status) *store.Job {
	return &store.Job{
		ID:           id,
		OrgID:        "acme",
		AppVersionID: "v1",
		TestPath:     "a.spec",
		Target:       store.TargetEmulator,
		Priority:     store.PriorityMedium,
		Status:       status,
		MaxRetries:   3,
		Timestamp:    time.Now().UTC(),
		GroupID:      store.GroupKey("acme", "v1", store.TargetEmulator),
	}
}

func TestPutGet_ReadYourWrites(t *testing.T) {
	s := New()
	ctx := context.Background()

	job := newJob("job-1", store.StatusQueued)
	if err := s.Put(ctx, job); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, err := s.Get(ctx, "job-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.ID != "job-1" || got.Status != store.StatusQueued {
		t.Errorf("unexpected job: %+v", got)
	}
}

func TestGet_NotFound(t *testing.T) {
	s := New()
	if _, err := s.Get(context.Background(), "missing"); err != store.ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestPut_Overwrites(t *testing.T) {
	s := New()
	ctx := context.Background()

	job := newJob("job-1", store.StatusQueued)
	s.Put(ctx, job)

	job.Status = store.StatusRunning
	s.Put(ctx, job)

	got, _ := s.Get(ctx, "job-1")
	if got.Status != store.StatusRunning {
		t.Errorf("expected running, got %s", got.Status)
	}
}

func TestGet_ReturnsCopy(t *testing.T) {
	s := New()
	ctx := context.Background()
	s.Put(ctx, newJob("job-1", store.StatusQueued))

	first, _ := s.Get(ctx, "job-1")
	first.Status = store.StatusCancelled

	second, _ := s.Get(ctx, "job-1")
	if second.Status != store.StatusQueued {
		t.Error("caller mutation leaked into the store")
	}
}

func TestScan_ReturnsAll(t *testing.T) {
	s := New()
	ctx := context.Background()
	s.Put(ctx, newJob("job-1", store.StatusQueued))
	s.Put(ctx, newJob("job-2", store.StatusCompleted))

	jobs, err := s.Scan(ctx)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if len(jobs) != 2 {
		t.Errorf("expected 2 jobs, got %d", len(jobs))
	}
}

func TestDelete_Idempotent(t *testing.T) {
	s := New()
	ctx := context.Background()
	s.Put(ctx, newJob("job-1", store.StatusQueued))

	if err := s.Delete(ctx, "job-1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := s.Delete(ctx, "job-1"); err != nil {
		t.Errorf("second Delete should succeed, got %v", err)
	}
	if _, err := s.Get(ctx, "job-1"); err != store.ErrNotFound {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}
