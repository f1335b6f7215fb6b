package store

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestGroupKey(t *testing.T) {
	got := GroupKey("acme", "v1.2.0", TargetEmulator)
	want := "acme_v1.2.0_emulator"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestNewJobID_Format(t *testing.T) {
	id := NewJobID()
	parts := strings.SplitN(id, "_", 3)
	if len(parts) != 3 || parts[0] != "job" {
		t.Fatalf("unexpected job id format: %s", id)
	}
	if len(parts[2]) != 8 {
		t.Errorf("expected 8-char suffix, got %q", parts[2])
	}

	if NewJobID() == id {
		t.Error("expected distinct job ids")
	}
}

func TestStatusTransitionsHelpers(t *testing.T) {
	tests := []struct {
		status   Status
		terminal bool
		active   bool
	}{
		{StatusQueued, false, true},
		{StatusScheduled, false, true},
		{StatusRunning, false, true},
		{StatusCompleted, true, false},
		{StatusFailed, true, false},
		{StatusCancelled, true, false},
		{StatusRetrying, false, false},
	}
	for _, tt := range tests {
		if got := tt.status.Terminal(); got != tt.terminal {
			t.Errorf("%s.Terminal() = %v, want %v", tt.status, got, tt.terminal)
		}
		if got := tt.status.Active(); got != tt.active {
			t.Errorf("%s.Active() = %v, want %v", tt.status, got, tt.active)
		}
	}
}

func TestPriorityRank(t *testing.T) {
	if PriorityHigh.Rank() <= PriorityMedium.Rank() {
		t.Error("high should outrank medium")
	}
	if PriorityMedium.Rank() <= PriorityLow.Rank() {
		t.Error("medium should outrank low")
	}
}

func TestJobJSONRoundTrip(t *testing.T) {
	started := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	device := "emulator-1"
	result := "42 assertions passed"

	job := &Job{
		ID:           "job_1748772000000_deadbeef",
		OrgID:        "acme",
		AppVersionID: "v1.2.0",
		TestPath:     "checkout.spec",
		Target:       TargetEmulator,
		Priority:     PriorityHigh,
		Status:       StatusCompleted,
		Progress:     100,
		Result:       &result,
		RetryCount:   1,
		MaxRetries:   3,
		Timestamp:    started.Add(-time.Minute),
		StartedAt:    &started,
		DeviceID:     &device,
		GroupID:      GroupKey("acme", "v1.2.0", TargetEmulator),
	}

	data, err := json.Marshal(job)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var decoded Job
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	again, err := json.Marshal(&decoded)
	if err != nil {
		t.Fatalf("re-marshal failed: %v", err)
	}
	if string(data) != string(again) {
		t.Errorf("round trip not bytewise stable:\n%s\n%s", data, again)
	}
}

func TestJobClone_Independent(t *testing.T) {
	errMsg := "boom"
	job := &Job{ID: "job-1", Status: StatusFailed, Error: &errMsg}

	cp := job.Clone()
	*cp.Error = "changed"
	cp.Status = StatusQueued

	if *job.Error != "boom" {
		t.Error("clone shares error pointer with original")
	}
	if job.Status != StatusFailed {
		t.Error("clone mutation leaked into original")
	}
}
