package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"testdeck/internal/pool"
	"testdeck/internal/queue"
	"testdeck/internal/store"
	"testdeck/internal/store/memory"
	"testdeck/pkg/api"
)

type testEnv struct {
	store *memory.Store
	queue *queue.Queue
	pool  *pool.Pool
	mux   http.Handler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	s := memory.New()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	q := queue.New(s, logger, queue.Config{})
	p, err := pool.NewFromSpec(pool.DefaultSpec)
	if err != nil {
		t.Fatalf("bad pool spec: %v", err)
	}
	srv := New(Config{Port: 0}, q, p, s, logger, nil)
	return &testEnv{store: s, queue: q, pool: p, mux: srv.httpServer.Handler}
}

func (e *testEnv) submitJob(t *testing.T, testPath string) string {
	t.Helper()
	result, err := e.queue.Submit(context.Background(), queue.SubmitRequest{
		OrgID:        "acme",
		AppVersionID: "v1",
		TestPath:     testPath,
		Target:       store.TargetEmulator,
	})
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	return result.JobID
}

func TestSubmitJob(t *testing.T) {
	validBody := `{"org_id":"acme","app_version_id":"v1","test_path":"a.spec","target":"emulator"}`

	tests := []struct {
		name           string
		body           string
		setup          func(*testEnv)
		expectedStatus int
		expectedInBody string
	}{
		{
			name:           "Success",
			body:           validBody,
			expectedStatus: http.StatusAccepted,
			expectedInBody: "job_",
		},
		{
			name:           "Invalid JSON",
			body:           `{invalid-json}`,
			expectedStatus: http.StatusBadRequest,
			expectedInBody: "Invalid request body",
		},
		{
			name:           "Missing org",
			body:           `{"app_version_id":"v1","test_path":"a.spec","target":"emulator"}`,
			expectedStatus: http.StatusBadRequest,
			expectedInBody: "org_id",
		},
		{
			name:           "Unknown target",
			body:           `{"org_id":"acme","app_version_id":"v1","test_path":"a.spec","target":"mainframe"}`,
			expectedStatus: http.StatusBadRequest,
			expectedInBody: "target",
		},
		{
			name: "Duplicate",
			setup: func(e *testEnv) {
				e.submitJob(t, "a.spec")
			},
			body:           validBody,
			expectedStatus: http.StatusOK,
			expectedInBody: "duplicate",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			if tt.setup != nil {
				tt.setup(env)
			}

			req := httptest.NewRequest(http.MethodPost, "/jobs", bytes.NewReader([]byte(tt.body)))
			rr := httptest.NewRecorder()
			env.mux.ServeHTTP(rr, req)

			if rr.Code != tt.expectedStatus {
				t.Errorf("handler returned wrong status code: got %v want %v body: %v",
					rr.Code, tt.expectedStatus, rr.Body.String())
			}
			if tt.expectedInBody != "" && !strings.Contains(rr.Body.String(), tt.expectedInBody) {
				t.Errorf("handler returned unexpected body: got %v want substring %v",
					rr.Body.String(), tt.expectedInBody)
			}
		})
	}
}

func TestGetJob(t *testing.T) {
	env := newTestEnv(t)
	jobID := env.submitJob(t, "a.spec")

	req := httptest.NewRequest(http.MethodGet, "/jobs/"+jobID, nil)
	rr := httptest.NewRecorder()
	env.mux.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("got status %d, body: %s", rr.Code, rr.Body.String())
	}

	var job api.JobResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &job); err != nil {
		t.Fatalf("bad response: %v", err)
	}
	if job.JobID != jobID || job.Status != "queued" {
		t.Errorf("unexpected job: %+v", job)
	}
}

func TestGetJob_NotFound(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/jobs/missing", nil)
	rr := httptest.NewRecorder()
	env.mux.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Errorf("got status %d, want 404", rr.Code)
	}
}

func TestListJobs(t *testing.T) {
	env := newTestEnv(t)
	env.submitJob(t, "a.spec")
	env.submitJob(t, "b.spec")

	req := httptest.NewRequest(http.MethodGet, "/jobs?org_id=acme", nil)
	rr := httptest.NewRecorder()
	env.mux.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("got status %d", rr.Code)
	}

	var resp api.ListJobsResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad response: %v", err)
	}
	if resp.Count != 2 || len(resp.Jobs) != 2 {
		t.Errorf("expected 2 jobs, got %+v", resp)
	}
}

func TestListJobs_RequiresOrg(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/jobs", nil)
	rr := httptest.NewRecorder()
	env.mux.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("got status %d, want 400", rr.Code)
	}
}

func TestCancelJob_Conflict(t *testing.T) {
	env := newTestEnv(t)
	jobID := env.submitJob(t, "a.spec")

	// First cancel succeeds.
	req := httptest.NewRequest(http.MethodPost, "/jobs/"+jobID+"/cancel", nil)
	rr := httptest.NewRecorder()
	env.mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("first cancel: got status %d", rr.Code)
	}

	// Second cancel hits a terminal job.
	req = httptest.NewRequest(http.MethodPost, "/jobs/"+jobID+"/cancel", nil)
	rr = httptest.NewRecorder()
	env.mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusConflict {
		t.Errorf("second cancel: got status %d, want 409", rr.Code)
	}
}

func TestRetryJob(t *testing.T) {
	env := newTestEnv(t)
	jobID := env.submitJob(t, "a.spec")

	// Retry of a queued job is an invalid transition.
	req := httptest.NewRequest(http.MethodPost, "/jobs/"+jobID+"/retry", nil)
	rr := httptest.NewRecorder()
	env.mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusConflict {
		t.Fatalf("retry queued: got status %d, want 409", rr.Code)
	}

	// Fail the job, then retry succeeds.
	ctx := context.Background()
	job, _ := env.store.Get(ctx, jobID)
	msg := "boom"
	job.Status = store.StatusFailed
	job.Error = &msg
	env.store.Put(ctx, job)

	req = httptest.NewRequest(http.MethodPost, "/jobs/"+jobID+"/retry", nil)
	rr = httptest.NewRecorder()
	env.mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("retry failed job: got status %d, body: %s", rr.Code, rr.Body.String())
	}

	var resp api.JobResponse
	json.Unmarshal(rr.Body.Bytes(), &resp)
	if resp.Status != "queued" || resp.RetryCount != 1 {
		t.Errorf("unexpected retry response: %+v", resp)
	}
}

func TestGetStats(t *testing.T) {
	env := newTestEnv(t)
	env.submitJob(t, "a.spec")

	req := httptest.NewRequest(http.MethodGet, "/stats", nil)
	rr := httptest.NewRecorder()
	env.mux.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("got status %d", rr.Code)
	}

	var resp api.StatsResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad response: %v", err)
	}
	if resp.Queue.Waiting != 1 || resp.Queue.Total != 1 {
		t.Errorf("unexpected queue stats: %+v", resp.Queue)
	}
	if resp.Scheduler.Agents != 5 || resp.Scheduler.Devices != 15 {
		t.Errorf("unexpected scheduler stats: %+v", resp.Scheduler)
	}
}

func TestGetGroupsAndDevices(t *testing.T) {
	env := newTestEnv(t)
	env.submitJob(t, "a.spec")

	req := httptest.NewRequest(http.MethodGet, "/groups", nil)
	rr := httptest.NewRecorder()
	env.mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("groups: got status %d", rr.Code)
	}
	var groups []api.GroupResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &groups); err != nil {
		t.Fatalf("bad groups response: %v", err)
	}
	if len(groups) != 1 || groups[0].GroupID != "acme_v1_emulator" {
		t.Errorf("unexpected groups: %+v", groups)
	}

	req = httptest.NewRequest(http.MethodGet, "/devices", nil)
	rr = httptest.NewRecorder()
	env.mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("devices: got status %d", rr.Code)
	}
	var devices []api.DeviceResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &devices); err != nil {
		t.Fatalf("bad devices response: %v", err)
	}
	if len(devices) != 15 {
		t.Errorf("expected 15 devices, got %d", len(devices))
	}
	if devices[0].ID != "emulator-1" || devices[0].AgentID != "agent-1" {
		t.Errorf("unexpected first device: %+v", devices[0])
	}
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rr := httptest.NewRecorder()
	env.mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Errorf("got status %d, want 200", rr.Code)
	}
}

func TestRequestIDMiddleware(t *testing.T) {
	called := false
	handler := RequestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if !called {
		t.Fatal("wrapped handler not called")
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Error("expected generated request id header")
	}

	// A supplied ID is propagated untouched.
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "req-42")
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if got := rr.Header().Get("X-Request-ID"); got != "req-42" {
		t.Errorf("got request id %q, want req-42", got)
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	handler := RateLimitMiddleware(1, 1)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/jobs", nil)
	req.RemoteAddr = "10.0.0.1:1234"

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("first request: got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusTooManyRequests {
		t.Errorf("second request: got %d, want 429", rr.Code)
	}

	// A different client has its own bucket.
	other := httptest.NewRequest(http.MethodPost, "/jobs", nil)
	other.RemoteAddr = "10.0.0.2:1234"
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, other)
	if rr.Code != http.StatusOK {
		t.Errorf("other client: got %d, want 200", rr.Code)
	}
}
