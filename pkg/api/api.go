// Package api contains shared JSON request/response structs.
// This package is shared between the CLI and the orchestrator.
package api

import "time"

// SubmitJobRequest is the request body for submitting a test run.
// The execution fields are optional and passed through verbatim to
// support state import.
type SubmitJobRequest struct {
	OrgID        string `json:"org_id"`
	AppVersionID string `json:"app_version_id"`
	TestPath     string `json:"test_path"`
	Target       string `json:"target,omitempty"`
	Priority     string `json:"priority,omitempty"`
	JobID        string `json:"job_id,omitempty"`

	Timestamp   *time.Time `json:"timestamp,omitempty"`
	Status      string     `json:"status,omitempty"`
	Progress    *int       `json:"progress,omitempty"`
	RetryCount  *int       `json:"retry_count,omitempty"`
	MaxRetries  *int       `json:"max_retries,omitempty"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	DeviceID    *string    `json:"device_id,omitempty"`
	AgentID     *string    `json:"agent_id,omitempty"`
}

// SubmitJobResponse is the response body after submitting a job. On a
// duplicate submission it carries the existing job's ID and status with
// message "duplicate".
type SubmitJobResponse struct {
	JobID   string `json:"job_id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// JobResponse is the full job record in API responses.
type JobResponse struct {
	JobID        string     `json:"job_id"`
	OrgID        string     `json:"org_id"`
	AppVersionID string     `json:"app_version_id"`
	TestPath     string     `json:"test_path"`
	Target       string     `json:"target"`
	Priority     string     `json:"priority"`
	Status       string     `json:"status"`
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

// ListJobsResponse is the response body for job listings.
type ListJobsResponse struct {
	OrgID        string        `json:"org_id"`
	StatusFilter string        `json:"status_filter,omitempty"`
	Count        int           `json:"count"`
	Jobs         []JobResponse `json:"jobs"`
}

// QueueStats summarizes the queue by lifecycle state.
type QueueStats struct {
	Waiting   int `json:"waiting"`
	Active    int `json:"active"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	Total     int `json:"total"`
	Groups    int `json:"groups"`
}

// SchedulerStats summarizes the resource pool.
type SchedulerStats struct {
	Agents      int `json:"agents"`
	Devices     int `json:"devices"`
	RunningJobs int `json:"running_jobs"`
}

// StatsResponse is the response body for GET /stats.
type StatsResponse struct {
	Queue     QueueStats     `json:"queue"`
	Scheduler SchedulerStats `json:"scheduler"`
}

// GroupResponse is one group summary in GET /groups.
type GroupResponse struct {
	GroupID      string    `json:"group_id"`
	OrgID        string    `json:"org_id"`
	AppVersionID string    `json:"app_version_id"`
	Target       string    `json:"target"`
	JobCount     int       `json:"job_count"`
	Status       string    `json:"status"`
	OldestJob    time.Time `json:"oldest_job"`
	NewestJob    time.Time `json:"newest_job"`
}

// DeviceResponse is one device in GET /devices.
type DeviceResponse struct {
	ID          string   `json:"id"`
	Type        string   `json:"type"`
	Status      string   `json:"status"`
	Target      string   `json:"target"`
	AgentID     string   `json:"agent_id"`
	CurrentJobs []string `json:"current_jobs"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}
