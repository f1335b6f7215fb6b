package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"testdeck/pkg/api"
)

// Client handles API calls to the testdeck orchestrator.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewClient creates a new client with the given base URL.
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// APIError represents an error response from the API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (%d): %s", e.StatusCode, e.Message)
}

func (c *Client) do(method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.BaseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Add("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return &APIError{StatusCode: resp.StatusCode, Message: string(respBody)}
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("failed to parse response: %w", err)
		}
	}
	return nil
}

// SubmitJob sends POST /jobs.
func (c *Client) SubmitJob(req api.SubmitJobRequest) (*api.SubmitJobResponse, error) {
	var result api.SubmitJobResponse
	if err := c.do(http.MethodPost, "/jobs", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetJob sends GET /jobs/{id}.
func (c *Client) GetJob(jobID string) (*api.JobResponse, error) {
	var result api.JobResponse
	if err := c.do(http.MethodGet, "/jobs/"+jobID, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ListJobs sends GET /jobs?org_id=...&status=...
func (c *Client) ListJobs(orgID, status string) (*api.ListJobsResponse, error) {
	path := "/jobs?org_id=" + orgID
	if status != "" {
		path += "&status=" + status
	}
	var result api.ListJobsResponse
	if err := c.do(http.MethodGet, path, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// CancelJob sends POST /jobs/{id}/cancel.
func (c *Client) CancelJob(jobID string) (*api.JobResponse, error) {
	var result api.JobResponse
	if err := c.do(http.MethodPost, "/jobs/"+jobID+"/cancel", nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// RetryJob sends POST /jobs/{id}/retry.
func (c *Client) RetryJob(jobID string) (*api.JobResponse, error) {
	var result api.JobResponse
	if err := c.do(http.MethodPost, "/jobs/"+jobID+"/retry", nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetStats sends GET /stats.
func (c *Client) GetStats() (*api.StatsResponse, error) {
	var result api.StatsResponse
	if err := c.do(http.MethodGet, "/stats", nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetDevices sends GET /devices.
func (c *Client) GetDevices() ([]api.DeviceResponse, error) {
	var result []api.DeviceResponse
	if err := c.do(http.MethodGet, "/devices", nil, &result); err != nil {
		return nil, err
	}
	return result, nil
}
