// Package client is a typed Go client for the orchestration API,
// including the poll-until-terminal loop status consumers are expected
// to run.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/beroca11/video-orchestrator/job"
)

// DefaultPollInterval is used when PollUntilTerminal is given a
// non-positive interval.
const DefaultPollInterval = 2 * time.Second

// Client talks to one orchestration service.
type Client struct {
	// Base is the service URL, e.g. "http://localhost:8080".
	Base string
	// HTTPClient defaults to http.DefaultClient.
	HTTPClient *http.Client
}

// GenerateResponse is the acceptance reply of the generate endpoint.
type GenerateResponse struct {
	JobID   string     `json:"job_id"`
	Status  job.Status `json:"status"`
	Message string     `json:"message"`
}

// APIError is a non-2xx reply from the service.
type APIError struct {
	StatusCode int
	Message    string `json:"error"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status %d: %s", e.StatusCode, e.Message)
}

// NotFound reports whether the error is a 404.
func (e *APIError) NotFound() bool { return e.StatusCode == http.StatusNotFound }

// NotReady reports whether the error is a 409 from the result or
// download endpoints.
func (e *APIError) NotReady() bool { return e.StatusCode == http.StatusConflict }

// Generate submits a request and returns the accepted job id.
func (c *Client) Generate(ctx context.Context, req job.Request) (*GenerateResponse, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}
	var out GenerateResponse
	if err := c.do(ctx, http.MethodPost, "/generate", bytes.NewReader(payload), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Status fetches the current job snapshot.
func (c *Client) Status(ctx context.Context, id string) (*job.Job, error) {
	var j job.Job
	if err := c.do(ctx, http.MethodGet, "/job/"+id, nil, &j); err != nil {
		return nil, err
	}
	return &j, nil
}

// Result fetches the finished video. It fails with a NotReady APIError
// until the job completes.
func (c *Client) Result(ctx context.Context, id string) (*job.Result, error) {
	var r job.Result
	if err := c.do(ctx, http.MethodGet, "/job/"+id+"/result", nil, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// Delete removes a job, cancelling it if still running.
func (c *Client) Delete(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/job/"+id, nil, nil)
}

// PollUntilTerminal polls the job at the given interval and returns
// the first snapshot with a terminal status.
func (c *Client) PollUntilTerminal(ctx context.Context, id string, interval time.Duration) (*job.Job, error) {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		j, err := c.Status(ctx, id)
		if err != nil {
			return nil, err
		}
		if j.Status.Terminal() {
			return j, nil
		}
		select {
		case <-ctx.Done():
			return j, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, c.Base+path, body)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	httpClient := c.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if jerr := json.Unmarshal(data, apiErr); jerr != nil || apiErr.Message == "" {
			apiErr.Message = string(data)
		}
		return apiErr
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(data, out)
}
