// Package orchestrate is the HTTP client for the internal orchestration
// engine — the collaborator that actually runs LLM agent jobs and journey
// phases. This subsystem only dispatches work to it and maps results;
// prompt construction and provider calls live on the engine side.
package orchestrate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// JobRequest is the payload sent to the engine's job execution endpoint.
type JobRequest struct {
	StartupID       uuid.UUID       `json:"startupId"`
	SessionID       string          `json:"sessionId"`
	TaskID          *string         `json:"taskId,omitempty"`
	JobType         string          `json:"jobType"`
	Workflow        string          `json:"workflow"`
	Agents          []string        `json:"agents"`
	Inputs          json.RawMessage `json:"inputs"`
	Priority        int32           `json:"priority"`
	OrchestrationID string          `json:"orchestrationId"`
}

// JobResult is the engine's outcome report. Status is "success" or
// "failure"; a failure carries ErrorMessage and routes through retry.
type JobResult struct {
	Status       string          `json:"status"`
	Outputs      json.RawMessage `json:"outputs,omitempty"`
	CreditsUsed  *int32          `json:"creditsUsed,omitempty"`
	TokensUsed   *int32          `json:"tokensUsed,omitempty"`
	Cost         *float64        `json:"cost,omitempty"`
	ErrorMessage string          `json:"errorMessage,omitempty"`
}

// Succeeded reports whether the engine completed the job.
func (r *JobResult) Succeeded() bool { return r.Status == "success" }

// Client calls the orchestration engine over HTTP. The engine URL is
// operator-configured, never user-supplied.
type Client struct {
	baseURL string
	http    *http.Client
}

// New creates a Client for the engine at baseURL. timeout bounds a single
// engine call and must accommodate long-running multi-agent jobs.
func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

// ExecuteJob runs one orchestration job on the engine and returns its
// result. A transport or non-2xx error is returned as an error (the caller
// treats it like a failure result); an engine-reported failure comes back
// as a JobResult with Status "failure" and a nil error.
func (c *Client) ExecuteJob(ctx context.Context, req JobRequest) (*JobResult, error) {
	var result JobResult
	if err := c.post(ctx, "/internal/v1/orchestrations/execute", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ExecutePhase asks the engine to start the given journey day for a
// startup. Fire-and-forget from the scheduler's perspective: the engine
// appends the timeline event and enqueues jobs on its own schedule.
func (c *Client) ExecutePhase(ctx context.Context, startupID uuid.UUID, sessionID string, phaseDay int32, inputs json.RawMessage) error {
	body := struct {
		StartupID uuid.UUID       `json:"startupId"`
		SessionID string          `json:"sessionId"`
		PhaseDay  int32           `json:"phaseDay"`
		Inputs    json.RawMessage `json:"inputs,omitempty"`
	}{startupID, sessionID, phaseDay, inputs}
	return c.post(ctx, "/internal/v1/phases/execute", body, nil)
}

func (c *Client) post(ctx context.Context, path string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("engine call %s: %w", path, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Cap the error body read; engine errors are short JSON blobs.
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 1024)) //nolint:errcheck
		return fmt.Errorf("engine call %s: status %d: %s", path, resp.StatusCode, snippet)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode engine response %s: %w", path, err)
	}
	return nil
}
