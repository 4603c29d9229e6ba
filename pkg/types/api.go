package types

import "encoding/json"

// Job is one unit of work delivered by the serverless runtime.
type Job struct {
	// Job identifier assigned by the runtime.
	// example: 2f1e7f4c-sync-u1
	ID string `json:"id,omitempty" example:"2f1e7f4c-sync-u1"`
	// Handler input; for this worker a txt2img request object.
	Input json.RawMessage `json:"input" swaggertype:"object"`
}

// JobResult is posted back to the runtime once a job finishes.
type JobResult struct {
	Output json.RawMessage `json:"output,omitempty" swaggertype:"object"`
	Error  string          `json:"error,omitempty"`
}

// RunResponse is returned by the local API's POST /runsync.
type RunResponse struct {
	// Job identifier.
	// example: test-7c1b6f5e-0d0f-4b6e-9f1a-1d2f3b4c5d6e
	ID string `json:"id" example:"test-7c1b6f5e-0d0f-4b6e-9f1a-1d2f3b4c5d6e"`
	// Final job status.
	// example: COMPLETED
	Status string `json:"status" example:"COMPLETED"`
	// Handler output as returned by the local image API, or {"error": ...}.
	Output json.RawMessage `json:"output" swaggertype:"object"`
	// Wall time spent in the handler in milliseconds.
	// example: 5321
	ExecutionTimeMS int64 `json:"executionTime" example:"5321"`
}

// Job statuses reported by the local API.
const (
	StatusCompleted = "COMPLETED"
	StatusFailed    = "FAILED"
)

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: invalid JSON body
	Error string `json:"error" example:"invalid JSON body"`
	// HTTP status code.
	// example: 400
	Code int `json:"code,omitempty" example:"400"`
}
