package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"sdworker/pkg/types"
)

// ErrMissingInput is reported when a job carries no "input" object.
var ErrMissingInput = errors.New("job input is missing")

// Forwarding is what Handler delegates a job input to.
type Forwarding interface {
	Forward(ctx context.Context, input json.RawMessage) json.RawMessage
}

// Handler is the job entry point registered with the serverless runtime.
type Handler struct {
	fwd Forwarding
	log zerolog.Logger
}

// NewHandler returns a Handler delegating to fwd.
func NewHandler(fwd Forwarding, log zerolog.Logger) *Handler {
	return &Handler{fwd: fwd, log: log}
}

// Handle runs one job. It always returns a JSON object and never panics.
func (h *Handler) Handle(ctx context.Context, job types.Job) (out json.RawMessage) {
	defer func() {
		if r := recover(); r != nil {
			handlerPanicsTotal.Inc()
			err := fmt.Errorf("%v", r)
			h.log.Error().Str("job_id", job.ID).Err(err).Msg("handler panic")
			out = ErrorOutput(err)
		}
	}()
	in := bytes.TrimSpace(job.Input)
	if len(in) == 0 || bytes.Equal(in, []byte("null")) {
		return ErrorOutput(ErrMissingInput)
	}
	return h.fwd.Forward(ctx, in)
}

// HandleEvent decodes a raw {"input": {...}} event and runs it.
func (h *Handler) HandleEvent(ctx context.Context, event json.RawMessage) json.RawMessage {
	var job types.Job
	if err := json.Unmarshal(event, &job); err != nil {
		return ErrorOutput(fmt.Errorf("decode job: %w", err))
	}
	return h.Handle(ctx, job)
}
