package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	"sdworker/pkg/types"
)

// Txt2Imager sends a merged request to the local API.
type Txt2Imager interface {
	Txt2Img(ctx context.Context, req types.Txt2ImgRequest) (json.RawMessage, error)
}

// Forwarder fills txt2img defaults into a job input and forwards it.
type Forwarder struct {
	api Txt2Imager
	log zerolog.Logger
}

// NewForwarder returns a Forwarder that sends through api.
func NewForwarder(api Txt2Imager, log zerolog.Logger) *Forwarder {
	return &Forwarder{api: api, log: log}
}

// Forward merges input over the defaults, sends it and returns the local API's
// JSON body as is. On any failure it returns {"error": "<message>"}.
func (f *Forwarder) Forward(ctx context.Context, input json.RawMessage) json.RawMessage {
	req, err := types.ParseTxt2ImgRequest(input)
	if err != nil {
		forwardTotal.WithLabelValues("invalid_input").Inc()
		f.log.Error().Err(err).Msg("inference error")
		return ErrorOutput(err)
	}
	req = req.WithDefaults()

	start := time.Now()
	out, err := f.api.Txt2Img(ctx, req)
	forwardDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		forwardTotal.WithLabelValues("error").Inc()
		f.log.Error().Err(err).Dur("dur", time.Since(start)).Msg("inference error")
		return ErrorOutput(err)
	}
	forwardTotal.WithLabelValues("ok").Inc()
	f.log.Debug().Dur("dur", time.Since(start)).Int("bytes", len(out)).Msg("inference done")
	return out
}

// ErrorOutput renders err as the {"error": "<message>"} job output.
func ErrorOutput(err error) json.RawMessage {
	msg := "unknown error"
	if err != nil && err.Error() != "" {
		msg = err.Error()
	}
	b, _ := json.Marshal(types.ErrorResponse{Error: msg})
	return b
}
