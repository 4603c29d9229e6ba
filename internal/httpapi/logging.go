package httpapi

import (
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// zlog is an optional structured logger. If unset, falls back to log.Printf.
var zlog *zerolog.Logger

// SetLogger installs a structured logger used by the HTTP layer.
func SetLogger(l zerolog.Logger) { zlog = &l }

func logJobStart(r *http.Request, jobID string) {
	if zlog == nil {
		log.Printf("runsync start id=%s", jobID)
		return
	}
	z := zlog.Info().Str("path", r.URL.Path).Str("job_id", jobID)
	if rid := middleware.GetReqID(r.Context()); rid != "" {
		z = z.Str("request_id", rid)
	}
	z.Msg("runsync start")
}

func logJobEnd(r *http.Request, jobID, status string, dur time.Duration) {
	if zlog == nil {
		log.Printf("runsync end id=%s status=%s dur=%s", jobID, status, dur)
		return
	}
	z := zlog.Info().Str("job_id", jobID).Str("status", status).Dur("dur", dur)
	if rid := middleware.GetReqID(r.Context()); rid != "" {
		z = z.Str("request_id", rid)
	}
	z.Msg("runsync end")
}
