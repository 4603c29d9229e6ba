package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"sdworker/pkg/types"
)

// Service defines the methods required by the HTTP API layer.
type Service interface {
	Handle(ctx context.Context, job types.Job) json.RawMessage
}

// NewMux returns the local test API: the same job contract the platform
// uses, served synchronously over HTTP.
func NewMux(svc Service) http.Handler {
	r := chi.NewRouter()
	// Basic middlewares: request id, real ip, recoverer
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(MetricsMiddleware)
	// Compression for JSON endpoints
	r.Use(middleware.Compress(5))
	// Security headers
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})
	if corsEnabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: corsAllowedOrigins,
			AllowedMethods: corsAllowedMethods,
			AllowedHeaders: corsAllowedHeaders,
			MaxAge:         300,
		}))
	}

	r.Post("/runsync", inflight("/runsync", runSyncHandler(svc)))

	r.Get("/health", healthHandler)

	// Prometheus metrics endpoint
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	MountSwagger(r)
	return r
}

// runSyncHandler runs one job and waits for its output.
//
// @Summary      Run a job synchronously
// @Description  Merges the input with txt2img defaults, forwards it to the local image API and returns its response.
// @Tags         jobs
// @Accept       json
// @Produce      json
// @Param        job  body      types.Job  true  "Job with a txt2img input"
// @Success      200  {object}  types.RunResponse
// @Failure      400  {object}  types.ErrorResponse
// @Failure      415  {object}  types.ErrorResponse
// @Router       /runsync [post]
func runSyncHandler(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// Content-Type check
		ct := r.Header.Get("Content-Type")
		if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
			writeJSONError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		var job types.Job
		if err := json.NewDecoder(r.Body).Decode(&job); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if len(job.Input) == 0 || string(job.Input) == "null" {
			writeJSONError(w, http.StatusBadRequest, "input is required")
			return
		}
		job.ID = "test-" + uuid.New().String()

		start := time.Now()
		logJobStart(r, job.ID)
		out := svc.Handle(serverBaseCtx, job)
		resp := types.RunResponse{
			ID:              job.ID,
			Status:          types.StatusCompleted,
			Output:          out,
			ExecutionTimeMS: time.Since(start).Milliseconds(),
		}
		if _, failed := outputError(out); failed {
			resp.Status = types.StatusFailed
		}
		logJobEnd(r, job.ID, resp.Status, time.Since(start))

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			writeJSONError(w, http.StatusInternalServerError, "failed to encode response")
		}
	}
}

// healthHandler reports that the worker is up.
//
// @Summary  Liveness check
// @Tags     health
// @Produce  plain
// @Success  200  {string}  string  "ok"
// @Router   /health [get]
func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
