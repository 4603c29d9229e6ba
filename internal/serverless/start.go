package serverless

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"

	"sdworker/internal/httpapi"
	"sdworker/pkg/types"
)

// DefaultTestInputFile is read when no job source is configured.
const DefaultTestInputFile = "test_input.json"

// Options selects how Start feeds jobs to the handler.
type Options struct {
	// TestInput is a raw {"input": {...}} event run once.
	TestInput string
	// TestInputFile is used when nothing else is configured; defaults to test_input.json.
	TestInputFile string
	// ServeAPI runs the local HTTP test API on Addr.
	ServeAPI bool
	Addr     string
	// Concurrency is the number of parallel poll loops.
	Concurrency int
	// Getenv reads platform variables; nil uses os.Getenv.
	Getenv func(string) string
	// Stdout receives test job output; nil uses os.Stdout.
	Stdout io.Writer
	Logger zerolog.Logger
}

// ErrNoJobSource means no test input, local API or webhook was configured.
var ErrNoJobSource = errors.New("no job source: set " + EnvJobURL + ", --serve-api or --test-input")

// Start feeds jobs to h until ctx is done. A test input runs once and returns.
func Start(ctx context.Context, h JobHandler, opts Options) error {
	getenv := opts.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	if opts.TestInput != "" {
		return runTest(ctx, h, []byte(opts.TestInput), opts)
	}
	if opts.ServeAPI {
		return serveAPI(ctx, h, opts)
	}
	p, err := PollerFromEnv(getenv, opts.Concurrency, opts.Logger)
	if err == nil {
		return p.Run(ctx, h)
	}
	if !errors.Is(err, ErrNoWebhook) {
		return err
	}
	path := opts.TestInputFile
	if path == "" {
		path = DefaultTestInputFile
	}
	b, ferr := os.ReadFile(path)
	if ferr != nil {
		if os.IsNotExist(ferr) {
			return ErrNoJobSource
		}
		return fmt.Errorf("read %s: %w", path, ferr)
	}
	opts.Logger.Info().Str("file", path).Msg("running test input file")
	return runTest(ctx, h, b, opts)
}

func runTest(ctx context.Context, h JobHandler, event []byte, opts Options) error {
	var job types.Job
	if err := json.Unmarshal(event, &job); err != nil {
		return fmt.Errorf("decode test input: %w", err)
	}
	if job.ID == "" {
		job.ID = "local_test"
	}
	out := h.Handle(ctx, job)
	w := opts.Stdout
	if w == nil {
		w = os.Stdout
	}
	res := toJobResult(out)
	b, err := json.Marshal(res)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintln(w, string(b)); err != nil {
		return err
	}
	if res.Error != "" {
		opts.Logger.Warn().Str("job_id", job.ID).Str("error", res.Error).Msg("test job failed")
	} else {
		opts.Logger.Info().Str("job_id", job.ID).Msg("test job completed")
	}
	return nil
}

func serveAPI(ctx context.Context, h JobHandler, opts Options) error {
	addr := opts.Addr
	if addr == "" {
		addr = ":8000"
	}
	httpapi.SetBaseContext(ctx)
	srv := &http.Server{Addr: addr, Handler: httpapi.NewMux(h), ReadHeaderTimeout: 10 * time.Second}

	errc := make(chan error, 1)
	go func() {
		opts.Logger.Info().Str("addr", addr).Msg("local test API listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		opts.Logger.Warn().Err(err).Msg("graceful shutdown error")
	}
	return nil
}
