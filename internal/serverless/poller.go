package serverless

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"sdworker/pkg/types"
)

// Environment variables set by the platform for every worker.
const (
	EnvJobURL    = "RUNPOD_WEBHOOK_GET_JOB"
	EnvOutputURL = "RUNPOD_WEBHOOK_POST_OUTPUT"
	EnvAPIKey    = "RUNPOD_AI_API_KEY"
	EnvPodID     = "RUNPOD_POD_ID"
)

const (
	defaultPollTimeout = 90 * time.Second
	defaultPostTimeout = 30 * time.Second
	defaultErrorWait   = time.Second
	postRetries        = 3
)

// JobHandler runs one job and returns its JSON output.
type JobHandler interface {
	Handle(ctx context.Context, job types.Job) json.RawMessage
}

// Poller pulls jobs from the platform's job webhook and posts results back.
type Poller struct {
	// JobURL is fetched with GET for each job; $ID is already replaced.
	JobURL string
	// OutputURL receives results; $ID is replaced by the job id per job.
	OutputURL string
	APIKey    string
	// Concurrency is the number of parallel poll loops.
	Concurrency int
	Client      *http.Client
	PollTimeout time.Duration
	PostTimeout time.Duration
	// ErrorWait is the pause after a failed poll.
	ErrorWait time.Duration
	Logger    zerolog.Logger

	inProgress atomic.Int32
}

// ErrNoWebhook is returned by PollerFromEnv when the job webhook is not set.
var ErrNoWebhook = errors.New(EnvJobURL + " is not set")

// PollerFromEnv builds a Poller from the platform's environment variables.
func PollerFromEnv(getenv func(string) string, concurrency int, log zerolog.Logger) (*Poller, error) {
	jobURL := getenv(EnvJobURL)
	if jobURL == "" {
		return nil, ErrNoWebhook
	}
	outURL := getenv(EnvOutputURL)
	if outURL == "" {
		return nil, errors.New(EnvOutputURL + " is not set")
	}
	return &Poller{
		JobURL:      strings.ReplaceAll(jobURL, "$ID", getenv(EnvPodID)),
		OutputURL:   outURL,
		APIKey:      getenv(EnvAPIKey),
		Concurrency: concurrency,
		Logger:      log,
	}, nil
}

// Run polls until ctx is done. In-flight jobs finish and report their result
// even after ctx is canceled.
func (p *Poller) Run(ctx context.Context, h JobHandler) error {
	n := p.Concurrency
	if n <= 0 {
		n = 1
	}
	p.Logger.Info().Int("concurrency", n).Str("job_url", p.JobURL).Msg("polling for jobs")
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < n; i++ {
		worker := i
		g.Go(func() error {
			p.loop(gctx, h, worker)
			return nil
		})
	}
	return g.Wait()
}

func (p *Poller) loop(ctx context.Context, h JobHandler, worker int) {
	log := p.Logger.With().Int("poller", worker).Logger()
	for ctx.Err() == nil {
		job, err := p.next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			pollErrorsTotal.WithLabelValues("get_job").Inc()
			log.Warn().Err(err).Msg("failed to get job")
			sleep(ctx, p.errorWait())
			continue
		}
		if job == nil {
			continue
		}
		p.run(context.WithoutCancel(ctx), h, *job, log)
	}
}

func (p *Poller) run(ctx context.Context, h JobHandler, job types.Job, log zerolog.Logger) {
	jobsInProgress.Inc()
	p.inProgress.Add(1)
	defer func() {
		jobsInProgress.Dec()
		p.inProgress.Add(-1)
	}()

	start := time.Now()
	log = log.With().Str("job_id", job.ID).Logger()
	log.Info().Msg("job started")
	res := toJobResult(h.Handle(ctx, job))
	outcome := "completed"
	if res.Error != "" {
		outcome = "failed"
	}
	jobsTotal.WithLabelValues(outcome).Inc()
	if err := p.post(ctx, job.ID, res); err != nil {
		pollErrorsTotal.WithLabelValues("post_output").Inc()
		log.Error().Err(err).Msg("failed to post job result")
		return
	}
	log.Info().Str("outcome", outcome).Dur("dur", time.Since(start)).Msg("job finished")
}

// next takes one job. It returns nil, nil when the platform has none.
func (p *Poller) next(ctx context.Context) (*types.Job, error) {
	u, err := url.Parse(p.JobURL)
	if err != nil {
		return nil, fmt.Errorf("job url: %w", err)
	}
	q := u.Query()
	if p.inProgress.Load() > 0 {
		q.Set("job_in_progress", "1")
	} else {
		q.Set("job_in_progress", "0")
	}
	u.RawQuery = q.Encode()

	ctx, cancel := context.WithTimeout(ctx, durationOr(p.PollTimeout, defaultPollTimeout))
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	p.authorize(req)
	resp, err := p.client().Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	switch resp.StatusCode {
	case http.StatusNoContent, http.StatusBadRequest:
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, nil
	case http.StatusOK:
	default:
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("get job: unexpected status %s: %s", resp.Status, strings.TrimSpace(string(b)))
	}
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read job: %w", err)
	}
	if len(bytes.TrimSpace(b)) == 0 {
		return nil, nil
	}
	var job types.Job
	if err := json.Unmarshal(b, &job); err != nil {
		return nil, fmt.Errorf("decode job: %w", err)
	}
	if job.ID == "" {
		return nil, errors.New("decode job: missing id")
	}
	return &job, nil
}

// post sends a job result, retrying transient failures a few times.
func (p *Poller) post(ctx context.Context, jobID string, res types.JobResult) error {
	body, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	u, err := url.Parse(strings.ReplaceAll(p.OutputURL, "$ID", url.PathEscape(jobID)))
	if err != nil {
		return fmt.Errorf("output url: %w", err)
	}
	q := u.Query()
	q.Set("isStream", "false")
	u.RawQuery = q.Encode()

	op := func() error {
		ctx, cancel := context.WithTimeout(ctx, durationOr(p.PostTimeout, defaultPostTimeout))
		defer cancel()
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")
		p.authorize(req)
		resp, err := p.client().Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		_, _ = io.Copy(io.Discard, resp.Body)
		if resp.StatusCode >= 500 {
			return fmt.Errorf("post output: unexpected status %s", resp.Status)
		}
		if resp.StatusCode >= 300 {
			return backoff.Permanent(fmt.Errorf("post output: unexpected status %s", resp.Status))
		}
		return nil
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	return backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(b, postRetries), ctx))
}

func (p *Poller) authorize(req *http.Request) {
	if p.APIKey != "" {
		req.Header.Set("Authorization", p.APIKey)
	}
}

func (p *Poller) client() *http.Client {
	if p.Client != nil {
		return p.Client
	}
	return http.DefaultClient
}

func (p *Poller) errorWait() time.Duration { return durationOr(p.ErrorWait, defaultErrorWait) }

func durationOr(d, def time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return def
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
