package sdapi

import (
	"errors"
	"io"
	"net"
	"net/http"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
)

// maxBackoff caps a single wait between attempts.
const maxBackoff = 120 * time.Second

// RetryPolicy is the declarative retry configuration mounted on the shared client.
type RetryPolicy struct {
	// MaxRetries is the number of retries after the first attempt. Negative disables retries.
	MaxRetries int
	// BackoffFactor is the first wait; each further wait doubles it.
	BackoffFactor time.Duration
	// StatusCodes are the response statuses that trigger a retry.
	StatusCodes []int
}

// DefaultRetryPolicy retries 502/503/504 and connection failures ten times.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:    10,
		BackoffFactor: 100 * time.Millisecond,
		StatusCodes:   []int{http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout},
	}
}

func (p RetryPolicy) retryable(code int) bool {
	for _, s := range p.StatusCodes {
		if s == code {
			return true
		}
	}
	return false
}

func (p RetryPolicy) newBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.BackoffFactor
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxInterval = maxBackoff
	b.MaxElapsedTime = 0
	return backoff.WithMaxRetries(b, uint64(p.MaxRetries))
}

// retryTransport re-issues a request on connect failures and retryable statuses.
// Errors after the request may have reached the server are returned as is.
type retryTransport struct {
	base   http.RoundTripper
	policy RetryPolicy
	log    zerolog.Logger
}

func newRetryTransport(base http.RoundTripper, policy RetryPolicy, log zerolog.Logger) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	if policy.MaxRetries < 0 {
		return base
	}
	if policy.BackoffFactor <= 0 {
		policy.BackoffFactor = DefaultRetryPolicy().BackoffFactor
	}
	return &retryTransport{base: base, policy: policy, log: log}
}

var errBodyNotRewindable = errors.New("request body cannot be replayed for retry")

func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	var (
		resp      *http.Response
		attempts  int
		permanent bool
	)
	op := func() error {
		attempts++
		r := req
		if attempts > 1 {
			var err error
			if r, err = rewind(req); err != nil {
				permanent = true
				return backoff.Permanent(err)
			}
		}
		res, err := t.base.RoundTrip(r)
		if err != nil {
			if ctx.Err() != nil || !notSent(err) {
				permanent = true
				return backoff.Permanent(err)
			}
			return err
		}
		if t.policy.retryable(res.StatusCode) {
			_, _ = io.Copy(io.Discard, io.LimitReader(res.Body, 64<<10))
			res.Body.Close()
			return &retryableStatusError{code: res.StatusCode, status: res.Status}
		}
		resp = res
		return nil
	}
	notify := func(err error, wait time.Duration) {
		retriesTotal.WithLabelValues(retryReason(err)).Inc()
		t.log.Debug().
			Str("method", req.Method).
			Str("url", req.URL.String()).
			Int("attempt", attempts).
			Dur("wait", wait).
			Err(err).
			Msg("retrying local API request")
	}
	err := backoff.RetryNotify(op, backoff.WithContext(t.policy.newBackOff(), ctx), notify)
	if err == nil {
		return resp, nil
	}
	if permanent || ctx.Err() != nil {
		return nil, err
	}
	return nil, &RetryError{Attempts: attempts, Err: err}
}

// notSent reports whether err happened before the request reached the server.
// Only these transport errors are retried.
func notSent(err error) bool {
	var op *net.OpError
	if errors.As(err, &op) && op.Op == "dial" {
		return true
	}
	return errors.Is(err, syscall.ECONNREFUSED)
}

// rewind returns a copy of req with a fresh body for another attempt.
func rewind(req *http.Request) (*http.Request, error) {
	r := req.Clone(req.Context())
	if req.Body == nil || req.Body == http.NoBody {
		return r, nil
	}
	if req.GetBody == nil {
		return nil, errBodyNotRewindable
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, err
	}
	r.Body = body
	return r, nil
}
