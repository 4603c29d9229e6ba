package sdapi

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
)

// Defaults for Prober fields left at zero.
const (
	DefaultProbeTimeout  = 120 * time.Second
	DefaultProbeInterval = 200 * time.Millisecond
)

// Prober waits for the local API to accept connections.
type Prober struct {
	// Client performs the probe requests; nil uses a plain pooled client.
	// It should not carry the retry policy.
	Client *http.Client
	// Timeout bounds each attempt.
	Timeout time.Duration
	// Interval is the pause between attempts.
	Interval time.Duration
	// MaxWait bounds the whole wait; zero waits forever.
	MaxWait time.Duration
	Logger  zerolog.Logger
}

// Wait issues GET url until one request completes at the transport level.
// Any HTTP status counts as ready. It returns nil once ready, or an error
// when ctx ends or MaxWait elapses.
func (p *Prober) Wait(ctx context.Context, url string) error {
	if p.MaxWait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.MaxWait)
		defer cancel()
	}
	interval := p.Interval
	if interval <= 0 {
		interval = DefaultProbeInterval
	}

	cli := p.Client
	if cli == nil {
		cli = &http.Client{Transport: newPooledTransport()}
	}

	attempts := 0
	op := func() error {
		attempts++
		return p.ping(ctx, cli, url)
	}
	notify := func(err error, _ time.Duration) {
		probeAttemptsTotal.WithLabelValues("not_ready").Inc()
		p.Logger.Warn().Str("url", url).Int("attempt", attempts).Err(err).Msg("service not ready yet, retrying")
	}
	start := time.Now()
	if err := backoff.RetryNotify(op, backoff.WithContext(backoff.NewConstantBackOff(interval), ctx), notify); err != nil {
		return fmt.Errorf("wait for %s after %d attempts: %w", url, attempts, err)
	}
	probeAttemptsTotal.WithLabelValues("ready").Inc()
	p.Logger.Info().Str("url", url).Int("attempts", attempts).Dur("waited", time.Since(start)).Msg("local service reachable")
	return nil
}

func (p *Prober) ping(ctx context.Context, cli *http.Client, url string) error {
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return backoff.Permanent(err)
	}
	resp, err := cli.Do(req)
	if err != nil {
		return err
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	resp.Body.Close()
	return nil
}
