// Package keepalive periodically requests a public URL so a hosted instance
// that sleeps when idle stays warm.
package keepalive

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/expense-tracker/graphql-api/internal/metrics"
)

const (
	DefaultInterval = 14 * time.Minute
	requestTimeout  = 30 * time.Second
)

// Pinger issues one GET per interval. Failures are logged and never retried.
type Pinger struct {
	url      string
	interval time.Duration
	client   *http.Client
	log      zerolog.Logger
}

func NewPinger(url string, interval time.Duration, client *http.Client, log zerolog.Logger) *Pinger {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if client == nil {
		client = &http.Client{Timeout: requestTimeout}
	}
	return &Pinger{url: url, interval: interval, client: client, log: log}
}

// Enabled reports whether a target URL is configured.
func (p *Pinger) Enabled() bool { return p.url != "" }

// Run blocks until ctx is cancelled. It returns nil on cancellation and
// immediately when the pinger is disabled.
func (p *Pinger) Run(ctx context.Context) error {
	if !p.Enabled() {
		p.log.Info().Msg("keepalive disabled: no url configured")
		return nil
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.log.Info().Str("url", p.url).Dur("interval", p.interval).Msg("keepalive started")
	for {
		select {
		case <-ctx.Done():
			p.log.Info().Msg("keepalive stopped")
			return nil
		case <-ticker.C:
			_ = p.Ping(ctx)
		}
	}
}

// Ping sends a single GET and reports a non-200 status as an error.
func (p *Pinger) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		metrics.KeepalivePingsTotal.WithLabelValues("error").Inc()
		p.log.Error().Err(err).Msg("keepalive request could not be built")
		return err
	}

	resp, err := p.client.Do(req)
	if err != nil {
		metrics.KeepalivePingsTotal.WithLabelValues("error").Inc()
		p.log.Error().Err(err).Str("url", p.url).Msg("error while sending keepalive request")
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		metrics.KeepalivePingsTotal.WithLabelValues("bad_status").Inc()
		p.log.Warn().Int("status", resp.StatusCode).Str("url", p.url).Msg("keepalive request failed")
		return fmt.Errorf("keepalive: unexpected status %d", resp.StatusCode)
	}

	metrics.KeepalivePingsTotal.WithLabelValues("success").Inc()
	p.log.Debug().Str("url", p.url).Msg("keepalive request sent successfully")
	return nil
}
