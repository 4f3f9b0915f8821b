package scraper

import (
	"context"
	"log/slog"
	"math"
	"sync/atomic"
	"time"

	"github.com/aluiziolira/go-book-digest/config"
)

// retryPolicy re-runs a fetch after transient failures. With MaxRetries == 0
// every fetch gets exactly one attempt.
type retryPolicy struct {
	cfg     *config.Config
	metrics *Metrics

	totalRetries int64
}

func newRetryPolicy(cfg *config.Config, metrics *Metrics) *retryPolicy {
	return &retryPolicy{cfg: cfg, metrics: metrics}
}

func (rp *retryPolicy) Do(ctx context.Context, url string, attempt func() error) error {
	for n := 0; ; n++ {
		err := attempt()
		if err == nil {
			return nil
		}
		if n >= rp.cfg.MaxRetries || !isRetryable(err) || ctx.Err() != nil {
			return err
		}

		atomic.AddInt64(&rp.totalRetries, 1)
		rp.metrics.IncRetries()

		delay := rp.backoff(n + 1)
		slog.Debug("retrying request",
			slog.String("url", url),
			slog.Int("attempt", n+1),
			slog.Duration("delay", delay),
			slog.Any("error", err),
		)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func (rp *retryPolicy) backoff(attempt int) time.Duration {
	if attempt <= 0 {
		attempt = 1
	}

	base := rp.cfg.RetryBackoff
	if base <= 0 {
		base = 100 * time.Millisecond
	}

	// Saturate instead of overflowing when no ceiling is configured.
	shift := min(attempt-1, 62)
	delay := time.Duration(math.MaxInt64)
	if base <= time.Duration(math.MaxInt64>>shift) {
		delay = base << shift
	}
	if ceiling := rp.cfg.RetryBackoffMax; ceiling > 0 && delay > ceiling {
		delay = ceiling
	}
	return delay
}

func (rp *retryPolicy) reset() {
	atomic.StoreInt64(&rp.totalRetries, 0)
}

func (rp *retryPolicy) TotalRetries() int {
	return int(atomic.LoadInt64(&rp.totalRetries))
}
