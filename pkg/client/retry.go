package client

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for retry operations.
var (
	retriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "altered_retries_total",
		Help: "Total number of retry attempts by error class",
	}, []string{"error_class"})

	retryBackoffSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "altered_retry_backoff_seconds",
		Help:    "Backoff duration for retries by error class",
		Buckets: []float64{1, 2, 4, 8, 16, 32, 64},
	}, []string{"error_class"})

	retryExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "altered_retry_exhausted_total",
		Help: "Total number of page requests that exhausted all attempts by error class",
	}, []string{"error_class"})
)

// Backoff returns the wait after failed attempt n (1-based): 2^n units.
func Backoff(attempt int, unit time.Duration) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	return unit * time.Duration(int64(1)<<uint(attempt))
}

// retryWithBackoff runs fn until it succeeds or MaxAttempts is reached.
// After failed attempt k (k < MaxAttempts) it waits Backoff(k, BackoffUnit).
// The final failure does not wait and yields a *FetchError.
func (c *Client) retryWithBackoff(ctx context.Context, faction string, page int, pageURL string, fn func() (ErrorClass, error)) error {
	maxAttempts := c.config.MaxAttempts

	var lastErr error
	var lastClass ErrorClass

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		class, err := fn()
		if err == nil {
			if attempt > 1 {
				c.logger.Info().
					Str("faction", faction).
					Int("page", page).
					Int("attempt", attempt).
					Msg("Request succeeded after retry")
			}
			return nil
		}

		lastErr = err
		lastClass = class

		// A cancelled run is not a transient failure.
		if errors.Is(err, ErrContextCancelled) {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("%w: %v", ErrContextCancelled, ctxErr)
		}

		if attempt >= maxAttempts {
			break
		}

		wait := Backoff(attempt, c.config.BackoffUnit)
		retriesTotal.WithLabelValues(string(class)).Inc()
		retryBackoffSeconds.WithLabelValues(string(class)).Observe(wait.Seconds())

		c.logger.Warn().
			Err(err).
			Str("faction", faction).
			Int("page", page).
			Str("error_class", string(class)).
			Int("attempt", attempt).
			Int("max_attempts", maxAttempts).
			Dur("backoff", wait).
			Msg("Retrying request after backoff")

		if err := c.sleep(ctx, wait); err != nil {
			c.logger.Warn().
				Str("faction", faction).
				Int("page", page).
				Int("attempt", attempt).
				Msg("Context cancelled during retry backoff")
			return err
		}
	}

	retryExhaustedTotal.WithLabelValues(string(lastClass)).Inc()
	c.logger.Error().
		Err(lastErr).
		Str("faction", faction).
		Int("page", page).
		Str("url", pageURL).
		Int("max_attempts", maxAttempts).
		Msg("Retry attempts exhausted")

	return &FetchError{
		Partition: faction,
		Page:      page,
		URL:       pageURL,
		Attempts:  maxAttempts,
		Err:       lastErr,
	}
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", ErrContextCancelled, ctx.Err())
	case <-timer.C:
		return nil
	}
}

// IsFatal reports whether err is an exhausted page request.
func IsFatal(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe)
}
