// Package ratelimit gates outgoing catalogue requests to a fixed request rate.
// Requests are issued one at a time; the limiter only spaces them out so a
// full export stays polite towards the upstream API.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Prometheus metrics for request gating.
var (
	throttlesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "altered_rate_limit_throttles_total",
		Help: "Total number of requests delayed by the politeness limiter",
	})

	throttleWaitSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "altered_rate_limit_wait_seconds",
		Help:    "Time spent waiting on the politeness limiter",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	})
)

// Limiter spaces requests to at most RequestsPerSecond.
// A nil *Limiter or one built with a non-positive rate never blocks.
type Limiter struct {
	limiter *rate.Limiter
	logger  zerolog.Logger
}

// NewLimiter creates a limiter. requestsPerSecond <= 0 disables limiting.
func NewLimiter(requestsPerSecond float64, logger zerolog.Logger) *Limiter {
	if requestsPerSecond <= 0 {
		return &Limiter{logger: logger}
	}
	return &Limiter{
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), 1),
		logger:  logger,
	}
}

// Enabled reports whether the limiter delays requests at all.
func (l *Limiter) Enabled() bool {
	return l != nil && l.limiter != nil
}

// Wait blocks until the next request is allowed or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	if !l.Enabled() {
		return nil
	}

	start := time.Now()
	if err := l.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	waited := time.Since(start)
	if waited > time.Millisecond {
		throttlesTotal.Inc()
		throttleWaitSeconds.Observe(waited.Seconds())
		l.logger.Debug().Dur("wait", waited).Msg("Request throttled")
	}
	return nil
}
