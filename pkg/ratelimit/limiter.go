// Package ratelimit implements the two admission controls shared by every
// outbound provider call: a sliding-window limiter that caps total calls per
// second across all workers, and a tiered adaptive backoff that lengthens
// after failures and resets after successes.
package ratelimit

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for admission control.
var (
	limiterWaitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "citegraph_rate_limit_waits_total",
		Help: "Total admissions that had to sleep for the window to open",
	})

	limiterWaitSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "citegraph_rate_limit_wait_seconds",
		Help:    "Time spent waiting for rate limit admission",
		Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2},
	})
)

// DefaultCallsPerSecond is the shared outbound call budget. Both providers
// document roughly 10 req/s for polite clients; 8 leaves headroom.
const DefaultCallsPerSecond = 8

// Limiter admits at most N calls within any rolling one-second window,
// counted across every goroutine that shares the instance.
//
// All mutation happens under one mutex, including the sleep while the
// window is full, which gives callers an approximate FIFO ordering. An
// admission cannot be interrupted once begun; the workload is short-lived
// per-request traffic, so cancellation is not supported here.
type Limiter struct {
	mu         sync.Mutex
	perSecond  int
	timestamps []time.Time
}

// NewLimiter creates a limiter admitting perSecond calls per rolling second.
// Non-positive values fall back to DefaultCallsPerSecond.
func NewLimiter(perSecond int) *Limiter {
	if perSecond <= 0 {
		perSecond = DefaultCallsPerSecond
	}
	return &Limiter{perSecond: perSecond}
}

// Wait blocks until one outbound call may be issued, then records it.
func (l *Limiter) Wait() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()

	// Drop timestamps that have left the one-second window.
	kept := l.timestamps[:0]
	for _, ts := range l.timestamps {
		if now.Sub(ts) < time.Second {
			kept = append(kept, ts)
		}
	}
	l.timestamps = kept

	if len(l.timestamps) >= l.perSecond {
		// Sleep until the oldest recorded call falls out of the window.
		sleep := time.Second - now.Sub(l.timestamps[0])
		if sleep > 0 {
			limiterWaitsTotal.Inc()
			limiterWaitSeconds.Observe(sleep.Seconds())
			time.Sleep(sleep)
		}
		l.timestamps = l.timestamps[1:]
	}

	l.timestamps = append(l.timestamps, time.Now())
}

// NopLimiter admits every call immediately. It exists so tests and offline
// replays can disable admission control without changing call sites.
type NopLimiter struct{}

// Wait returns immediately.
func (NopLimiter) Wait() {}
