package ratelimit

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for the shared backoff state machine.
var (
	backoffTier = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "citegraph_backoff_tier",
		Help: "Current adaptive backoff tier index",
	})

	backoffPenaltiesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "citegraph_backoff_penalties_total",
		Help: "Total failed attempts that escalated the backoff tier",
	})

	backoffSleepSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "citegraph_backoff_sleep_seconds",
		Help:    "Delay applied per attempt by the adaptive backoff",
		Buckets: []float64{0.2, 0.5, 0.7, 1, 1.3, 1.5, 2},
	})
)

// DefaultTiers is the ascending delay schedule applied between attempts.
var DefaultTiers = []time.Duration{
	200 * time.Millisecond,
	500 * time.Millisecond,
	700 * time.Millisecond,
	1 * time.Second,
	1300 * time.Millisecond,
	1500 * time.Millisecond,
	2 * time.Second,
}

// Backoff is a process-wide delay-selection state machine. Penalize moves to
// the next, larger tier (capped at the last); Reward resets to the smallest
// tier. Both sleep the selected delay before returning.
//
// The tier index is shared by every concurrent caller: a failure on one
// worker raises the delay observed by all workers on their next attempt, and
// any success resets it for everyone. Callers invoke exactly one of Penalize
// or Reward after every attempt, so every attempt incurs at least the
// minimum tier delay. The sleep happens under the lock, so the delay also
// serializes attempts across workers.
type Backoff struct {
	mu    sync.Mutex
	tiers []time.Duration
	index int
}

// NewBackoff creates a backoff over the given ascending tiers. An empty
// slice falls back to DefaultTiers.
func NewBackoff(tiers []time.Duration) *Backoff {
	if len(tiers) == 0 {
		tiers = DefaultTiers
	}
	return &Backoff{tiers: tiers}
}

// Penalize escalates to the next tier, sleeps that delay, and returns it.
func (b *Backoff) Penalize() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.index < len(b.tiers)-1 {
		b.index++
	}
	backoffPenaltiesTotal.Inc()
	return b.sleepLocked()
}

// Reward resets to the smallest tier, sleeps that (still nonzero) delay,
// and returns it.
func (b *Backoff) Reward() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.index = 0
	return b.sleepLocked()
}

// Tier returns the current tier index.
func (b *Backoff) Tier() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.index
}

func (b *Backoff) sleepLocked() time.Duration {
	d := b.tiers[b.index]
	backoffTier.Set(float64(b.index))
	backoffSleepSeconds.Observe(d.Seconds())
	time.Sleep(d)
	return d
}

// NopBackoff keeps no state and never sleeps. Tests substitute it so retry
// behavior can be exercised without real delays.
type NopBackoff struct{}

// Penalize returns zero immediately.
func (NopBackoff) Penalize() time.Duration { return 0 }

// Reward returns zero immediately.
func (NopBackoff) Reward() time.Duration { return 0 }
