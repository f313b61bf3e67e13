package ratelimit

import (
	"sync"
	"testing"
	"time"
)

func TestLimiter_WindowNeverExceeded(t *testing.T) {
	const perSecond = 5
	const calls = 14

	limiter := NewLimiter(perSecond)

	var mu sync.Mutex
	var admitted []time.Time

	var wg sync.WaitGroup
	for i := 0; i < calls; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			limiter.Wait()
			mu.Lock()
			admitted = append(admitted, time.Now())
			mu.Unlock()
		}()
	}
	wg.Wait()

	if len(admitted) != calls {
		t.Fatalf("admitted %d calls, want %d", len(admitted), calls)
	}

	// For every admission, count admissions within the preceding second.
	// The sliding window must never hold more than perSecond entries.
	// A small tolerance absorbs scheduling delay between Wait returning
	// and the timestamp being recorded.
	const tolerance = 20 * time.Millisecond
	for i, ts := range admitted {
		inWindow := 0
		for j, other := range admitted {
			if j == i {
				continue
			}
			d := ts.Sub(other)
			if d >= 0 && d < time.Second-tolerance {
				inWindow++
			}
		}
		if inWindow >= perSecond {
			t.Errorf("admission %d had %d prior admissions within its window, ceiling is %d",
				i, inWindow, perSecond)
		}
	}
}

func TestLimiter_BurstBelowCeilingDoesNotBlock(t *testing.T) {
	limiter := NewLimiter(10)

	start := time.Now()
	for i := 0; i < 10; i++ {
		limiter.Wait()
	}
	if elapsed := time.Since(start); elapsed > 200*time.Millisecond {
		t.Errorf("10 admissions under a 10/s ceiling took %v, expected no blocking", elapsed)
	}
}

func TestLimiter_DefaultCeiling(t *testing.T) {
	limiter := NewLimiter(0)
	if limiter.perSecond != DefaultCallsPerSecond {
		t.Errorf("perSecond = %d, want %d", limiter.perSecond, DefaultCallsPerSecond)
	}
}

func TestNopLimiter(t *testing.T) {
	start := time.Now()
	var nop NopLimiter
	for i := 0; i < 1000; i++ {
		nop.Wait()
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Errorf("NopLimiter.Wait blocked for %v", elapsed)
	}
}
