package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter caps how many actions may run inside a rolling window.
type Limiter interface {
	// Allow reports whether another action may run now, consuming a slot
	// when it may.
	Allow() bool
	// Wait blocks until a slot frees up or the context is cancelled.
	Wait(ctx context.Context) error
	// Reset clears all recorded actions.
	Reset()
}

// SlidingWindow counts actions inside a rolling window. Used to keep the
// device under the hourly action ceiling.
type SlidingWindow struct {
	windowSize time.Duration
	maxActions int
	actions    []time.Time
	mu         sync.Mutex
}

// NewSlidingWindow creates a limiter allowing maxActions per windowSize.
func NewSlidingWindow(maxActions int, windowSize time.Duration) *SlidingWindow {
	return &SlidingWindow{
		windowSize: windowSize,
		maxActions: maxActions,
		actions:    make([]time.Time, 0, maxActions),
	}
}

// Allow consumes a slot when one is free.
func (sw *SlidingWindow) Allow() bool {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	now := time.Now()
	sw.evict(now)

	if len(sw.actions) < sw.maxActions {
		sw.actions = append(sw.actions, now)
		return true
	}
	return false
}

// Wait blocks until a slot frees up or ctx is cancelled.
func (sw *SlidingWindow) Wait(ctx context.Context) error {
	for {
		if sw.Allow() {
			return nil
		}

		sw.mu.Lock()
		wait := 100 * time.Millisecond
		if len(sw.actions) > 0 {
			until := sw.windowSize - time.Since(sw.actions[0])
			if until > wait {
				wait = until
			}
		}
		sw.mu.Unlock()

		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
		timer.Stop()
	}
}

// Reset clears all recorded actions.
func (sw *SlidingWindow) Reset() {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	sw.actions = sw.actions[:0]
}

// Used reports how many slots are currently consumed.
func (sw *SlidingWindow) Used() int {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	sw.evict(time.Now())
	return len(sw.actions)
}

// evict drops actions that have fallen out of the window. Callers hold mu.
func (sw *SlidingWindow) evict(now time.Time) {
	cutoff := now.Add(-sw.windowSize)

	i := 0
	for i < len(sw.actions) && sw.actions[i].Before(cutoff) {
		i++
	}
	if i > 0 {
		copy(sw.actions, sw.actions[i:])
		sw.actions = sw.actions[:len(sw.actions)-i]
	}
}
