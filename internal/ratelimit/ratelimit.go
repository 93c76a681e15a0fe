// Package ratelimit enforces a per-source call quota over a rolling window.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// State is a point-in-time view of limiter occupancy.
type State struct {
	Source      string
	WindowStart time.Time // admission time of the oldest call still in window
	Count       int       // admissions within the current window, never negative
}

// Limiter admits at most maxCalls calls within any rolling window.
// Safe for use by many concurrent callers; waiting callers are admitted
// as soon as the oldest in-window call expires, so no caller starves.
type Limiter struct {
	source string
	max    int
	window time.Duration
	clock  clock.Clock

	mu     sync.Mutex
	stamps []time.Time // admission times, oldest first
}

// New creates a Limiter using the wall clock.
func New(source string, maxCalls int, window time.Duration) *Limiter {
	return NewWithClock(source, maxCalls, window, clock.New())
}

// NewWithClock creates a Limiter with an injectable clock for tests.
func NewWithClock(source string, maxCalls int, window time.Duration, clk clock.Clock) *Limiter {
	if maxCalls <= 0 {
		panic(fmt.Sprintf("ratelimit: maxCalls must be positive, got %d", maxCalls))
	}
	if window <= 0 {
		panic(fmt.Sprintf("ratelimit: window must be positive, got %v", window))
	}
	return &Limiter{
		source: source,
		max:    maxCalls,
		window: window,
		clock:  clk,
	}
}

// Acquire blocks until a slot is free under the quota or ctx is done.
// On success the call is recorded against the window.
func (l *Limiter) Acquire(ctx context.Context) error {
	for {
		l.mu.Lock()
		now := l.clock.Now()
		l.prune(now)

		if len(l.stamps) < l.max {
			l.stamps = append(l.stamps, now)
			l.mu.Unlock()
			return nil
		}

		// Quota exhausted: wait until the oldest admission rolls out.
		wait := l.stamps[0].Add(l.window).Sub(now)
		l.mu.Unlock()

		timer := l.clock.Timer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Available returns the number of immediately admissible calls.
func (l *Limiter) Available() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.prune(l.clock.Now())
	return l.max - len(l.stamps)
}

// State returns the current window occupancy.
func (l *Limiter) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.prune(l.clock.Now())

	s := State{Source: l.source, Count: len(l.stamps)}
	if len(l.stamps) > 0 {
		s.WindowStart = l.stamps[0]
	}
	return s
}

// prune drops admissions older than the window. Caller holds mu.
func (l *Limiter) prune(now time.Time) {
	cutoff := now.Add(-l.window)
	i := 0
	for i < len(l.stamps) && !l.stamps[i].After(cutoff) {
		i++
	}
	if i > 0 {
		l.stamps = append(l.stamps[:0], l.stamps[i:]...)
	}
}
