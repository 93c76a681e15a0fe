// Package retry wraps one idempotent network call with bounded retries,
// exponential backoff and randomized jitter. Transient failures are
// retried; permanent failures fail immediately.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/benbjohnson/clock"
)

// Default configuration values.
const (
	DefaultMaxRetries = 3
	DefaultBaseDelay  = 250 * time.Millisecond
	DefaultMaxDelay   = 10 * time.Second
	DefaultJitter     = 0.5
)

// ErrExhausted is returned (wrapped) when all retry attempts failed with
// transient errors.
var ErrExhausted = errors.New("retries exhausted")

// permanentError marks an error that must not be retried.
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent wraps err so the executor fails immediately without retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err carries the no-retry marker.
func IsPermanent(err error) bool {
	var pe *permanentError
	return errors.As(err, &pe)
}

// Op is one idempotent call. Results are captured via closure.
type Op func(ctx context.Context) error

// Result describes how an execution went.
type Result struct {
	Attempts int // total calls made, >= 1 unless ctx was already done
	Retries  int // Attempts - 1 when at least one call was made
}

// Executor runs operations under a retry policy. Safe for concurrent use.
type Executor struct {
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
	jitter     float64 // fraction of the delay randomized, [0, 1]
	clock      clock.Clock
	randFloat  func() float64
}

// Option configures an Executor.
type Option func(*Executor)

// WithMaxRetries sets the maximum number of retries after the first attempt.
func WithMaxRetries(n int) Option {
	return func(e *Executor) { e.maxRetries = n }
}

// WithBaseDelay sets the initial backoff delay.
func WithBaseDelay(d time.Duration) Option {
	return func(e *Executor) { e.baseDelay = d }
}

// WithMaxDelay caps the backoff delay.
func WithMaxDelay(d time.Duration) Option {
	return func(e *Executor) { e.maxDelay = d }
}

// WithJitter sets the randomized fraction of each delay.
func WithJitter(f float64) Option {
	return func(e *Executor) { e.jitter = f }
}

// WithClock injects a clock for tests.
func WithClock(clk clock.Clock) Option {
	return func(e *Executor) { e.clock = clk }
}

// New creates an Executor.
func New(opts ...Option) *Executor {
	e := &Executor{
		maxRetries: DefaultMaxRetries,
		baseDelay:  DefaultBaseDelay,
		maxDelay:   DefaultMaxDelay,
		jitter:     DefaultJitter,
		clock:      clock.New(),
		randFloat:  rand.Float64,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Do runs op until it succeeds, fails permanently, exhausts retries, or
// ctx is done. The only side effects are those of op itself.
func (e *Executor) Do(ctx context.Context, op Op) (Result, error) {
	var res Result
	var lastErr error

	for attempt := 0; attempt <= e.maxRetries; attempt++ {
		if attempt > 0 {
			if err := e.sleep(ctx, e.delayFor(attempt-1)); err != nil {
				return res, err
			}
			res.Retries++
		}
		if err := ctx.Err(); err != nil {
			return res, err
		}

		res.Attempts++
		err := op(ctx)
		if err == nil {
			return res, nil
		}
		lastErr = err

		if IsPermanent(err) {
			var pe *permanentError
			errors.As(err, &pe)
			return res, pe.err
		}
	}

	return res, fmt.Errorf("%w after %d attempts: %v", ErrExhausted, res.Attempts, lastErr)
}

// delayFor computes the backoff before retry n (0-based) with jitter.
func (e *Executor) delayFor(n int) time.Duration {
	d := e.baseDelay
	for i := 0; i < n; i++ {
		d *= 2
		if d >= e.maxDelay {
			d = e.maxDelay
			break
		}
	}
	if e.jitter > 0 {
		// Keep (1-jitter) of the delay, randomize the rest.
		fixed := float64(d) * (1 - e.jitter)
		d = time.Duration(fixed + e.randFloat()*float64(d)*e.jitter)
	}
	return d
}

func (e *Executor) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := e.clock.Timer(d)
	select {
	case <-ctx.Done():
		timer.Stop()
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
