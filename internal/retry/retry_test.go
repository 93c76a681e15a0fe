package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errServer = errors.New("status 500")

func TestDo_TransientThenSuccess(t *testing.T) {
	e := New(WithMaxRetries(5), WithBaseDelay(0), WithJitter(0))

	failures := 3
	calls := 0
	res, err := e.Do(context.Background(), func(ctx context.Context) error {
		calls++
		if calls <= failures {
			return errServer
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if res.Retries != failures {
		t.Errorf("expected exactly %d recorded retries, got %d", failures, res.Retries)
	}
	if res.Attempts != failures+1 {
		t.Errorf("expected %d attempts, got %d", failures+1, res.Attempts)
	}
}

func TestDo_PermanentNeverRetried(t *testing.T) {
	e := New(WithMaxRetries(5), WithBaseDelay(0), WithJitter(0))

	errAuth := errors.New("status 401")
	calls := 0
	res, err := e.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return Permanent(errAuth)
	})
	if calls != 1 {
		t.Fatalf("permanent failure retried: %d calls", calls)
	}
	if res.Retries != 0 {
		t.Errorf("expected 0 retries, got %d", res.Retries)
	}
	if !errors.Is(err, errAuth) {
		t.Errorf("expected unwrapped permanent cause, got %v", err)
	}
	if errors.Is(err, ErrExhausted) {
		t.Error("permanent failure must not be reported as exhaustion")
	}
}

func TestDo_Exhaustion(t *testing.T) {
	e := New(WithMaxRetries(2), WithBaseDelay(0), WithJitter(0))

	res, err := e.Do(context.Background(), func(ctx context.Context) error {
		return errServer
	})
	if !errors.Is(err, ErrExhausted) {
		t.Fatalf("expected ErrExhausted, got %v", err)
	}
	if res.Attempts != 3 {
		t.Errorf("expected 3 attempts (1 + 2 retries), got %d", res.Attempts)
	}
}

func TestDo_ContextCancelled(t *testing.T) {
	e := New(WithMaxRetries(10), WithBaseDelay(time.Hour), WithJitter(0))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := e.Do(ctx, func(ctx context.Context) error {
			return errServer
		})
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("cancelled execution never returned")
	}
}

func TestDelayFor_ExponentialGrowthAndCap(t *testing.T) {
	e := New(WithBaseDelay(100*time.Millisecond), WithMaxDelay(500*time.Millisecond), WithJitter(0))

	want := []time.Duration{
		100 * time.Millisecond,
		200 * time.Millisecond,
		400 * time.Millisecond,
		500 * time.Millisecond, // capped
		500 * time.Millisecond,
	}
	for n, w := range want {
		if got := e.delayFor(n); got != w {
			t.Errorf("delayFor(%d) = %v, want %v", n, got, w)
		}
	}
}

func TestDelayFor_JitterBounds(t *testing.T) {
	e := New(WithBaseDelay(100*time.Millisecond), WithJitter(0.5))

	for i := 0; i < 100; i++ {
		d := e.delayFor(0)
		if d < 50*time.Millisecond || d > 100*time.Millisecond {
			t.Fatalf("jittered delay %v outside [50ms, 100ms]", d)
		}
	}
}
