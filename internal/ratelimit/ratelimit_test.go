package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
)

func TestAcquire_WithinQuota(t *testing.T) {
	mock := clock.NewMock()
	l := NewWithClock("birdeye", 3, 60*time.Second, mock)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if err := l.Acquire(ctx); err != nil {
			t.Fatalf("acquire %d failed: %v", i, err)
		}
	}

	if got := l.Available(); got != 0 {
		t.Errorf("expected 0 available, got %d", got)
	}
	if got := l.State().Count; got != 3 {
		t.Errorf("expected count 3, got %d", got)
	}
}

func TestAcquire_DelaysUntilWindowRollsOver(t *testing.T) {
	mock := clock.NewMock()
	l := NewWithClock("birdeye", 2, 60*time.Second, mock)
	ctx := context.Background()

	if err := l.Acquire(ctx); err != nil {
		t.Fatal(err)
	}
	mock.Add(10 * time.Second)
	if err := l.Acquire(ctx); err != nil {
		t.Fatal(err)
	}

	// Third call must block until the first admission leaves the window.
	admitted := make(chan time.Time, 1)
	go func() {
		if err := l.Acquire(ctx); err != nil {
			t.Errorf("blocked acquire failed: %v", err)
		}
		admitted <- mock.Now()
	}()

	// Give the goroutine a chance to register its timer.
	time.Sleep(20 * time.Millisecond)
	select {
	case <-admitted:
		t.Fatal("excess call admitted without waiting for window rollover")
	default:
	}

	// Not yet: first admission expires at t=60s, we are at t=10s.
	mock.Add(40 * time.Second)
	time.Sleep(20 * time.Millisecond)
	select {
	case <-admitted:
		t.Fatal("excess call admitted before window rollover")
	default:
	}

	mock.Add(10 * time.Second)
	select {
	case at := <-admitted:
		if at.Before(mock.Now().Add(-time.Second)) {
			t.Errorf("admission recorded at unexpected time %v", at)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("excess call never admitted after window rollover")
	}

	// Quota still holds: only the second and third admissions remain.
	if got := l.State().Count; got != 2 {
		t.Errorf("expected 2 admissions in window, got %d", got)
	}
}

func TestAcquire_NeverExceedsQuotaUnderConcurrency(t *testing.T) {
	l := New("dexscreener", 5, 200*time.Millisecond)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var mu sync.Mutex
	var admissions []time.Time

	var wg sync.WaitGroup
	for i := 0; i < 15; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := l.Acquire(ctx); err != nil {
				t.Errorf("acquire failed: %v", err)
				return
			}
			mu.Lock()
			admissions = append(admissions, time.Now())
			mu.Unlock()
		}()
	}
	wg.Wait()

	if len(admissions) != 15 {
		t.Fatalf("expected all 15 callers admitted eventually, got %d", len(admissions))
	}

	// No rolling 200ms window may contain more than 5 admissions.
	for i := range admissions {
		count := 0
		for j := range admissions {
			d := admissions[j].Sub(admissions[i])
			if d >= 0 && d < 190*time.Millisecond { // small scheduling slack
				count++
			}
		}
		if count > 5 {
			t.Fatalf("found %d admissions within one window", count)
		}
	}
}

func TestAcquire_ContextCancelled(t *testing.T) {
	mock := clock.NewMock()
	l := NewWithClock("rugcheck", 1, time.Minute, mock)

	if err := l.Acquire(context.Background()); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- l.Acquire(ctx)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if err != context.Canceled {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("cancelled acquire never returned")
	}
}
