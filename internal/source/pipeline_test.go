package source

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"tokenwatch/internal/config"
	"tokenwatch/internal/domain"
	"tokenwatch/internal/retry"
)

func testSourceConfig() config.SourceConfig {
	return config.SourceConfig{
		Enabled:          true,
		BaseURL:          "http://example.invalid",
		MaxCalls:         100,
		WindowSeconds:    60,
		CacheTTLSeconds:  60,
		TimeoutSeconds:   5,
		Priority:         1,
		MaxRetries:       3,
		RetryBaseDelayMs: 1,
		RetryJitter:      0,
	}
}

func testToken() domain.TokenIdentifier {
	return domain.TokenIdentifier{
		Address: "So11111111111111111111111111111111111111112",
		Chain:   domain.ChainSolana,
	}
}

func TestPipeline_CacheDeduplicatesFetches(t *testing.T) {
	var calls atomic.Int64
	fetch := func(ctx context.Context, token domain.TokenIdentifier) (*domain.Fields, error) {
		calls.Add(1)
		return &domain.Fields{Price: domain.Float64(0.01)}, nil
	}

	p := NewPipeline("birdeye", testSourceConfig(), fetch)
	ctx := context.Background()

	first := p.Fetch(ctx, testToken())
	if first.Status != domain.StatusOK {
		t.Fatalf("expected ok, got %s (%s)", first.Status, first.Error)
	}

	// Repeat within TTL: zero additional raw calls.
	for i := 0; i < 5; i++ {
		res := p.Fetch(ctx, testToken())
		if res.Status != domain.StatusOK {
			t.Fatalf("cached fetch %d: expected ok, got %s", i, res.Status)
		}
		if res.Price == nil || *res.Price != 0.01 {
			t.Fatalf("cached fetch %d: wrong value", i)
		}
	}

	if got := calls.Load(); got != 1 {
		t.Errorf("expected exactly 1 raw call, got %d", got)
	}
}

func TestPipeline_ResultsDoNotAliasCache(t *testing.T) {
	fetch := func(ctx context.Context, token domain.TokenIdentifier) (*domain.Fields, error) {
		return &domain.Fields{
			Price:       domain.Float64(0.01),
			MintRevoked: domain.Bool(true),
		}, nil
	}

	p := NewPipeline("birdeye", testSourceConfig(), fetch)
	ctx := context.Background()

	first := p.Fetch(ctx, testToken())
	*first.Price = 999
	*first.MintRevoked = false

	second := p.Fetch(ctx, testToken())
	if *second.Price != 0.01 || !*second.MintRevoked {
		t.Errorf("mutating a returned result leaked into the cache: price=%v mint_revoked=%v",
			*second.Price, *second.MintRevoked)
	}

	// Cache hits must be isolated from each other too.
	*second.Price = -1
	third := p.Fetch(ctx, testToken())
	if *third.Price != 0.01 {
		t.Errorf("mutating a cache hit leaked into the cache: price=%v", *third.Price)
	}
}

func TestPipeline_TransientFailuresRetriedThenDegraded(t *testing.T) {
	var calls atomic.Int64
	fetch := func(ctx context.Context, token domain.TokenIdentifier) (*domain.Fields, error) {
		if calls.Add(1) <= 2 {
			return nil, fmt.Errorf("%w: status 500", ErrUnavailable)
		}
		return &domain.Fields{Price: domain.Float64(1)}, nil
	}

	p := NewPipeline("birdeye", testSourceConfig(), fetch)
	res := p.Fetch(context.Background(), testToken())

	if res.Status != domain.StatusDegraded {
		t.Errorf("expected degraded after retries, got %s", res.Status)
	}
	if res.Retries != 2 {
		t.Errorf("expected exactly 2 recorded retries, got %d", res.Retries)
	}
	if calls.Load() != 3 {
		t.Errorf("expected 3 raw calls, got %d", calls.Load())
	}
}

func TestPipeline_RejectedNeverRetried(t *testing.T) {
	var calls atomic.Int64
	fetch := func(ctx context.Context, token domain.TokenIdentifier) (*domain.Fields, error) {
		calls.Add(1)
		return nil, retry.Permanent(fmt.Errorf("%w: status 401", ErrRejected))
	}

	p := NewPipeline("rugcheck", testSourceConfig(), fetch)
	res := p.Fetch(context.Background(), testToken())

	if calls.Load() != 1 {
		t.Fatalf("401 retried: %d raw calls", calls.Load())
	}
	if res.Status != domain.StatusFailed {
		t.Errorf("expected failed, got %s", res.Status)
	}
	if res.Error != "rejected" {
		t.Errorf("expected classification rejected, got %q", res.Error)
	}
}

func TestPipeline_ExhaustionClassifiedUnavailable(t *testing.T) {
	fetch := func(ctx context.Context, token domain.TokenIdentifier) (*domain.Fields, error) {
		return nil, fmt.Errorf("%w: status 503", ErrUnavailable)
	}

	p := NewPipeline("dexscreener", testSourceConfig(), fetch)
	res := p.Fetch(context.Background(), testToken())

	if res.Status != domain.StatusFailed {
		t.Fatalf("expected failed, got %s", res.Status)
	}
	if res.Error != "unavailable" {
		t.Errorf("expected classification unavailable, got %q", res.Error)
	}
	if res.Retries != 3 {
		t.Errorf("expected 3 retries before exhaustion, got %d", res.Retries)
	}
}

func TestPipeline_FailuresNotCached(t *testing.T) {
	var calls atomic.Int64
	fetch := func(ctx context.Context, token domain.TokenIdentifier) (*domain.Fields, error) {
		if calls.Add(1) == 1 {
			return nil, retry.Permanent(fmt.Errorf("%w: status 400", ErrRejected))
		}
		return &domain.Fields{Price: domain.Float64(2)}, nil
	}

	cfg := testSourceConfig()
	cfg.MaxRetries = 0
	p := NewPipeline("pumpfun", cfg, fetch)
	ctx := context.Background()

	if res := p.Fetch(ctx, testToken()); res.Status != domain.StatusFailed {
		t.Fatalf("expected first fetch to fail, got %s", res.Status)
	}
	if res := p.Fetch(ctx, testToken()); res.Status != domain.StatusOK {
		t.Fatalf("expected second fetch to succeed, got %s", res.Status)
	}
	if calls.Load() != 2 {
		t.Errorf("failed result was cached: %d raw calls", calls.Load())
	}
}

func TestPipeline_TimeoutClassified(t *testing.T) {
	fetch := func(ctx context.Context, token domain.TokenIdentifier) (*domain.Fields, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	cfg := testSourceConfig()
	cfg.TimeoutSeconds = 1
	cfg.MaxRetries = 0
	p := NewPipeline("social", cfg, fetch)

	start := time.Now()
	res := p.Fetch(context.Background(), testToken())
	if time.Since(start) > 3*time.Second {
		t.Fatal("fetch did not respect per-source timeout")
	}
	if res.Status != domain.StatusFailed {
		t.Fatalf("expected failed, got %s", res.Status)
	}
	if res.Error != "timeout" {
		t.Errorf("expected classification timeout, got %q", res.Error)
	}
}

func TestPipeline_HealthTracksStreaks(t *testing.T) {
	var fail atomic.Bool
	fail.Store(true)
	fetch := func(ctx context.Context, token domain.TokenIdentifier) (*domain.Fields, error) {
		if fail.Load() {
			return nil, retry.Permanent(fmt.Errorf("%w: status 400", ErrRejected))
		}
		return &domain.Fields{Price: domain.Float64(1)}, nil
	}

	cfg := testSourceConfig()
	cfg.MaxRetries = 0
	cfg.CacheTTLSeconds = 0
	p := NewPipeline("birdeye", cfg, fetch)
	ctx := context.Background()

	p.Fetch(ctx, testToken())
	p.Fetch(ctx, testToken())
	if h := p.Health(); h.ConsecutiveFailures != 2 || h.LastSuccessMs != 0 {
		t.Fatalf("after 2 failures: %+v", h)
	}

	fail.Store(false)
	p.Fetch(ctx, testToken())
	h := p.Health()
	if h.ConsecutiveFailures != 0 {
		t.Errorf("success must reset the streak, got %d", h.ConsecutiveFailures)
	}
	if h.LastSuccessMs == 0 {
		t.Error("success must stamp LastSuccessMs")
	}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{fmt.Errorf("%w: status 500", ErrUnavailable), "unavailable"},
		{fmt.Errorf("wrap: %w", ErrRejected), "rejected"},
		{fmt.Errorf("wrap: %w", ErrMalformed), "malformed"},
		{errors.New("dial tcp: connection refused"), "unavailable"},
		{context.Canceled, "unavailable"},
	}
	for _, tc := range cases {
		if got := Classify(tc.err); got != tc.want {
			t.Errorf("Classify(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}
