package source

import (
	"context"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"tokenwatch/internal/cache"
	"tokenwatch/internal/config"
	"tokenwatch/internal/domain"
	"tokenwatch/internal/observability"
	"tokenwatch/internal/ratelimit"
	"tokenwatch/internal/retry"
)

// FetchFunc performs the raw provider call and maps the response to the
// common partial schema. It must be idempotent (read-only).
type FetchFunc func(ctx context.Context, token domain.TokenIdentifier) (*domain.Fields, error)

// Pipeline composes RateLimiter → Cache → RetryExecutor → raw call for one
// provider. Built once per source client; the limiter and cache are shared
// across all concurrent aggregation requests for that source.
type Pipeline struct {
	name     string
	priority int

	limiter  *ratelimit.Limiter
	cache    *cache.Cache[*domain.SourceResult]
	executor *retry.Executor
	cacheTTL time.Duration
	timeout  time.Duration

	fetch   FetchFunc
	metrics *observability.Metrics
	logger  *log.Logger

	healthMu            sync.Mutex
	consecutiveFailures int
	lastSuccessMs       int64
}

// Health is a point-in-time view of a source's recent behavior.
type Health struct {
	ConsecutiveFailures int
	LastSuccessMs       int64 // 0 until the first success
}

// Compile-time interface check.
var _ Client = (*Pipeline)(nil)

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithMetrics attaches observability metrics.
func WithMetrics(m *observability.Metrics) PipelineOption {
	return func(p *Pipeline) { p.metrics = m }
}

// WithLogger sets the pipeline logger.
func WithLogger(l *log.Logger) PipelineOption {
	return func(p *Pipeline) { p.logger = l }
}

// WithLimiter injects a rate limiter (tests).
func WithLimiter(l *ratelimit.Limiter) PipelineOption {
	return func(p *Pipeline) { p.limiter = l }
}

// WithCache injects a result cache (tests).
func WithCache(c *cache.Cache[*domain.SourceResult]) PipelineOption {
	return func(p *Pipeline) { p.cache = c }
}

// WithExecutor injects a retry executor (tests).
func WithExecutor(e *retry.Executor) PipelineOption {
	return func(p *Pipeline) { p.executor = e }
}

// NewPipeline builds the call pipeline for one provider from its config.
func NewPipeline(name string, cfg config.SourceConfig, fetch FetchFunc, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		name:     name,
		priority: cfg.Priority,
		limiter:  ratelimit.New(name, cfg.MaxCalls, cfg.Window()),
		cache:    cache.New[*domain.SourceResult](),
		executor: retry.New(
			retry.WithMaxRetries(cfg.MaxRetries),
			retry.WithBaseDelay(cfg.RetryBaseDelay()),
			retry.WithJitter(cfg.RetryJitter),
		),
		cacheTTL: cfg.CacheTTL(),
		timeout:  cfg.Timeout(),
		fetch:    fetch,
		logger:   log.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name identifies the source.
func (p *Pipeline) Name() string { return p.name }

// Priority is the merge precedence for this source.
func (p *Pipeline) Priority() int { return p.priority }

// Fetch runs the pipeline for token. It never returns an error; failures
// become a SourceResult with Status == StatusFailed.
func (p *Pipeline) Fetch(ctx context.Context, token domain.TokenIdentifier) *domain.SourceResult {
	start := time.Now()
	key := token.Address

	if cached, ok := p.cache.Get(key); ok {
		p.metrics.ObserveCache(p.name, true)
		cp := *cached
		cp.Fields = cached.Fields.Clone()
		return &cp
	}
	p.metrics.ObserveCache(p.name, false)

	fctx := ctx
	var cancel context.CancelFunc
	if p.timeout > 0 {
		fctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	var fields *domain.Fields
	res, err := p.executor.Do(fctx, func(ctx context.Context) error {
		// Quota admission happens per attempt: retries are calls too.
		if p.limiter.Available() == 0 {
			p.metrics.ObserveRateLimitWait(p.name)
		}
		if err := p.limiter.Acquire(ctx); err != nil {
			return err
		}
		f, err := p.fetch(ctx, token)
		if err != nil {
			return err
		}
		fields = f
		return nil
	})

	fetchedAt := time.Now().UnixMilli()

	if err != nil {
		class := Classify(err)
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(fctx.Err(), context.DeadlineExceeded) {
			class = "timeout"
		}
		p.logger.Printf("[source:%s] fetch %s failed (%s): %v", p.name, token.Address, class, err)
		p.metrics.ObserveSourceFetch(p.name, string(domain.StatusFailed), res.Retries, time.Since(start))
		p.recordOutcome(false, 0)
		return &domain.SourceResult{
			Source:    p.name,
			Status:    domain.StatusFailed,
			FetchedAt: fetchedAt,
			Error:     class,
			Retries:   res.Retries,
		}
	}

	status := domain.StatusOK
	if res.Retries > 0 {
		status = domain.StatusDegraded
	}

	result := &domain.SourceResult{
		Source:    p.name,
		Status:    status,
		FetchedAt: fetchedAt,
		Retries:   res.Retries,
		Fields:    *fields,
	}

	// Only successful fetches are cached; failures must be retried by the
	// next aggregation.
	p.cache.Set(key, result, p.cacheTTL)
	p.metrics.ObserveSourceFetch(p.name, string(status), res.Retries, time.Since(start))
	p.recordOutcome(true, fetchedAt)

	// Callers get their own Fields storage; the cached entry must stay
	// untouched by whatever they do with the result.
	cp := *result
	cp.Fields = result.Fields.Clone()
	return &cp
}

// Health reports the source's failure streak and last success time.
func (p *Pipeline) Health() Health {
	p.healthMu.Lock()
	defer p.healthMu.Unlock()
	return Health{
		ConsecutiveFailures: p.consecutiveFailures,
		LastSuccessMs:       p.lastSuccessMs,
	}
}

func (p *Pipeline) recordOutcome(ok bool, fetchedAt int64) {
	p.healthMu.Lock()
	if ok {
		p.consecutiveFailures = 0
		p.lastSuccessMs = fetchedAt
	} else {
		p.consecutiveFailures++
	}
	failures, last := p.consecutiveFailures, p.lastSuccessMs
	p.healthMu.Unlock()

	p.metrics.ObserveSourceHealth(p.name, failures, last)
}

// defaultHTTPClient builds the HTTP client used by provider adapters.
func defaultHTTPClient(cfg config.SourceConfig) *http.Client {
	timeout := DefaultHTTPTimeout
	if cfg.Timeout() > 0 {
		timeout = cfg.Timeout()
	}
	return &http.Client{Timeout: timeout}
}
