// Package aggregator fans a token out to all source clients concurrently
// and merges their partial answers into one provenance-tagged snapshot.
package aggregator

import (
	"context"
	"errors"
	"log"
	"math"
	"sort"
	"time"

	"tokenwatch/internal/config"
	"tokenwatch/internal/domain"
	"tokenwatch/internal/observability"
	"tokenwatch/internal/source"
)

// ErrNoToken indicates an aggregation request without a token address.
// This is the only hard error Aggregate returns; source failures degrade
// the snapshot instead.
var ErrNoToken = errors.New("aggregator: empty token address")

// Aggregator coordinates concurrent source fetches for one token at a time.
// Safe for concurrent use; per-source quotas and caches live inside the
// clients.
type Aggregator struct {
	clients   []source.Client
	timeout   time.Duration
	tolerance float64
	metrics   *observability.Metrics
	logger    *log.Logger
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithMetrics attaches observability metrics.
func WithMetrics(m *observability.Metrics) Option {
	return func(a *Aggregator) { a.metrics = m }
}

// WithLogger sets the aggregator logger.
func WithLogger(l *log.Logger) Option {
	return func(a *Aggregator) { a.logger = l }
}

// New builds an Aggregator over the given source clients.
func New(cfg config.AggregatorConfig, clients []source.Client, opts ...Option) *Aggregator {
	a := &Aggregator{
		clients:   clients,
		timeout:   cfg.Timeout(),
		tolerance: cfg.DivergenceTolerance,
		logger:    log.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Aggregate fetches the token from every source concurrently and merges
// the usable results. Individual source failures never fail the call;
// they are recorded on the snapshot and reduce data sufficiency.
func (a *Aggregator) Aggregate(ctx context.Context, token domain.TokenIdentifier) (*domain.AggregatedSnapshot, error) {
	if token.Address == "" {
		return nil, ErrNoToken
	}

	start := time.Now()
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	type fetched struct {
		client source.Client
		result *domain.SourceResult
	}

	ch := make(chan fetched, len(a.clients))
	for _, c := range a.clients {
		go func(c source.Client) {
			ch <- fetched{client: c, result: c.Fetch(ctx, token)}
		}(c)
	}

	snap := &domain.AggregatedSnapshot{
		Token:      token,
		Sources:    make(map[string]*domain.SourceResult, len(a.clients)),
		Provenance: make(map[domain.Field]string),
	}

	var usable []ranked
	for range a.clients {
		f := <-ch
		snap.Sources[f.client.Name()] = f.result
		if f.result.Usable() {
			snap.SourcesOK++
			usable = append(usable, ranked{
				name:     f.client.Name(),
				priority: f.client.Priority(),
				fields:   &f.result.Fields,
			})
		} else if f.result.Status == domain.StatusFailed {
			a.logger.Printf("[aggregator] source %s failed for %s: %s",
				f.client.Name(), token.Address, f.result.Error)
		}
	}

	// Deterministic merge order: priority first, then name.
	sort.Slice(usable, func(i, j int) bool {
		if usable[i].priority != usable[j].priority {
			return usable[i].priority < usable[j].priority
		}
		return usable[i].name < usable[j].name
	})

	snap.TimestampMs = time.Now().UnixMilli()
	a.merge(snap, usable)
	snap.DataSufficient = sufficient(&snap.Merged)

	a.metrics.ObserveAggregation(time.Since(start), snap.DataSufficient, len(snap.Divergent))
	return snap, nil
}

// ranked pairs one usable source's fields with its merge precedence.
type ranked struct {
	name     string
	priority int
	fields   *domain.Fields
}

// merge fills snap.Merged field by field: the highest-priority source
// supplying a value wins, lower-priority disagreement beyond tolerance
// marks the field divergent.
func (a *Aggregator) merge(snap *domain.AggregatedSnapshot, usable []ranked) {
	a.mergeFloat(snap, usable, domain.FieldPrice,
		func(f *domain.Fields) *float64 { return f.Price },
		func(f *domain.Fields, v *float64) { f.Price = v })
	a.mergeFloat(snap, usable, domain.FieldLiquidityUSD,
		func(f *domain.Fields) *float64 { return f.LiquidityUSD },
		func(f *domain.Fields, v *float64) { f.LiquidityUSD = v })
	a.mergeFloat(snap, usable, domain.FieldVolume24h,
		func(f *domain.Fields) *float64 { return f.Volume24h },
		func(f *domain.Fields, v *float64) { f.Volume24h = v })
	a.mergeFloat(snap, usable, domain.FieldMarketCapUSD,
		func(f *domain.Fields) *float64 { return f.MarketCapUSD },
		func(f *domain.Fields, v *float64) { f.MarketCapUSD = v })
	a.mergeFloat(snap, usable, domain.FieldPriceChange24h,
		func(f *domain.Fields) *float64 { return f.PriceChange24h },
		func(f *domain.Fields, v *float64) { f.PriceChange24h = v })
	a.mergeFloat(snap, usable, domain.FieldHolderGrowth,
		func(f *domain.Fields) *float64 { return f.HolderGrowth },
		func(f *domain.Fields, v *float64) { f.HolderGrowth = v })
	a.mergeFloat(snap, usable, domain.FieldBuyTax,
		func(f *domain.Fields) *float64 { return f.BuyTax },
		func(f *domain.Fields, v *float64) { f.BuyTax = v })
	a.mergeFloat(snap, usable, domain.FieldSellTax,
		func(f *domain.Fields) *float64 { return f.SellTax },
		func(f *domain.Fields, v *float64) { f.SellTax = v })
	a.mergeFloat(snap, usable, domain.FieldSentiment,
		func(f *domain.Fields) *float64 { return f.Sentiment },
		func(f *domain.Fields, v *float64) { f.Sentiment = v })

	a.mergeInt(snap, usable, domain.FieldHolderCount,
		func(f *domain.Fields) *int64 { return f.HolderCount },
		func(f *domain.Fields, v *int64) { f.HolderCount = v })
	a.mergeInt(snap, usable, domain.FieldLPLockDays,
		func(f *domain.Fields) *int64 { return f.LPLockDays },
		func(f *domain.Fields, v *int64) { f.LPLockDays = v })
	a.mergeInt(snap, usable, domain.FieldMentionCount,
		func(f *domain.Fields) *int64 { return f.MentionCount },
		func(f *domain.Fields, v *int64) { f.MentionCount = v })

	a.mergeBool(snap, usable, domain.FieldMintRevoked,
		func(f *domain.Fields) *bool { return f.MintRevoked },
		func(f *domain.Fields, v *bool) { f.MintRevoked = v })
	a.mergeBool(snap, usable, domain.FieldLPLocked,
		func(f *domain.Fields) *bool { return f.LPLocked },
		func(f *domain.Fields, v *bool) { f.LPLocked = v })
	a.mergeBool(snap, usable, domain.FieldHoneypot,
		func(f *domain.Fields) *bool { return f.Honeypot },
		func(f *domain.Fields, v *bool) { f.Honeypot = v })
	a.mergeBool(snap, usable, domain.FieldProxyContract,
		func(f *domain.Fields) *bool { return f.ProxyContract },
		func(f *domain.Fields, v *bool) { f.ProxyContract = v })
}

func (a *Aggregator) mergeFloat(snap *domain.AggregatedSnapshot, usable []ranked, field domain.Field,
	get func(*domain.Fields) *float64, set func(*domain.Fields, *float64)) {

	var winner *float64
	divergent := false
	for _, r := range usable {
		v := get(r.fields)
		if v == nil {
			continue
		}
		if winner == nil {
			winner = v
			snap.Provenance[field] = r.name
			continue
		}
		if a.diverges(*winner, *v) {
			divergent = true
		}
	}
	if winner == nil {
		return
	}
	cp := *winner
	set(&snap.Merged, &cp)
	if divergent {
		snap.Divergent = append(snap.Divergent, field)
	}
}

func (a *Aggregator) mergeInt(snap *domain.AggregatedSnapshot, usable []ranked, field domain.Field,
	get func(*domain.Fields) *int64, set func(*domain.Fields, *int64)) {

	var winner *int64
	divergent := false
	for _, r := range usable {
		v := get(r.fields)
		if v == nil {
			continue
		}
		if winner == nil {
			winner = v
			snap.Provenance[field] = r.name
			continue
		}
		if a.diverges(float64(*winner), float64(*v)) {
			divergent = true
		}
	}
	if winner == nil {
		return
	}
	cp := *winner
	set(&snap.Merged, &cp)
	if divergent {
		snap.Divergent = append(snap.Divergent, field)
	}
}

func (a *Aggregator) mergeBool(snap *domain.AggregatedSnapshot, usable []ranked, field domain.Field,
	get func(*domain.Fields) *bool, set func(*domain.Fields, *bool)) {

	var winner *bool
	divergent := false
	for _, r := range usable {
		v := get(r.fields)
		if v == nil {
			continue
		}
		if winner == nil {
			winner = v
			snap.Provenance[field] = r.name
			continue
		}
		if *v != *winner {
			divergent = true
		}
	}
	if winner == nil {
		return
	}
	cp := *winner
	set(&snap.Merged, &cp)
	if divergent {
		snap.Divergent = append(snap.Divergent, field)
	}
}

// diverges reports whether b disagrees with the winning value a beyond
// the configured relative tolerance. When the winner is zero, any
// non-zero answer counts as disagreement.
func (a *Aggregator) diverges(win, other float64) bool {
	if win == 0 {
		return other != 0
	}
	return math.Abs(other-win) > a.tolerance*math.Abs(win)
}

// sufficient reports whether the merged snapshot carries enough data to
// score: a price, a liquidity figure and at least one safety-relevant
// field.
func sufficient(f *domain.Fields) bool {
	if f.Price == nil || f.LiquidityUSD == nil {
		return false
	}
	return f.MintRevoked != nil || f.LPLocked != nil ||
		f.BuyTax != nil || f.SellTax != nil || f.Honeypot != nil
}
