// Package engine wires the analysis pipeline end to end.
// Flow: aggregate → score → persist → format → deliver
package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"tokenwatch/internal/aggregator"
	"tokenwatch/internal/alert"
	"tokenwatch/internal/delivery"
	"tokenwatch/internal/domain"
	"tokenwatch/internal/observability"
	"tokenwatch/internal/scorer"
	"tokenwatch/internal/storage"
)

// Engine coordinates one analysis run per token.
type Engine struct {
	aggregator *aggregator.Aggregator
	scorer     *scorer.Scorer
	formatter  *alert.Formatter
	deliverer  delivery.Deliverer

	scoreStore    storage.ScoreStore
	snapshotStore storage.SnapshotStore

	metrics *observability.Metrics
	logger  *log.Logger
}

// Options for creating an Engine.
type Options struct {
	// Required pipeline stages
	Aggregator *aggregator.Aggregator
	Scorer     *scorer.Scorer
	Formatter  *alert.Formatter

	// Optional collaborators
	Deliverer     delivery.Deliverer
	ScoreStore    storage.ScoreStore
	SnapshotStore storage.SnapshotStore
	Metrics       *observability.Metrics
	Logger        *log.Logger
}

// New creates an Engine. The aggregator, scorer and formatter are
// required; everything else degrades gracefully when absent.
func New(opts Options) (*Engine, error) {
	if opts.Aggregator == nil {
		return nil, errors.New("engine: aggregator is required")
	}
	if opts.Scorer == nil {
		return nil, errors.New("engine: scorer is required")
	}
	if opts.Formatter == nil {
		return nil, errors.New("engine: formatter is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &Engine{
		aggregator:    opts.Aggregator,
		scorer:        opts.Scorer,
		formatter:     opts.Formatter,
		deliverer:     opts.Deliverer,
		scoreStore:    opts.ScoreStore,
		snapshotStore: opts.SnapshotStore,
		metrics:       opts.Metrics,
		logger:        logger,
	}, nil
}

// Analysis is the full outcome of one engine run for a token.
type Analysis struct {
	Snapshot *domain.AggregatedSnapshot
	Score    *domain.ScoreResult
	Message  string
}

// Analyze runs the pipeline for one token. Persistence and delivery
// failures are logged, not fatal: the analysis result is still returned.
func (e *Engine) Analyze(ctx context.Context, token domain.TokenIdentifier, typ domain.AlertType) (*Analysis, error) {
	snap, err := e.aggregator.Aggregate(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("aggregate %s: %w", token.Address, err)
	}

	score := e.scorer.Score(snap)
	e.metrics.ObserveVerdict(score.Verdict.String())
	e.logger.Printf("[engine] %s scored: safety=%.1f hype=%.1f verdict=%s sources_ok=%d",
		token.Address, score.SafetyScore, score.HypeScore, score.Verdict, snap.SourcesOK)

	e.persist(ctx, snap, score)

	msg, err := e.formatter.Format(snap, score, typ)
	if err != nil {
		return nil, fmt.Errorf("format alert for %s: %w", token.Address, err)
	}
	e.metrics.ObserveAlert(typ.String())

	if e.deliverer != nil {
		dm := delivery.Message{
			Token:     token,
			AlertType: typ,
			Verdict:   score.Verdict,
			Text:      msg,
			CreatedAt: time.Now().UnixMilli(),
		}
		if err := e.deliverer.Deliver(ctx, dm); err != nil {
			e.logger.Printf("[engine] delivery for %s failed: %v", token.Address, err)
		}
	}

	return &Analysis{Snapshot: snap, Score: score, Message: msg}, nil
}

// persist archives the snapshot and records the score. Both stores are
// optional and both failures are log-only.
func (e *Engine) persist(ctx context.Context, snap *domain.AggregatedSnapshot, score *domain.ScoreResult) {
	if e.snapshotStore != nil {
		if err := e.snapshotStore.Insert(ctx, domain.SnapshotRecordFrom(snap)); err != nil {
			e.logger.Printf("[engine] archive snapshot for %s failed: %v", snap.Token.Address, err)
		}
	}

	if e.scoreStore != nil {
		rec := &domain.ScoreRecord{
			Address:        snap.Token.Address,
			Chain:          snap.Token.Chain.String(),
			TimestampMs:    snap.TimestampMs,
			SafetyScore:    score.SafetyScore,
			HypeScore:      score.HypeScore,
			Verdict:        score.Verdict.String(),
			Confidence:     score.Confidence,
			DataSufficient: snap.DataSufficient,
			CreatedAt:      time.Now().UnixMilli(),
		}
		if err := e.scoreStore.Insert(ctx, rec); err != nil && !errors.Is(err, storage.ErrDuplicateKey) {
			e.logger.Printf("[engine] record score for %s failed: %v", snap.Token.Address, err)
		}
	}
}

// Run consumes detections until the channel closes or the context ends.
// Every token is treated as a new detection.
func (e *Engine) Run(ctx context.Context, tokens <-chan domain.TokenIdentifier) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case token, ok := <-tokens:
			if !ok {
				return nil
			}
			if _, err := e.Analyze(ctx, token, domain.AlertNewDetection); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				e.logger.Printf("[engine] analysis of %s failed: %v", token.Address, err)
			}
		}
	}
}
