package storage

import (
	"context"

	"tokenwatch/internal/domain"
)

// ScoreStore provides access to token_scores storage.
type ScoreStore interface {
	// Insert adds a new score record. Returns ErrDuplicateKey if a
	// record for (address, timestamp_ms) already exists.
	Insert(ctx context.Context, r *domain.ScoreRecord) error

	// GetLatest retrieves the most recent score for an address.
	// Returns ErrNotFound if the address was never scored.
	GetLatest(ctx context.Context, address string) (*domain.ScoreRecord, error)

	// GetByAddress retrieves all scores for an address, ordered by
	// timestamp ASC.
	GetByAddress(ctx context.Context, address string) ([]*domain.ScoreRecord, error)

	// GetByVerdict retrieves scores with the given verdict within
	// [start, end] (inclusive), ordered by timestamp ASC.
	GetByVerdict(ctx context.Context, verdict string, start, end int64) ([]*domain.ScoreRecord, error)
}

// SnapshotStore provides access to the append-only token_snapshots archive.
type SnapshotStore interface {
	// Insert archives one flattened snapshot row.
	Insert(ctx context.Context, r *domain.SnapshotRecord) error

	// GetByAddress retrieves archived rows for an address within
	// [start, end] (inclusive), ordered by timestamp ASC.
	GetByAddress(ctx context.Context, address string, start, end int64) ([]*domain.SnapshotRecord, error)
}
