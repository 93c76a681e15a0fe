package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"tokenwatch/internal/domain"
	"tokenwatch/internal/storage"
)

// ScoreStore implements storage.ScoreStore using PostgreSQL.
type ScoreStore struct {
	pool *Pool
}

// NewScoreStore creates a new ScoreStore.
func NewScoreStore(pool *Pool) *ScoreStore {
	return &ScoreStore{pool: pool}
}

// Compile-time interface check.
var _ storage.ScoreStore = (*ScoreStore)(nil)

// Insert adds a new score record. Returns ErrDuplicateKey if a record
// for (address, timestamp_ms) already exists.
func (s *ScoreStore) Insert(ctx context.Context, r *domain.ScoreRecord) error {
	if r == nil || r.Address == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO token_scores (
			address, chain, timestamp_ms, safety_score, hype_score,
			verdict, confidence, data_sufficient, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`

	err := s.pool.QueryRow(ctx, query,
		r.Address,
		r.Chain,
		r.TimestampMs,
		r.SafetyScore,
		r.HypeScore,
		r.Verdict,
		r.Confidence,
		r.DataSufficient,
		r.CreatedAt,
	).Scan(&r.ID)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert score: %w", err)
	}
	return nil
}

// GetLatest retrieves the most recent score for an address.
func (s *ScoreStore) GetLatest(ctx context.Context, address string) (*domain.ScoreRecord, error) {
	query := `
		SELECT id, address, chain, timestamp_ms, safety_score, hype_score,
		       verdict, confidence, data_sufficient, created_at
		FROM token_scores
		WHERE address = $1
		ORDER BY timestamp_ms DESC
		LIMIT 1
	`

	row := s.pool.QueryRow(ctx, query, address)
	r, err := scanScore(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get latest score: %w", err)
	}
	return r, nil
}

// GetByAddress retrieves all scores for an address, ordered by timestamp ASC.
func (s *ScoreStore) GetByAddress(ctx context.Context, address string) ([]*domain.ScoreRecord, error) {
	query := `
		SELECT id, address, chain, timestamp_ms, safety_score, hype_score,
		       verdict, confidence, data_sufficient, created_at
		FROM token_scores
		WHERE address = $1
		ORDER BY timestamp_ms ASC, id ASC
	`

	rows, err := s.pool.Query(ctx, query, address)
	if err != nil {
		return nil, fmt.Errorf("get scores by address: %w", err)
	}
	defer rows.Close()

	return scanScores(rows)
}

// GetByVerdict retrieves scores with the given verdict within [start, end].
func (s *ScoreStore) GetByVerdict(ctx context.Context, verdict string, start, end int64) ([]*domain.ScoreRecord, error) {
	query := `
		SELECT id, address, chain, timestamp_ms, safety_score, hype_score,
		       verdict, confidence, data_sufficient, created_at
		FROM token_scores
		WHERE verdict = $1 AND timestamp_ms >= $2 AND timestamp_ms <= $3
		ORDER BY timestamp_ms ASC, id ASC
	`

	rows, err := s.pool.Query(ctx, query, verdict, start, end)
	if err != nil {
		return nil, fmt.Errorf("get scores by verdict: %w", err)
	}
	defer rows.Close()

	return scanScores(rows)
}

// scanScore scans a single row into a ScoreRecord.
func scanScore(row pgx.Row) (*domain.ScoreRecord, error) {
	var r domain.ScoreRecord
	err := row.Scan(
		&r.ID,
		&r.Address,
		&r.Chain,
		&r.TimestampMs,
		&r.SafetyScore,
		&r.HypeScore,
		&r.Verdict,
		&r.Confidence,
		&r.DataSufficient,
		&r.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// scanScores scans multiple rows into a slice of ScoreRecord.
func scanScores(rows pgx.Rows) ([]*domain.ScoreRecord, error) {
	var records []*domain.ScoreRecord

	for rows.Next() {
		r, err := scanScore(rows)
		if err != nil {
			return nil, fmt.Errorf("scan score row: %w", err)
		}
		records = append(records, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate score rows: %w", err)
	}

	return records, nil
}
