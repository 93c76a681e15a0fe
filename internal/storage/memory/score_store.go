// Package memory provides in-memory store implementations. Used for
// one-shot analysis runs and tests; no persistence across restarts.
package memory

import (
	"context"
	"sort"
	"sync"

	"tokenwatch/internal/domain"
	"tokenwatch/internal/storage"
)

// scoreKey is the append-only uniqueness key for score records.
type scoreKey struct {
	address     string
	timestampMs int64
}

// ScoreStore is an in-memory implementation of storage.ScoreStore.
type ScoreStore struct {
	mu     sync.RWMutex
	data   map[scoreKey]*domain.ScoreRecord
	nextID int64
}

// NewScoreStore creates a new in-memory score store.
func NewScoreStore() *ScoreStore {
	return &ScoreStore{data: make(map[scoreKey]*domain.ScoreRecord)}
}

// Compile-time interface check.
var _ storage.ScoreStore = (*ScoreStore)(nil)

// Insert adds a new score record. Returns ErrDuplicateKey if the
// (address, timestamp_ms) key already exists.
func (s *ScoreStore) Insert(_ context.Context, r *domain.ScoreRecord) error {
	if r == nil || r.Address == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	k := scoreKey{r.Address, r.TimestampMs}
	if _, exists := s.data[k]; exists {
		return storage.ErrDuplicateKey
	}

	s.nextID++
	// Store a copy to prevent external mutation.
	cp := *r
	cp.ID = s.nextID
	s.data[k] = &cp
	r.ID = cp.ID
	return nil
}

// GetLatest retrieves the most recent score for an address.
func (s *ScoreStore) GetLatest(_ context.Context, address string) (*domain.ScoreRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *domain.ScoreRecord
	for k, r := range s.data {
		if k.address != address {
			continue
		}
		if latest == nil || r.TimestampMs > latest.TimestampMs {
			latest = r
		}
	}
	if latest == nil {
		return nil, storage.ErrNotFound
	}
	cp := *latest
	return &cp, nil
}

// GetByAddress retrieves all scores for an address, ordered by timestamp ASC.
func (s *ScoreStore) GetByAddress(_ context.Context, address string) ([]*domain.ScoreRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.ScoreRecord
	for k, r := range s.data {
		if k.address == address {
			cp := *r
			result = append(result, &cp)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].TimestampMs < result[j].TimestampMs
	})
	return result, nil
}

// GetByVerdict retrieves scores with the given verdict within [start, end].
func (s *ScoreStore) GetByVerdict(_ context.Context, verdict string, start, end int64) ([]*domain.ScoreRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.ScoreRecord
	for _, r := range s.data {
		if r.Verdict == verdict && r.TimestampMs >= start && r.TimestampMs <= end {
			cp := *r
			result = append(result, &cp)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].TimestampMs < result[j].TimestampMs
	})
	return result, nil
}
