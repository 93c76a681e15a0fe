package memory

import (
	"context"
	"sort"
	"sync"

	"tokenwatch/internal/domain"
	"tokenwatch/internal/storage"
)

// SnapshotStore is an in-memory implementation of storage.SnapshotStore.
// Append-only; duplicates are allowed, matching the ClickHouse archive.
type SnapshotStore struct {
	mu   sync.RWMutex
	rows []*domain.SnapshotRecord
}

// NewSnapshotStore creates a new in-memory snapshot archive.
func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{}
}

// Compile-time interface check.
var _ storage.SnapshotStore = (*SnapshotStore)(nil)

// Insert archives one flattened snapshot row.
func (s *SnapshotStore) Insert(_ context.Context, r *domain.SnapshotRecord) error {
	if r == nil || r.Address == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *r
	s.rows = append(s.rows, &cp)
	return nil
}

// GetByAddress retrieves archived rows for an address within [start, end],
// ordered by timestamp ASC.
func (s *SnapshotStore) GetByAddress(_ context.Context, address string, start, end int64) ([]*domain.SnapshotRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.SnapshotRecord
	for _, r := range s.rows {
		if r.Address == address && r.TimestampMs >= start && r.TimestampMs <= end {
			cp := *r
			result = append(result, &cp)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].TimestampMs < result[j].TimestampMs
	})
	return result, nil
}
