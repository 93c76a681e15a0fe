package memory

import (
	"context"
	"errors"
	"testing"

	"tokenwatch/internal/domain"
	"tokenwatch/internal/storage"
)

func snapshotRow(ts int64) *domain.SnapshotRecord {
	return &domain.SnapshotRecord{
		Address:        testAddress,
		Chain:          "solana",
		TimestampMs:    ts,
		Price:          domain.Float64(0.002),
		LiquidityUSD:   domain.Float64(80_000),
		SourcesOK:      3,
		DataSufficient: true,
	}
}

func TestSnapshotStore_InsertAndQueryRange(t *testing.T) {
	s := NewSnapshotStore()
	ctx := context.Background()

	for _, ts := range []int64{300, 100, 200, 400} {
		if err := s.Insert(ctx, snapshotRow(ts)); err != nil {
			t.Fatalf("Insert(%d): %v", ts, err)
		}
	}

	rows, err := s.GetByAddress(ctx, testAddress, 100, 300)
	if err != nil {
		t.Fatalf("GetByAddress: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows in range, got %d", len(rows))
	}
	for i, want := range []int64{100, 200, 300} {
		if rows[i].TimestampMs != want {
			t.Errorf("row %d: expected ts %d, got %d", i, want, rows[i].TimestampMs)
		}
	}
}

func TestSnapshotStore_AppendOnlyAllowsRepeats(t *testing.T) {
	s := NewSnapshotStore()
	ctx := context.Background()

	// Same timestamp twice: the archive keeps both rows.
	if err := s.Insert(ctx, snapshotRow(100)); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	if err := s.Insert(ctx, snapshotRow(100)); err != nil {
		t.Fatalf("repeat insert: %v", err)
	}

	rows, _ := s.GetByAddress(ctx, testAddress, 0, 1000)
	if len(rows) != 2 {
		t.Errorf("expected 2 archived rows, got %d", len(rows))
	}
}

func TestSnapshotStore_InvalidInput(t *testing.T) {
	s := NewSnapshotStore()
	if err := s.Insert(context.Background(), &domain.SnapshotRecord{}); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestSnapshotStore_PreservesOptionalFields(t *testing.T) {
	s := NewSnapshotStore()
	ctx := context.Background()

	row := snapshotRow(100)
	row.MintRevoked = domain.Bool(true)
	row.HolderCount = nil
	s.Insert(ctx, row)

	rows, _ := s.GetByAddress(ctx, testAddress, 0, 1000)
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	if rows[0].MintRevoked == nil || !*rows[0].MintRevoked {
		t.Error("mint_revoked flag lost")
	}
	if rows[0].HolderCount != nil {
		t.Error("absent holder_count must stay nil")
	}
}
