package clickhouse

import (
	"context"
	"fmt"

	"tokenwatch/internal/domain"
	"tokenwatch/internal/storage"
)

// SnapshotStore implements storage.SnapshotStore using ClickHouse.
// Rows are append-only; the MergeTree engine does not enforce
// uniqueness, matching the archive semantics.
type SnapshotStore struct {
	conn *Conn
}

// NewSnapshotStore creates a new SnapshotStore.
func NewSnapshotStore(conn *Conn) *SnapshotStore {
	return &SnapshotStore{conn: conn}
}

// Compile-time interface check.
var _ storage.SnapshotStore = (*SnapshotStore)(nil)

// Insert archives one flattened snapshot row.
func (s *SnapshotStore) Insert(ctx context.Context, r *domain.SnapshotRecord) error {
	if r == nil || r.Address == "" {
		return storage.ErrInvalidInput
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO token_snapshots (
			address, chain, timestamp_ms, price, liquidity_usd, volume_24h,
			market_cap_usd, holder_count, mint_revoked, lp_locked, buy_tax,
			sell_tax, mention_count, sentiment, sources_ok, data_sufficient
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	err = batch.Append(
		r.Address,
		r.Chain,
		uint64(r.TimestampMs),
		r.Price,
		r.LiquidityUSD,
		r.Volume24h,
		r.MarketCapUSD,
		r.HolderCount,
		boolPtrToUint8(r.MintRevoked),
		boolPtrToUint8(r.LPLocked),
		r.BuyTax,
		r.SellTax,
		r.MentionCount,
		r.Sentiment,
		uint32(r.SourcesOK),
		boolToUint8(r.DataSufficient),
	)
	if err != nil {
		return fmt.Errorf("append to batch: %w", err)
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// GetByAddress retrieves archived rows for an address within [start, end],
// ordered by timestamp ASC.
func (s *SnapshotStore) GetByAddress(ctx context.Context, address string, start, end int64) ([]*domain.SnapshotRecord, error) {
	query := `
		SELECT address, chain, timestamp_ms, price, liquidity_usd, volume_24h,
		       market_cap_usd, holder_count, mint_revoked, lp_locked, buy_tax,
		       sell_tax, mention_count, sentiment, sources_ok, data_sufficient
		FROM token_snapshots
		WHERE address = ? AND timestamp_ms >= ? AND timestamp_ms <= ?
		ORDER BY timestamp_ms ASC
	`

	rows, err := s.conn.Query(ctx, query, address, uint64(start), uint64(end))
	if err != nil {
		return nil, fmt.Errorf("query snapshots by address: %w", err)
	}
	defer rows.Close()

	var records []*domain.SnapshotRecord
	for rows.Next() {
		var r domain.SnapshotRecord
		var timestampMs uint64
		var mintRevoked, lpLocked *uint8
		var sourcesOK uint32
		var sufficient uint8

		err := rows.Scan(
			&r.Address, &r.Chain, &timestampMs, &r.Price, &r.LiquidityUSD,
			&r.Volume24h, &r.MarketCapUSD, &r.HolderCount, &mintRevoked,
			&lpLocked, &r.BuyTax, &r.SellTax, &r.MentionCount, &r.Sentiment,
			&sourcesOK, &sufficient,
		)
		if err != nil {
			return nil, fmt.Errorf("scan snapshot row: %w", err)
		}

		r.TimestampMs = int64(timestampMs)
		r.MintRevoked = uint8PtrToBool(mintRevoked)
		r.LPLocked = uint8PtrToBool(lpLocked)
		r.SourcesOK = int32(sourcesOK)
		r.DataSufficient = sufficient != 0
		records = append(records, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshot rows: %w", err)
	}

	return records, nil
}

func boolToUint8(v bool) uint8 {
	if v {
		return 1
	}
	return 0
}

func boolPtrToUint8(v *bool) *uint8 {
	if v == nil {
		return nil
	}
	u := boolToUint8(*v)
	return &u
}

func uint8PtrToBool(v *uint8) *bool {
	if v == nil {
		return nil
	}
	b := *v != 0
	return &b
}
