package domain

// ScoreRecord is a finalized score persisted after scoring completes.
// Corresponds to the token_scores table in PostgreSQL.
type ScoreRecord struct {
	ID             int64   // BIGSERIAL primary key
	Address        string  // token mint address
	Chain          string  // network tag
	TimestampMs    int64   // snapshot timestamp (ms)
	SafetyScore    float64 // [0, 100]
	HypeScore      float64 // [0, 100]
	Verdict        string  // HOT | CAUTION | AVOID
	Confidence     float64 // [0, 1]
	DataSufficient bool
	CreatedAt      int64 // record creation timestamp (ms)
}

// SnapshotRecord is a flattened point-in-time snapshot row.
// Corresponds to the token_snapshots table in ClickHouse (append-only).
type SnapshotRecord struct {
	Address        string
	Chain          string
	TimestampMs    int64
	Price          *float64
	LiquidityUSD   *float64
	Volume24h      *float64
	MarketCapUSD   *float64
	HolderCount    *int64
	MintRevoked    *bool
	LPLocked       *bool
	BuyTax         *float64
	SellTax        *float64
	MentionCount   *int64
	Sentiment      *float64
	SourcesOK      int32
	DataSufficient bool
}

// SnapshotRecordFrom flattens a snapshot into its archive row.
func SnapshotRecordFrom(snap *AggregatedSnapshot) *SnapshotRecord {
	return &SnapshotRecord{
		Address:        snap.Token.Address,
		Chain:          snap.Token.Chain.String(),
		TimestampMs:    snap.TimestampMs,
		Price:          snap.Merged.Price,
		LiquidityUSD:   snap.Merged.LiquidityUSD,
		Volume24h:      snap.Merged.Volume24h,
		MarketCapUSD:   snap.Merged.MarketCapUSD,
		HolderCount:    snap.Merged.HolderCount,
		MintRevoked:    snap.Merged.MintRevoked,
		LPLocked:       snap.Merged.LPLocked,
		BuyTax:         snap.Merged.BuyTax,
		SellTax:        snap.Merged.SellTax,
		MentionCount:   snap.Merged.MentionCount,
		Sentiment:      snap.Merged.Sentiment,
		SourcesOK:      int32(snap.SourcesOK),
		DataSufficient: snap.DataSufficient,
	}
}
