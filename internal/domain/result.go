package domain

// SourceStatus is the outcome class of one source fetch.
type SourceStatus string

const (
	StatusOK       SourceStatus = "ok"
	StatusDegraded SourceStatus = "degraded" // succeeded after retries
	StatusFailed   SourceStatus = "failed"
)

// String returns the string representation of SourceStatus.
func (s SourceStatus) String() string {
	return string(s)
}

// IsValid checks if the status is a valid value.
func (s SourceStatus) IsValid() bool {
	return s == StatusOK || s == StatusDegraded || s == StatusFailed
}

// Field names a merged snapshot field for provenance and divergence tracking.
type Field string

const (
	FieldPrice          Field = "price"
	FieldLiquidityUSD   Field = "liquidity_usd"
	FieldVolume24h      Field = "volume_24h"
	FieldMarketCapUSD   Field = "market_cap_usd"
	FieldPriceChange24h Field = "price_change_24h"
	FieldHolderCount    Field = "holder_count"
	FieldHolderGrowth   Field = "holder_growth"
	FieldMintRevoked    Field = "mint_revoked"
	FieldLPLocked       Field = "lp_locked"
	FieldLPLockDays     Field = "lp_lock_days"
	FieldBuyTax         Field = "buy_tax"
	FieldSellTax        Field = "sell_tax"
	FieldHoneypot       Field = "honeypot"
	FieldProxyContract  Field = "proxy_contract"
	FieldMentionCount   Field = "mention_count"
	FieldSentiment      Field = "sentiment"
)

// Fields is the common partial schema a provider can answer.
// Nil means the provider did not supply the field; absent values are never
// defaulted to zero.
type Fields struct {
	Price          *float64 // USD
	LiquidityUSD   *float64
	Volume24h      *float64 // USD
	MarketCapUSD   *float64
	PriceChange24h *float64 // percent, signed
	HolderCount    *int64
	HolderGrowth   *float64 // fractional rate over 24h, signed
	MintRevoked    *bool
	LPLocked       *bool
	LPLockDays     *int64
	BuyTax         *float64 // fraction, 0.02 == 2%
	SellTax        *float64
	Honeypot       *bool
	ProxyContract  *bool
	MentionCount   *int64
	Sentiment      *float64 // polarity in [-1, 1]
}

// Clone returns a deep copy: every set pointer points at fresh storage,
// so writes through the copy never reach the original.
func (f *Fields) Clone() Fields {
	cp := Fields{}
	if f.Price != nil {
		cp.Price = Float64(*f.Price)
	}
	if f.LiquidityUSD != nil {
		cp.LiquidityUSD = Float64(*f.LiquidityUSD)
	}
	if f.Volume24h != nil {
		cp.Volume24h = Float64(*f.Volume24h)
	}
	if f.MarketCapUSD != nil {
		cp.MarketCapUSD = Float64(*f.MarketCapUSD)
	}
	if f.PriceChange24h != nil {
		cp.PriceChange24h = Float64(*f.PriceChange24h)
	}
	if f.HolderCount != nil {
		cp.HolderCount = Int64(*f.HolderCount)
	}
	if f.HolderGrowth != nil {
		cp.HolderGrowth = Float64(*f.HolderGrowth)
	}
	if f.MintRevoked != nil {
		cp.MintRevoked = Bool(*f.MintRevoked)
	}
	if f.LPLocked != nil {
		cp.LPLocked = Bool(*f.LPLocked)
	}
	if f.LPLockDays != nil {
		cp.LPLockDays = Int64(*f.LPLockDays)
	}
	if f.BuyTax != nil {
		cp.BuyTax = Float64(*f.BuyTax)
	}
	if f.SellTax != nil {
		cp.SellTax = Float64(*f.SellTax)
	}
	if f.Honeypot != nil {
		cp.Honeypot = Bool(*f.Honeypot)
	}
	if f.ProxyContract != nil {
		cp.ProxyContract = Bool(*f.ProxyContract)
	}
	if f.MentionCount != nil {
		cp.MentionCount = Int64(*f.MentionCount)
	}
	if f.Sentiment != nil {
		cp.Sentiment = Float64(*f.Sentiment)
	}
	return cp
}

// IsEmpty reports whether no field was supplied at all.
func (f *Fields) IsEmpty() bool {
	return f.Price == nil && f.LiquidityUSD == nil && f.Volume24h == nil &&
		f.MarketCapUSD == nil && f.PriceChange24h == nil && f.HolderCount == nil &&
		f.HolderGrowth == nil && f.MintRevoked == nil && f.LPLocked == nil &&
		f.LPLockDays == nil && f.BuyTax == nil && f.SellTax == nil &&
		f.Honeypot == nil && f.ProxyContract == nil && f.MentionCount == nil &&
		f.Sentiment == nil
}

// SourceResult is one provider's partial answer for a token.
// Owned by the aggregator for the lifetime of a single request.
type SourceResult struct {
	Source    string       // source client name
	Status    SourceStatus // ok | degraded | failed
	FetchedAt int64        // Unix timestamp in milliseconds
	Error     string       // failure classification when Status == failed
	Retries   int          // retry attempts spent on this fetch

	Fields
}

// Usable reports whether the result may contribute fields to a merge.
// A failed result contributes nothing regardless of what it carries.
func (r *SourceResult) Usable() bool {
	return r != nil && r.Status != StatusFailed && !r.Fields.IsEmpty()
}

// AggregatedSnapshot is the merged, provenance-tagged view of all source
// results for one token at one instant. Immutable once built.
type AggregatedSnapshot struct {
	Token       TokenIdentifier
	TimestampMs int64                    // Unix timestamp in milliseconds
	Sources     map[string]*SourceResult // keyed by source name
	Merged      Fields                   // priority-merged fields
	Provenance  map[Field]string         // which source supplied each merged value
	Divergent   []Field                  // fields where sources disagreed beyond tolerance

	// DataSufficient is true only if price, liquidity and at least one
	// safety-relevant field were obtained from any source.
	DataSufficient bool

	// SourcesOK counts sources that returned usable data.
	SourcesOK int
}

// Float64 returns a pointer to v. Convenience for building Fields.
func Float64(v float64) *float64 { return &v }

// Int64 returns a pointer to v.
func Int64(v int64) *int64 { return &v }

// Bool returns a pointer to v.
func Bool(v bool) *bool { return &v }
