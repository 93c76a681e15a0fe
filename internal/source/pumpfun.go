package source

import (
	"context"

	"tokenwatch/internal/config"
	"tokenwatch/internal/domain"
)

// PumpFunName is the registered name of the launch-platform source.
const PumpFunName = "pumpfun"

// pumpfunCoinResponse mirrors GET /coins/{address}.
type pumpfunCoinResponse struct {
	Mint           string   `json:"mint"`
	UsdMarketCap   float64  `json:"usd_market_cap"`
	Complete       bool     `json:"complete"` // bonding curve graduated
	VirtualSolRes  float64  `json:"virtual_sol_reserves"`
	KingOfTheHill  *int64   `json:"king_of_the_hill_timestamp"`
	ReplyCount     int64    `json:"reply_count"`
	HolderCount    *int64   `json:"holder_count"`
	PriceUSD       *float64 `json:"price_usd"`
	Volume24hUSD   *float64 `json:"volume_24h_usd"`
	LiquidityUSD   *float64 `json:"liquidity_usd"`
}

// NewPumpFun creates the Pump.fun launch-platform client. It supplies
// market cap, holder count and launch-side activity (reply counts feed
// the mention signal for pre-graduation tokens).
func NewPumpFun(cfg config.SourceConfig, doer HTTPDoer, opts ...PipelineOption) *Pipeline {
	if doer == nil {
		doer = defaultHTTPClient(cfg)
	}

	fetch := func(ctx context.Context, token domain.TokenIdentifier) (*domain.Fields, error) {
		var resp pumpfunCoinResponse
		path := "/coins/" + token.Address
		if err := getJSON(ctx, doer, PumpFunName, cfg.BaseURL, path, nil, nil, &resp); err != nil {
			return nil, err
		}

		fields := &domain.Fields{}
		if resp.UsdMarketCap > 0 {
			fields.MarketCapUSD = domain.Float64(resp.UsdMarketCap)
		}
		if resp.PriceUSD != nil {
			fields.Price = resp.PriceUSD
		}
		if resp.Volume24hUSD != nil {
			fields.Volume24h = resp.Volume24hUSD
		}
		if resp.LiquidityUSD != nil {
			fields.LiquidityUSD = resp.LiquidityUSD
		}
		if resp.HolderCount != nil {
			fields.HolderCount = resp.HolderCount
		}
		if resp.ReplyCount > 0 {
			fields.MentionCount = domain.Int64(resp.ReplyCount)
		}
		return fields, nil
	}

	return NewPipeline(PumpFunName, cfg, fetch, opts...)
}
