package source

import (
	"context"
	"net/url"

	"tokenwatch/internal/config"
	"tokenwatch/internal/domain"
)

// BirdeyeName is the registered name of the Birdeye market-data source.
const BirdeyeName = "birdeye"

// birdeyePriceResponse mirrors GET /defi/token_overview.
type birdeyePriceResponse struct {
	Success bool `json:"success"`
	Data    struct {
		Price          float64  `json:"price"`
		Liquidity      float64  `json:"liquidity"`
		Volume24h      float64  `json:"v24hUSD"`
		MarketCap      float64  `json:"mc"`
		PriceChange24h float64  `json:"priceChange24hPercent"`
		Holders        *int64   `json:"holder"`
		HolderChange   *float64 `json:"holderChange24hPercent"`
	} `json:"data"`
}

// NewBirdeye creates the Birdeye source client. Birdeye supplies price,
// liquidity, volume, market cap and holder figures.
func NewBirdeye(cfg config.SourceConfig, doer HTTPDoer, opts ...PipelineOption) *Pipeline {
	if doer == nil {
		doer = defaultHTTPClient(cfg)
	}

	headers := map[string]string{"x-chain": "solana"}
	if cfg.APIKey != "" {
		headers["X-API-KEY"] = cfg.APIKey
	}

	fetch := func(ctx context.Context, token domain.TokenIdentifier) (*domain.Fields, error) {
		query := url.Values{"address": {token.Address}}

		var resp birdeyePriceResponse
		if err := getJSON(ctx, doer, BirdeyeName, cfg.BaseURL, "/defi/token_overview", query, headers, &resp); err != nil {
			return nil, err
		}

		d := resp.Data
		fields := &domain.Fields{
			Price:          domain.Float64(d.Price),
			LiquidityUSD:   domain.Float64(d.Liquidity),
			Volume24h:      domain.Float64(d.Volume24h),
			MarketCapUSD:   domain.Float64(d.MarketCap),
			PriceChange24h: domain.Float64(d.PriceChange24h),
		}
		if d.Holders != nil {
			fields.HolderCount = d.Holders
		}
		if d.HolderChange != nil {
			// Percent change to fractional growth rate.
			fields.HolderGrowth = domain.Float64(*d.HolderChange / 100)
		}
		return fields, nil
	}

	return NewPipeline(BirdeyeName, cfg, fetch, opts...)
}
