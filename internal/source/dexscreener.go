package source

import (
	"context"
	"fmt"
	"strconv"

	"tokenwatch/internal/config"
	"tokenwatch/internal/domain"
	"tokenwatch/internal/retry"
)

// DexScreenerName is the registered name of the DexScreener liquidity source.
const DexScreenerName = "dexscreener"

// dexScreenerResponse mirrors GET /latest/dex/tokens/{address}.
type dexScreenerResponse struct {
	Pairs []struct {
		PriceUSD  string `json:"priceUsd"`
		Liquidity struct {
			USD float64 `json:"usd"`
		} `json:"liquidity"`
		Volume struct {
			H24 float64 `json:"h24"`
		} `json:"volume"`
		PriceChange struct {
			H24 float64 `json:"h24"`
		} `json:"priceChange"`
		MarketCap float64 `json:"marketCap"`
	} `json:"pairs"`
}

// NewDexScreener creates the DexScreener source client. It reports the
// deepest pair's price, liquidity and 24h volume; no API key required.
func NewDexScreener(cfg config.SourceConfig, doer HTTPDoer, opts ...PipelineOption) *Pipeline {
	if doer == nil {
		doer = defaultHTTPClient(cfg)
	}

	fetch := func(ctx context.Context, token domain.TokenIdentifier) (*domain.Fields, error) {
		var resp dexScreenerResponse
		path := "/latest/dex/tokens/" + token.Address
		if err := getJSON(ctx, doer, DexScreenerName, cfg.BaseURL, path, nil, nil, &resp); err != nil {
			return nil, err
		}

		if len(resp.Pairs) == 0 {
			return nil, retry.Permanent(fmt.Errorf("%w: dexscreener: no pairs for %s", ErrMalformed, token.Address))
		}

		// Use the pair with the deepest liquidity.
		best := resp.Pairs[0]
		for _, p := range resp.Pairs[1:] {
			if p.Liquidity.USD > best.Liquidity.USD {
				best = p
			}
		}

		price, err := strconv.ParseFloat(best.PriceUSD, 64)
		if err != nil {
			return nil, retry.Permanent(fmt.Errorf("%w: dexscreener: bad priceUsd %q", ErrMalformed, best.PriceUSD))
		}

		fields := &domain.Fields{
			Price:          domain.Float64(price),
			LiquidityUSD:   domain.Float64(best.Liquidity.USD),
			Volume24h:      domain.Float64(best.Volume.H24),
			PriceChange24h: domain.Float64(best.PriceChange.H24),
		}
		if best.MarketCap > 0 {
			fields.MarketCapUSD = domain.Float64(best.MarketCap)
		}
		return fields, nil
	}

	return NewPipeline(DexScreenerName, cfg, fetch, opts...)
}
