package source

import (
	"context"
	"strings"
	"time"

	"tokenwatch/internal/config"
	"tokenwatch/internal/domain"
)

// daysUntil converts a Unix-seconds unlock timestamp to whole days from now.
func daysUntil(unixSec int64) int64 {
	return int64(time.Until(time.Unix(unixSec, 0)).Hours() / 24)
}

// RugCheckName is the registered name of the contract-safety source.
const RugCheckName = "rugcheck"

// rugcheckReportResponse mirrors GET /tokens/{address}/report.
type rugcheckReportResponse struct {
	MintAuthority   *string `json:"mintAuthority"`   // null means revoked
	FreezeAuthority *string `json:"freezeAuthority"` // null means revoked
	TotalHolders    *int64  `json:"totalHolders"`
	Markets         []struct {
		LP struct {
			Locked       bool    `json:"locked"`
			LockedPct    float64 `json:"lpLockedPct"`
			UnlockDateTS int64   `json:"unlockDate"` // Unix seconds, 0 when unknown
		} `json:"lp"`
	} `json:"markets"`
	TransferFee struct {
		BuyPct  float64 `json:"buyPct"`  // percent
		SellPct float64 `json:"sellPct"` // percent
	} `json:"transferFee"`
	Risks []struct {
		Name  string `json:"name"`
		Level string `json:"level"`
	} `json:"risks"`
}

// NewRugCheck creates the RugCheck contract-safety client. It supplies mint
// authority, LP lock, transfer tax and anomaly flags.
func NewRugCheck(cfg config.SourceConfig, doer HTTPDoer, opts ...PipelineOption) *Pipeline {
	if doer == nil {
		doer = defaultHTTPClient(cfg)
	}

	var headers map[string]string
	if cfg.APIKey != "" {
		headers = map[string]string{"X-API-KEY": cfg.APIKey}
	}

	fetch := func(ctx context.Context, token domain.TokenIdentifier) (*domain.Fields, error) {
		var resp rugcheckReportResponse
		path := "/tokens/" + token.Address + "/report"
		if err := getJSON(ctx, doer, RugCheckName, cfg.BaseURL, path, nil, headers, &resp); err != nil {
			return nil, err
		}

		fields := &domain.Fields{
			MintRevoked: domain.Bool(resp.MintAuthority == nil),
			BuyTax:      domain.Float64(resp.TransferFee.BuyPct / 100),
			SellTax:     domain.Float64(resp.TransferFee.SellPct / 100),
		}
		if resp.TotalHolders != nil {
			fields.HolderCount = resp.TotalHolders
		}

		if len(resp.Markets) > 0 {
			lp := resp.Markets[0].LP
			fields.LPLocked = domain.Bool(lp.Locked)
			if lp.Locked && lp.UnlockDateTS > 0 {
				days := daysUntil(lp.UnlockDateTS)
				if days > 0 {
					fields.LPLockDays = domain.Int64(days)
				}
			}
		}

		honeypot := false
		proxy := false
		for _, risk := range resp.Risks {
			name := strings.ToLower(risk.Name)
			switch {
			case strings.Contains(name, "honeypot"):
				honeypot = true
			case strings.Contains(name, "proxy"), strings.Contains(name, "upgradeable"):
				proxy = true
			}
		}
		fields.Honeypot = domain.Bool(honeypot)
		fields.ProxyContract = domain.Bool(proxy)

		return fields, nil
	}

	return NewPipeline(RugCheckName, cfg, fetch, opts...)
}
