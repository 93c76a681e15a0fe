package source

import (
	"context"
	"fmt"

	"tokenwatch/internal/config"
	"tokenwatch/internal/domain"
	"tokenwatch/internal/retry"
)

// SocialName is the registered name of the social-sentiment source.
const SocialName = "social"

// socialMentionsResponse mirrors GET /tokens/{address}/mentions.
type socialMentionsResponse struct {
	Address      string   `json:"address"`
	MentionCount int64    `json:"mention_count"` // last 24h
	Sentiment    *float64 `json:"sentiment"`     // polarity in [-1, 1]
	HolderGrowth *float64 `json:"holder_growth"` // fractional rate, optional
}

// NewSocial creates the social-sentiment client. It supplies mention
// counts and sentiment polarity only.
func NewSocial(cfg config.SourceConfig, doer HTTPDoer, opts ...PipelineOption) *Pipeline {
	if doer == nil {
		doer = defaultHTTPClient(cfg)
	}

	var headers map[string]string
	if cfg.APIKey != "" {
		headers = map[string]string{"Authorization": "Bearer " + cfg.APIKey}
	}

	fetch := func(ctx context.Context, token domain.TokenIdentifier) (*domain.Fields, error) {
		var resp socialMentionsResponse
		path := "/tokens/" + token.Address + "/mentions"
		if err := getJSON(ctx, doer, SocialName, cfg.BaseURL, path, nil, headers, &resp); err != nil {
			return nil, err
		}

		if resp.Sentiment != nil && (*resp.Sentiment < -1 || *resp.Sentiment > 1) {
			return nil, retry.Permanent(fmt.Errorf("%w: social: sentiment %v outside [-1, 1]", ErrMalformed, *resp.Sentiment))
		}

		fields := &domain.Fields{
			MentionCount: domain.Int64(resp.MentionCount),
		}
		if resp.Sentiment != nil {
			fields.Sentiment = resp.Sentiment
		}
		if resp.HolderGrowth != nil {
			fields.HolderGrowth = resp.HolderGrowth
		}
		return fields, nil
	}

	return NewPipeline(SocialName, cfg, fetch, opts...)
}
