// Package source implements the uniform source-client contract and the
// provider adapters behind it. Each client maps one external provider's
// response to the common partial schema and runs every call through its
// own rate limiter, cache and retry stack.
package source

import (
	"context"

	"tokenwatch/internal/domain"
)

// Client fetches the partial schema one provider can answer for a token.
//
// Fetch never returns an error: on unrecoverable failure it returns a
// result with Status == StatusFailed and an error classification, so the
// aggregator can proceed with partial data.
type Client interface {
	// Name identifies the source, e.g. "birdeye".
	Name() string

	// Priority is the merge precedence for this source (1 = highest).
	Priority() int

	// Fetch retrieves the provider's partial answer for token.
	Fetch(ctx context.Context, token domain.TokenIdentifier) *domain.SourceResult
}
