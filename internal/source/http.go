package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"tokenwatch/internal/retry"
)

// DefaultHTTPTimeout bounds a single HTTP round trip; per-fetch deadlines
// come from the pipeline context on top of this.
const DefaultHTTPTimeout = 30 * time.Second

// HTTPDoer abstracts *http.Client for tests.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// getJSON performs a GET against baseURL+path and decodes the body into v.
//
// Error mapping:
//   - network errors and 5xx/429 responses are returned as-is (retryable),
//   - other 4xx responses are permanent and wrap ErrRejected,
//   - undecodable bodies are permanent and wrap ErrMalformed.
func getJSON(ctx context.Context, doer HTTPDoer, source, baseURL, path string, query url.Values, headers map[string]string, v any) error {
	u := baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return retry.Permanent(fmt.Errorf("%w: build request: %v", ErrRejected, err))
	}
	req.Header.Set("Accept", "application/json")
	for k, val := range headers {
		req.Header.Set(k, val)
	}

	resp, err := doer.Do(req)
	if err != nil {
		return fmt.Errorf("%s: http request: %w", source, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%s: read response: %w", source, err)
	}

	if resp.StatusCode != http.StatusOK {
		statusErr := &StatusError{Source: source, Code: resp.StatusCode}
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return fmt.Errorf("%w: %w", ErrUnavailable, statusErr)
		}
		return retry.Permanent(fmt.Errorf("%w: %w", ErrRejected, statusErr))
	}

	if err := json.Unmarshal(body, v); err != nil {
		return retry.Permanent(fmt.Errorf("%w: %s: %v", ErrMalformed, source, err))
	}
	return nil
}
