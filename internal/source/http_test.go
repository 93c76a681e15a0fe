package source

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"tokenwatch/internal/retry"
)

func TestGetJSON_DecodesBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("X-API-KEY"); got != "k" {
			t.Errorf("missing api key header, got %q", got)
		}
		w.Write([]byte(`{"value": 42}`))
	}))
	defer srv.Close()

	var out struct {
		Value int `json:"value"`
	}
	err := getJSON(context.Background(), srv.Client(), "test", srv.URL, "/x", nil,
		map[string]string{"X-API-KEY": "k"}, &out)
	if err != nil {
		t.Fatalf("getJSON failed: %v", err)
	}
	if out.Value != 42 {
		t.Errorf("expected 42, got %d", out.Value)
	}
}

func TestGetJSON_ServerErrorRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	var out struct{}
	err := getJSON(context.Background(), srv.Client(), "test", srv.URL, "/x", nil, nil, &out)
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("500 must map to ErrUnavailable, got %v", err)
	}
	if retry.IsPermanent(err) {
		t.Error("500 must be retryable")
	}
}

func TestGetJSON_TooManyRequestsRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	var out struct{}
	err := getJSON(context.Background(), srv.Client(), "test", srv.URL, "/x", nil, nil, &out)
	if !errors.Is(err, ErrUnavailable) || retry.IsPermanent(err) {
		t.Errorf("429 must be retryable unavailability, got %v", err)
	}
}

func TestGetJSON_ClientErrorPermanent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	var out struct{}
	err := getJSON(context.Background(), srv.Client(), "test", srv.URL, "/x", nil, nil, &out)
	if !errors.Is(err, ErrRejected) {
		t.Errorf("401 must map to ErrRejected, got %v", err)
	}
	if !retry.IsPermanent(err) {
		t.Error("401 must not be retryable")
	}

	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.Code != http.StatusUnauthorized {
		t.Errorf("expected StatusError with code 401, got %v", err)
	}
}

func TestGetJSON_MalformedBodyPermanent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"value": `))
	}))
	defer srv.Close()

	var out struct{}
	err := getJSON(context.Background(), srv.Client(), "test", srv.URL, "/x", nil, nil, &out)
	if !errors.Is(err, ErrMalformed) {
		t.Errorf("bad JSON must map to ErrMalformed, got %v", err)
	}
	if !retry.IsPermanent(err) {
		t.Error("malformed response must not be retryable")
	}
}
