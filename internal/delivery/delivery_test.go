package delivery

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"tokenwatch/internal/config"
	"tokenwatch/internal/domain"
)

func testMessage() Message {
	return Message{
		Token: domain.TokenIdentifier{
			Address: "So11111111111111111111111111111111111111112",
			Chain:   domain.ChainSolana,
			Symbol:  "WSOL",
		},
		AlertType: domain.AlertNewDetection,
		Verdict:   domain.VerdictCaution,
		Text:      "🚨 NEW TOKEN DETECTED: WSOL",
		CreatedAt: 1724457600000,
	}
}

func testDeliveryConfig(url string) config.DeliveryConfig {
	return config.DeliveryConfig{
		WebhookURL:     url,
		MaxCalls:       100,
		WindowSeconds:  60,
		MaxRetries:     2,
		TimeoutSeconds: 5,
	}
}

func TestWebhook_DeliversJSON(t *testing.T) {
	var received Message
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("expected JSON content type, got %q", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	w, err := NewWebhook(testDeliveryConfig(srv.URL), WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatalf("NewWebhook: %v", err)
	}

	if err := w.Deliver(context.Background(), testMessage()); err != nil {
		t.Fatalf("Deliver failed: %v", err)
	}
	if received.Token.Address != testMessage().Token.Address {
		t.Errorf("wrong token delivered: %s", received.Token.Address)
	}
	if received.AlertType != domain.AlertNewDetection {
		t.Errorf("wrong alert type delivered: %s", received.AlertType)
	}
}

func TestWebhook_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	w, err := NewWebhook(testDeliveryConfig(srv.URL), WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatalf("NewWebhook: %v", err)
	}

	if err := w.Deliver(context.Background(), testMessage()); err != nil {
		t.Fatalf("Deliver must succeed after retries, got %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("expected 3 attempts, got %d", calls.Load())
	}
}

func TestWebhook_ClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	w, err := NewWebhook(testDeliveryConfig(srv.URL), WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatalf("NewWebhook: %v", err)
	}

	err = w.Deliver(context.Background(), testMessage())
	if !errors.Is(err, ErrRejected) {
		t.Errorf("400 must surface ErrRejected, got %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("400 must not be retried, got %d attempts", calls.Load())
	}
}

func TestNewWebhook_RequiresURL(t *testing.T) {
	if _, err := NewWebhook(config.DeliveryConfig{}); err == nil {
		t.Error("empty webhook URL must be rejected")
	}
}

func TestLogDeliverer_NeverFails(t *testing.T) {
	d := NewLogDeliverer(nil, nil)
	if err := d.Deliver(context.Background(), testMessage()); err != nil {
		t.Errorf("log delivery failed: %v", err)
	}
}
