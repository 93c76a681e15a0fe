// Package delivery pushes formatted alerts to an external sink. Delivery
// quota and retry policy are independent of source-fetch limits.
package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"tokenwatch/internal/config"
	"tokenwatch/internal/domain"
	"tokenwatch/internal/observability"
	"tokenwatch/internal/ratelimit"
	"tokenwatch/internal/retry"
)

// ErrRejected indicates the sink refused the message; retrying cannot help.
var ErrRejected = errors.New("delivery: rejected by sink")

// Message is one alert ready to be delivered.
type Message struct {
	Token     domain.TokenIdentifier `json:"token"`
	AlertType domain.AlertType       `json:"alert_type"`
	Verdict   domain.Verdict         `json:"verdict"`
	Text      string                 `json:"text"`
	CreatedAt int64                  `json:"created_at"` // Unix milliseconds
}

// Deliverer pushes one message to a sink.
type Deliverer interface {
	Deliver(ctx context.Context, msg Message) error
}

// Webhook delivers messages as JSON POSTs with its own quota and retry
// policy.
type Webhook struct {
	url      string
	client   *http.Client
	limiter  *ratelimit.Limiter
	executor *retry.Executor
	metrics  *observability.Metrics
	logger   *log.Logger
}

// Option configures a Webhook.
type Option func(*Webhook)

// WithMetrics attaches observability metrics.
func WithMetrics(m *observability.Metrics) Option {
	return func(w *Webhook) { w.metrics = m }
}

// WithLogger sets the deliverer logger.
func WithLogger(l *log.Logger) Option {
	return func(w *Webhook) { w.logger = l }
}

// WithHTTPClient injects the HTTP client (tests).
func WithHTTPClient(c *http.Client) Option {
	return func(w *Webhook) { w.client = c }
}

// NewWebhook builds a webhook deliverer from config.
func NewWebhook(cfg config.DeliveryConfig, opts ...Option) (*Webhook, error) {
	if cfg.WebhookURL == "" {
		return nil, fmt.Errorf("delivery: webhook_url is required")
	}

	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	w := &Webhook{
		url:    cfg.WebhookURL,
		client: &http.Client{Timeout: timeout},
		limiter: ratelimit.New("delivery", cfg.MaxCalls,
			time.Duration(cfg.WindowSeconds)*time.Second),
		executor: retry.New(retry.WithMaxRetries(cfg.MaxRetries)),
		logger:   log.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Deliver posts the message, waiting for quota and retrying transient
// failures.
func (w *Webhook) Deliver(ctx context.Context, msg Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("delivery: marshal message: %w", err)
	}

	_, err = w.executor.Do(ctx, func(ctx context.Context) error {
		if err := w.limiter.Acquire(ctx); err != nil {
			return err
		}
		return w.post(ctx, payload)
	})

	if err != nil {
		w.metrics.ObserveDelivery("failed")
		w.logger.Printf("[delivery] webhook delivery for %s failed: %v", msg.Token.Address, err)
		return err
	}
	w.metrics.ObserveDelivery("delivered")
	return nil
}

func (w *Webhook) post(ctx context.Context, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(payload))
	if err != nil {
		return retry.Permanent(fmt.Errorf("delivery: build request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("delivery: post: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return fmt.Errorf("delivery: sink returned %d", resp.StatusCode)
	default:
		return retry.Permanent(fmt.Errorf("%w: status %d", ErrRejected, resp.StatusCode))
	}
}

// LogDeliverer writes alerts to the process log. Used when no webhook is
// configured.
type LogDeliverer struct {
	logger  *log.Logger
	metrics *observability.Metrics
}

// NewLogDeliverer builds a log-backed deliverer.
func NewLogDeliverer(logger *log.Logger, metrics *observability.Metrics) *LogDeliverer {
	if logger == nil {
		logger = log.Default()
	}
	return &LogDeliverer{logger: logger, metrics: metrics}
}

// Deliver logs the alert text.
func (d *LogDeliverer) Deliver(_ context.Context, msg Message) error {
	d.logger.Printf("[delivery] %s %s %s\n%s", msg.AlertType, msg.Verdict, msg.Token.Address, msg.Text)
	d.metrics.ObserveDelivery("logged")
	return nil
}
