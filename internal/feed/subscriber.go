// Package feed subscribes to an external detection service over WebSocket
// and turns its events into validated token identifiers.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"tokenwatch/internal/config"
	"tokenwatch/internal/domain"
	"tokenwatch/internal/observability"
)

// Detection is one event emitted by the external detector.
type Detection struct {
	Address    string `json:"address"`
	Chain      string `json:"chain"`
	Symbol     string `json:"symbol"`
	DetectedAt int64  `json:"detected_at"` // Unix milliseconds
}

// Subscriber maintains a WebSocket connection to the detection feed and
// delivers validated tokens on Tokens(). It reconnects with exponential
// backoff and never drops events while the consumer keeps up.
type Subscriber struct {
	endpoint          string
	reconnectDelay    time.Duration
	maxReconnectDelay time.Duration

	conn   *websocket.Conn
	connMu sync.Mutex
	closed atomic.Bool

	tokens chan domain.TokenIdentifier
	done   chan struct{}
	wg     sync.WaitGroup

	metrics *observability.Metrics
	logger  *log.Logger
}

// Option configures a Subscriber.
type Option func(*Subscriber)

// WithMetrics attaches observability metrics.
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Subscriber) { s.metrics = m }
}

// WithLogger sets the subscriber logger.
func WithLogger(l *log.Logger) Option {
	return func(s *Subscriber) { s.logger = l }
}

// NewSubscriber connects to the detection feed and starts reading.
func NewSubscriber(ctx context.Context, cfg config.FeedConfig, opts ...Option) (*Subscriber, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("feed: endpoint URL is required")
	}

	s := &Subscriber{
		endpoint:          cfg.URL,
		reconnectDelay:    time.Duration(cfg.ReconnectDelaySeconds) * time.Second,
		maxReconnectDelay: time.Duration(cfg.MaxReconnectSeconds) * time.Second,
		tokens:            make(chan domain.TokenIdentifier, 256),
		done:              make(chan struct{}),
		logger:            log.Default(),
	}
	if s.reconnectDelay <= 0 {
		s.reconnectDelay = time.Second
	}
	if s.maxReconnectDelay <= 0 {
		s.maxReconnectDelay = 30 * time.Second
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.connect(ctx); err != nil {
		return nil, err
	}

	s.wg.Add(1)
	go s.readLoop()

	return s, nil
}

// Tokens is the stream of validated detections. Closed on shutdown.
func (s *Subscriber) Tokens() <-chan domain.TokenIdentifier {
	return s.tokens
}

// Close shuts the subscriber down and closes the token channel.
func (s *Subscriber) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	close(s.done)

	s.connMu.Lock()
	if s.conn != nil {
		s.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		s.conn.Close()
	}
	s.connMu.Unlock()

	s.wg.Wait()
	close(s.tokens)
	return nil
}

func (s *Subscriber) connect(ctx context.Context) error {
	s.connMu.Lock()
	defer s.connMu.Unlock()

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, s.endpoint, nil)
	if err != nil {
		return fmt.Errorf("feed: websocket dial: %w", err)
	}
	s.conn = conn
	return nil
}

// readLoop reads detection events and reconnects on failure.
func (s *Subscriber) readLoop() {
	defer s.wg.Done()

	delay := s.reconnectDelay

	for !s.closed.Load() {
		s.connMu.Lock()
		conn := s.conn
		s.connMu.Unlock()

		if conn == nil {
			if !s.reconnect(delay) {
				return
			}
			delay = delay * 2
			if delay > s.maxReconnectDelay {
				delay = s.maxReconnectDelay
			}
			continue
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			if s.closed.Load() {
				return
			}
			s.logger.Printf("[feed] read failed, reconnecting: %v", err)
			s.connMu.Lock()
			s.conn.Close()
			s.conn = nil
			s.connMu.Unlock()
			continue
		}

		// Reset backoff after a successful read.
		delay = s.reconnectDelay
		s.handleMessage(message)
	}
}

// reconnect waits out the backoff delay and dials again. Returns false
// when the subscriber is shutting down.
func (s *Subscriber) reconnect(delay time.Duration) bool {
	select {
	case <-s.done:
		return false
	case <-time.After(delay):
	}

	s.metrics.ObserveFeedReconnect()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.connect(ctx); err != nil {
		s.logger.Printf("[feed] reconnect failed: %v", err)
		return !s.closed.Load()
	}
	s.logger.Printf("[feed] reconnected to %s", s.endpoint)
	return true
}

// handleMessage validates one detection event and forwards it. Events
// with unparseable bodies or invalid addresses are counted and skipped.
func (s *Subscriber) handleMessage(message []byte) {
	var det Detection
	if err := json.Unmarshal(message, &det); err != nil {
		s.metrics.ObserveFeedEvent("malformed")
		s.logger.Printf("[feed] malformed event: %v", err)
		return
	}

	if err := domain.ValidateAddress(det.Address); err != nil {
		s.metrics.ObserveFeedEvent("invalid_address")
		s.logger.Printf("[feed] dropping event with bad address %q: %v", det.Address, err)
		return
	}

	chain := domain.Chain(det.Chain)
	if det.Chain == "" {
		chain = domain.ChainSolana
	}
	if !chain.IsValid() {
		s.metrics.ObserveFeedEvent("unsupported_chain")
		return
	}

	token := domain.TokenIdentifier{
		Address: det.Address,
		Chain:   chain,
		Symbol:  det.Symbol,
	}

	select {
	case s.tokens <- token:
		s.metrics.ObserveFeedEvent("accepted")
	case <-s.done:
	}
}
