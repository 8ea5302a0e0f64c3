package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/sony/gobreaker"

	"github.com/dwsmith1983/testgate/pkg/types"
)

// Webhook HTTP delivery defaults.
const (
	webhookTimeout      = 10 * time.Second
	webhookTripFailures = 3
	webhookOpenTimeout  = 30 * time.Second
)

// WebhookSink sends alerts as JSON POST requests to a URL. Repeated
// failures open a circuit breaker so a dead endpoint does not slow every run.
type WebhookSink struct {
	url     string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
	logger  *slog.Logger
}

// WebhookSinkOption configures a WebhookSink.
type WebhookSinkOption func(*WebhookSink)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) WebhookSinkOption {
	return func(s *WebhookSink) { s.client = c }
}

// WithWebhookLogger sets the sink logger.
func WithWebhookLogger(l *slog.Logger) WebhookSinkOption {
	return func(s *WebhookSink) { s.logger = l }
}

// NewWebhookSink creates a new webhook alert sink.
func NewWebhookSink(url string, opts ...WebhookSinkOption) *WebhookSink {
	s := &WebhookSink{
		url:    url,
		client: &http.Client{Timeout: webhookTimeout},
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	s.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "webhook",
		MaxRequests: 1,
		Timeout:     webhookOpenTimeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= webhookTripFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			s.logger.Warn("webhook circuit state changed", "url", s.url, "from", from.String(), "to", to.String())
		},
	})
	return s
}

// Name returns the sink identifier.
func (s *WebhookSink) Name() string { return "webhook" }

// Send posts the alert as JSON to the configured webhook URL.
func (s *WebhookSink) Send(ctx context.Context, alert types.Alert) error {
	data, err := json.Marshal(alert)
	if err != nil {
		return err
	}

	_, err = s.breaker.Execute(func() (interface{}, error) {
		return nil, s.doPost(ctx, data)
	})
	if err != nil {
		return fmt.Errorf("webhook POST failed: %w", err)
	}
	return nil
}

func (s *WebhookSink) doPost(ctx context.Context, data []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
