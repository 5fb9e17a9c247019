package distribute

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/tenderedge/postaward/internal/config"
	"github.com/tenderedge/postaward/internal/resilience"
)

// Sink delivers one agent message.
type Sink interface {
	Send(ctx context.Context, msg Message) error
}

// NewSink returns a WebhookSink when a webhook URL is configured and a
// LogSink otherwise.
func NewSink(cfg config.DistributionConfig, policy *resilience.Policy) Sink {
	if cfg.WebhookURL == "" {
		return LogSink{}
	}
	return NewWebhookSink(cfg, policy)
}

// Publish sends every message in msgs and returns how many were delivered.
// A failed delivery is logged and does not stop the rest.
func Publish(ctx context.Context, sink Sink, msgs Messages) int {
	sent := 0
	for _, m := range msgs.All() {
		h := m.Header()
		if err := sink.Send(ctx, m); err != nil {
			zap.L().Error("distribute: failed to deliver message",
				zap.String("type", string(h.Type)),
				zap.String("to", h.To),
				zap.Error(err),
			)
			continue
		}
		sent++
	}
	return sent
}

// LogSink writes messages to the structured log.
type LogSink struct{}

// Send logs msg.
func (LogSink) Send(_ context.Context, msg Message) error {
	h := msg.Header()
	fields := []zap.Field{
		zap.String("message_id", h.ID),
		zap.String("type", string(h.Type)),
		zap.String("to", h.To),
	}
	switch m := msg.(type) {
	case WinProbability:
		if m.TPS != nil {
			fields = append(fields, zap.Int("tps", *m.TPS))
		}
		fields = append(fields, zap.String("label", m.Label))
	case PEAwardData:
		fields = append(fields, zap.String("pe_name", m.BuyerName))
		if m.Award.PriceRatio != nil {
			fields = append(fields, zap.Float64("price_ratio", *m.Award.PriceRatio))
		}
	case PriceBenchmarkUpdate:
		fields = append(fields, zap.String("sector", m.Sector))
	}
	zap.L().Info("distribute: message", fields...)
	return nil
}

// WebhookSink posts each message as JSON to a webhook.
type WebhookSink struct {
	url    string
	client *http.Client
	policy *resilience.Policy
}

// NewWebhookSink creates a WebhookSink for cfg.WebhookURL.
func NewWebhookSink(cfg config.DistributionConfig, policy *resilience.Policy) *WebhookSink {
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WebhookSink{
		url:    cfg.WebhookURL,
		client: &http.Client{Timeout: timeout},
		policy: policy,
	}
}

// Send posts msg, retrying transient failures.
func (s *WebhookSink) Send(ctx context.Context, msg Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return eris.Wrap(err, "distribute: marshal message")
	}
	h := msg.Header()
	return s.policy.Call(ctx, "webhook", "deliver "+string(h.Type), func(ctx context.Context) error {
		return s.post(ctx, h, payload)
	})
}

func (s *WebhookSink) post(ctx context.Context, h Envelope, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "distribute: create webhook request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Message-Type", string(h.Type))
	req.Header.Set("X-Message-Id", h.ID)

	resp, err := s.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "distribute: webhook request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return resilience.StatusError("distribute: webhook", resp.StatusCode, string(body))
	}
	return nil
}
