// Package notification publishes query-completion events over NATS so
// external consumers (dashboards, alert pipelines) can react to finished
// analyses without polling the audit store.
package notification

import (
	"encoding/json"
	"fmt"
	"time"

	"NetSage/internal/model"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// DefaultSubject is used when the config leaves the subject empty.
const DefaultSubject = "netsage.analysis.completed"

// CompletionEvent is the JSON payload published per finished query. The
// combined text is deliberately omitted; consumers fetch it from the
// audit store when they need it.
type CompletionEvent struct {
	QueryID      string    `json:"query_id"`
	Prompt       string    `json:"prompt"`
	TotalChunks  int       `json:"total_chunks"`
	Succeeded    int       `json:"succeeded"`
	Failed       int       `json:"failed"`
	UsedFallback bool      `json:"used_fallback"`
	Providers    []string  `json:"providers,omitempty"`
	StartedAt    time.Time `json:"started_at"`
	ElapsedMs    int64     `json:"elapsed_ms"`
}

// NATSNotifier implements model.Notifier over a NATS connection.
type NATSNotifier struct {
	nc      *nats.Conn
	subject string
	logger  *zap.Logger
}

// NewNATSNotifier connects to the NATS server.
func NewNATSNotifier(url, subject string, logger *zap.Logger) (*NATSNotifier, error) {
	nc, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", url, err)
	}
	if subject == "" {
		subject = DefaultSubject
	}
	logger.Info("connected to NATS", zap.String("url", url), zap.String("subject", subject))
	return &NATSNotifier{nc: nc, subject: subject, logger: logger}, nil
}

// Notify publishes one completion event for the response.
func (n *NATSNotifier) Notify(resp *model.AggregateResponse) error {
	event := CompletionEvent{
		QueryID:      resp.QueryID,
		Prompt:       resp.Prompt,
		TotalChunks:  resp.TotalChunks,
		Succeeded:    resp.Succeeded,
		Failed:       resp.Failed,
		UsedFallback: resp.UsedFallback,
		Providers:    resp.Providers,
		StartedAt:    resp.StartedAt,
		ElapsedMs:    resp.Elapsed.Milliseconds(),
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode completion event: %w", err)
	}
	if err := n.nc.Publish(n.subject, data); err != nil {
		return fmt.Errorf("failed to publish completion event: %w", err)
	}
	return nil
}

// Close drains and closes the NATS connection.
func (n *NATSNotifier) Close() {
	if n.nc != nil {
		if err := n.nc.Drain(); err != nil {
			n.logger.Warn("NATS drain failed", zap.Error(err))
		}
	}
}
