// Package audit records finished queries for later inspection. Sinks
// register themselves with the factory under the names the config file
// accepts: none, file and clickhouse.
package audit

import (
	"context"
	"time"

	"NetSage/internal/config"
	"NetSage/internal/factory"
	"NetSage/internal/model"

	"go.uber.org/zap"
)

func init() {
	factory.RegisterSink("none", func(*config.Config, *zap.Logger) (model.AuditSink, error) {
		return NopSink{}, nil
	})
	factory.RegisterSink("file", func(cfg *config.Config, logger *zap.Logger) (model.AuditSink, error) {
		return NewFileSink(cfg.Audit.Path, logger)
	})
	factory.RegisterSink("clickhouse", func(cfg *config.Config, logger *zap.Logger) (model.AuditSink, error) {
		return NewClickHouseSink(cfg.Audit.ClickHouse, logger)
	})
}

// HistoryEntry is one persisted query in reverse chronological listings.
type HistoryEntry struct {
	Timestamp    time.Time `json:"timestamp"`
	QueryID      string    `json:"query_id"`
	Prompt       string    `json:"prompt"`
	CombinedText string    `json:"combined_text"`
	UsedFallback bool      `json:"used_fallback"`
	TotalChunks  int       `json:"total_chunks"`
	Succeeded    int       `json:"succeeded"`
	Failed       int       `json:"failed"`
	ElapsedMs    int64     `json:"elapsed_ms"`
}

// Historian is the optional read side of a sink. The gateway serves
// query history only when the configured sink implements it.
type Historian interface {
	History(ctx context.Context, limit int) ([]HistoryEntry, error)
}

// NopSink drops every response. It backs the "none" sink name.
type NopSink struct{}

// Record discards the response.
func (NopSink) Record(context.Context, *model.AggregateResponse) error { return nil }

// Close is a no-op.
func (NopSink) Close() error { return nil }
