package audit

import (
	"context"
	"fmt"
	"time"

	"NetSage/internal/config"
	"NetSage/internal/model"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"go.uber.org/zap"
)

const createTableStatement = `
CREATE TABLE IF NOT EXISTS query_audit (
    Timestamp    DateTime,
    QueryID      String,
    Prompt       String,
    CombinedText String,
    UsedFallback UInt8,
    TotalChunks  UInt32,
    Succeeded    UInt32,
    Failed       UInt32,
    Providers    Array(String),
    ElapsedMs    UInt64
) ENGINE = MergeTree()
PARTITION BY toYYYYMM(Timestamp)
ORDER BY (Timestamp, QueryID);
`

// ClickHouseSink stores finished queries in the query_audit table and
// serves the history listing from it.
type ClickHouseSink struct {
	conn   driver.Conn
	logger *zap.Logger
}

// NewClickHouseSink connects, pings and ensures the audit table exists.
func NewClickHouseSink(cfg config.ClickHouseConfig, logger *zap.Logger) (*ClickHouseSink, error) {
	conn, err := connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to clickhouse: %w", err)
	}

	if err := conn.Exec(context.Background(), createTableStatement); err != nil {
		return nil, fmt.Errorf("failed to create audit table: %w", err)
	}
	logger.Info("connected to clickhouse, audit table ready",
		zap.String("database", cfg.Database))

	return &ClickHouseSink{conn: conn, logger: logger}, nil
}

func connect(cfg config.ClickHouseConfig) (driver.Conn, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
	})
	if err != nil {
		return nil, err
	}

	if err := conn.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to ping clickhouse: %w", err)
	}
	return conn, nil
}

// Record inserts one row for the finished query.
func (s *ClickHouseSink) Record(ctx context.Context, resp *model.AggregateResponse) error {
	batch, err := s.conn.PrepareBatch(ctx, "INSERT INTO query_audit")
	if err != nil {
		return fmt.Errorf("failed to prepare audit batch: %w", err)
	}

	err = batch.Append(
		resp.StartedAt,
		resp.QueryID,
		resp.Prompt,
		resp.CombinedText,
		boolToUint8(resp.UsedFallback),
		uint32(resp.TotalChunks),
		uint32(resp.Succeeded),
		uint32(resp.Failed),
		resp.Providers,
		uint64(resp.Elapsed.Milliseconds()),
	)
	if err != nil {
		return fmt.Errorf("failed to append audit row: %w", err)
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send audit batch: %w", err)
	}
	return nil
}

// History returns the most recent queries, newest first.
func (s *ClickHouseSink) History(ctx context.Context, limit int) ([]HistoryEntry, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.conn.Query(ctx, `
		SELECT Timestamp, QueryID, Prompt, CombinedText, UsedFallback,
		       TotalChunks, Succeeded, Failed, ElapsedMs
		FROM query_audit
		ORDER BY Timestamp DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit history: %w", err)
	}
	defer rows.Close()

	var entries []HistoryEntry
	for rows.Next() {
		var (
			entry        HistoryEntry
			timestamp    time.Time
			usedFallback uint8
			total        uint32
			succeeded    uint32
			failed       uint32
			elapsedMs    uint64
		)
		if err := rows.Scan(&timestamp, &entry.QueryID, &entry.Prompt, &entry.CombinedText,
			&usedFallback, &total, &succeeded, &failed, &elapsedMs); err != nil {
			return nil, fmt.Errorf("failed to scan audit row: %w", err)
		}
		entry.Timestamp = timestamp
		entry.UsedFallback = usedFallback != 0
		entry.TotalChunks = int(total)
		entry.Succeeded = int(succeeded)
		entry.Failed = int(failed)
		entry.ElapsedMs = int64(elapsedMs)
		entries = append(entries, entry)
	}

	return entries, nil
}

// Close releases the connection.
func (s *ClickHouseSink) Close() error {
	return s.conn.Close()
}

func boolToUint8(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}
