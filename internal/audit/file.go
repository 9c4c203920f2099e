package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"NetSage/internal/model"

	"go.uber.org/zap"
)

// FileSink appends one JSON line per finished query to a local file.
type FileSink struct {
	mu     sync.Mutex
	file   *os.File
	enc    *json.Encoder
	logger *zap.Logger
}

// NewFileSink opens (or creates) the audit file in append mode.
func NewFileSink(path string, logger *zap.Logger) (*FileSink, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit file %q: %w", path, err)
	}
	return &FileSink{
		file:   file,
		enc:    json.NewEncoder(file),
		logger: logger,
	}, nil
}

// Record appends the response as one JSON line.
func (s *FileSink) Record(_ context.Context, resp *model.AggregateResponse) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.enc.Encode(resp); err != nil {
		return fmt.Errorf("failed to append audit record: %w", err)
	}
	return nil
}

// Close syncs and closes the file.
func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.file.Sync(); err != nil {
		s.logger.Warn("audit file sync failed", zap.Error(err))
	}
	return s.file.Close()
}
