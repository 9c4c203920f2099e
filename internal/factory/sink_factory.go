// Package factory maps configured sink names to their constructors.
// Sink packages register themselves in init, so binaries pick up every
// sink they blank-import.
package factory

import (
	"fmt"

	"NetSage/internal/config"
	"NetSage/internal/model"

	"go.uber.org/zap"
)

// SinkFactory builds one audit sink from the loaded configuration.
type SinkFactory func(cfg *config.Config, logger *zap.Logger) (model.AuditSink, error)

// registry maps sink names to their factory functions.
var registry = make(map[string]SinkFactory)

// RegisterSink registers a sink constructor under a unique name.
func RegisterSink(name string, factory SinkFactory) {
	if _, exists := registry[name]; exists {
		panic(fmt.Sprintf("audit sink %q already registered", name))
	}
	registry[name] = factory
}

// NewSink builds the sink the configuration names.
func NewSink(cfg *config.Config, logger *zap.Logger) (model.AuditSink, error) {
	factory, ok := registry[cfg.Audit.Sink]
	if !ok {
		return nil, fmt.Errorf("unknown audit sink: %q", cfg.Audit.Sink)
	}

	sink, err := factory(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("error creating audit sink %q: %w", cfg.Audit.Sink, err)
	}
	return sink, nil
}
