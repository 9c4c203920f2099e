package provider

import (
	"context"
	"fmt"

	"NetSage/internal/config"
	"NetSage/internal/metrics"
	"NetSage/internal/model"

	"go.uber.org/zap"
)

// Registry holds the providers that passed the startup connection probe
// and remembers the ones that did not, so status listings can show why a
// configured backend is absent.
type Registry struct {
	providers []model.Provider
	weights   map[string]int
	inactive  []model.ProviderDescriptor
	logger    *zap.Logger
}

// NewRegistry builds every configured adapter and probes each one once.
// Adapters that fail to build or to answer the probe are excluded for the
// process lifetime; an empty active set is not an error, the orchestrator
// then answers every query with the local fallback.
func NewRegistry(ctx context.Context, cfgs []config.ProviderConfig, logger *zap.Logger) *Registry {
	r := &Registry{
		weights: make(map[string]int, len(cfgs)),
		logger:  logger,
	}

	for _, pc := range cfgs {
		p, err := build(pc)
		if err != nil {
			logger.Warn("skipping provider",
				zap.String("provider", pc.Name),
				zap.Error(err))
			r.inactive = append(r.inactive, describe(pc))
			continue
		}
		if !p.TestConnection(ctx) {
			logger.Warn("provider failed connection test, excluding it",
				zap.String("provider", pc.Name),
				zap.String("type", pc.Type))
			r.inactive = append(r.inactive, describe(pc))
			continue
		}

		r.providers = append(r.providers, p)
		r.weights[p.Name()] = pc.Weight
		logger.Info("provider active",
			zap.String("provider", p.Name()),
			zap.String("type", pc.Type),
			zap.Int("weight", pc.Weight))
	}

	if len(r.providers) == 0 {
		logger.Warn("no providers passed the connection test, analysis will use the local fallback")
	}
	metrics.ActiveProviders.Set(float64(len(r.providers)))

	return r
}

func build(cfg config.ProviderConfig) (model.Provider, error) {
	switch cfg.Type {
	case config.TypeOpenAI:
		return NewOpenAI(cfg)
	case config.TypeGroq:
		return NewGroq(cfg)
	case config.TypeAnthropic:
		return NewAnthropic(cfg)
	case config.TypeGemini:
		return NewGemini(cfg)
	default:
		return nil, fmt.Errorf("unknown provider type: %q", cfg.Type)
	}
}

func describe(cfg config.ProviderConfig) model.ProviderDescriptor {
	return model.ProviderDescriptor{
		Name:           cfg.Name,
		Weight:         cfg.Weight,
		MaxContextSize: contextSize(cfg),
	}
}

// Active returns the providers that passed the probe, in config order.
func (r *Registry) Active() []model.Provider {
	return r.providers
}

// Inactive returns descriptors for the providers excluded at startup.
func (r *Registry) Inactive() []model.ProviderDescriptor {
	return r.inactive
}

// Weights maps active provider names to their configured target weights.
func (r *Registry) Weights() map[string]int {
	return r.weights
}
