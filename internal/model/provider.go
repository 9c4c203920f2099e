package model

import (
	"context"
)

// Provider is the interface every inference backend adapter implements.
// Query must honor ctx cancellation and return the typed errors from the
// provider package so the dispatcher can classify retryability.
type Provider interface {
	// Query sends one prompt plus its evidence context and returns the
	// backend's text.
	Query(ctx context.Context, prompt, evidence string) (string, error)

	// TestConnection performs a cheap liveness and credential probe.
	TestConnection(ctx context.Context) bool

	// Name returns the provider's registry name.
	Name() string

	// MaxContextSize returns the declared context window, in bytes of
	// prompt material the backend accepts.
	MaxContextSize() int
}

// ProviderDescriptor is the read-only view of one backend exposed for
// inspection. UsageCount is monotonically non-decreasing for the process
// lifetime and resets only on restart.
type ProviderDescriptor struct {
	Name           string `json:"name"`
	Weight         int    `json:"weight"`
	MaxContextSize int    `json:"max_context_size"`
	Alive          bool   `json:"alive"`
	UsageCount     uint64 `json:"usage_count"`
}
