// Package provider implements the inference backend adapters and the
// registry that probes them at startup.
package provider

import (
	"context"
	"errors"
	"fmt"
	"time"

	"NetSage/internal/config"

	"github.com/sashabaranov/go-openai"
)

// systemPrompt frames every backend call; the per-query prompt and the
// evidence summaries are appended by the dispatcher.
const systemPrompt = "You are a network security expert analyzing network traffic data. " +
	"Provide detailed, actionable insights."

// probeTimeout bounds the startup connection test per provider.
const probeTimeout = 15 * time.Second

const groqBaseURL = "https://api.groq.com/openai/v1"

// defaultMaxContextSize is assumed when a provider config does not
// declare its context window.
const defaultMaxContextSize = 128 * 1024

// OpenAIProvider adapts any endpoint speaking the OpenAI chat completion
// protocol. Groq exposes the same surface, so both provider types share
// this adapter; a custom BaseURL switches backends.
type OpenAIProvider struct {
	name           string
	model          string
	maxTokens      int
	maxContextSize int
	client         *openai.Client
}

// NewOpenAI creates an adapter for an OpenAI-compatible backend.
func NewOpenAI(cfg config.ProviderConfig) (*OpenAIProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("provider %s: API key is not configured", cfg.Name)
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)

	// If a custom BaseURL is defined, override the default one
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	client := openai.NewClientWithConfig(clientConfig)

	return &OpenAIProvider{
		name:           cfg.Name,
		model:          cfg.Model,
		maxTokens:      cfg.MaxTokens,
		maxContextSize: contextSize(cfg),
		client:         client,
	}, nil
}

// NewGroq creates an adapter pointed at Groq's OpenAI-compatible API.
func NewGroq(cfg config.ProviderConfig) (*OpenAIProvider, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = groqBaseURL
	}
	return NewOpenAI(cfg)
}

// Query sends one prompt with its evidence and returns the completion.
func (p *OpenAIProvider) Query(ctx context.Context, prompt, evidence string) (string, error) {
	resp, err := p.client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{
			Model:     p.model,
			MaxTokens: p.maxTokens,
			Messages: []openai.ChatCompletionMessage{
				{
					Role:    openai.ChatMessageRoleSystem,
					Content: systemPrompt,
				},
				{
					Role:    openai.ChatMessageRoleUser,
					Content: userContent(prompt, evidence),
				},
			},
		},
	)
	if err != nil {
		return "", p.wrap(err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("provider %s: API returned no choices", p.name)
	}

	return resp.Choices[0].Message.Content, nil
}

// TestConnection lists models as a cheap credential and reachability probe.
func (p *OpenAIProvider) TestConnection(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	_, err := p.client.ListModels(ctx)
	return err == nil
}

// Name returns the provider's registry name.
func (p *OpenAIProvider) Name() string { return p.name }

// MaxContextSize returns the declared context window in bytes.
func (p *OpenAIProvider) MaxContextSize() int { return p.maxContextSize }

func (p *OpenAIProvider) wrap(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return classifyHTTP(p.name, apiErr.HTTPStatusCode, apiErr.Message)
	}
	return wrapTransport(p.name, err)
}

func contextSize(cfg config.ProviderConfig) int {
	if cfg.MaxContextSize > 0 {
		return cfg.MaxContextSize
	}
	return defaultMaxContextSize
}

func userContent(prompt, evidence string) string {
	if evidence == "" {
		return prompt
	}
	return prompt + "\n\nNetwork traffic evidence:\n" + evidence
}
