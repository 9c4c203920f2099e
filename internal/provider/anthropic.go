package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"NetSage/internal/config"
)

const (
	anthropicBaseURL = "https://api.anthropic.com"
	anthropicVersion = "2023-06-01"

	// defaultMaxTokens bounds the completion length when the config does
	// not set one; the messages API requires the field.
	defaultMaxTokens = 4096
)

// AnthropicProvider calls the Anthropic messages API directly over HTTP.
type AnthropicProvider struct {
	name           string
	model          string
	apiKey         string
	baseURL        string
	maxTokens      int
	maxContextSize int
	httpClient     *http.Client
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	System    string             `json:"system,omitempty"`
	Messages  []anthropicMessage `json:"messages"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

// NewAnthropic creates an adapter for the Anthropic messages API.
func NewAnthropic(cfg config.ProviderConfig) (*AnthropicProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("provider %s: API key is not configured", cfg.Name)
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = anthropicBaseURL
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	return &AnthropicProvider{
		name:           cfg.Name,
		model:          cfg.Model,
		apiKey:         cfg.APIKey,
		baseURL:        strings.TrimRight(baseURL, "/"),
		maxTokens:      maxTokens,
		maxContextSize: contextSize(cfg),
		httpClient:     &http.Client{Timeout: 120 * time.Second},
	}, nil
}

// Query sends one prompt with its evidence and returns the joined text
// blocks of the response.
func (p *AnthropicProvider) Query(ctx context.Context, prompt, evidence string) (string, error) {
	reqBody := anthropicRequest{
		Model:     p.model,
		MaxTokens: p.maxTokens,
		System:    systemPrompt,
		Messages: []anthropicMessage{
			{Role: "user", Content: userContent(prompt, evidence)},
		},
	}

	respBody, err := p.post(ctx, reqBody)
	if err != nil {
		return "", err
	}

	var parsed anthropicResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("provider %s: failed to decode response: %w", p.name, err)
	}

	var sb strings.Builder
	for _, block := range parsed.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("provider %s: response contained no text", p.name)
	}
	return sb.String(), nil
}

// TestConnection sends a one-token message to validate the credential.
func (p *AnthropicProvider) TestConnection(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	_, err := p.post(ctx, anthropicRequest{
		Model:     p.model,
		MaxTokens: 1,
		Messages:  []anthropicMessage{{Role: "user", Content: "ping"}},
	})
	return err == nil
}

// Name returns the provider's registry name.
func (p *AnthropicProvider) Name() string { return p.name }

// MaxContextSize returns the declared context window in bytes.
func (p *AnthropicProvider) MaxContextSize() int { return p.maxContextSize }

func (p *AnthropicProvider) post(ctx context.Context, reqBody anthropicRequest) ([]byte, error) {
	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("provider %s: failed to encode request: %w", p.name, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("provider %s: failed to build request: %w", p.name, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", p.apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, wrapTransport(p.name, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, wrapTransport(p.name, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, classifyHTTP(p.name, resp.StatusCode, strings.TrimSpace(string(respBody)))
	}
	return respBody, nil
}
