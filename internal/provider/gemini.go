package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"NetSage/internal/config"
)

const geminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// GeminiProvider calls the Google generative language API directly over
// HTTP. The v1beta generateContent surface has no system role, so the
// system prompt is prepended to the user text.
type GeminiProvider struct {
	name           string
	model          string
	apiKey         string
	baseURL        string
	maxTokens      int
	maxContextSize int
	httpClient     *http.Client
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	MaxOutputTokens int `json:"maxOutputTokens,omitempty"`
}

type geminiRequest struct {
	Contents         []geminiContent         `json:"contents"`
	GenerationConfig *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// NewGemini creates an adapter for the Google generative language API.
func NewGemini(cfg config.ProviderConfig) (*GeminiProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("provider %s: API key is not configured", cfg.Name)
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = geminiBaseURL
	}

	return &GeminiProvider{
		name:           cfg.Name,
		model:          cfg.Model,
		apiKey:         cfg.APIKey,
		baseURL:        strings.TrimRight(baseURL, "/"),
		maxTokens:      cfg.MaxTokens,
		maxContextSize: contextSize(cfg),
		httpClient:     &http.Client{Timeout: 120 * time.Second},
	}, nil
}

// Query sends one prompt with its evidence and returns the first
// candidate's text.
func (p *GeminiProvider) Query(ctx context.Context, prompt, evidence string) (string, error) {
	reqBody := geminiRequest{
		Contents: []geminiContent{
			{Parts: []geminiPart{{Text: systemPrompt + "\n\n" + userContent(prompt, evidence)}}},
		},
	}
	if p.maxTokens > 0 {
		reqBody.GenerationConfig = &geminiGenerationConfig{MaxOutputTokens: p.maxTokens}
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("provider %s: failed to encode request: %w", p.name, err)
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s",
		p.baseURL, p.model, url.QueryEscape(p.apiKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("provider %s: failed to build request: %w", p.name, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", wrapTransport(p.name, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", wrapTransport(p.name, err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", classifyHTTP(p.name, resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var parsed geminiResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("provider %s: failed to decode response: %w", p.name, err)
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("provider %s: response contained no candidates", p.name)
	}

	var sb strings.Builder
	for _, part := range parsed.Candidates[0].Content.Parts {
		sb.WriteString(part.Text)
	}
	return sb.String(), nil
}

// TestConnection lists models to validate the key and reachability.
func (p *GeminiProvider) TestConnection(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	endpoint := fmt.Sprintf("%s/models?key=%s", p.baseURL, url.QueryEscape(p.apiKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return false
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	return resp.StatusCode == http.StatusOK
}

// Name returns the provider's registry name.
func (p *GeminiProvider) Name() string { return p.name }

// MaxContextSize returns the declared context window in bytes.
func (p *GeminiProvider) MaxContextSize() int { return p.maxContextSize }
