package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const (
	anthropicAPIVersion = "2023-06-01"
	anthropicURL        = "https://api.anthropic.com/v1/messages"
	claudeMaxTokens     = 1000
)

type anthropicRequest struct {
	Model       string             `json:"model"`
	System      string             `json:"system,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature *float32           `json:"temperature,omitempty"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// ClaudeProvider calls the Anthropic Messages API over REST
type ClaudeProvider struct {
	httpClient  *http.Client
	apiKey      string
	url         string
	model       string
	temperature float32
}

// NewClaudeProvider creates a provider for Anthropic models
func NewClaudeProvider(cfg Config) *ClaudeProvider {
	url := anthropicURL
	if cfg.BaseURL != "" {
		url = cfg.BaseURL
	}
	return &ClaudeProvider{
		httpClient:  cfg.httpClient(),
		apiKey:      cfg.AnthropicAPIKey,
		url:         url,
		model:       cfg.modelFor(KindClaude),
		temperature: cfg.Temperature,
	}
}

func (p *ClaudeProvider) Name() string { return string(KindClaude) }

// Complete sends one user message with a top-level system prompt
func (p *ClaudeProvider) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	reqBody := anthropicRequest{
		Model:     p.model,
		System:    systemPrompt,
		Messages:  []anthropicMessage{{Role: "user", Content: userPrompt}},
		MaxTokens: claudeMaxTokens,
	}
	if p.temperature > 0 {
		t := p.temperature
		reqBody.Temperature = &t
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	return withRetry(ctx, initialBackoff, func() (string, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(jsonData))
		if err != nil {
			return "", fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("x-api-key", p.apiKey)
		req.Header.Set("anthropic-version", anthropicAPIVersion)
		req.Header.Set("content-type", "application/json")

		resp, err := p.httpClient.Do(req)
		if err != nil {
			return "", fmt.Errorf("failed to send request: %w", err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return "", fmt.Errorf("failed to read response body: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			return "", &StatusError{Provider: "anthropic", StatusCode: resp.StatusCode, Body: string(body)}
		}

		var apiResp anthropicResponse
		if err := json.Unmarshal(body, &apiResp); err != nil {
			return "", fmt.Errorf("failed to decode response: %w", err)
		}
		if apiResp.Error != nil {
			return "", fmt.Errorf("anthropic API error: %s - %s", apiResp.Error.Type, apiResp.Error.Message)
		}

		var text strings.Builder
		for _, block := range apiResp.Content {
			if block.Type == "text" {
				text.WriteString(block.Text)
			}
		}
		if text.Len() == 0 {
			return "", ErrEmptyResponse
		}
		return text.String(), nil
	})
}
