package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaChatRequest struct {
	Model    string                 `json:"model"`
	Messages []ollamaMessage        `json:"messages"`
	Stream   bool                   `json:"stream"`
	Format   string                 `json:"format,omitempty"`
	Options  map[string]interface{} `json:"options,omitempty"`
}

type ollamaChatResponse struct {
	Message ollamaMessage `json:"message"`
	Error   string        `json:"error,omitempty"`
}

// OllamaProvider calls a local Ollama server
type OllamaProvider struct {
	httpClient  *http.Client
	baseURL     string
	model       string
	temperature float32
}

// NewOllamaProvider creates a provider for a local Ollama server
func NewOllamaProvider(cfg Config) *OllamaProvider {
	return &OllamaProvider{
		httpClient:  cfg.httpClient(),
		baseURL:     strings.TrimRight(cfg.OllamaURL, "/"),
		model:       cfg.modelFor(KindOllama),
		temperature: cfg.Temperature,
	}
}

func (p *OllamaProvider) Name() string { return string(KindOllama) }

// Complete asks the local model for a JSON-formatted reply
func (p *OllamaProvider) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	ctx, span := tracer.Start(ctx, "OllamaProvider.Complete")
	defer span.End()
	span.SetAttributes(attribute.String("llm.model", p.model))

	reqBody := ollamaChatRequest{
		Model: p.model,
		Messages: []ollamaMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		Stream:  false,
		Format:  "json",
		Options: map[string]interface{}{"temperature": p.temperature},
	}
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	out, err := withRetry(ctx, initialBackoff, func() (string, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/chat", bytes.NewReader(jsonData))
		if err != nil {
			return "", fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

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
			return "", &StatusError{Provider: "ollama", StatusCode: resp.StatusCode, Body: string(body)}
		}

		var apiResp ollamaChatResponse
		if err := json.Unmarshal(body, &apiResp); err != nil {
			return "", fmt.Errorf("failed to decode response: %w", err)
		}
		if apiResp.Error != "" {
			return "", fmt.Errorf("ollama error: %s", apiResp.Error)
		}
		if apiResp.Message.Content == "" {
			return "", ErrEmptyResponse
		}
		return apiResp.Message.Content, nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "ollama call failed")
	}
	return out, err
}
