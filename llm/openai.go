package llm

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

const (
	mistralBaseURL    = "https://api.mistral.ai/v1"
	jsonOnlyDirective = "\n\nReturn ONLY valid JSON."
)

// OpenAIProvider serves any OpenAI-compatible chat completion endpoint
type OpenAIProvider struct {
	client       *openai.Client
	name         string
	model        string
	temperature  float32
	jsonMode     bool
	systemSuffix string
}

// NewOpenAIProvider creates a provider for the OpenAI API
func NewOpenAIProvider(cfg Config) *OpenAIProvider {
	c := openai.DefaultConfig(cfg.OpenAIAPIKey)
	if cfg.BaseURL != "" {
		c.BaseURL = cfg.BaseURL
	}
	c.HTTPClient = cfg.httpClient()

	return &OpenAIProvider{
		client:      openai.NewClientWithConfig(c),
		name:        string(KindOpenAI),
		model:       cfg.modelFor(KindOpenAI),
		temperature: cfg.Temperature,
		jsonMode:    true,
	}
}

// NewMistralProvider creates a provider for Mistral's OpenAI-compatible API
func NewMistralProvider(cfg Config) *OpenAIProvider {
	c := openai.DefaultConfig(cfg.MistralAPIKey)
	c.BaseURL = mistralBaseURL
	if cfg.BaseURL != "" {
		c.BaseURL = cfg.BaseURL
	}
	c.HTTPClient = cfg.httpClient()

	return &OpenAIProvider{
		client:       openai.NewClientWithConfig(c),
		name:         string(KindMistral),
		model:        cfg.modelFor(KindMistral),
		temperature:  cfg.Temperature,
		systemSuffix: jsonOnlyDirective,
	}
}

func (p *OpenAIProvider) Name() string { return p.name }

// Complete sends a system and user message and returns the first choice
func (p *OpenAIProvider) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: p.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt + p.systemSuffix},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
		Temperature: p.temperature,
	}
	if p.jsonMode {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	return withRetry(ctx, initialBackoff, func() (string, error) {
		resp, err := p.client.CreateChatCompletion(ctx, req)
		if err != nil {
			return "", fmt.Errorf("%s chat completion failed: %w", p.name, err)
		}
		if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
			return "", ErrEmptyResponse
		}
		return resp.Choices[0].Message.Content, nil
	})
}
