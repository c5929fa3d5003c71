package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const chatSystemInstruction = "You are a helpful SEBI compliance assistant."

// GeminiProvider talks to the Gemini API through the genai SDK and keeps one chat session per id
type GeminiProvider struct {
	client      *genai.Client
	model       string
	temperature float32
	logger      *slog.Logger
	sessions    *chatSessions[*genai.ChatSession]
}

// NewGeminiProvider creates a Gemini client from cfg
func NewGeminiProvider(ctx context.Context, cfg Config) (*GeminiProvider, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.GeminiAPIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	temperature := cfg.Temperature
	if temperature == 0 {
		temperature = 0.1
	}

	return &GeminiProvider{
		client:      client,
		model:       cfg.modelFor(KindGemini),
		temperature: temperature,
		logger:      cfg.logger().With(slog.String("component", "gemini")),
		sessions:    newChatSessions[*genai.ChatSession](cfg.ChatMaxSessions, cfg.ChatSessionTTL),
	}, nil
}

func (p *GeminiProvider) Name() string { return string(KindGemini) }

// Complete asks for a JSON answer
func (p *GeminiProvider) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	model := p.client.GenerativeModel(p.model)
	model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(systemPrompt)}}
	model.ResponseMIMEType = "application/json"
	model.SetTemperature(p.temperature)

	return withRetry(ctx, initialBackoff, func() (string, error) {
		resp, err := model.GenerateContent(ctx, genai.Text(userPrompt))
		if err != nil {
			return "", fmt.Errorf("failed to generate content: %w", err)
		}
		return responseText(resp)
	})
}

// Chat sends message within the session's history
func (p *GeminiProvider) Chat(ctx context.Context, sessionID, message string) (string, error) {
	cs := p.session(sessionID)
	resp, err := cs.SendMessage(ctx, genai.Text(message))
	if err != nil {
		return "", fmt.Errorf("failed to send chat message: %w", err)
	}
	return responseText(resp)
}

// ClearSession forgets the chat history for sessionID
func (p *GeminiProvider) ClearSession(sessionID string) {
	p.sessions.delete(sessionID)
}

// Close releases the underlying client
func (p *GeminiProvider) Close() error {
	return p.client.Close()
}

func (p *GeminiProvider) session(id string) *genai.ChatSession {
	return p.sessions.getOrCreate(id, func() *genai.ChatSession {
		model := p.client.GenerativeModel(p.model)
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(chatSystemInstruction)}}
		model.SetTemperature(0.4)
		return model.StartChat()
	})
}

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", ErrEmptyResponse
	}

	var b strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if t, ok := part.(genai.Text); ok {
				b.WriteString(string(t))
			}
		}
	}
	if b.Len() == 0 {
		return "", ErrEmptyResponse
	}
	return b.String(), nil
}
