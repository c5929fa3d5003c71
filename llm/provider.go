package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// Provider is a language model backend that turns a system and user prompt into raw text
type Provider interface {
	Name() string
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// ChatProvider is implemented by providers that keep multi-turn state per session
type ChatProvider interface {
	Provider
	Chat(ctx context.Context, sessionID, message string) (string, error)
	ClearSession(sessionID string)
}

// ProviderKind is the closed set of supported backends
type ProviderKind string

const (
	KindGemini  ProviderKind = "gemini"
	KindOpenAI  ProviderKind = "openai"
	KindClaude  ProviderKind = "claude"
	KindMistral ProviderKind = "mistral"
	KindOllama  ProviderKind = "ollama"
)

// AllKinds lists every supported provider in display order
var AllKinds = []ProviderKind{KindGemini, KindOpenAI, KindClaude, KindMistral, KindOllama}

var defaultModels = map[ProviderKind]string{
	KindGemini:  "gemini-3-pro-preview",
	KindOpenAI:  "gpt-4o-mini",
	KindClaude:  "claude-3-opus-20240229",
	KindMistral: "mistral-large-latest",
	KindOllama:  "llama3.1",
}

// DefaultModel returns the model used when none is configured
func (k ProviderKind) DefaultModel() string {
	return defaultModels[k]
}

// UnsupportedProviderError is returned for an unknown provider identifier
type UnsupportedProviderError struct {
	Name string
}

func (e *UnsupportedProviderError) Error() string {
	return fmt.Sprintf("unsupported provider: %q", e.Name)
}

// ErrMissingAPIKey is returned when a provider is selected without credentials
var ErrMissingAPIKey = errors.New("missing API key for provider")

// ParseProviderKind validates a configured provider identifier
func ParseProviderKind(s string) (ProviderKind, error) {
	k := ProviderKind(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := defaultModels[k]; !ok {
		return "", &UnsupportedProviderError{Name: s}
	}
	return k, nil
}

// Config carries credentials and endpoints for every backend
type Config struct {
	Model           string
	GeminiAPIKey    string
	OpenAIAPIKey    string
	AnthropicAPIKey string
	MistralAPIKey   string
	OllamaURL       string
	BaseURL         string // overrides the OpenAI, Mistral or Anthropic endpoint
	Temperature     float32
	HTTPClient      *http.Client
	Logger          *slog.Logger

	// Bounds for providers that keep chat history server-side
	ChatMaxSessions int
	ChatSessionTTL  time.Duration
}

func (c Config) modelFor(k ProviderKind) string {
	if c.Model != "" {
		return c.Model
	}
	return k.DefaultModel()
}

func (c Config) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return &http.Client{Timeout: 120 * time.Second}
}

func (c Config) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

func (c Config) configured(k ProviderKind) bool {
	switch k {
	case KindGemini:
		return c.GeminiAPIKey != ""
	case KindOpenAI:
		return c.OpenAIAPIKey != ""
	case KindClaude:
		return c.AnthropicAPIKey != ""
	case KindMistral:
		return c.MistralAPIKey != ""
	case KindOllama:
		return c.OllamaURL != ""
	}
	return false
}

// NewProvider constructs the backend for kind. It fails fast on missing credentials.
func NewProvider(ctx context.Context, kind ProviderKind, cfg Config) (Provider, error) {
	if _, ok := defaultModels[kind]; !ok {
		return nil, &UnsupportedProviderError{Name: string(kind)}
	}
	if !cfg.configured(kind) {
		return nil, fmt.Errorf("%w: %s", ErrMissingAPIKey, kind)
	}

	switch kind {
	case KindGemini:
		return NewGeminiProvider(ctx, cfg)
	case KindOpenAI:
		return NewOpenAIProvider(cfg), nil
	case KindMistral:
		return NewMistralProvider(cfg), nil
	case KindClaude:
		return NewClaudeProvider(cfg), nil
	default:
		return NewOllamaProvider(cfg), nil
	}
}

// ProviderInfo describes a backend for the providers listing
type ProviderInfo struct {
	Name      ProviderKind `json:"name"`
	Model     string       `json:"model"`
	Available bool         `json:"available"`
	Active    bool         `json:"active"`
	Chat      bool         `json:"supports_chat"`
}

// AvailableProviders reports which backends have credentials configured
func AvailableProviders(cfg Config, active ProviderKind) []ProviderInfo {
	out := make([]ProviderInfo, 0, len(AllKinds))
	for _, k := range AllKinds {
		model := k.DefaultModel()
		if k == active && cfg.Model != "" {
			model = cfg.Model
		}
		out = append(out, ProviderInfo{
			Name:      k,
			Model:     model,
			Available: cfg.configured(k),
			Active:    k == active,
			Chat:      k == KindGemini,
		})
	}
	return out
}
