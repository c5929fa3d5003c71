package llm

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// RateLimitedProvider throttles calls to a provider
type RateLimitedProvider struct {
	Provider
	limiter *rate.Limiter
}

// RateLimited wraps p so that at most rps calls per second (with burst) reach it.
// A non-positive rps returns p unchanged.
func RateLimited(p Provider, rps float64, burst int) Provider {
	if rps <= 0 {
		return p
	}
	if burst < 1 {
		burst = 1
	}
	limited := &RateLimitedProvider{Provider: p, limiter: rate.NewLimiter(rate.Limit(rps), burst)}
	if cp, ok := p.(ChatProvider); ok {
		return &rateLimitedChatProvider{RateLimitedProvider: limited, chat: cp}
	}
	return limited
}

// Complete waits for a token before delegating
func (p *RateLimitedProvider) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter: %w", err)
	}
	return p.Provider.Complete(ctx, systemPrompt, userPrompt)
}

type rateLimitedChatProvider struct {
	*RateLimitedProvider
	chat ChatProvider
}

func (p *rateLimitedChatProvider) Chat(ctx context.Context, sessionID, message string) (string, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter: %w", err)
	}
	return p.chat.Chat(ctx, sessionID, message)
}

func (p *rateLimitedChatProvider) ClearSession(sessionID string) {
	p.chat.ClearSession(sessionID)
}
