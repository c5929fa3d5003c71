package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"clausecheck-backend/models"
)

const maxSummaryClauses = 8

const summarizerSystemPrompt = `You are an advanced text analysis system. Read the text and return a single JSON object.

1. Summarization: a detailed, cohesive summary of at least three paragraphs that keeps all key facts, events and context.
2. Timelines: chronological events as an object of entries {"start", "end" (or null), "description"}. Use approximate references when exact dates are missing. Return {} when there are none.
3. Clauses: distinct clauses, rules or provisions. Each has a sequential "clause_id" ("C-1", "C-2", ...) and the clause text in English under "text_en". Limit to 8 clauses. Return [] when there are none.

Output schema:
{
  "summary": "...",
  "Timelines": {"timeline1": {"start": "...", "end": "...", "description": "..."}},
  "Clauses": [{"clause_id": "C-1", "text_en": "..."}]
}

Return valid JSON only, with no markdown, no trailing commas and no extra keys.`

// Summarizer turns extracted document text into a summary and a clause list
type Summarizer struct {
	provider Provider
	logger   *slog.Logger
}

// NewSummarizer creates a summarizer over provider
func NewSummarizer(provider Provider, logger *slog.Logger) *Summarizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Summarizer{provider: provider, logger: logger.With(slog.String("component", "summarizer"))}
}

// Summarize never fails on model problems: it falls back to a single manual-review clause.
// Only context cancellation is returned as an error.
func (s *Summarizer) Summarize(ctx context.Context, text, lang string) (*models.DocumentSummary, error) {
	if lang == "" {
		lang = "English"
	}
	userPrompt := fmt.Sprintf("Write the summary in %s.\n\n### Input Text:\n%s", lang, text)

	raw, err := s.provider.Complete(ctx, summarizerSystemPrompt, userPrompt)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		s.logger.Warn("summarization failed, using fallback", slog.Any("error", err))
		return FallbackSummary(text), nil
	}

	var summary models.DocumentSummary
	if err := DecodeJSON(raw, &summary); err != nil {
		s.logger.Warn("summary was not valid JSON, using fallback", slog.Any("error", err))
		return FallbackSummary(text), nil
	}

	summary.Clauses = normalizeClauses(summary.Clauses)
	if summary.Timelines == nil {
		summary.Timelines = make(map[string]models.TimelineEntry)
	}
	return &summary, nil
}

// FallbackSummary is used when the model cannot produce a usable summary
func FallbackSummary(text string) *models.DocumentSummary {
	return &models.DocumentSummary{
		Summary: fmt.Sprintf("Document contains %d words. Analysis could not be completed automatically. Please review manually.",
			len(strings.Fields(text))),
		Timelines: make(map[string]models.TimelineEntry),
		Clauses: []models.Clause{
			{ClauseID: "C-1", Text: "Full document text requires manual review"},
		},
	}
}

// normalizeClauses drops empty clauses, caps the list and fills missing ids
func normalizeClauses(in []models.Clause) []models.Clause {
	out := make([]models.Clause, 0, len(in))
	for _, c := range in {
		if strings.TrimSpace(c.Text) == "" {
			continue
		}
		if len(out) == maxSummaryClauses {
			break
		}
		if c.ClauseID == "" {
			c.ClauseID = fmt.Sprintf("C-%d", len(out)+1)
		}
		out = append(out, c)
	}
	return out
}
