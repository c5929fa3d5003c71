package llm

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"clausecheck-backend/metrics"
	"clausecheck-backend/models"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("clausecheck-backend/llm")

const ungroundedReason = "Rule cited from model knowledge; not among the retrieved candidates."

// Verifier asks a provider for a structured verdict on one clause
type Verifier struct {
	provider Provider
	logger   *slog.Logger
}

// NewVerifier wraps a provider
func NewVerifier(provider Provider, logger *slog.Logger) *Verifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Verifier{
		provider: provider,
		logger:   logger.With(slog.String("component", "verifier"), slog.String("provider", provider.Name())),
	}
}

// Provider returns the underlying backend
func (v *Verifier) Provider() Provider {
	return v.provider
}

// Verify judges clause against candidates. Parse failures are returned as *VerificationParseError.
func (v *Verifier) Verify(ctx context.Context, clause models.Clause, candidates []models.CandidateRule) (*models.Verdict, error) {
	ctx, span := tracer.Start(ctx, "Verifier.Verify")
	defer span.End()
	span.SetAttributes(
		attribute.String("clause.id", clause.ClauseID),
		attribute.String("llm.provider", v.provider.Name()),
		attribute.Int("candidates", len(candidates)),
	)

	start := time.Now()
	userPrompt, err := BuildVerificationPrompt(clause, candidates)
	if err != nil {
		return nil, err
	}

	raw, err := v.provider.Complete(ctx, VerificationSystemPrompt, userPrompt)
	if err != nil {
		metrics.ObserveVerification(v.provider.Name(), "provider_error", time.Since(start))
		span.RecordError(err)
		span.SetStatus(codes.Error, "provider call failed")
		return nil, err
	}

	verdict, err := ParseVerdict(raw)
	if err != nil {
		metrics.ObserveVerification(v.provider.Name(), "parse_error", time.Since(start))
		var perr *VerificationParseError
		if errors.As(err, &perr) {
			v.logger.Warn("unparseable verdict",
				slog.String("clause_id", clause.ClauseID),
				slog.Int("raw_len", len(perr.Raw)))
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "parse failed")
		return nil, err
	}

	normalizeVerdict(verdict, clause, candidates)

	outcome := "non_compliant"
	if verdict.IsCompliant {
		outcome = "compliant"
	}
	metrics.ObserveVerification(v.provider.Name(), outcome, time.Since(start))
	span.SetAttributes(attribute.Bool("verdict.compliant", verdict.IsCompliant))
	return verdict, nil
}

// normalizeVerdict marks which matched rules came from the candidates and
// guarantees a reason on the ones that did not
func normalizeVerdict(v *models.Verdict, clause models.Clause, candidates []models.CandidateRule) {
	if strings.TrimSpace(v.Clause) == "" {
		v.Clause = clause.Text
	}

	known := make(map[string]struct{}, len(candidates))
	for _, c := range candidates {
		known[normalizeRuleText(c.RuleText)] = struct{}{}
	}

	for i := range v.MatchedRules {
		r := &v.MatchedRules[i]
		_, r.Grounded = known[normalizeRuleText(r.Rule)]
		if !r.Grounded && strings.TrimSpace(r.Reason) == "" {
			r.Reason = ungroundedReason
		}
		if r.Metadata == nil {
			r.Metadata = make(map[string]interface{})
		}
	}
}

func normalizeRuleText(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
