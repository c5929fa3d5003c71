package compliance

import (
	"context"
	"fmt"
	"log/slog"

	"clausecheck-backend/metrics"
	"clausecheck-backend/models"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

var tracer = otel.Tracer("clausecheck-backend/compliance")

const (
	defaultConcurrency = 4
	defaultTopK        = 5

	verificationErrorPrefix = "Verification error: "
)

// Retriever returns candidate rules for every clause, positionally
type Retriever interface {
	Retrieve(ctx context.Context, clauses []models.Clause, topK int) []models.ClauseMatches
}

// ClauseVerifier judges one clause against its candidates
type ClauseVerifier interface {
	Verify(ctx context.Context, clause models.Clause, candidates []models.CandidateRule) (*models.Verdict, error)
}

// Orchestrator runs retrieval, verification and risk classification over a clause list
type Orchestrator struct {
	retriever   Retriever
	verifier    ClauseVerifier
	classifier  *Classifier
	logger      *slog.Logger
	concurrency int
	topK        int
}

// OrchestratorOption configures an Orchestrator
type OrchestratorOption func(*Orchestrator)

// WithConcurrency caps the number of clauses verified at once
func WithConcurrency(n int) OrchestratorOption {
	return func(o *Orchestrator) {
		if n > 0 {
			o.concurrency = n
		}
	}
}

// WithTopK sets the number of candidates retrieved per clause
func WithTopK(k int) OrchestratorOption {
	return func(o *Orchestrator) {
		if k > 0 {
			o.topK = k
		}
	}
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) OrchestratorOption {
	return func(o *Orchestrator) {
		o.logger = l
	}
}

// WithClassifier replaces the default keyword classifier
func WithClassifier(c *Classifier) OrchestratorOption {
	return func(o *Orchestrator) {
		o.classifier = c
	}
}

// NewOrchestrator creates an orchestrator over an already constructed retriever and verifier
func NewOrchestrator(retriever Retriever, verifier ClauseVerifier, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		retriever:   retriever,
		verifier:    verifier,
		logger:      slog.Default(),
		concurrency: defaultConcurrency,
		topK:        defaultTopK,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.classifier == nil {
		o.classifier = NewClassifier(nil)
	}
	o.logger = o.logger.With(slog.String("component", "orchestrator"))
	return o
}

// EnsureCompliance checks every clause and returns results in input order.
// A clause whose verification fails gets a sentinel verdict and a nil risk; the
// run continues. If ctx is cancelled the partial result is discarded.
func (o *Orchestrator) EnsureCompliance(ctx context.Context, clauses []models.Clause) (*models.ComplianceResult, error) {
	ctx, span := tracer.Start(ctx, "Orchestrator.EnsureCompliance")
	defer span.End()
	span.SetAttributes(attribute.Int("clauses", len(clauses)))

	result := &models.ComplianceResult{
		VerificationResults: make([]models.Verdict, len(clauses)),
		RiskExplanations:    make([]*models.RiskExplanation, len(clauses)),
	}
	if len(clauses) == 0 {
		result.Stats = ComputeStats(nil, nil)
		return result, nil
	}

	matches := o.retriever.Retrieve(ctx, clauses, o.topK)
	if len(matches) != len(clauses) {
		return nil, fmt.Errorf("retriever returned %d entries for %d clauses", len(matches), len(clauses))
	}

	var g errgroup.Group
	g.SetLimit(o.concurrency)
	for i := range clauses {
		i := i
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			verdict := o.verifyClause(ctx, clauses[i], matches[i].Matches)
			result.VerificationResults[i] = *verdict
			if !verdict.Failed() {
				result.RiskExplanations[i] = o.classifier.ExplainRisk(verdict)
			}
			observeRisk(result.RiskExplanations[i], verdict)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result.Stats = ComputeStats(result.VerificationResults, result.RiskExplanations)
	o.logger.Info("compliance run finished",
		slog.Int("clauses", result.Stats.TotalClauses),
		slog.Int("compliant", result.Stats.CompliantCount),
		slog.Int("verification_errors", result.Stats.VerificationErrorCount),
		slog.Float64("compliance_rate", result.Stats.ComplianceRate))
	return result, nil
}

func (o *Orchestrator) verifyClause(ctx context.Context, clause models.Clause, candidates []models.CandidateRule) *models.Verdict {
	verdict, err := o.verifier.Verify(ctx, clause, candidates)
	if err == nil && verdict != nil {
		return verdict
	}
	if err == nil {
		err = fmt.Errorf("verifier returned no verdict")
	}

	o.logger.Warn("verification failed, recording sentinel verdict",
		slog.String("clause_id", clause.ClauseID), slog.Any("error", err))
	return SentinelVerdict(clause, err)
}

// SentinelVerdict is the placeholder stored for a clause that could not be verified
func SentinelVerdict(clause models.Clause, err error) *models.Verdict {
	return &models.Verdict{
		Clause:            clause.Text,
		IsCompliant:       false,
		MatchedRules:      []models.MatchedRule{},
		FinalReason:       verificationErrorPrefix + err.Error(),
		Section:           models.SectionCompliance,
		VerificationError: err.Error(),
	}
}

func observeRisk(r *models.RiskExplanation, v *models.Verdict) {
	switch {
	case r != nil:
		metrics.ObserveRisk(r.Category, r.Severity)
	case v.Failed():
		metrics.ObserveRisk("verification_error", "none")
	default:
		metrics.ObserveRisk("unclassified", "none")
	}
}
