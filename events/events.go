// Package events publishes compliance outcomes for downstream analytics.
package events

import (
	"context"
	"time"

	"clausecheck-backend/models"
)

// Default topics
const (
	DefaultReportTopic = "compliance.reports"
	DefaultClauseTopic = "compliance.clauses"
)

// ReportEvent is published once per processed document
type ReportEvent struct {
	DocumentID  string                  `json:"document_id"`
	Filename    string                  `json:"filename"`
	Stats       models.ComplianceReport `json:"compliance_stats"`
	RiskLevel   string                  `json:"risk_level"`
	ProcessedAt time.Time               `json:"processed_at"`
}

// ClauseEvent is published once per verified clause
type ClauseEvent struct {
	DocumentID  string                  `json:"document_id"`
	Position    int                     `json:"position"`
	Verdict     models.Verdict          `json:"verdict"`
	Risk        *models.RiskExplanation `json:"risk"`
	ProcessedAt time.Time               `json:"processed_at"`
}

// Publisher sends events keyed by document id
type Publisher interface {
	PublishReport(ctx context.Context, ev ReportEvent) error
	PublishClauses(ctx context.Context, evs []ClauseEvent) error
	Close()
}

// NoopPublisher drops every event
type NoopPublisher struct{}

func (NoopPublisher) PublishReport(context.Context, ReportEvent) error    { return nil }
func (NoopPublisher) PublishClauses(context.Context, []ClauseEvent) error { return nil }
func (NoopPublisher) Close()                                              {}

// ClauseEvents flattens a compliance result into per-clause events
func ClauseEvents(documentID string, result *models.ComplianceResult, at time.Time) []ClauseEvent {
	if result == nil {
		return nil
	}
	out := make([]ClauseEvent, len(result.VerificationResults))
	for i, v := range result.VerificationResults {
		var risk *models.RiskExplanation
		if i < len(result.RiskExplanations) {
			risk = result.RiskExplanations[i]
		}
		out[i] = ClauseEvent{DocumentID: documentID, Position: i, Verdict: v, Risk: risk, ProcessedAt: at}
	}
	return out
}
