package models

import "time"

// DocumentStatus is the processing state of an uploaded document
type DocumentStatus string

const (
	DocumentStarted   DocumentStatus = "started"
	DocumentCompleted DocumentStatus = "completed"
	DocumentFailed    DocumentStatus = "failed"
)

// Document is the persisted record of an uploaded file and its headline stats
type Document struct {
	ID           string           `json:"id"`
	Filename     string           `json:"filename"`
	ContentType  string           `json:"content_type"`
	FileSize     int64            `json:"file_size"`
	Language     string           `json:"language"`
	ContentHash  string           `json:"content_hash"`
	Status       DocumentStatus   `json:"processing_status"`
	Stats        ComplianceReport `json:"compliance_stats"`
	OverallScore float64          `json:"overall_score"`
	RiskLevel    string           `json:"risk_level,omitempty"`
	ErrorMessage *string          `json:"error_message,omitempty"`
	UploadedAt   time.Time        `json:"uploaded_at"`
	ProcessedAt  *time.Time       `json:"processed_at,omitempty"`
}

// DeriveRiskLevel derives the headline risk level shown for a processed document
func (d *Document) DeriveRiskLevel() string {
	switch {
	case d.Stats.HighRiskCount > 0:
		return "high"
	case d.Stats.MediumRiskCount > 0:
		return "medium"
	case d.Stats.ComplianceRate >= 80:
		return "low"
	default:
		return "medium"
	}
}

// TimelineEntry is a chronological event extracted by the summarizer
type TimelineEntry struct {
	Start       string  `json:"start"`
	End         *string `json:"end"`
	Description string  `json:"description"`
}

// DocumentSummary is the summarizer's structured view of a document
type DocumentSummary struct {
	Summary   string                   `json:"summary"`
	Timelines map[string]TimelineEntry `json:"Timelines"`
	Clauses   []Clause                 `json:"Clauses"`
}

// DocumentResults is the blob persisted as results.json in object storage
type DocumentResults struct {
	DocumentID            string                   `json:"document_id"`
	Summary               string                   `json:"summary"`
	Timelines             map[string]TimelineEntry `json:"timelines"`
	Clauses               []Clause                 `json:"clauses"`
	ComplianceResults     ComplianceResult         `json:"compliance_results"`
	ProcessingCompletedAt time.Time                `json:"processing_completed_at"`
}
