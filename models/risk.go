package models

// Severity levels used by risk explanations
const (
	SeverityNone   = "None"
	SeverityLow    = "Low"
	SeverityMedium = "Medium"
	SeverityHigh   = "High"
)

// Risk categories
const (
	CategoryNone        = "None"
	CategoryLegal       = "Legal"
	CategoryFinancial   = "Financial"
	CategoryOperational = "Operational"
)

// RiskExplanation is the deterministic severity assessment attached to a verdict
type RiskExplanation struct {
	Severity   string `json:"severity"`
	Category   string `json:"category"`
	RiskScore  int    `json:"risk_score"`
	Impact     string `json:"impact"`
	Mitigation string `json:"mitigation"`
}
