package models

// ComplianceReport aggregates verdicts and risk explanations for one document
type ComplianceReport struct {
	TotalClauses           int     `json:"total_clauses"`
	CompliantCount         int     `json:"compliant_count"`
	NonCompliantCount      int     `json:"non_compliant_count"`
	HighRiskCount          int     `json:"high_risk_count"`
	MediumRiskCount        int     `json:"medium_risk_count"`
	LowRiskCount           int     `json:"low_risk_count"`
	UnclassifiedCount      int     `json:"unclassified_count"`
	VerificationErrorCount int     `json:"verification_error_count"`
	ComplianceRate         float64 `json:"compliance_rate"`
}

// ComplianceResult is the positional output of a compliance run.
// VerificationResults[i] and RiskExplanations[i] belong to the i-th input clause.
type ComplianceResult struct {
	VerificationResults []Verdict          `json:"verification_results"`
	RiskExplanations    []*RiskExplanation `json:"risk_explanations"`
	Stats               ComplianceReport   `json:"compliance_stats"`
}
