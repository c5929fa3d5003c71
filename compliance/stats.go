package compliance

import (
	"math"

	"clausecheck-backend/models"
)

// ComputeStats aggregates a finished run. verdicts and risks are zipped by index.
func ComputeStats(verdicts []models.Verdict, risks []*models.RiskExplanation) models.ComplianceReport {
	report := models.ComplianceReport{TotalClauses: len(verdicts)}

	for i := range verdicts {
		if verdicts[i].IsCompliant {
			report.CompliantCount++
			continue
		}
		if verdicts[i].Failed() {
			report.VerificationErrorCount++
		}
		if i < len(risks) && risks[i] == nil && !verdicts[i].Failed() {
			report.UnclassifiedCount++
		}
	}
	report.NonCompliantCount = report.TotalClauses - report.CompliantCount

	for _, r := range risks {
		if r == nil {
			continue
		}
		switch r.Severity {
		case models.SeverityHigh:
			report.HighRiskCount++
		case models.SeverityMedium:
			report.MediumRiskCount++
		case models.SeverityLow:
			report.LowRiskCount++
		}
	}

	if report.TotalClauses > 0 {
		report.ComplianceRate = roundTo(float64(report.CompliantCount)/float64(report.TotalClauses)*100, 2)
	}
	return report
}

func roundTo(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
