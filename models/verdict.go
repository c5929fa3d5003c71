package models

import "strings"

// Section is the business area a verdict is filed under
type Section string

const (
	SectionWealth     Section = "Wealth"
	SectionBanking    Section = "Banking"
	SectionInsurance  Section = "Insurance"
	SectionCompliance Section = "Compliance"
)

// ParseSection maps free-form model output onto a known section, defaulting to Compliance
func ParseSection(s string) Section {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "wealth":
		return SectionWealth
	case "banking":
		return SectionBanking
	case "insurance":
		return SectionInsurance
	default:
		return SectionCompliance
	}
}

// MatchedRule is one rule the model considered while judging a clause
type MatchedRule struct {
	Rule       string                 `json:"rule"`
	Metadata   map[string]interface{} `json:"metadata"`
	IsRelevant bool                   `json:"is_relevant"`
	Reason     string                 `json:"reason"`
	Grounded   bool                   `json:"grounded"`
}

// Verdict is the structured compliance judgement for one clause
type Verdict struct {
	Clause            string        `json:"clause"`
	IsCompliant       bool          `json:"is_compliant"`
	MatchedRules      []MatchedRule `json:"matched_rules"`
	FinalReason       string        `json:"final_reason"`
	Section           Section       `json:"Section"`
	VerificationError string        `json:"verification_error,omitempty"`
}

// Failed reports whether the verdict is a placeholder for a verification failure
func (v *Verdict) Failed() bool {
	return v.VerificationError != ""
}
