package llm

import (
	"encoding/json"
	"fmt"

	"clausecheck-backend/models"
)

// VerificationSystemPrompt describes the comparison task and the exact verdict schema
const VerificationSystemPrompt = `You are a compliance verification assistant.
Compare the given clause against multiple candidate regulatory rules.
You must:
- Analyze each candidate rule carefully
- Decide which (if any) rules actually apply
- State whether the clause is compliant
- Explain reasoning clearly

Return JSON in format:
{
  "clause": "...",
  "is_compliant": true/false,
  "matched_rules": [
    {
      "rule": "...",
      "metadata": {...},
      "is_relevant": true/false,
      "reason": "..."
    }
  ],
  "final_reason": "Summary reasoning whether compliant or not",
  "Section": "Wealth/Banking/Insurance/Compliance"
}

A rule may come from your own knowledge if no candidate applies, but every rule must carry a reason.`

type promptRule struct {
	Rule     string              `json:"rule"`
	Metadata models.RuleMetadata `json:"metadata"`
}

// BuildVerificationPrompt embeds the clause text and the candidate rules as indented JSON
func BuildVerificationPrompt(clause models.Clause, candidates []models.CandidateRule) (string, error) {
	rules := make([]promptRule, len(candidates))
	for i, c := range candidates {
		rules[i] = promptRule{Rule: c.RuleText, Metadata: c.Metadata}
	}
	encoded, err := json.MarshalIndent(rules, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal candidate rules: %w", err)
	}

	return fmt.Sprintf(`Clause:
%s

Candidate Rules:
%s

Check compliance. For each rule, mark whether it is relevant and why.
Then decide overall if the clause is compliant.`, clause.Text, encoded), nil
}
