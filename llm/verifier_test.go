package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clausecheck-backend/models"
)

type stubProvider struct {
	reply      string
	err        error
	userPrompt string
	calls      int
}

func (p *stubProvider) Name() string { return "stub" }

func (p *stubProvider) Complete(_ context.Context, _, userPrompt string) (string, error) {
	p.calls++
	p.userPrompt = userPrompt
	return p.reply, p.err
}

func TestVerifierMarksGrounding(t *testing.T) {
	p := &stubProvider{reply: `{"is_compliant": false, "matched_rules": [
		{"rule": "Brokers  must segregate client FUNDS", "is_relevant": true, "reason": "matches"},
		{"rule": "Unlisted rule from memory", "is_relevant": true}
	], "final_reason": "not segregated", "Section": "Banking"}`}
	v := NewVerifier(p, nil)

	clause := models.Clause{ClauseID: "C-1", Text: "Client money may be pooled."}
	candidates := []models.CandidateRule{{RuleText: "Brokers must segregate client funds", Metadata: models.RuleMetadata{DocID: "reg-1"}}}

	verdict, err := v.Verify(context.Background(), clause, candidates)
	require.NoError(t, err)

	assert.Equal(t, clause.Text, verdict.Clause)
	require.Len(t, verdict.MatchedRules, 2)
	assert.True(t, verdict.MatchedRules[0].Grounded)
	assert.Equal(t, "matches", verdict.MatchedRules[0].Reason)
	assert.False(t, verdict.MatchedRules[1].Grounded)
	assert.Equal(t, ungroundedReason, verdict.MatchedRules[1].Reason)
	assert.NotNil(t, verdict.MatchedRules[1].Metadata)

	assert.Contains(t, p.userPrompt, "Client money may be pooled.")
	assert.Contains(t, p.userPrompt, `"doc_id": "reg-1"`)
}

func TestVerifierErrors(t *testing.T) {
	clause := models.Clause{Text: "x"}

	_, err := NewVerifier(&stubProvider{err: errors.New("down")}, nil).Verify(context.Background(), clause, nil)
	assert.EqualError(t, err, "down")

	_, err = NewVerifier(&stubProvider{reply: "not json"}, nil).Verify(context.Background(), clause, nil)
	var perr *VerificationParseError
	assert.ErrorAs(t, err, &perr)
}

func TestBuildVerificationPromptEmptyCandidates(t *testing.T) {
	prompt, err := BuildVerificationPrompt(models.Clause{Text: "Fees apply"}, nil)
	require.NoError(t, err)
	assert.Contains(t, prompt, "Candidate Rules:\n[]")
}
