package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"clausecheck-backend/models"
)

// VerificationParseError carries model output that could not be coerced into JSON
type VerificationParseError struct {
	Raw string
	Err error
}

func (e *VerificationParseError) Error() string {
	return fmt.Sprintf("failed to parse model output: %v", e.Err)
}

func (e *VerificationParseError) Unwrap() error {
	return e.Err
}

var (
	objectPattern        = regexp.MustCompile(`(?s)\{.*\}`)
	openingFencePattern  = regexp.MustCompile("^```[A-Za-z0-9_-]*")
	trailingCommaPattern = regexp.MustCompile(`,\s*([}\]])`)

	errMissingCompliance = errors.New(`verdict has no "is_compliant" field`)
)

// DecodeJSON decodes model output into v. Fences are stripped first; on failure the
// outermost object is extracted, repaired and decoded one more time.
func DecodeJSON(raw string, v interface{}) error {
	cleaned := stripFences(raw)
	err := json.Unmarshal([]byte(cleaned), v)
	if err == nil {
		return nil
	}

	candidate := objectPattern.FindString(cleaned)
	if candidate == "" {
		candidate = objectPattern.FindString(raw)
	}
	if candidate == "" {
		return &VerificationParseError{Raw: raw, Err: err}
	}
	candidate = trailingCommaPattern.ReplaceAllString(candidate, "$1")
	candidate = escapeInvalidBackslashes(candidate)

	if err := json.Unmarshal([]byte(candidate), v); err != nil {
		return &VerificationParseError{Raw: raw, Err: err}
	}
	return nil
}

type wireVerdict struct {
	Clause       string               `json:"clause"`
	IsCompliant  *bool                `json:"is_compliant"`
	MatchedRules []models.MatchedRule `json:"matched_rules"`
	FinalReason  string               `json:"final_reason"`
	Section      string               `json:"Section"`
}

// ParseVerdict parses raw model output into a verdict
func ParseVerdict(raw string) (*models.Verdict, error) {
	var w wireVerdict
	if err := DecodeJSON(raw, &w); err != nil {
		return nil, err
	}
	if w.IsCompliant == nil {
		return nil, &VerificationParseError{Raw: raw, Err: errMissingCompliance}
	}

	rules := w.MatchedRules
	if rules == nil {
		rules = make([]models.MatchedRule, 0)
	}
	return &models.Verdict{
		Clause:       w.Clause,
		IsCompliant:  *w.IsCompliant,
		MatchedRules: rules,
		FinalReason:  w.FinalReason,
		Section:      models.ParseSection(w.Section),
	}, nil
}

// stripFences removes a leading ```lang token and a trailing ``` without
// dropping anything that shares their line
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = openingFencePattern.ReplaceAllString(s, "")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// escapeInvalidBackslashes doubles every backslash that does not start a valid JSON escape
func escapeInvalidBackslashes(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 8)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' {
			b.WriteByte(c)
			continue
		}
		if i+1 < len(s) && strings.IndexByte(`\/"bfnrtu`, s[i+1]) >= 0 {
			b.WriteByte(c)
			b.WriteByte(s[i+1])
			i++
			continue
		}
		b.WriteString(`\\`)
	}
	return b.String()
}
