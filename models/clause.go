package models

import "encoding/json"

// Clause represents an atomic unit of document text checked for compliance
type Clause struct {
	ClauseID string `json:"clause_id"`
	Text     string `json:"text"`
}

// UnmarshalJSON accepts both "text" and the summarizer's "text_en" key
func (c *Clause) UnmarshalJSON(data []byte) error {
	var raw struct {
		ClauseID string `json:"clause_id"`
		ID       string `json:"id"`
		Text     string `json:"text"`
		TextEN   string `json:"text_en"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	c.ClauseID = raw.ClauseID
	if c.ClauseID == "" {
		c.ClauseID = raw.ID
	}
	c.Text = raw.Text
	if c.Text == "" {
		c.Text = raw.TextEN
	}
	return nil
}

// RuleMetadata identifies where a candidate rule came from in the regulation corpus
type RuleMetadata struct {
	DocID          string  `json:"doc_id,omitempty"`
	ClauseID       string  `json:"clause_id,omitempty"`
	ChunkID        string  `json:"chunk_id,omitempty"`
	RelevanceScore float64 `json:"relevance_score,omitempty"`
}

// CandidateRule is a regulation chunk returned by the retriever for a clause
type CandidateRule struct {
	RuleText string       `json:"rule_text"`
	Metadata RuleMetadata `json:"metadata"`
}

// ClauseMatches holds the ranked candidate rules for one clause
type ClauseMatches struct {
	Clause   Clause          `json:"original_clause"`
	Matches  []CandidateRule `json:"matches"`
	Degraded bool            `json:"degraded,omitempty"`
}
