package models

import "time"

// Intent is the coarse purpose of a chat message
type Intent string

const (
	IntentComplianceCheck  Intent = "compliance_check"
	IntentRegulationLookup Intent = "regulation_lookup"
	IntentRiskAssessment   Intent = "risk_assessment"
	IntentClarification    Intent = "clarification"
	IntentGeneralQuestion  Intent = "general_question"
)

// Grounded reports whether the intent warrants a regulation lookup
func (i Intent) Grounded() bool {
	return i == IntentComplianceCheck || i == IntentRegulationLookup || i == IntentRiskAssessment
}

// Message roles
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn in a conversation
type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	Intent    Intent    `json:"intent,omitempty"`
}

// Conversation is the state kept per chat session
type Conversation struct {
	SessionID string                 `json:"session_id"`
	Messages  []Message              `json:"messages"`
	Context   map[string]interface{} `json:"context"`
	Intents   []Intent               `json:"intents_discussed"`
	StartedAt time.Time              `json:"started_at"`
}

// NewConversation starts an empty conversation
func NewConversation(sessionID string, now time.Time) *Conversation {
	return &Conversation{
		SessionID: sessionID,
		Messages:  make([]Message, 0),
		Context:   make(map[string]interface{}),
		Intents:   make([]Intent, 0),
		StartedAt: now,
	}
}

// Trim keeps only the most recent max messages
func (c *Conversation) Trim(max int) {
	if max <= 0 || len(c.Messages) <= max {
		return
	}
	kept := make([]Message, max)
	copy(kept, c.Messages[len(c.Messages)-max:])
	c.Messages = kept
}

// NoteIntent records an intent the first time it is seen
func (c *Conversation) NoteIntent(intent Intent) {
	for _, seen := range c.Intents {
		if seen == intent {
			return
		}
	}
	c.Intents = append(c.Intents, intent)
}

// Recent returns up to n trailing messages
func (c *Conversation) Recent(n int) []Message {
	if n >= len(c.Messages) {
		return c.Messages
	}
	return c.Messages[len(c.Messages)-n:]
}

// ChatResponse is returned for each chat turn
type ChatResponse struct {
	SessionID            string          `json:"session_id"`
	Answer               string          `json:"answer"`
	Intent               Intent          `json:"intent"`
	Suggestions          []string        `json:"suggestions"`
	RetrievedRegulations []CandidateRule `json:"retrieved_regulations"`
	Confidence           float64         `json:"confidence"`
}

// ConversationSummary describes a session without its messages
type ConversationSummary struct {
	SessionID        string                 `json:"session_id"`
	StartedAt        time.Time              `json:"started_at"`
	MessageCount     int                    `json:"message_count"`
	IntentsDiscussed []Intent               `json:"intents_discussed"`
	Context          map[string]interface{} `json:"context"`
}
