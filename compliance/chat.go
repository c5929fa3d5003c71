package compliance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"clausecheck-backend/llm"
	"clausecheck-backend/metrics"
	"clausecheck-backend/models"
	"clausecheck-backend/session"

	"github.com/google/uuid"
)

// ErrSessionNotFound is returned by Summary for an unknown session
var ErrSessionNotFound = errors.New("chat session not found")

// ErrEmptyMessage is returned when a chat turn carries no text
var ErrEmptyMessage = errors.New("message is required")

const (
	defaultMaxHistory = 10
	chatTopK          = 3
	promptHistory     = 6

	chatSystemIntro = "You are a helpful SEBI compliance assistant."

	confidenceChat     = 0.9
	confidenceTemplate = 0.6
	confidenceFallback = 0.5
)

const chatGuidance = `Provide a clear, helpful response to the user's question. Include:
1. Direct answer to their question
2. Relevant regulatory references
3. Practical guidance
4. Any important warnings or considerations

Keep the response conversational and easy to understand.`

var intentKeywords = []struct {
	intent   models.Intent
	keywords []string
}{
	{models.IntentComplianceCheck, []string{"compliant", "comply", "violation", "violate"}},
	{models.IntentRegulationLookup, []string{"regulation", "rule", "sebi", "provision"}},
	{models.IntentRiskAssessment, []string{"risk", "danger", "consequence", "penalty"}},
	{models.IntentClarification, []string{"what", "why", "how", "explain", "clarify"}},
}

var suggestions = map[models.Intent][]string{
	models.IntentComplianceCheck: {
		"Would you like a detailed risk assessment?",
		"Should I check for related regulations?",
		"Do you want recommendations for compliance?",
	},
	models.IntentRegulationLookup: {
		"Would you like to verify a clause against these regulations?",
		"Should I explain any specific regulation in detail?",
		"Do you need the official SEBI circular references?",
	},
	models.IntentRiskAssessment: {
		"Would you like mitigation strategies?",
		"Should I identify affected stakeholders?",
		"Do you need a compliance timeline?",
	},
}

var defaultSuggestions = []string{
	"Would you like to upload a document for analysis?",
	"Do you have a specific clause to verify?",
	"Should I explain SEBI compliance requirements?",
}

// ChatRequest is one user turn
type ChatRequest struct {
	Message         string                 `json:"message" binding:"required"`
	SessionID       string                 `json:"session_id"`
	DocumentContext map[string]interface{} `json:"document_context"`
}

// ChatAgent answers compliance questions within a session
type ChatAgent struct {
	retriever  Retriever
	provider   llm.Provider
	sessions   session.Store
	logger     *slog.Logger
	maxHistory int
	now        func() time.Time
	locks      *keyedMutex
}

// ChatOption configures a ChatAgent
type ChatOption func(*ChatAgent)

// ChatWithProvider sets the LLM used for answers. Without one, answers come from templates.
func ChatWithProvider(p llm.Provider) ChatOption {
	return func(a *ChatAgent) {
		a.provider = p
	}
}

// ChatWithMaxHistory sets the number of exchanges kept per session
func ChatWithMaxHistory(n int) ChatOption {
	return func(a *ChatAgent) {
		if n > 0 {
			a.maxHistory = n
		}
	}
}

// ChatWithLogger sets the logger
func ChatWithLogger(l *slog.Logger) ChatOption {
	return func(a *ChatAgent) {
		a.logger = l
	}
}

// ChatWithClock overrides time.Now
func ChatWithClock(now func() time.Time) ChatOption {
	return func(a *ChatAgent) {
		a.now = now
	}
}

// NewChatAgent creates a chat agent. retriever may be nil to disable grounding.
func NewChatAgent(retriever Retriever, sessions session.Store, opts ...ChatOption) *ChatAgent {
	a := &ChatAgent{
		retriever:  retriever,
		sessions:   sessions,
		logger:     slog.Default(),
		maxHistory: defaultMaxHistory,
		now:        time.Now,
		locks:      newKeyedMutex(),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = a.logger.With(slog.String("component", "chat"))
	return a
}

// DetectIntent classifies a message. The first matching group wins.
func DetectIntent(message string) models.Intent {
	lower := strings.ToLower(message)
	for _, group := range intentKeywords {
		for _, kw := range group.keywords {
			if strings.Contains(lower, kw) {
				return group.intent
			}
		}
	}
	return models.IntentGeneralQuestion
}

// Suggestions returns the follow-up prompts offered for an intent
func Suggestions(intent models.Intent) []string {
	list, ok := suggestions[intent]
	if !ok {
		list = defaultSuggestions
	}
	return append([]string(nil), list...)
}

// Chat handles one turn. Turns on the same session are serialised.
func (a *ChatAgent) Chat(ctx context.Context, req ChatRequest) (*models.ChatResponse, error) {
	message := strings.TrimSpace(req.Message)
	if message == "" {
		return nil, ErrEmptyMessage
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = "session_" + uuid.NewString()
	}

	unlock := a.locks.Lock(sessionID)
	defer unlock()

	conv, err := a.sessions.Load(ctx, sessionID)
	if errors.Is(err, session.ErrNotFound) {
		conv = models.NewConversation(sessionID, a.now())
		// the store may have expired the id while the provider still holds its turns
		if chatter, ok := a.provider.(llm.ChatProvider); ok {
			chatter.ClearSession(sessionID)
		}
	} else if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	for k, v := range req.DocumentContext {
		conv.Context[k] = v
	}

	intent := DetectIntent(message)
	conv.NoteIntent(intent)

	regs := a.retrieve(ctx, intent, message)

	answer, confidence := a.answer(ctx, sessionID, intent, message, regs, conv)

	conv.Messages = append(conv.Messages,
		models.Message{Role: models.RoleUser, Content: message, Timestamp: a.now(), Intent: intent},
		models.Message{Role: models.RoleAssistant, Content: answer, Timestamp: a.now()},
	)
	conv.Trim(a.maxHistory * 2)

	if err := a.sessions.Save(ctx, conv); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}
	metrics.ObserveChatTurn(string(intent))

	return &models.ChatResponse{
		SessionID:            sessionID,
		Answer:               answer,
		Intent:               intent,
		Suggestions:          Suggestions(intent),
		RetrievedRegulations: regs,
		Confidence:           confidence,
	}, nil
}

// retrieve runs the message through the retriever as a pseudo-clause. Degraded
// placeholders are dropped so they never reach the prompt or the caller.
func (a *ChatAgent) retrieve(ctx context.Context, intent models.Intent, message string) []models.CandidateRule {
	regs := make([]models.CandidateRule, 0)
	if a.retriever == nil || !intent.Grounded() {
		return regs
	}

	clause := models.Clause{
		ClauseID: fmt.Sprintf("query_%d", a.now().UnixNano()),
		Text:     message,
	}
	matches := a.retriever.Retrieve(ctx, []models.Clause{clause}, chatTopK)
	if len(matches) == 0 || matches[0].Degraded {
		return regs
	}
	return append(regs, matches[0].Matches...)
}

func (a *ChatAgent) answer(ctx context.Context, sessionID string, intent models.Intent, message string, regs []models.CandidateRule, conv *models.Conversation) (string, float64) {
	if a.provider == nil {
		return FallbackAnswer(intent, regs), confidenceFallback
	}

	chatter, ok := a.provider.(llm.ChatProvider)
	if !ok {
		return FallbackAnswer(intent, regs), confidenceTemplate
	}

	prompt := BuildChatPrompt(intent, message, regs, conv)
	reply, err := chatter.Chat(ctx, sessionID, prompt)
	if err != nil || strings.TrimSpace(reply) == "" {
		a.logger.Warn("chat provider failed, using template answer",
			slog.String("session_id", sessionID), slog.Any("error", err))
		return FallbackAnswer(intent, regs), confidenceFallback
	}
	return reply, confidenceChat
}

// BuildChatPrompt renders the grounded prompt for one turn. The conversation's
// recent history is included before the new message is appended.
func BuildChatPrompt(intent models.Intent, message string, regs []models.CandidateRule, conv *models.Conversation) string {
	var b strings.Builder
	b.WriteString(chatSystemIntro + "\n\n")
	fmt.Fprintf(&b, "User Intent: %s\nUser Question: %s\n\n", intent, message)

	if len(regs) > 0 {
		b.WriteString("Relevant SEBI Regulations (from Elastic Search):\n")
		for i, r := range regs {
			if i == chatTopK {
				break
			}
			fmt.Fprintf(&b, "%d. %s\n", i+1, r.RuleText)
		}
		b.WriteString("\n")
	}

	if conv != nil {
		if history := conv.Recent(promptHistory); len(history) > 0 {
			b.WriteString("Conversation History:\n")
			for _, m := range history {
				fmt.Fprintf(&b, "%s: %s\n", m.Role, m.Content)
			}
			b.WriteString("\n")
		}
		if len(conv.Context) > 0 {
			name, _ := conv.Context["name"].(string)
			if name == "" {
				name = "Current document"
			}
			fmt.Fprintf(&b, "Document Context: %s\n\n", name)
		}
	}

	b.WriteString(chatGuidance)
	return b.String()
}

// FallbackAnswer is the canned reply used when no model answer is available
func FallbackAnswer(intent models.Intent, regs []models.CandidateRule) string {
	switch intent {
	case models.IntentComplianceCheck:
		if len(regs) == 0 {
			return "I couldn't find directly relevant regulations. Could you provide more specific details about the clause?"
		}
		lines := make([]string, 0, 2)
		for i := 0; i < len(regs) && i < 2; i++ {
			lines = append(lines, "• "+regs[i].RuleText)
		}
		return "Based on SEBI regulations, here are relevant provisions:\n\n" +
			strings.Join(lines, "\n\n") +
			"\n\nI recommend reviewing these regulations against your specific clause."
	case models.IntentRegulationLookup:
		if len(regs) == 0 {
			return "I couldn't find specific regulations matching your query. Try rephrasing or being more specific."
		}
		lines := make([]string, 0, chatTopK)
		for i := 0; i < len(regs) && i < chatTopK; i++ {
			lines = append(lines, fmt.Sprintf("%d. %s", i+1, regs[i].RuleText))
		}
		return "Here are the relevant SEBI regulations:\n\n" + strings.Join(lines, "\n\n")
	case models.IntentRiskAssessment:
		return "Risk assessment requires detailed analysis. Please upload the document for comprehensive risk evaluation."
	default:
		return "I'm here to help with SEBI compliance questions. You can ask about:\n• Specific regulations\n• Compliance verification\n• Risk assessment\n• Regulatory requirements"
	}
}

// Summary describes a session without returning its messages
func (a *ChatAgent) Summary(ctx context.Context, sessionID string) (*models.ConversationSummary, error) {
	conv, err := a.sessions.Load(ctx, sessionID)
	if errors.Is(err, session.ErrNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	return &models.ConversationSummary{
		SessionID:        conv.SessionID,
		StartedAt:        conv.StartedAt,
		MessageCount:     len(conv.Messages),
		IntentsDiscussed: conv.Intents,
		Context:          conv.Context,
	}, nil
}

// ClearSession forgets a session here and in the provider's own chat state
func (a *ChatAgent) ClearSession(ctx context.Context, sessionID string) error {
	unlock := a.locks.Lock(sessionID)
	defer unlock()

	if chatter, ok := a.provider.(llm.ChatProvider); ok {
		chatter.ClearSession(sessionID)
	}
	if err := a.sessions.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// keyedMutex hands out one mutex per key and forgets it once no one holds it
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*refMutex)}
}

func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = &refMutex{}
		k.locks[key] = m
	}
	m.refs++
	k.mu.Unlock()

	m.Lock()
	return func() {
		m.Unlock()
		k.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
