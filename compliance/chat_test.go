package compliance

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clausecheck-backend/models"
	"clausecheck-backend/session"
)

func TestDetectIntent(t *testing.T) {
	tests := []struct {
		message string
		want    models.Intent
	}{
		{"Is this clause compliant with the SEBI rule?", models.IntentComplianceCheck},
		{"Does it violate anything?", models.IntentComplianceCheck},
		{"Which regulation covers margin trading?", models.IntentRegulationLookup},
		{"What is the penalty here?", models.IntentRiskAssessment},
		{"Can you explain that again", models.IntentClarification},
		{"Hello there", models.IntentGeneralQuestion},
	}
	for _, tt := range tests {
		t.Run(tt.message, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectIntent(tt.message))
		})
	}
}

func TestSuggestions(t *testing.T) {
	assert.Len(t, Suggestions(models.IntentRiskAssessment), 3)
	assert.Equal(t, defaultSuggestions, Suggestions(models.IntentClarification))

	s := Suggestions(models.IntentComplianceCheck)
	s[0] = "changed"
	assert.NotEqual(t, "changed", Suggestions(models.IntentComplianceCheck)[0])
}

func newTestAgent(retriever Retriever, opts ...ChatOption) (*ChatAgent, *session.MemoryStore) {
	store := session.NewMemoryStore()
	return NewChatAgent(retriever, store, opts...), store
}

func TestChatConfidence(t *testing.T) {
	ctx := context.Background()
	req := ChatRequest{Message: "Explain the listing obligations"}

	t.Run("chat provider", func(t *testing.T) {
		agent, _ := newTestAgent(nil, ChatWithProvider(&fakeChatProvider{fakeProvider: fakeProvider{reply: "Here is how it works."}}))
		resp, err := agent.Chat(ctx, req)
		require.NoError(t, err)
		assert.Equal(t, 0.9, resp.Confidence)
		assert.Equal(t, "Here is how it works.", resp.Answer)
	})

	t.Run("provider without chat", func(t *testing.T) {
		agent, _ := newTestAgent(nil, ChatWithProvider(&fakeProvider{reply: "unused"}))
		resp, err := agent.Chat(ctx, req)
		require.NoError(t, err)
		assert.Equal(t, 0.6, resp.Confidence)
		assert.Equal(t, FallbackAnswer(models.IntentClarification, nil), resp.Answer)
	})

	t.Run("chat provider error", func(t *testing.T) {
		agent, _ := newTestAgent(nil, ChatWithProvider(&fakeChatProvider{fakeProvider: fakeProvider{err: errors.New("quota")}}))
		resp, err := agent.Chat(ctx, req)
		require.NoError(t, err)
		assert.Equal(t, 0.5, resp.Confidence)
	})

	t.Run("no provider", func(t *testing.T) {
		agent, _ := newTestAgent(nil)
		resp, err := agent.Chat(ctx, req)
		require.NoError(t, err)
		assert.Equal(t, 0.5, resp.Confidence)
	})
}

func TestChatEmptyMessage(t *testing.T) {
	agent, _ := newTestAgent(nil)
	_, err := agent.Chat(context.Background(), ChatRequest{Message: "   "})
	assert.ErrorIs(t, err, ErrEmptyMessage)
}

func TestChatAssignsSessionID(t *testing.T) {
	agent, _ := newTestAgent(nil)
	resp, err := agent.Chat(context.Background(), ChatRequest{Message: "Hello"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(resp.SessionID, "session_"))
	assert.Equal(t, models.IntentGeneralQuestion, resp.Intent)
	assert.Equal(t, defaultSuggestions, resp.Suggestions)
	assert.NotNil(t, resp.RetrievedRegulations)
}

func TestChatGroundedRetrieval(t *testing.T) {
	retriever := &fakeRetriever{matches: []models.CandidateRule{
		{RuleText: "Rule one"}, {RuleText: "Rule two"}, {RuleText: "Rule three"},
	}}
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	agent, _ := newTestAgent(retriever, ChatWithClock(func() time.Time { return now }))

	resp, err := agent.Chat(context.Background(), ChatRequest{Message: "Is this compliant?", SessionID: "s1"})
	require.NoError(t, err)

	require.Len(t, retriever.calls, 1)
	assert.Equal(t, fmt.Sprintf("query_%d", now.UnixNano()), retriever.calls[0][0].ClauseID)
	assert.Equal(t, "Is this compliant?", retriever.calls[0][0].Text)
	assert.Equal(t, chatTopK, retriever.topK)
	assert.Len(t, resp.RetrievedRegulations, 3)
	assert.Equal(t, "Based on SEBI regulations, here are relevant provisions:\n\n• Rule one\n\n• Rule two\n\nI recommend reviewing these regulations against your specific clause.", resp.Answer)
}

func TestChatSkipsRetrievalForUngroundedIntents(t *testing.T) {
	retriever := &fakeRetriever{}
	agent, _ := newTestAgent(retriever)

	_, err := agent.Chat(context.Background(), ChatRequest{Message: "Explain please"})
	require.NoError(t, err)
	assert.Empty(t, retriever.calls)
}

func TestChatDropsDegradedRetrieval(t *testing.T) {
	agent, _ := newTestAgent(&fakeRetriever{degraded: true})

	resp, err := agent.Chat(context.Background(), ChatRequest{Message: "Which regulation applies?"})
	require.NoError(t, err)
	assert.Empty(t, resp.RetrievedRegulations)
	assert.Equal(t, "I couldn't find specific regulations matching your query. Try rephrasing or being more specific.", resp.Answer)
}

func TestChatTrimsHistory(t *testing.T) {
	agent, store := newTestAgent(nil)
	ctx := context.Background()

	for i := 0; i < 25; i++ {
		_, err := agent.Chat(ctx, ChatRequest{Message: fmt.Sprintf("Hello %d", i), SessionID: "long"})
		require.NoError(t, err)
	}

	conv, err := store.Load(ctx, "long")
	require.NoError(t, err)
	assert.Len(t, conv.Messages, 20)
	assert.Equal(t, "Hello 15", conv.Messages[0].Content)
	assert.Equal(t, models.RoleAssistant, conv.Messages[19].Role)
}

func TestChatPromptCarriesHistoryAndContext(t *testing.T) {
	provider := &fakeChatProvider{fakeProvider: fakeProvider{reply: "ok"}}
	agent, _ := newTestAgent(nil, ChatWithProvider(provider))
	ctx := context.Background()

	_, err := agent.Chat(ctx, ChatRequest{Message: "Hello", SessionID: "p",
		DocumentContext: map[string]interface{}{"name": "Fund Agreement"}})
	require.NoError(t, err)
	_, err = agent.Chat(ctx, ChatRequest{Message: "Explain clause 4", SessionID: "p"})
	require.NoError(t, err)

	require.Len(t, provider.prompts, 2)
	second := provider.prompts[1]
	assert.Contains(t, second, "User Intent: clarification")
	assert.Contains(t, second, "Conversation History:\nuser: Hello\nassistant: ok\n")
	assert.Contains(t, second, "Document Context: Fund Agreement")
	assert.NotContains(t, provider.prompts[0], "Conversation History:")
}

func TestBuildChatPromptLimitsRegulations(t *testing.T) {
	regs := []models.CandidateRule{{RuleText: "a"}, {RuleText: "b"}, {RuleText: "c"}, {RuleText: "d"}}
	conv := models.NewConversation("x", time.Now())
	conv.Context["doc"] = "value"

	prompt := BuildChatPrompt(models.IntentRegulationLookup, "q", regs, conv)
	assert.Contains(t, prompt, "3. c\n")
	assert.NotContains(t, prompt, "4. d")
	assert.Contains(t, prompt, "Document Context: Current document")
}

func TestSummary(t *testing.T) {
	agent, _ := newTestAgent(nil)
	ctx := context.Background()

	_, err := agent.Summary(ctx, "missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	_, err = agent.Chat(ctx, ChatRequest{Message: "Hello", SessionID: "s"})
	require.NoError(t, err)
	_, err = agent.Chat(ctx, ChatRequest{Message: "What is the penalty?", SessionID: "s"})
	require.NoError(t, err)
	_, err = agent.Chat(ctx, ChatRequest{Message: "Hello again", SessionID: "s"})
	require.NoError(t, err)

	summary, err := agent.Summary(ctx, "s")
	require.NoError(t, err)
	assert.Equal(t, 6, summary.MessageCount)
	assert.Equal(t, []models.Intent{models.IntentGeneralQuestion, models.IntentRiskAssessment}, summary.IntentsDiscussed)
}

func TestClearSession(t *testing.T) {
	provider := &fakeChatProvider{fakeProvider: fakeProvider{reply: "ok"}}
	agent, _ := newTestAgent(nil, ChatWithProvider(provider))
	ctx := context.Background()

	_, err := agent.Chat(ctx, ChatRequest{Message: "Hello", SessionID: "gone"})
	require.NoError(t, err)

	require.NoError(t, agent.ClearSession(ctx, "gone"))
	assert.Equal(t, []string{"gone", "gone"}, provider.cleared)

	_, err = agent.Summary(ctx, "gone")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestNewConversationResetsProviderHistory(t *testing.T) {
	provider := &fakeChatProvider{fakeProvider: fakeProvider{reply: "ok"}}
	agent, store := newTestAgent(nil, ChatWithProvider(provider))
	ctx := context.Background()

	_, err := agent.Chat(ctx, ChatRequest{Message: "Hello", SessionID: "reused"})
	require.NoError(t, err)
	assert.Equal(t, []string{"reused"}, provider.cleared)

	_, err = agent.Chat(ctx, ChatRequest{Message: "Hello again", SessionID: "reused"})
	require.NoError(t, err)
	assert.Equal(t, []string{"reused"}, provider.cleared)

	// expired from the store but still known to the provider
	require.NoError(t, store.Delete(ctx, "reused"))
	_, err = agent.Chat(ctx, ChatRequest{Message: "Hello once more", SessionID: "reused"})
	require.NoError(t, err)
	assert.Equal(t, []string{"reused", "reused"}, provider.cleared)
}

func TestFallbackAnswer(t *testing.T) {
	assert.Equal(t, "I couldn't find directly relevant regulations. Could you provide more specific details about the clause?",
		FallbackAnswer(models.IntentComplianceCheck, nil))
	assert.Equal(t, "Risk assessment requires detailed analysis. Please upload the document for comprehensive risk evaluation.",
		FallbackAnswer(models.IntentRiskAssessment, nil))
	assert.Equal(t, "Here are the relevant SEBI regulations:\n\n1. a\n\n2. b",
		FallbackAnswer(models.IntentRegulationLookup, []models.CandidateRule{{RuleText: "a"}, {RuleText: "b"}}))
	assert.True(t, strings.HasPrefix(FallbackAnswer(models.IntentGeneralQuestion, nil), "I'm here to help"))
}

func TestKeyedMutexReleasesKeys(t *testing.T) {
	k := newKeyedMutex()
	unlock := k.Lock("a")
	assert.Len(t, k.locks, 1)
	unlock()
	assert.Empty(t, k.locks)
}
