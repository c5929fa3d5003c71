package compliance

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"clausecheck-backend/models"
)

type fakeRetriever struct {
	mu       sync.Mutex
	calls    [][]models.Clause
	topK     int
	matches  []models.CandidateRule
	degraded bool
	short    bool
}

func (f *fakeRetriever) Retrieve(_ context.Context, clauses []models.Clause, topK int) []models.ClauseMatches {
	f.mu.Lock()
	f.calls = append(f.calls, clauses)
	f.topK = topK
	f.mu.Unlock()

	n := len(clauses)
	if f.short && n > 0 {
		n--
	}
	out := make([]models.ClauseMatches, n)
	for i := 0; i < n; i++ {
		out[i] = models.ClauseMatches{Clause: clauses[i], Matches: f.matches, Degraded: f.degraded}
		if f.degraded {
			out[i].Matches = []models.CandidateRule{{RuleText: "Retrieval error: backend down"}}
		}
	}
	return out
}

// verifyFunc adapts a function to ClauseVerifier
type verifyFunc func(ctx context.Context, clause models.Clause, candidates []models.CandidateRule) (*models.Verdict, error)

func (f verifyFunc) Verify(ctx context.Context, clause models.Clause, candidates []models.CandidateRule) (*models.Verdict, error) {
	return f(ctx, clause, candidates)
}

// byText answers from a table keyed on clause text; unknown clauses fail
func byText(table map[string]*models.Verdict) verifyFunc {
	return func(_ context.Context, clause models.Clause, _ []models.CandidateRule) (*models.Verdict, error) {
		v, ok := table[clause.Text]
		if !ok {
			return nil, errors.New("model unavailable")
		}
		out := *v
		out.Clause = clause.Text
		return &out, nil
	}
}

type inflightVerifier struct {
	current atomic.Int32
	max     atomic.Int32
}

func (v *inflightVerifier) Verify(_ context.Context, clause models.Clause, _ []models.CandidateRule) (*models.Verdict, error) {
	n := v.current.Add(1)
	defer v.current.Add(-1)
	for {
		m := v.max.Load()
		if n <= m || v.max.CompareAndSwap(m, n) {
			break
		}
	}
	time.Sleep(5 * time.Millisecond)
	return &models.Verdict{Clause: clause.Text, IsCompliant: true}, nil
}

// fakeProvider completes with a fixed reply
type fakeProvider struct {
	reply string
	err   error
}

func (p *fakeProvider) Name() string { return "fake" }

func (p *fakeProvider) Complete(context.Context, string, string) (string, error) {
	return p.reply, p.err
}

// fakeChatProvider also keeps per-session state
type fakeChatProvider struct {
	fakeProvider
	mu      sync.Mutex
	prompts []string
	cleared []string
}

func (p *fakeChatProvider) Chat(_ context.Context, _ string, message string) (string, error) {
	p.mu.Lock()
	p.prompts = append(p.prompts, message)
	p.mu.Unlock()
	return p.reply, p.err
}

func (p *fakeChatProvider) ClearSession(sessionID string) {
	p.mu.Lock()
	p.cleared = append(p.cleared, sessionID)
	p.mu.Unlock()
}

func clauses(texts ...string) []models.Clause {
	out := make([]models.Clause, len(texts))
	for i, t := range texts {
		out[i] = models.Clause{ClauseID: fmt.Sprintf("C-%d", i+1), Text: t}
	}
	return out
}
