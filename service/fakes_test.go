package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"clausecheck-backend/events"
	"clausecheck-backend/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type memDocs struct {
	mu       sync.Mutex
	docs     map[string]*models.Document
	order    []string
	failMsg  map[string]string
	createEr error
}

func newMemDocs() *memDocs {
	return &memDocs{docs: map[string]*models.Document{}, failMsg: map[string]string{}}
}

func (m *memDocs) Create(_ context.Context, doc *models.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createEr != nil {
		return m.createEr
	}
	cp := *doc
	m.docs[doc.ID] = &cp
	m.order = append(m.order, doc.ID)
	return nil
}

func (m *memDocs) GetByID(_ context.Context, id string) (*models.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *doc
	return &cp, nil
}

func (m *memDocs) FindCompletedByHash(_ context.Context, hash string) (*models.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, doc := range m.docs {
		if doc.ContentHash == hash && doc.Status == models.DocumentCompleted {
			cp := *doc
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memDocs) List(_ context.Context, limit int) ([]models.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Document
	for i := len(m.order) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, *m.docs[m.order[i]])
	}
	return out, nil
}

func (m *memDocs) Complete(_ context.Context, id string, stats models.ComplianceReport, score float64, risk string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[id]
	if !ok {
		return pgx.ErrNoRows
	}
	doc.Stats = stats
	doc.OverallScore = score
	doc.RiskLevel = risk
	doc.Status = models.DocumentCompleted
	return nil
}

func (m *memDocs) Fail(_ context.Context, id string, msg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if doc, ok := m.docs[id]; ok {
		doc.Status = models.DocumentFailed
		m.failMsg[id] = msg
	}
	return nil
}

type memJobs struct {
	mu       sync.Mutex
	jobs     map[uuid.UUID]*models.AnalysisJob
	progress []string
}

func newMemJobs() *memJobs {
	return &memJobs{jobs: map[uuid.UUID]*models.AnalysisJob{}}
}

func (m *memJobs) Create(_ context.Context, job *models.AnalysisJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *job
	cp.Steps = append(models.AnalysisSteps(nil), job.Steps...)
	m.jobs[job.ID] = &cp
	return nil
}

func (m *memJobs) GetByID(_ context.Context, id uuid.UUID) (*models.AnalysisJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *job
	cp.Steps = append(models.AnalysisSteps(nil), job.Steps...)
	return &cp, nil
}

func (m *memJobs) UpdateStatus(_ context.Context, id uuid.UUID, status models.AnalysisJobStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[id].Status = status
	return nil
}

func (m *memJobs) UpdateProgress(_ context.Context, id uuid.UUID, current string, steps models.AnalysisSteps) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job := m.jobs[id]
	job.CurrentStep = &current
	job.Steps = append(models.AnalysisSteps(nil), steps...)
	for _, st := range steps {
		if st.Name == current {
			m.progress = append(m.progress, current+":"+st.Status)
		}
	}
	return nil
}

func (m *memJobs) Complete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	m.jobs[id].Status = models.JobStatusCompleted
	m.jobs[id].CompletedAt = &now
	return nil
}

func (m *memJobs) Fail(_ context.Context, id uuid.UUID, msg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[id].Status = models.JobStatusFailed
	m.jobs[id].ErrorMessage = &msg
	return nil
}

type stubSummarizer struct {
	summary *models.DocumentSummary
	err     error
	text    string
}

func (s *stubSummarizer) Summarize(_ context.Context, text, _ string) (*models.DocumentSummary, error) {
	s.text = text
	return s.summary, s.err
}

type stubChecker struct {
	err     error
	clauses []models.Clause
}

func (c *stubChecker) EnsureCompliance(_ context.Context, clauses []models.Clause) (*models.ComplianceResult, error) {
	c.clauses = clauses
	if c.err != nil {
		return nil, c.err
	}
	res := &models.ComplianceResult{
		VerificationResults: make([]models.Verdict, len(clauses)),
		RiskExplanations:    make([]*models.RiskExplanation, len(clauses)),
	}
	for i := range clauses {
		res.VerificationResults[i] = models.Verdict{Clause: clauses[i].Text, IsCompliant: true, FinalReason: "ok", Section: models.SectionCompliance}
	}
	res.Stats = models.ComplianceReport{
		TotalClauses:   len(clauses),
		CompliantCount: len(clauses),
		ComplianceRate: 100,
	}
	return res, nil
}

type recordingPublisher struct {
	mu      sync.Mutex
	reports []events.ReportEvent
	clauses []events.ClauseEvent
}

func (p *recordingPublisher) PublishReport(_ context.Context, ev events.ReportEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reports = append(p.reports, ev)
	return nil
}

func (p *recordingPublisher) PublishClauses(_ context.Context, evs []events.ClauseEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clauses = append(p.clauses, evs...)
	return nil
}

func (p *recordingPublisher) Close() {}

var errBoom = errors.New("boom")
