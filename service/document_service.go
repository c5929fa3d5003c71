package service

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"clausecheck-backend/events"
	"clausecheck-backend/metrics"
	"clausecheck-backend/models"
	"clausecheck-backend/storage"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"golang.org/x/crypto/blake2b"
)

// DocumentStore persists document rows
type DocumentStore interface {
	Create(ctx context.Context, doc *models.Document) error
	GetByID(ctx context.Context, id string) (*models.Document, error)
	FindCompletedByHash(ctx context.Context, hash string) (*models.Document, error)
	List(ctx context.Context, limit int) ([]models.Document, error)
	Complete(ctx context.Context, id string, stats models.ComplianceReport, overallScore float64, riskLevel string) error
	Fail(ctx context.Context, id string, errorMessage string) error
}

// JobStore persists analysis jobs
type JobStore interface {
	Create(ctx context.Context, job *models.AnalysisJob) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.AnalysisJob, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status models.AnalysisJobStatus) error
	UpdateProgress(ctx context.Context, id uuid.UUID, currentStep string, steps models.AnalysisSteps) error
	Complete(ctx context.Context, id uuid.UUID) error
	Fail(ctx context.Context, id uuid.UUID, errorMessage string) error
}

// DocumentSummarizer extracts a summary and clause list from document text
type DocumentSummarizer interface {
	Summarize(ctx context.Context, text, lang string) (*models.DocumentSummary, error)
}

// ComplianceChecker runs the compliance pipeline over clauses
type ComplianceChecker interface {
	EnsureCompliance(ctx context.Context, clauses []models.Clause) (*models.ComplianceResult, error)
}

// Pipeline step names, in order
const (
	StepExtractingText     = "Extracting Text"
	StepSummarizingClauses = "Summarizing Clauses"
	StepCheckingCompliance = "Checking Compliance"
	StepStoringResults     = "Storing Results"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

var (
	ErrDocumentNotFound    = errors.New("document not found")
	ErrJobNotFound         = errors.New("analysis job not found")
	ErrResultsNotReady     = errors.New("document results not ready")
	ErrEmptyUpload         = errors.New("uploaded file is empty")
	ErrJobCreationFailed   = errors.New("failed to create analysis job")
	ErrDocumentStoreFailed = errors.New("failed to store document")
)

// DocumentService handles uploads and the background compliance pipeline
type DocumentService struct {
	docs       DocumentStore
	jobs       JobStore
	store      storage.Storage
	summarizer DocumentSummarizer
	checker    ComplianceChecker
	publisher  events.Publisher
	logger     *slog.Logger
	now        func() time.Time
}

// DocumentServiceOption is a functional option for DocumentService
type DocumentServiceOption func(*DocumentService)

// DocWithDocumentStore sets the document repository
func DocWithDocumentStore(d DocumentStore) DocumentServiceOption {
	return func(s *DocumentService) {
		s.docs = d
	}
}

// DocWithJobStore sets the analysis job repository
func DocWithJobStore(j JobStore) DocumentServiceOption {
	return func(s *DocumentService) {
		s.jobs = j
	}
}

// DocWithStorage sets the object store for originals and results
func DocWithStorage(st storage.Storage) DocumentServiceOption {
	return func(s *DocumentService) {
		s.store = st
	}
}

// DocWithSummarizer sets the summarizer
func DocWithSummarizer(sum DocumentSummarizer) DocumentServiceOption {
	return func(s *DocumentService) {
		s.summarizer = sum
	}
}

// DocWithChecker sets the compliance orchestrator
func DocWithChecker(c ComplianceChecker) DocumentServiceOption {
	return func(s *DocumentService) {
		s.checker = c
	}
}

// DocWithPublisher sets the event publisher
func DocWithPublisher(p events.Publisher) DocumentServiceOption {
	return func(s *DocumentService) {
		s.publisher = p
	}
}

// DocWithLogger sets the logger
func DocWithLogger(l *slog.Logger) DocumentServiceOption {
	return func(s *DocumentService) {
		s.logger = l
	}
}

// DocWithClock overrides time.Now
func DocWithClock(now func() time.Time) DocumentServiceOption {
	return func(s *DocumentService) {
		s.now = now
	}
}

// NewDocumentService creates a new document service
func NewDocumentService(opts ...DocumentServiceOption) *DocumentService {
	s := &DocumentService{
		publisher: events.NoopPublisher{},
		logger:    slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(slog.String("component", "document_service"))
	return s
}

// SubmitDocumentRequest is an uploaded file
type SubmitDocumentRequest struct {
	Filename    string
	ContentType string
	Content     []byte
	Language    string
}

// SubmitDocumentResult identifies the queued document
type SubmitDocumentResult struct {
	DocumentID string
	JobID      uuid.UUID
	Duplicate  bool
}

func (s *DocumentService) ready() error {
	switch {
	case s.docs == nil:
		return errors.New("document repository not set")
	case s.jobs == nil:
		return errors.New("analysis job repository not set")
	case s.store == nil:
		return errors.New("storage not set")
	}
	return nil
}

// SubmitDocument stores an upload and queues its analysis. Text is extracted
// up front so unreadable files are rejected with *ExtractionError before any
// record is created. A byte-identical file that was already processed is not
// queued again.
func (s *DocumentService) SubmitDocument(ctx context.Context, req SubmitDocumentRequest) (*SubmitDocumentResult, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if len(req.Content) == 0 {
		return nil, ErrEmptyUpload
	}

	text, err := ExtractText(req.Filename, req.ContentType, req.Content)
	if err != nil {
		return nil, err
	}

	sum := blake2b.Sum256(req.Content)
	hash := hex.EncodeToString(sum[:])

	existing, err := s.docs.FindCompletedByHash(ctx, hash)
	if err != nil {
		return nil, fmt.Errorf("failed to check for duplicates: %w", err)
	}
	if existing != nil {
		s.logger.Info("duplicate upload", slog.String("document_id", existing.ID))
		return &SubmitDocumentResult{DocumentID: existing.ID, Duplicate: true}, nil
	}

	lang := req.Language
	if lang == "" {
		lang = "en"
	}
	contentType := req.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	doc := &models.Document{
		ID:          NewDocumentID(s.now()),
		Filename:    req.Filename,
		ContentType: contentType,
		FileSize:    int64(len(req.Content)),
		Language:    lang,
		ContentHash: hash,
		Status:      models.DocumentStarted,
		UploadedAt:  s.now(),
	}

	if err := s.store.Put(ctx, storage.DocumentOriginalKey(doc.ID, doc.Filename), bytes.NewReader(req.Content), contentType); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDocumentStoreFailed, err)
	}
	if err := s.store.Put(ctx, storage.DocumentTextKey(doc.ID), strings.NewReader(text), "text/plain"); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDocumentStoreFailed, err)
	}
	if err := s.docs.Create(ctx, doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDocumentStoreFailed, err)
	}
	s.writeMetadata(ctx, doc)

	job := &models.AnalysisJob{
		ID:         uuid.New(),
		DocumentID: doc.ID,
		Status:     models.JobStatusPending,
		Steps:      initializeSteps(),
	}
	if err := s.jobs.Create(ctx, job); err != nil {
		return nil, ErrJobCreationFailed
	}

	return &SubmitDocumentResult{DocumentID: doc.ID, JobID: job.ID}, nil
}

// NewDocumentID returns doc_<12 hex>_<unix seconds>
func NewDocumentID(now time.Time) string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return fmt.Sprintf("doc_%s_%d", id[:12], now.Unix())
}

func initializeSteps() models.AnalysisSteps {
	names := []string{StepExtractingText, StepSummarizingClauses, StepCheckingCompliance, StepStoringResults}
	steps := make(models.AnalysisSteps, 0, len(names))
	for _, n := range names {
		steps = append(steps, models.AnalysisStep{Name: n, Status: models.StepPending})
	}
	return steps
}

// ProcessDocument runs the analysis for a job. It is meant to run in a
// background goroutine; progress is visible through GetJobStatus.
func (s *DocumentService) ProcessDocument(ctx context.Context, jobID uuid.UUID) error {
	if err := s.ready(); err != nil {
		return err
	}
	if s.summarizer == nil || s.checker == nil {
		return errors.New("summarizer and compliance checker are required")
	}

	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		return fmt.Errorf("failed to load analysis job: %w", err)
	}
	doc, err := s.docs.GetByID(ctx, job.DocumentID)
	if err != nil {
		s.markFailed(ctx, job, nil, "failed to load document: "+err.Error())
		return err
	}

	if err := s.jobs.UpdateStatus(ctx, jobID, models.JobStatusInProgress); err != nil {
		return fmt.Errorf("failed to update job status: %w", err)
	}
	logger := s.logger.With(slog.String("document_id", doc.ID), slog.String("job_id", jobID.String()))

	// 1. Extracted text
	var text string
	err = s.runStep(ctx, job, StepExtractingText, func() error {
		r, err := s.store.Get(ctx, storage.DocumentTextKey(doc.ID))
		if err != nil {
			return err
		}
		defer r.Close()
		raw, err := io.ReadAll(r)
		text = string(raw)
		return err
	})
	if err != nil {
		s.markFailed(ctx, job, doc, "failed to load extracted text: "+err.Error())
		return err
	}

	// 2. Summary and clauses
	var summary *models.DocumentSummary
	err = s.runStep(ctx, job, StepSummarizingClauses, func() error {
		var err error
		summary, err = s.summarizer.Summarize(ctx, text, doc.Language)
		return err
	})
	if err != nil {
		s.markFailed(ctx, job, doc, "failed to summarize document: "+err.Error())
		return err
	}

	// 3. Compliance
	var result *models.ComplianceResult
	err = s.runStep(ctx, job, StepCheckingCompliance, func() error {
		var err error
		result, err = s.checker.EnsureCompliance(ctx, summary.Clauses)
		return err
	})
	if err != nil {
		s.markFailed(ctx, job, doc, "failed to check compliance: "+err.Error())
		return err
	}

	// 4. Results
	completedAt := s.now()
	err = s.runStep(ctx, job, StepStoringResults, func() error {
		results := models.DocumentResults{
			DocumentID:            doc.ID,
			Summary:               summary.Summary,
			Timelines:             summary.Timelines,
			Clauses:               summary.Clauses,
			ComplianceResults:     *result,
			ProcessingCompletedAt: completedAt,
		}
		if err := storage.PutJSON(ctx, s.store, storage.DocumentResultsKey(doc.ID), results); err != nil {
			return err
		}

		doc.Stats = result.Stats
		doc.OverallScore = result.Stats.ComplianceRate
		doc.RiskLevel = doc.DeriveRiskLevel()
		doc.Status = models.DocumentCompleted
		doc.ProcessedAt = &completedAt
		if err := s.docs.Complete(ctx, doc.ID, doc.Stats, doc.OverallScore, doc.RiskLevel); err != nil {
			return err
		}
		s.writeMetadata(ctx, doc)
		return nil
	})
	if err != nil {
		s.markFailed(ctx, job, doc, "failed to store results: "+err.Error())
		return err
	}

	s.publish(ctx, doc, result, completedAt)

	if err := s.jobs.Complete(ctx, jobID); err != nil {
		return fmt.Errorf("failed to complete job: %w", err)
	}
	metrics.ObserveDocument(string(models.DocumentCompleted))
	logger.Info("document processed",
		slog.Int("clauses", result.Stats.TotalClauses),
		slog.Float64("compliance_rate", result.Stats.ComplianceRate))
	return nil
}

// runStep marks a step in progress, runs fn, then marks it completed or failed
func (s *DocumentService) runStep(ctx context.Context, job *models.AnalysisJob, name string, fn func() error) error {
	if err := s.updateStepStatus(ctx, job, name, models.StepInProgress); err != nil {
		return err
	}
	if err := fn(); err != nil {
		if uerr := s.updateStepStatus(ctx, job, name, models.StepFailed); uerr != nil {
			s.logger.Warn("failed to record step failure", slog.String("step", name), slog.Any("error", uerr))
		}
		return err
	}
	return s.updateStepStatus(ctx, job, name, models.StepCompleted)
}

func (s *DocumentService) updateStepStatus(ctx context.Context, job *models.AnalysisJob, name, status string) error {
	job.Steps.SetStatus(name, status)
	if status == models.StepInProgress {
		job.CurrentStep = &name
	}
	current := ""
	if job.CurrentStep != nil {
		current = *job.CurrentStep
	}
	return s.jobs.UpdateProgress(ctx, job.ID, current, job.Steps)
}

// markFailed records the failure on the job and, when known, the document
func (s *DocumentService) markFailed(ctx context.Context, job *models.AnalysisJob, doc *models.Document, msg string) {
	// the job context may already be cancelled
	ctx = context.WithoutCancel(ctx)

	if err := s.jobs.Fail(ctx, job.ID, msg); err != nil {
		s.logger.Error("failed to mark job failed", slog.String("job_id", job.ID.String()), slog.Any("error", err))
	}
	if doc != nil {
		if err := s.docs.Fail(ctx, doc.ID, msg); err != nil {
			s.logger.Error("failed to mark document failed", slog.String("document_id", doc.ID), slog.Any("error", err))
		}
		doc.Status = models.DocumentFailed
		doc.ErrorMessage = &msg
		s.writeMetadata(ctx, doc)
	}
	metrics.ObserveDocument(string(models.DocumentFailed))
}

func (s *DocumentService) writeMetadata(ctx context.Context, doc *models.Document) {
	if err := storage.PutJSON(ctx, s.store, storage.DocumentMetadataKey(doc.ID), doc); err != nil {
		s.logger.Warn("failed to write document metadata", slog.String("document_id", doc.ID), slog.Any("error", err))
	}
}

func (s *DocumentService) publish(ctx context.Context, doc *models.Document, result *models.ComplianceResult, at time.Time) {
	report := events.ReportEvent{
		DocumentID:  doc.ID,
		Filename:    doc.Filename,
		Stats:       result.Stats,
		RiskLevel:   doc.RiskLevel,
		ProcessedAt: at,
	}
	if err := s.publisher.PublishReport(ctx, report); err != nil {
		s.logger.Warn("failed to publish report event", slog.String("document_id", doc.ID), slog.Any("error", err))
	}
	if err := s.publisher.PublishClauses(ctx, events.ClauseEvents(doc.ID, result, at)); err != nil {
		s.logger.Warn("failed to publish clause events", slog.String("document_id", doc.ID), slog.Any("error", err))
	}
}

// GetJobStatus retrieves an analysis job
func (s *DocumentService) GetJobStatus(ctx context.Context, jobID uuid.UUID) (*models.AnalysisJob, error) {
	if s.jobs == nil {
		return nil, errors.New("analysis job repository not set")
	}
	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to load analysis job: %w", err)
	}
	return job, nil
}

// GetDocument retrieves one document
func (s *DocumentService) GetDocument(ctx context.Context, id string) (*models.Document, error) {
	if s.docs == nil {
		return nil, errors.New("document repository not set")
	}
	doc, err := s.docs.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDocumentNotFound
		}
		return nil, fmt.Errorf("failed to load document: %w", err)
	}
	if doc.RiskLevel == "" && doc.Status == models.DocumentCompleted {
		doc.RiskLevel = doc.DeriveRiskLevel()
	}
	return doc, nil
}

// ListDocuments returns the most recent uploads. limit is clamped to 1..100, default 20.
func (s *DocumentService) ListDocuments(ctx context.Context, limit int) ([]models.Document, error) {
	if s.docs == nil {
		return nil, errors.New("document repository not set")
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	docs, err := s.docs.List(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	for i := range docs {
		if docs[i].RiskLevel == "" && docs[i].Status == models.DocumentCompleted {
			docs[i].RiskLevel = docs[i].DeriveRiskLevel()
		}
	}
	return docs, nil
}

// GetResults reads a processed document's results back from object storage
func (s *DocumentService) GetResults(ctx context.Context, documentID string) (*models.DocumentResults, error) {
	doc, err := s.GetDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if doc.Status != models.DocumentCompleted {
		return nil, ErrResultsNotReady
	}

	var results models.DocumentResults
	if err := storage.GetJSON(ctx, s.store, storage.DocumentResultsKey(documentID), &results); err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, ErrResultsNotReady
		}
		return nil, fmt.Errorf("failed to load results: %w", err)
	}
	return &results, nil
}
