package service

import (
	"context"
	"regexp"
	"testing"
	"time"

	"clausecheck-backend/models"
	"clausecheck-backend/storage"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type DocumentServiceSuite struct {
	suite.Suite
	docs       *memDocs
	jobs       *memJobs
	store      *storage.LocalStorage
	summarizer *stubSummarizer
	checker    *stubChecker
	publisher  *recordingPublisher
	svc        *DocumentService
	now        time.Time
}

func (s *DocumentServiceSuite) SetupTest() {
	var err error
	s.docs = newMemDocs()
	s.jobs = newMemJobs()
	s.store, err = storage.NewLocalStorage(s.T().TempDir())
	s.Require().NoError(err)
	s.summarizer = &stubSummarizer{summary: &models.DocumentSummary{
		Summary: "Service agreement between two parties.",
		Clauses: []models.Clause{
			{ClauseID: "C-1", Text: "The supplier keeps customer data for 30 days."},
			{ClauseID: "C-2", Text: "Invoices are payable within 60 days."},
		},
	}}
	s.checker = &stubChecker{}
	s.publisher = &recordingPublisher{}
	s.now = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	s.svc = NewDocumentService(
		DocWithDocumentStore(s.docs),
		DocWithJobStore(s.jobs),
		DocWithStorage(s.store),
		DocWithSummarizer(s.summarizer),
		DocWithChecker(s.checker),
		DocWithPublisher(s.publisher),
		DocWithClock(func() time.Time { return s.now }),
	)
}

func (s *DocumentServiceSuite) submit(content string) *SubmitDocumentResult {
	res, err := s.svc.SubmitDocument(context.Background(), SubmitDocumentRequest{
		Filename:    "contract.txt",
		ContentType: "text/plain",
		Content:     []byte(content),
	})
	s.Require().NoError(err)
	return res
}

func (s *DocumentServiceSuite) TestSubmitStoresOriginalAndText() {
	ctx := context.Background()
	res := s.submit("  Clause one.\nClause two.  ")

	s.False(res.Duplicate)
	s.NotEqual(uuid.Nil, res.JobID)

	doc, err := s.svc.GetDocument(ctx, res.DocumentID)
	s.Require().NoError(err)
	s.Equal(models.DocumentStarted, doc.Status)
	s.Equal("en", doc.Language)
	s.Len(doc.ContentHash, 64)

	var meta models.Document
	s.Require().NoError(storage.GetJSON(ctx, s.store, storage.DocumentMetadataKey(res.DocumentID), &meta))
	s.Equal("contract.txt", meta.Filename)

	job, err := s.svc.GetJobStatus(ctx, res.JobID)
	s.Require().NoError(err)
	s.Equal(models.JobStatusPending, job.Status)
	s.Require().Len(job.Steps, 4)
	s.Equal(StepExtractingText, job.Steps[0].Name)
	s.Equal(StepStoringResults, job.Steps[3].Name)
}

func (s *DocumentServiceSuite) TestSubmitRejectsEmptyAndUnreadable() {
	ctx := context.Background()
	_, err := s.svc.SubmitDocument(ctx, SubmitDocumentRequest{Filename: "a.txt"})
	s.ErrorIs(err, ErrEmptyUpload)

	_, err = s.svc.SubmitDocument(ctx, SubmitDocumentRequest{
		Filename:    "image.png",
		ContentType: "image/png",
		Content:     []byte{0x89, 'P', 'N', 'G'},
	})
	var extractErr *ExtractionError
	s.ErrorAs(err, &extractErr)
	s.Empty(s.docs.docs)
}

func (s *DocumentServiceSuite) TestProcessDocumentHappyPath() {
	ctx := context.Background()
	res := s.submit("Clause one. Clause two.")

	s.Require().NoError(s.svc.ProcessDocument(ctx, res.JobID))

	s.Equal("Clause one. Clause two.", s.summarizer.text)
	s.Len(s.checker.clauses, 2)
	s.Equal([]string{
		StepExtractingText + ":in_progress", StepExtractingText + ":completed",
		StepSummarizingClauses + ":in_progress", StepSummarizingClauses + ":completed",
		StepCheckingCompliance + ":in_progress", StepCheckingCompliance + ":completed",
		StepStoringResults + ":in_progress", StepStoringResults + ":completed",
	}, s.jobs.progress)

	job, err := s.svc.GetJobStatus(ctx, res.JobID)
	s.Require().NoError(err)
	s.Equal(models.JobStatusCompleted, job.Status)

	doc, err := s.svc.GetDocument(ctx, res.DocumentID)
	s.Require().NoError(err)
	s.Equal(models.DocumentCompleted, doc.Status)
	s.Equal(100.0, doc.OverallScore)
	s.Equal("low", doc.RiskLevel)

	results, err := s.svc.GetResults(ctx, res.DocumentID)
	s.Require().NoError(err)
	s.Equal(res.DocumentID, results.DocumentID)
	s.Len(results.ComplianceResults.VerificationResults, 2)
	s.True(s.now.Equal(results.ProcessingCompletedAt))

	s.Require().Len(s.publisher.reports, 1)
	s.Equal(res.DocumentID, s.publisher.reports[0].DocumentID)
}

func (s *DocumentServiceSuite) TestDuplicateUploadReturnsExistingDocument() {
	ctx := context.Background()
	first := s.submit("Same bytes.")
	s.Require().NoError(s.svc.ProcessDocument(ctx, first.JobID))

	second := s.submit("Same bytes.")
	s.True(second.Duplicate)
	s.Equal(first.DocumentID, second.DocumentID)
	s.Equal(uuid.Nil, second.JobID)
}

func (s *DocumentServiceSuite) TestProcessDocumentFailureMarksJobAndDocument() {
	ctx := context.Background()
	s.checker.err = errBoom
	res := s.submit("Clause one.")

	err := s.svc.ProcessDocument(ctx, res.JobID)
	s.ErrorIs(err, errBoom)

	job, err := s.svc.GetJobStatus(ctx, res.JobID)
	s.Require().NoError(err)
	s.Equal(models.JobStatusFailed, job.Status)
	s.Require().NotNil(job.ErrorMessage)
	s.Contains(*job.ErrorMessage, "failed to check compliance")
	s.Equal(models.StepFailed, job.Steps[2].Status)
	s.Equal(models.StepPending, job.Steps[3].Status)

	doc, err := s.svc.GetDocument(ctx, res.DocumentID)
	s.Require().NoError(err)
	s.Equal(models.DocumentFailed, doc.Status)

	_, err = s.svc.GetResults(ctx, res.DocumentID)
	s.ErrorIs(err, ErrResultsNotReady)
	s.Empty(s.publisher.reports)
}

func (s *DocumentServiceSuite) TestSummarizerFailure() {
	s.summarizer.err = errBoom
	res := s.submit("Clause one.")

	err := s.svc.ProcessDocument(context.Background(), res.JobID)
	s.ErrorIs(err, errBoom)
	s.Contains(s.docs.failMsg[res.DocumentID], "failed to summarize document")
	s.Nil(s.checker.clauses)
}

func (s *DocumentServiceSuite) TestResultsNotReadyBeforeProcessing() {
	res := s.submit("Clause one.")
	_, err := s.svc.GetResults(context.Background(), res.DocumentID)
	s.ErrorIs(err, ErrResultsNotReady)
}

func (s *DocumentServiceSuite) TestNotFound() {
	ctx := context.Background()
	_, err := s.svc.GetDocument(ctx, "doc_missing")
	s.ErrorIs(err, ErrDocumentNotFound)

	_, err = s.svc.GetJobStatus(ctx, uuid.New())
	s.ErrorIs(err, ErrJobNotFound)

	_, err = s.svc.GetResults(ctx, "doc_missing")
	s.ErrorIs(err, ErrDocumentNotFound)
}

func (s *DocumentServiceSuite) TestListDocumentsNewestFirst() {
	first := s.submit("First document.")
	second := s.submit("Second document.")

	docs, err := s.svc.ListDocuments(context.Background(), 0)
	s.Require().NoError(err)
	s.Require().Len(docs, 2)
	s.Equal(second.DocumentID, docs[0].ID)
	s.Equal(first.DocumentID, docs[1].ID)

	docs, err = s.svc.ListDocuments(context.Background(), 1)
	s.Require().NoError(err)
	s.Len(docs, 1)
}

func TestDocumentServiceSuite(t *testing.T) {
	suite.Run(t, new(DocumentServiceSuite))
}

func TestNewDocumentID(t *testing.T) {
	now := time.Unix(1700000000, 0)
	id := NewDocumentID(now)
	assert.Regexp(t, regexp.MustCompile(`^doc_[0-9a-f]{12}_1700000000$`), id)
	assert.NotEqual(t, id, NewDocumentID(now))
}

func TestDocumentServiceRequiresStores(t *testing.T) {
	svc := NewDocumentService()
	_, err := svc.SubmitDocument(context.Background(), SubmitDocumentRequest{Content: []byte("x")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "document repository not set")

	svc = NewDocumentService(
		DocWithDocumentStore(newMemDocs()),
		DocWithJobStore(newMemJobs()),
		DocWithStorage(&storage.LocalStorage{}),
	)
	err = svc.ProcessDocument(context.Background(), uuid.New())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "summarizer and compliance checker are required")
}
