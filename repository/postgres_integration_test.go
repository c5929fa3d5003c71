//go:build integration

package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"clausecheck-backend/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
)

type PostgresSuite struct {
	suite.Suite
	container *tcpostgres.PostgresContainer
	db        *pgxpool.Pool
}

func TestPostgresSuite(t *testing.T) {
	suite.Run(t, new(PostgresSuite))
}

func (s *PostgresSuite) SetupSuite() {
	ctx := context.Background()
	container, err := tcpostgres.Run(ctx, "pgvector/pgvector:pg16",
		tcpostgres.WithDatabase("clausecheck"),
		tcpostgres.WithUsername("clausecheck"),
		tcpostgres.WithPassword("clausecheck"),
		tcpostgres.BasicWaitStrategies(),
	)
	s.Require().NoError(err)
	s.container = container

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	s.Require().NoError(err)
	s.db, err = pgxpool.New(ctx, dsn)
	s.Require().NoError(err)

	s.Require().NoError(ApplySchema(ctx, s.db, DocumentSchema))
}

func (s *PostgresSuite) TearDownSuite() {
	if s.db != nil {
		s.db.Close()
	}
	if s.container != nil {
		_ = testcontainers.TerminateContainer(s.container)
	}
}

func unitVector(hot int) []float64 {
	v := make([]float64, models.EmbeddingDimensions)
	v[hot] = 1
	return v
}

func (s *PostgresSuite) TestRegulationIndexLifecycle() {
	ctx := context.Background()
	repo := NewRegulationChunkRepository(s.db)

	exists, err := repo.IndexExists(ctx)
	s.Require().NoError(err)
	s.False(exists)

	s.Require().NoError(repo.CreateIndex(ctx))
	exists, err = repo.IndexExists(ctx)
	s.Require().NoError(err)
	s.True(exists)

	chunks := []models.RegulationChunk{
		{ChunkID: "c1", DocID: "sebi-1", ClauseID: "1", Text: "Stock brokers must segregate client funds", Embedding: unitVector(0)},
		{ChunkID: "c2", DocID: "sebi-2", ClauseID: "2", Text: "Mutual funds must disclose expense ratios", Embedding: unitVector(1)},
		{ChunkID: "c3", DocID: "sebi-3", ClauseID: "3", Text: "Insider trading is prohibited", Embedding: unitVector(2)},
	}
	s.Require().NoError(repo.BulkIndex(ctx, chunks))
	s.Require().NoError(repo.BulkIndex(ctx, chunks[:1]))

	rules, err := repo.HybridSearch(ctx, "client funds", unitVector(0), 2)
	s.Require().NoError(err)
	s.Require().Len(rules, 2)
	s.Equal("c1", rules[0].Metadata.ChunkID)
	s.Greater(rules[0].Metadata.RelevanceScore, rules[1].Metadata.RelevanceScore)

	// text match with no nearby vector
	rules, err = repo.HybridSearch(ctx, "insider trading", unitVector(5), 1)
	s.Require().NoError(err)
	s.Require().Len(rules, 1)
	s.Equal("c3", rules[0].Metadata.ChunkID)

	// nearest vector with no text match
	rules, err = repo.HybridSearch(ctx, "zebra", unitVector(1), 1)
	s.Require().NoError(err)
	s.Require().Len(rules, 1)
	s.Equal("c2", rules[0].Metadata.ChunkID)

	err = repo.BulkIndex(ctx, []models.RegulationChunk{{ChunkID: "bad", Embedding: []float64{1}}})
	s.Error(err)

	s.Require().NoError(repo.DropIndex(ctx))
	exists, err = repo.IndexExists(ctx)
	s.Require().NoError(err)
	s.False(exists)
}

func (s *PostgresSuite) TestDocumentAndJobLifecycle() {
	ctx := context.Background()
	docs := NewDocumentRepository(s.db)
	jobs := NewAnalysisJobRepository(s.db)

	doc := &models.Document{
		ID:          fmt.Sprintf("doc_%s", uuid.NewString()[:12]),
		Filename:    "agreement.pdf",
		ContentType: "application/pdf",
		FileSize:    1024,
		Language:    "en",
		ContentHash: "hash-1",
		Status:      models.DocumentStarted,
	}
	s.Require().NoError(docs.Create(ctx, doc))
	s.False(doc.UploadedAt.IsZero())

	found, err := docs.FindCompletedByHash(ctx, "hash-1")
	s.Require().NoError(err)
	s.Nil(found)

	job := &models.AnalysisJob{
		ID:         uuid.New(),
		DocumentID: doc.ID,
		Status:     models.JobStatusPending,
		Steps:      models.AnalysisSteps{{Name: "Extracting Text", Status: models.StepPending}},
	}
	s.Require().NoError(jobs.Create(ctx, job))

	job.Steps.SetStatus("Extracting Text", models.StepCompleted)
	s.Require().NoError(jobs.UpdateProgress(ctx, job.ID, "Extracting Text", job.Steps))
	s.Require().NoError(jobs.Complete(ctx, job.ID))

	loaded, err := jobs.GetByID(ctx, job.ID)
	s.Require().NoError(err)
	s.Equal(models.JobStatusCompleted, loaded.Status)
	s.Equal(models.StepCompleted, loaded.Steps[0].Status)
	s.NotNil(loaded.CompletedAt)

	stats := models.ComplianceReport{TotalClauses: 4, CompliantCount: 3, ComplianceRate: 75}
	s.Require().NoError(docs.Complete(ctx, doc.ID, stats, 75, "low"))

	found, err = docs.FindCompletedByHash(ctx, "hash-1")
	s.Require().NoError(err)
	s.Require().NotNil(found)
	s.Equal(doc.ID, found.ID)
	s.Equal(75.0, found.Stats.ComplianceRate)
	s.Equal("low", found.RiskLevel)

	list, err := docs.List(ctx, 10)
	s.Require().NoError(err)
	s.NotEmpty(list)

	_, err = jobs.GetByID(ctx, uuid.New())
	s.ErrorIs(err, pgx.ErrNoRows)
	s.ErrorIs(jobs.Fail(ctx, uuid.New(), "nope"), pgx.ErrNoRows)
	s.ErrorIs(docs.Fail(ctx, "doc_missing", "nope"), pgx.ErrNoRows)
}

func (s *PostgresSuite) TestFailAbandonedJobs() {
	ctx := context.Background()
	docs := NewDocumentRepository(s.db)
	jobs := NewAnalysisJobRepository(s.db)

	doc := &models.Document{
		ID:          fmt.Sprintf("doc_%s", uuid.NewString()[:12]),
		Filename:    "stale.txt",
		ContentType: "text/plain",
		FileSize:    10,
		Language:    "en",
		ContentHash: "hash-stale",
		Status:      models.DocumentStarted,
	}
	s.Require().NoError(docs.Create(ctx, doc))
	running := &models.AnalysisJob{ID: uuid.New(), DocumentID: doc.ID, Status: models.JobStatusInProgress}
	s.Require().NoError(jobs.Create(ctx, running))

	ids, err := jobs.FailAbandoned(ctx, time.Hour, "restart")
	s.Require().NoError(err)
	s.Empty(ids)

	ids, err = jobs.FailAbandoned(ctx, 0, "restart")
	s.Require().NoError(err)
	s.Contains(ids, doc.ID)

	loaded, err := jobs.GetByID(ctx, running.ID)
	s.Require().NoError(err)
	s.Equal(models.JobStatusFailed, loaded.Status)
	s.Require().NotNil(loaded.ErrorMessage)
	s.Equal("restart", *loaded.ErrorMessage)
}
