package repository

import (
	"context"
	"errors"
	"time"

	"clausecheck-backend/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DocumentRepository handles database operations for uploaded documents
type DocumentRepository struct {
	db *pgxpool.Pool
}

// NewDocumentRepository creates a new document repository
func NewDocumentRepository(db *pgxpool.Pool) *DocumentRepository {
	return &DocumentRepository{db: db}
}

const documentColumns = `id, filename, content_type, file_size, language, content_hash,
	status, stats, overall_score, risk_level, error_message, uploaded_at, processed_at`

func scanDocument(row pgx.Row) (*models.Document, error) {
	doc := &models.Document{}
	err := row.Scan(
		&doc.ID,
		&doc.Filename,
		&doc.ContentType,
		&doc.FileSize,
		&doc.Language,
		&doc.ContentHash,
		&doc.Status,
		&doc.Stats,
		&doc.OverallScore,
		&doc.RiskLevel,
		&doc.ErrorMessage,
		&doc.UploadedAt,
		&doc.ProcessedAt,
	)
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// Create inserts a new document
func (r *DocumentRepository) Create(ctx context.Context, doc *models.Document) error {
	query := `
		INSERT INTO documents (
			id, filename, content_type, file_size, language, content_hash, status, stats
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING uploaded_at`

	return r.db.QueryRow(
		ctx, query,
		doc.ID,
		doc.Filename,
		doc.ContentType,
		doc.FileSize,
		doc.Language,
		doc.ContentHash,
		doc.Status,
		doc.Stats,
	).Scan(&doc.UploadedAt)
}

// GetByID retrieves a document by ID
func (r *DocumentRepository) GetByID(ctx context.Context, id string) (*models.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE id = $1`
	return scanDocument(r.db.QueryRow(ctx, query, id))
}

// FindCompletedByHash returns the latest completed document with the given content hash, or nil
func (r *DocumentRepository) FindCompletedByHash(ctx context.Context, hash string) (*models.Document, error) {
	query := `SELECT ` + documentColumns + `
		FROM documents
		WHERE content_hash = $1 AND status = $2
		ORDER BY uploaded_at DESC
		LIMIT 1`

	doc, err := scanDocument(r.db.QueryRow(ctx, query, hash, models.DocumentCompleted))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return doc, err
}

// List returns the most recently uploaded documents
func (r *DocumentRepository) List(ctx context.Context, limit int) ([]models.Document, error) {
	query := `SELECT ` + documentColumns + `
		FROM documents
		ORDER BY uploaded_at DESC
		LIMIT $1`

	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	docs := make([]models.Document, 0)
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}
	return docs, rows.Err()
}

// Complete stores the final stats of a processed document
func (r *DocumentRepository) Complete(ctx context.Context, id string, stats models.ComplianceReport, overallScore float64, riskLevel string) error {
	query := `
		UPDATE documents SET
			status = $2,
			stats = $3,
			overall_score = $4,
			risk_level = $5,
			processed_at = $6
		WHERE id = $1`

	tag, err := r.db.Exec(ctx, query, id, models.DocumentCompleted, stats, overallScore, riskLevel, time.Now())
	if err != nil {
		return err
	}
	return requireRow(tag)
}

// Fail marks a document as failed
func (r *DocumentRepository) Fail(ctx context.Context, id string, errorMessage string) error {
	query := `
		UPDATE documents SET
			status = $2,
			error_message = $3,
			processed_at = $4
		WHERE id = $1`

	tag, err := r.db.Exec(ctx, query, id, models.DocumentFailed, errorMessage, time.Now())
	if err != nil {
		return err
	}
	return requireRow(tag)
}
