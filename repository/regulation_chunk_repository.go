package repository

import (
	"context"
	"fmt"
	"strings"

	"clausecheck-backend/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// RegulationChunkRepository stores the regulation corpus in Postgres and serves
// hybrid full-text plus pgvector queries
type RegulationChunkRepository struct {
	db *pgxpool.Pool
}

// NewRegulationChunkRepository creates a new regulation chunk repository
func NewRegulationChunkRepository(db *pgxpool.Pool) *RegulationChunkRepository {
	return &RegulationChunkRepository{db: db}
}

// formatVector formats an embedding vector as a string for pgx
func formatVector(embedding []float64) string {
	if len(embedding) == 0 {
		return "[]"
	}
	parts := make([]string, len(embedding))
	for i, v := range embedding {
		parts[i] = fmt.Sprintf("%.6f", v)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

func (r *RegulationChunkRepository) Name() string { return "pgvector" }

func (r *RegulationChunkRepository) Ping(ctx context.Context) error {
	return r.db.Ping(ctx)
}

func (r *RegulationChunkRepository) IndexExists(ctx context.Context) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, "SELECT to_regclass('public.regulation_chunks') IS NOT NULL").Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check regulation_chunks: %w", err)
	}
	return exists, nil
}

func (r *RegulationChunkRepository) CreateIndex(ctx context.Context) error {
	return ApplySchema(ctx, r.db, RegulationChunkSchema)
}

func (r *RegulationChunkRepository) DropIndex(ctx context.Context) error {
	_, err := r.db.Exec(ctx, "DROP TABLE IF EXISTS regulation_chunks CASCADE")
	return err
}

// BulkIndex upserts chunks in a single batch round trip
func (r *RegulationChunkRepository) BulkIndex(ctx context.Context, chunks []models.RegulationChunk) error {
	if len(chunks) == 0 {
		return nil
	}

	query := `
		INSERT INTO regulation_chunks (
			chunk_id, doc_id, clause_id, chunk_text, embedding_model, embedding
		) VALUES ($1, $2, $3, $4, $5, $6::vector)
		ON CONFLICT (chunk_id) DO UPDATE SET
			doc_id = EXCLUDED.doc_id,
			clause_id = EXCLUDED.clause_id,
			chunk_text = EXCLUDED.chunk_text,
			embedding_model = EXCLUDED.embedding_model,
			embedding = EXCLUDED.embedding`

	batch := &pgx.Batch{}
	for _, c := range chunks {
		if len(c.Embedding) != models.EmbeddingDimensions {
			return fmt.Errorf("chunk %s: embedding must be %d dimensions, got %d",
				c.ChunkID, models.EmbeddingDimensions, len(c.Embedding))
		}
		batch.Queue(query, c.ChunkID, c.DocID, c.ClauseID, c.Text, c.EmbeddingModel, formatVector(c.Embedding))
	}

	results := r.db.SendBatch(ctx, batch)
	defer results.Close()
	for _, c := range chunks {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("failed to insert chunk %s: %w", c.ChunkID, err)
		}
	}
	return results.Close()
}

// hybridCandidates is how many chunks each branch contributes per requested result
const hybridCandidates = 4

// HybridSearch ranks chunks by ts_rank_cd on the text plus cosine similarity + 1.0.
// Candidates are the nearest neighbours from the HNSW index unioned with the
// full-text matches from the GIN index, so a chunk found by either branch can rank.
func (r *RegulationChunkRepository) HybridSearch(ctx context.Context, text string, vector []float64, topK int) ([]models.CandidateRule, error) {
	if len(vector) != models.EmbeddingDimensions {
		return nil, fmt.Errorf("embedding must be %d dimensions, got %d", models.EmbeddingDimensions, len(vector))
	}
	pool := topK * hybridCandidates
	if pool < 20 {
		pool = 20
	}

	query := `
		WITH q AS (
			SELECT plainto_tsquery('english', $2) AS tsq
		),
		by_vector AS (
			SELECT chunk_id
			FROM regulation_chunks
			ORDER BY embedding <=> $1::vector
			LIMIT $4
		),
		by_text AS (
			SELECT chunk_id
			FROM regulation_chunks, q
			WHERE to_tsvector('english', chunk_text) @@ q.tsq
			ORDER BY ts_rank_cd(to_tsvector('english', chunk_text), q.tsq) DESC
			LIMIT $4
		),
		candidates AS (
			SELECT chunk_id FROM by_vector
			UNION
			SELECT chunk_id FROM by_text
		)
		SELECT
			c.chunk_text,
			c.doc_id,
			c.clause_id,
			c.chunk_id,
			COALESCE(ts_rank_cd(to_tsvector('english', c.chunk_text), q.tsq), 0)
				+ (1 - (c.embedding <=> $1::vector)) + 1.0 AS score
		FROM regulation_chunks c
		JOIN candidates USING (chunk_id)
		CROSS JOIN q
		ORDER BY score DESC
		LIMIT $3`

	rows, err := r.db.Query(ctx, query, formatVector(vector), text, topK, pool)
	if err != nil {
		return nil, fmt.Errorf("failed to query regulation chunks: %w", err)
	}
	defer rows.Close()

	rules := make([]models.CandidateRule, 0, topK)
	for rows.Next() {
		var rule models.CandidateRule
		err := rows.Scan(
			&rule.RuleText,
			&rule.Metadata.DocID,
			&rule.Metadata.ClauseID,
			&rule.Metadata.ChunkID,
			&rule.Metadata.RelevanceScore,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan regulation chunk: %w", err)
		}
		rules = append(rules, rule)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating regulation chunks: %w", err)
	}

	return rules, nil
}
