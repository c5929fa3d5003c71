package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// SchemaStatement is one DDL step with a human-readable label
type SchemaStatement struct {
	Name string
	SQL  string
}

// RegulationChunkSchema creates the pgvector-backed regulation index
var RegulationChunkSchema = []SchemaStatement{
	{Name: "pgvector extension", SQL: "CREATE EXTENSION IF NOT EXISTS vector"},
	{Name: "regulation_chunks table", SQL: `
CREATE TABLE IF NOT EXISTS regulation_chunks (
    chunk_id VARCHAR(255) PRIMARY KEY,
    doc_id VARCHAR(255) NOT NULL,
    clause_id VARCHAR(255) NOT NULL DEFAULT '',
    chunk_text TEXT NOT NULL,
    embedding_model VARCHAR(100) NOT NULL DEFAULT '',
    embedding vector(768) NOT NULL,
    created_at TIMESTAMP DEFAULT NOW()
)`},
	{Name: "vector similarity search (HNSW)", SQL: `
CREATE INDEX IF NOT EXISTS idx_regulation_embedding_hnsw ON regulation_chunks
USING hnsw (embedding vector_cosine_ops)
WITH (m = 16, ef_construction = 64)`},
	{Name: "full text search", SQL: `
CREATE INDEX IF NOT EXISTS idx_regulation_text_fts ON regulation_chunks
USING gin (to_tsvector('english', chunk_text))`},
	{Name: "document filtering", SQL: "CREATE INDEX IF NOT EXISTS idx_regulation_doc_id ON regulation_chunks(doc_id)"},
}

// DocumentSchema creates the documents and analysis_jobs tables
var DocumentSchema = []SchemaStatement{
	{Name: "documents table", SQL: `
CREATE TABLE IF NOT EXISTS documents (
    id VARCHAR(64) PRIMARY KEY,
    filename VARCHAR(512) NOT NULL,
    content_type VARCHAR(128) NOT NULL,
    file_size BIGINT NOT NULL,
    language VARCHAR(16) NOT NULL DEFAULT 'en',
    content_hash VARCHAR(64) NOT NULL,
    status VARCHAR(20) NOT NULL DEFAULT 'started'
        CHECK (status IN ('started', 'completed', 'failed')),
    stats JSONB NOT NULL DEFAULT '{}'::jsonb,
    overall_score DOUBLE PRECISION NOT NULL DEFAULT 0,
    risk_level VARCHAR(16) NOT NULL DEFAULT '',
    error_message TEXT,
    uploaded_at TIMESTAMP NOT NULL DEFAULT NOW(),
    processed_at TIMESTAMP
)`},
	{Name: "content hash lookup", SQL: "CREATE INDEX IF NOT EXISTS idx_documents_content_hash ON documents(content_hash)"},
	{Name: "recent documents", SQL: "CREATE INDEX IF NOT EXISTS idx_documents_uploaded_at ON documents(uploaded_at DESC)"},
	{Name: "analysis_jobs table", SQL: `
CREATE TABLE IF NOT EXISTS analysis_jobs (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    document_id VARCHAR(64) NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
    status VARCHAR(20) NOT NULL DEFAULT 'pending'
        CHECK (status IN ('pending', 'in_progress', 'completed', 'failed')),
    current_step VARCHAR(100),
    steps JSONB NOT NULL DEFAULT '[]'::jsonb,
    error_message TEXT,
    created_at TIMESTAMP NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP NOT NULL DEFAULT NOW(),
    completed_at TIMESTAMP
)`},
	{Name: "jobs by document", SQL: "CREATE INDEX IF NOT EXISTS idx_analysis_jobs_document_id ON analysis_jobs(document_id)"},
}

// ApplySchema runs statements in order and stops at the first failure
func ApplySchema(ctx context.Context, db *pgxpool.Pool, statements []SchemaStatement) error {
	for _, st := range statements {
		if _, err := db.Exec(ctx, st.SQL); err != nil {
			return fmt.Errorf("failed to create %s: %w", st.Name, err)
		}
	}
	return nil
}
