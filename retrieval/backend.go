package retrieval

import (
	"context"
	"errors"
	"fmt"

	"clausecheck-backend/models"
)

// SearchBackend is a hybrid (lexical + vector) index holding the regulation corpus.
// Each document carries {text, doc_id, clause_id, chunk_id, embedding[768]}.
type SearchBackend interface {
	Name() string
	Ping(ctx context.Context) error
	IndexExists(ctx context.Context) (bool, error)
	CreateIndex(ctx context.Context) error
	DropIndex(ctx context.Context) error
	BulkIndex(ctx context.Context, chunks []models.RegulationChunk) error
	// HybridSearch ranks by lexical score on text plus cosine(vector, embedding)+1.0
	HybridSearch(ctx context.Context, text string, vector []float64, topK int) ([]models.CandidateRule, error)
}

// RetrievalUnavailableError wraps a failure of the search backend or the embedding model
type RetrievalUnavailableError struct {
	Stage string // ping, embed, search
	Err   error
}

func (e *RetrievalUnavailableError) Error() string {
	return fmt.Sprintf("retrieval unavailable (%s): %v", e.Stage, e.Err)
}

func (e *RetrievalUnavailableError) Unwrap() error {
	return e.Err
}

var (
	// ErrEmbeddingMismatch means the corpus was embedded with a different model or size than queries use
	ErrEmbeddingMismatch = errors.New("corpus embedding model does not match query embedding model")

	// ErrNoBackend is returned when retrieval is disabled
	ErrNoBackend = errors.New("no search backend configured")
)

// RetrievalErrorPrefix marks placeholder candidates produced in degraded mode
const RetrievalErrorPrefix = "Retrieval error: "
