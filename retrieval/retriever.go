package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"clausecheck-backend/metrics"
	"clausecheck-backend/models"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

var tracer = otel.Tracer("clausecheck-backend/retrieval")

const (
	// DefaultTopK is the number of candidates returned per clause when none is given
	DefaultTopK = 5

	defaultBulkBatch         = 200
	defaultSearchConcurrency = 4
)

// Retriever finds candidate regulations for clauses through a hybrid search backend
type Retriever struct {
	backend           SearchBackend
	embedder          Embedder
	corpus            CorpusSource
	logger            *slog.Logger
	bulkBatch         int
	searchConcurrency int

	ensureMu sync.Mutex
}

// RetrieverOption configures a Retriever
type RetrieverOption func(*Retriever)

// WithCorpus sets the source used to bootstrap a missing index
func WithCorpus(c CorpusSource) RetrieverOption {
	return func(r *Retriever) {
		r.corpus = c
	}
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) RetrieverOption {
	return func(r *Retriever) {
		r.logger = l
	}
}

// WithBulkBatchSize sets how many chunks go into one bulk request
func WithBulkBatchSize(n int) RetrieverOption {
	return func(r *Retriever) {
		if n > 0 {
			r.bulkBatch = n
		}
	}
}

// WithSearchConcurrency bounds the number of parallel per-clause searches
func WithSearchConcurrency(n int) RetrieverOption {
	return func(r *Retriever) {
		if n > 0 {
			r.searchConcurrency = n
		}
	}
}

// NewRetriever creates a retriever. A nil backend or embedder yields degraded results.
func NewRetriever(backend SearchBackend, embedder Embedder, opts ...RetrieverOption) *Retriever {
	r := &Retriever{
		backend:           backend,
		embedder:          embedder,
		logger:            slog.Default(),
		bulkBatch:         defaultBulkBatch,
		searchConcurrency: defaultSearchConcurrency,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With(slog.String("component", "retriever"), slog.String("backend", r.backendName()))
	return r
}

func (r *Retriever) backendName() string {
	if r.backend == nil {
		return "none"
	}
	return r.backend.Name()
}

// Retrieve returns one entry per clause, in input order. It never fails: when the
// backend or the embedder is unavailable each clause gets a single placeholder
// candidate whose text starts with "Retrieval error: ".
func (r *Retriever) Retrieve(ctx context.Context, clauses []models.Clause, topK int) []models.ClauseMatches {
	ctx, span := tracer.Start(ctx, "Retriever.Retrieve")
	defer span.End()
	span.SetAttributes(attribute.Int("clauses", len(clauses)), attribute.String("backend", r.backendName()))

	out := make([]models.ClauseMatches, len(clauses))
	if len(clauses) == 0 {
		return out
	}
	if topK <= 0 {
		topK = DefaultTopK
	}

	if r.backend == nil || r.embedder == nil {
		return r.degradeAll(clauses, &RetrievalUnavailableError{Stage: "config", Err: ErrNoBackend})
	}
	if err := r.backend.Ping(ctx); err != nil {
		return r.degradeAll(clauses, &RetrievalUnavailableError{Stage: "ping", Err: err})
	}

	texts := make([]string, len(clauses))
	for i, c := range clauses {
		texts[i] = c.Text
	}
	vectors, err := r.embedder.Encode(ctx, texts)
	if err == nil && len(vectors) != len(clauses) {
		err = fmt.Errorf("embedder returned %d vectors for %d clauses", len(vectors), len(clauses))
	}
	if err != nil {
		return r.degradeAll(clauses, &RetrievalUnavailableError{Stage: "embed", Err: err})
	}

	var g errgroup.Group
	g.SetLimit(r.searchConcurrency)
	for i := range clauses {
		i := i
		g.Go(func() error {
			matches, err := r.backend.HybridSearch(ctx, clauses[i].Text, vectors[i], topK)
			if err != nil {
				uerr := &RetrievalUnavailableError{Stage: "search", Err: err}
				r.logger.Warn("search failed, degrading clause",
					slog.String("clause_id", clauses[i].ClauseID), slog.Any("error", err))
				out[i] = placeholder(clauses[i], uerr)
				metrics.ObserveRetrieval(r.backendName(), true, 1)
				return nil
			}
			if len(matches) > topK {
				matches = matches[:topK]
			}
			if matches == nil {
				matches = make([]models.CandidateRule, 0)
			}
			out[i] = models.ClauseMatches{Clause: clauses[i], Matches: matches}
			metrics.ObserveRetrieval(r.backendName(), false, 1)
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func (r *Retriever) degradeAll(clauses []models.Clause, err error) []models.ClauseMatches {
	r.logger.Warn("retrieval unavailable, returning placeholders",
		slog.Int("clauses", len(clauses)), slog.Any("error", err))
	metrics.ObserveRetrieval(r.backendName(), true, len(clauses))

	out := make([]models.ClauseMatches, len(clauses))
	for i, c := range clauses {
		out[i] = placeholder(c, err)
	}
	return out
}

func placeholder(c models.Clause, err error) models.ClauseMatches {
	return models.ClauseMatches{
		Clause:   c,
		Matches:  []models.CandidateRule{{RuleText: RetrievalErrorPrefix + err.Error()}},
		Degraded: true,
	}
}

// EnsureIndex creates and loads the index when it does not exist yet. It is safe to
// call repeatedly; an existing index is left untouched. A failed load drops the
// half-built index so the next call starts over.
func (r *Retriever) EnsureIndex(ctx context.Context) error {
	if r.backend == nil {
		return ErrNoBackend
	}

	r.ensureMu.Lock()
	defer r.ensureMu.Unlock()

	exists, err := r.backend.IndexExists(ctx)
	if err != nil {
		return fmt.Errorf("failed to check index: %w", err)
	}
	if exists {
		r.logger.Debug("index already exists")
		return nil
	}

	if err := r.backend.CreateIndex(ctx); err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	r.logger.Info("created index")

	if r.corpus == nil {
		r.logger.Warn("no corpus configured, index left empty")
		return nil
	}

	total, err := r.load(ctx)
	if err != nil {
		if dropErr := r.backend.DropIndex(ctx); dropErr != nil {
			r.logger.Error("failed to drop partially loaded index", slog.Any("error", dropErr))
		}
		return fmt.Errorf("failed to load corpus: %w", err)
	}

	r.logger.Info("index bootstrapped", slog.Int("chunks", total))
	return nil
}

func (r *Retriever) load(ctx context.Context) (int, error) {
	batch := make([]models.RegulationChunk, 0, r.bulkBatch)
	total := 0

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := r.backend.BulkIndex(ctx, batch); err != nil {
			return err
		}
		total += len(batch)
		batch = batch[:0]
		return nil
	}

	err := r.corpus.Each(ctx, func(chunk models.RegulationChunk) error {
		if err := r.checkParity(chunk); err != nil {
			return err
		}
		batch = append(batch, chunk)
		if len(batch) >= r.bulkBatch {
			return flush()
		}
		return nil
	})
	if err != nil {
		return total, err
	}
	return total, flush()
}

func (r *Retriever) checkParity(chunk models.RegulationChunk) error {
	if len(chunk.Embedding) != models.EmbeddingDimensions {
		return fmt.Errorf("%w: chunk %s has %d dimensions, want %d",
			ErrEmbeddingMismatch, chunk.ChunkID, len(chunk.Embedding), models.EmbeddingDimensions)
	}
	if r.embedder != nil && chunk.EmbeddingModel != "" && chunk.EmbeddingModel != r.embedder.Model() {
		return fmt.Errorf("%w: chunk %s embedded with %s, queries use %s",
			ErrEmbeddingMismatch, chunk.ChunkID, chunk.EmbeddingModel, r.embedder.Model())
	}
	return nil
}
