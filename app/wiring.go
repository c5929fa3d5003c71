// Package app builds the service components from configuration. It is shared by
// the HTTP server and the CLI.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"clausecheck-backend/compliance"
	"clausecheck-backend/config"
	"clausecheck-backend/events"
	"clausecheck-backend/llm"
	"clausecheck-backend/repository"
	"clausecheck-backend/retrieval"
	"clausecheck-backend/session"
	"clausecheck-backend/storage"

	"github.com/jackc/pgx/v5/pgxpool"
)

// NewProvider builds the configured LLM backend, rate limited when requested
func NewProvider(ctx context.Context, cfg *config.Config, logger *slog.Logger) (llm.Provider, error) {
	kind, err := llm.ParseProviderKind(cfg.LLM.Provider)
	if err != nil {
		return nil, err
	}
	provider, err := llm.NewProvider(ctx, kind, cfg.LLMConfig(logger))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize %s provider: %w", kind, err)
	}
	if cfg.LLM.RequestsPerSecond > 0 {
		provider = llm.RateLimited(provider, cfg.LLM.RequestsPerSecond, cfg.LLM.Burst)
	}
	return provider, nil
}

// NewSearchBackend returns the configured backend, or nil for "none". db is only
// needed for pgvector.
func NewSearchBackend(cfg *config.Config, db *pgxpool.Pool) (retrieval.SearchBackend, error) {
	switch cfg.Retrieval.Backend {
	case "elasticsearch":
		return retrieval.NewElasticBackend(retrieval.ElasticConfig{
			Addresses: splitAddresses(cfg.Retrieval.ElasticURL),
			APIKey:    cfg.Retrieval.ElasticAPIKey,
			Index:     cfg.Retrieval.ElasticIndex,
		})
	case "weaviate":
		return retrieval.NewWeaviateBackend(retrieval.WeaviateConfig{
			URL:   cfg.Retrieval.WeaviateURL,
			Class: cfg.Retrieval.WeaviateClass,
		})
	case "pgvector":
		if db == nil {
			return nil, fmt.Errorf("pgvector backend requires a database connection")
		}
		return repository.NewRegulationChunkRepository(db), nil
	case "none", "":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown retrieval backend: %s", cfg.Retrieval.Backend)
	}
}

// NewRetriever wires a backend to the query embedder and the stored corpus.
// Without a Gemini key no embedder is configured and retrieval runs degraded.
func NewRetriever(cfg *config.Config, backend retrieval.SearchBackend, store storage.Storage, logger *slog.Logger) *retrieval.Retriever {
	var embedder retrieval.Embedder
	if cfg.LLM.GeminiAPIKey != "" {
		embedder = retrieval.NewGeminiEmbedder(cfg.LLM.GeminiAPIKey, retrieval.TaskRetrievalQuery)
	} else {
		logger.Warn("GEMINI_API_KEY not set, retrieval will return placeholders")
	}

	opts := []retrieval.RetrieverOption{
		retrieval.WithLogger(logger),
		retrieval.WithSearchConcurrency(cfg.Compliance.MaxConcurrency),
	}
	if store != nil {
		opts = append(opts, retrieval.WithCorpus(retrieval.NewStorageCorpus(store, cfg.Retrieval.CorpusKey)))
	}
	return retrieval.NewRetriever(backend, embedder, opts...)
}

// NewOrchestrator builds the compliance pipeline over a retriever and provider
func NewOrchestrator(cfg *config.Config, retriever compliance.Retriever, provider llm.Provider, logger *slog.Logger) *compliance.Orchestrator {
	return compliance.NewOrchestrator(
		retriever,
		llm.NewVerifier(provider, logger),
		compliance.WithConcurrency(cfg.Compliance.MaxConcurrency),
		compliance.WithTopK(cfg.Retrieval.TopK),
		compliance.WithLogger(logger),
	)
}

// NewSessionStore returns the configured chat session store
func NewSessionStore(ctx context.Context, cfg *config.Config) (session.Store, error) {
	switch cfg.Session.Backend {
	case "redis":
		return session.NewRedisStore(ctx, cfg.Session.RedisURL, cfg.Session.TTL)
	default:
		return session.NewMemoryStore(
			session.MemoryWithMaxSessions(cfg.Session.MaxSessions),
			session.MemoryWithTTL(cfg.Session.TTL),
		), nil
	}
}

// NewPublisher returns a Kafka publisher, or a no-op one when no brokers are set
func NewPublisher(cfg *config.Config) (events.Publisher, error) {
	if len(cfg.Events.KafkaBrokers) == 0 {
		return events.NoopPublisher{}, nil
	}
	return events.NewKafkaPublisher(events.KafkaConfig{
		Brokers:     cfg.Events.KafkaBrokers,
		ReportTopic: cfg.Events.ReportTopic,
		ClauseTopic: cfg.Events.ClauseTopic,
		ClientID:    cfg.Telemetry.ServiceName,
	})
}

func splitAddresses(s string) []string {
	var out []string
	for _, a := range strings.Split(s, ",") {
		if a = strings.TrimSpace(a); a != "" {
			out = append(out, a)
		}
	}
	return out
}
