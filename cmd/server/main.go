package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"clausecheck-backend/app"
	"clausecheck-backend/compliance"
	"clausecheck-backend/config"
	"clausecheck-backend/handlers"
	"clausecheck-backend/llm"
	"clausecheck-backend/repository"
	"clausecheck-backend/service"
	"clausecheck-backend/storage"
	"clausecheck-backend/telemetry"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server exited", slog.Any("error", err))
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := cfg.Log.NewLogger(os.Stdout)
	slog.SetDefault(logger)
	gin.SetMode(cfg.Server.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName: cfg.Telemetry.ServiceName,
		Stdout:      cfg.Telemetry.StdoutTracing,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	defer shutdownTracing(context.Background())

	db, err := initPostgres(ctx, cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("failed to initialize Postgres: %w", err)
	}
	defer db.Close()
	logger.Info("postgres connection established")

	documents := repository.NewDocumentRepository(db)
	jobs := repository.NewAnalysisJobRepository(db)
	failAbandonedJobs(ctx, jobs, documents, logger)

	fileStorage, err := storage.NewStorage(ctx, cfg.StorageConfig())
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	logger.Info("storage initialized", slog.String("type", cfg.Storage.Type))

	provider, err := app.NewProvider(ctx, cfg, logger)
	if err != nil {
		return err
	}
	logger.Info("llm provider initialized", slog.String("provider", provider.Name()))

	backend, err := app.NewSearchBackend(cfg, db)
	if err != nil {
		return err
	}
	retriever := app.NewRetriever(cfg, backend, fileStorage, logger)
	if cfg.Retrieval.BootstrapOnStart && backend != nil {
		if err := retriever.EnsureIndex(ctx); err != nil {
			// retrieval degrades to placeholders, so this is not fatal
			logger.Error("index bootstrap failed", slog.Any("error", err))
		}
	}

	orchestrator := app.NewOrchestrator(cfg, retriever, provider, logger)

	sessions, err := app.NewSessionStore(ctx, cfg)
	if err != nil {
		return err
	}
	chatAgent := compliance.NewChatAgent(retriever, sessions,
		compliance.ChatWithProvider(provider),
		compliance.ChatWithMaxHistory(cfg.Session.MaxHistory),
		compliance.ChatWithLogger(logger),
	)

	publisher, err := app.NewPublisher(cfg)
	if err != nil {
		return err
	}
	defer publisher.Close()

	documentService := service.NewDocumentService(
		service.DocWithDocumentStore(documents),
		service.DocWithJobStore(jobs),
		service.DocWithStorage(fileStorage),
		service.DocWithSummarizer(llm.NewSummarizer(provider, logger)),
		service.DocWithChecker(orchestrator),
		service.DocWithPublisher(publisher),
		service.DocWithLogger(logger),
	)

	kind, _ := llm.ParseProviderKind(cfg.LLM.Provider)
	router := handlers.Router{
		ServiceName: cfg.Telemetry.ServiceName,
		Documents:   handlers.NewDocumentHandler(documentService, logger),
		Compliance:  handlers.NewComplianceHandler(orchestrator, llm.AvailableProviders(cfg.LLMConfig(logger), kind)),
		Chat:        handlers.NewChatHandler(chatAgent),
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router.Engine(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", slog.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func initPostgres(ctx context.Context, connString string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

// failAbandonedJobs fails jobs left running by a previous process. Processing
// happens in-process, so nothing else will finish them.
func failAbandonedJobs(ctx context.Context, jobs *repository.AnalysisJobRepository, docs *repository.DocumentRepository, logger *slog.Logger) {
	const msg = "processing interrupted by server restart"
	ids, err := jobs.FailAbandoned(ctx, 0, msg)
	if err != nil {
		logger.Warn("failed to recover abandoned jobs", slog.Any("error", err))
		return
	}
	for _, id := range ids {
		if err := docs.Fail(ctx, id, msg); err != nil {
			logger.Warn("failed to mark document failed", slog.String("document_id", id), slog.Any("error", err))
		}
	}
	if len(ids) > 0 {
		logger.Info("abandoned jobs failed", slog.Int("count", len(ids)))
	}
}
