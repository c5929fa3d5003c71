package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"clausecheck-backend/config"
	"clausecheck-backend/repository"

	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger := cfg.Log.NewLogger(os.Stderr)

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.Database.URL)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	statements := repository.DocumentSchema
	if cfg.Retrieval.Backend == "pgvector" {
		statements = append(append([]repository.SchemaStatement{}, repository.RegulationChunkSchema...), statements...)
	}

	for _, st := range statements {
		if err := repository.ApplySchema(ctx, pool, []repository.SchemaStatement{st}); err != nil {
			logger.Error("schema step failed", slog.String("step", st.Name), slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("schema step applied", slog.String("step", st.Name))
	}
	logger.Info("schema ready")
}
