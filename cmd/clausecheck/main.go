package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"text/tabwriter"

	"clausecheck-backend/app"
	"clausecheck-backend/config"
	"clausecheck-backend/llm"
	"clausecheck-backend/models"
	"clausecheck-backend/storage"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
)

var (
	rootCmd = &cobra.Command{
		Use:           "clausecheck",
		Short:         "Check document clauses against the regulation corpus",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	checkCmd = &cobra.Command{
		Use:   "check",
		Short: "Verifies a JSON list of clauses and prints the compliance result",
		RunE:  runCheck,
	}
	bootstrapCmd = &cobra.Command{
		Use:   "bootstrap-index",
		Short: "Creates and loads the regulation index if it does not exist",
		RunE:  runBootstrap,
	}
	providersCmd = &cobra.Command{
		Use:   "providers",
		Short: "Lists LLM providers and whether they are configured",
		RunE:  runProviders,
	}

	clausesFile  string
	providerFlag string
	backendFlag  string
	topKFlag     int
)

func init() {
	checkCmd.Flags().StringVarP(&clausesFile, "file", "f", "", "JSON file with clauses (use - for stdin)")
	checkCmd.Flags().IntVar(&topKFlag, "top-k", 0, "candidates retrieved per clause")
	_ = checkCmd.MarkFlagRequired("file")

	rootCmd.PersistentFlags().StringVar(&providerFlag, "provider", "", "LLM provider (gemini, openai, claude, mistral, ollama)")
	rootCmd.PersistentFlags().StringVar(&backendFlag, "backend", "", "retrieval backend (elasticsearch, pgvector, weaviate, none)")

	rootCmd.AddCommand(checkCmd, bootstrapCmd, providersCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// loadConfig applies flag overrides and validates the result
func loadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	if providerFlag != "" {
		if _, err := llm.ParseProviderKind(providerFlag); err != nil {
			return nil, nil, err
		}
		cfg.LLM.Provider = providerFlag
	}
	if backendFlag != "" {
		cfg.Retrieval.Backend = backendFlag
	}
	if topKFlag > 0 {
		cfg.Retrieval.TopK = topKFlag
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	return cfg, cfg.Log.NewLogger(os.Stderr), nil
}

func connectIfNeeded(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	if cfg.Retrieval.Backend != "pgvector" {
		return nil, nil
	}
	return pgxpool.New(ctx, cfg.Database.URL)
}

func runCheck(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	clauses, err := readClauses(clausesFile, cmd.InOrStdin())
	if err != nil {
		return err
	}

	provider, err := app.NewProvider(ctx, cfg, logger)
	if err != nil {
		return err
	}
	db, err := connectIfNeeded(ctx, cfg)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}
	backend, err := app.NewSearchBackend(cfg, db)
	if err != nil {
		return err
	}

	retriever := app.NewRetriever(cfg, backend, nil, logger)
	orchestrator := app.NewOrchestrator(cfg, retriever, provider, logger)

	result, err := orchestrator.EnsureCompliance(ctx, clauses)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// readClauses accepts either a bare array or {"clauses": [...]}
func readClauses(path string, stdin io.Reader) ([]models.Clause, error) {
	var raw []byte
	var err error
	if path == "-" {
		raw, err = io.ReadAll(stdin)
	} else {
		raw, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read clauses: %w", err)
	}

	raw = bytes.TrimSpace(raw)
	var clauses []models.Clause
	if len(raw) > 0 && raw[0] == '[' {
		err = json.Unmarshal(raw, &clauses)
	} else {
		var wrapped struct {
			Clauses []models.Clause `json:"clauses"`
		}
		err = json.Unmarshal(raw, &wrapped)
		clauses = wrapped.Clauses
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse clauses: %w", err)
	}
	for i := range clauses {
		if clauses[i].ClauseID == "" {
			clauses[i].ClauseID = fmt.Sprintf("C-%d", i+1)
		}
	}
	return clauses, nil
}

func runBootstrap(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	db, err := connectIfNeeded(ctx, cfg)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}
	backend, err := app.NewSearchBackend(cfg, db)
	if err != nil {
		return err
	}
	if backend == nil {
		return fmt.Errorf("no retrieval backend configured")
	}

	store, err := storage.NewStorage(ctx, cfg.StorageConfig())
	if err != nil {
		return err
	}

	retriever := app.NewRetriever(cfg, backend, store, logger)
	if err := retriever.EnsureIndex(ctx); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "index ready on %s\n", backend.Name())
	return nil
}

func runProviders(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	kind, err := llm.ParseProviderKind(cfg.LLM.Provider)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tMODEL\tAVAILABLE\tACTIVE\tCHAT")
	for _, p := range llm.AvailableProviders(cfg.LLMConfig(logger), kind) {
		fmt.Fprintf(w, "%s\t%s\t%t\t%t\t%t\n", p.Name, p.Model, p.Available, p.Active, p.Chat)
	}
	return w.Flush()
}
