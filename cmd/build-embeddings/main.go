package main

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"clausecheck-backend/config"
	"clausecheck-backend/models"
	"clausecheck-backend/retrieval"
	"clausecheck-backend/storage"

	"github.com/tmc/langchaingo/textsplitter"
)

const (
	defaultRegulationsDir = "./regulations"
	chunkSize             = 1200
	chunkOverlap          = 150
	embedBatch            = 50
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger := cfg.Log.NewLogger(os.Stderr)

	if cfg.LLM.GeminiAPIKey == "" {
		logger.Error("GEMINI_API_KEY environment variable is required")
		os.Exit(1)
	}

	dir := os.Getenv("REGULATIONS_DIR")
	if dir == "" {
		dir = defaultRegulationsDir
	}

	ctx := context.Background()
	store, err := storage.NewStorage(ctx, cfg.StorageConfig())
	if err != nil {
		logger.Error("failed to initialize storage", slog.Any("error", err))
		os.Exit(1)
	}

	embedder := retrieval.NewGeminiEmbedder(cfg.LLM.GeminiAPIKey, retrieval.TaskRetrievalDocument)
	chunks, err := buildCorpus(ctx, dir, embedder, logger)
	if err != nil {
		logger.Error("failed to build corpus", slog.Any("error", err))
		os.Exit(1)
	}

	var buf bytes.Buffer
	if err := retrieval.WriteCorpus(&buf, chunks); err != nil {
		logger.Error("failed to encode corpus", slog.Any("error", err))
		os.Exit(1)
	}
	if err := store.Put(ctx, cfg.Retrieval.CorpusKey, &buf, "application/x-ndjson"); err != nil {
		logger.Error("failed to upload corpus", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("corpus written",
		slog.String("key", cfg.Retrieval.CorpusKey),
		slog.Int("chunks", len(chunks)),
		slog.String("embedding_model", embedder.Model()))
}

// buildCorpus splits every .txt/.md file in dir and embeds the chunks
func buildCorpus(ctx context.Context, dir string, embedder retrieval.Embedder, logger *slog.Logger) ([]models.RegulationChunk, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}

	splitter := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(chunkSize),
		textsplitter.WithChunkOverlap(chunkOverlap),
	)

	var corpus []models.RegulationChunk
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		ext := strings.ToLower(filepath.Ext(name))
		if ext != ".txt" && ext != ".md" {
			continue
		}

		content, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			logger.Warn("skipping unreadable file", slog.String("file", name), slog.Any("error", err))
			continue
		}

		texts, err := splitter.SplitText(string(content))
		if err != nil {
			return nil, fmt.Errorf("failed to split %s: %w", name, err)
		}

		docID := strings.TrimSuffix(name, filepath.Ext(name))
		chunks := make([]models.RegulationChunk, 0, len(texts))
		for i, t := range texts {
			t = strings.TrimSpace(t)
			if t == "" {
				continue
			}
			chunks = append(chunks, models.RegulationChunk{
				Text:           t,
				DocID:          docID,
				ClauseID:       fmt.Sprintf("%s-%d", docID, i+1),
				ChunkID:        fmt.Sprintf("%s_chunk_%04d", docID, i),
				EmbeddingModel: embedder.Model(),
			})
		}

		for start := 0; start < len(chunks); start += embedBatch {
			end := start + embedBatch
			if end > len(chunks) {
				end = len(chunks)
			}
			batchTexts := make([]string, 0, end-start)
			for _, c := range chunks[start:end] {
				batchTexts = append(batchTexts, c.Text)
			}
			vectors, err := embedder.Encode(ctx, batchTexts)
			if err != nil {
				return nil, fmt.Errorf("failed to embed %s: %w", name, err)
			}
			for j := range vectors {
				chunks[start+j].Embedding = vectors[j]
			}
		}

		logger.Info("processed regulation", slog.String("file", name), slog.Int("chunks", len(chunks)))
		corpus = append(corpus, chunks...)
	}
	return corpus, nil
}
