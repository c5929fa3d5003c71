package retrieval

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"clausecheck-backend/models"
	"clausecheck-backend/storage"
)

// DefaultCorpusKey is the object holding the embedded regulation corpus
const DefaultCorpusKey = "regulations/corpus.jsonl"

// CorpusSource streams pre-embedded regulation chunks for index bootstrap
type CorpusSource interface {
	Each(ctx context.Context, fn func(models.RegulationChunk) error) error
}

// StorageCorpus reads a JSONL corpus from an object store
type StorageCorpus struct {
	store storage.Storage
	key   string
}

// NewStorageCorpus creates a corpus reader for key, or DefaultCorpusKey when empty
func NewStorageCorpus(store storage.Storage, key string) *StorageCorpus {
	if key == "" {
		key = DefaultCorpusKey
	}
	return &StorageCorpus{store: store, key: key}
}

// Each calls fn for every chunk in file order
func (c *StorageCorpus) Each(ctx context.Context, fn func(models.RegulationChunk) error) error {
	r, err := c.store.Get(ctx, c.key)
	if err != nil {
		return fmt.Errorf("failed to open corpus %s: %w", c.key, err)
	}
	defer r.Close()
	return ReadCorpus(r, fn)
}

// ReadCorpus decodes one chunk per line. Blank lines are skipped.
func ReadCorpus(r io.Reader, fn func(models.RegulationChunk) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	line := 0
	for scanner.Scan() {
		line++
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}
		var chunk models.RegulationChunk
		if err := json.Unmarshal(raw, &chunk); err != nil {
			return fmt.Errorf("corpus line %d: %w", line, err)
		}
		if err := fn(chunk); err != nil {
			return err
		}
	}
	return scanner.Err()
}

// WriteCorpus encodes chunks as JSONL
func WriteCorpus(w io.Writer, chunks []models.RegulationChunk) error {
	enc := json.NewEncoder(w)
	for i := range chunks {
		if err := enc.Encode(&chunks[i]); err != nil {
			return fmt.Errorf("failed to encode chunk %s: %w", chunks[i].ChunkID, err)
		}
	}
	return nil
}
