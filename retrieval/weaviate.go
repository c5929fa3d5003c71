package retrieval

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"clausecheck-backend/models"

	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	wmodels "github.com/weaviate/weaviate/entities/models"
)

// DefaultWeaviateClass is the class holding regulation chunks
const DefaultWeaviateClass = "RegulationChunk"

// hybridAlpha weights vector and keyword scores equally
const hybridAlpha = 0.5

// WeaviateConfig configures the Weaviate backend
type WeaviateConfig struct {
	URL   string
	Class string
}

// WeaviateBackend runs hybrid queries against a Weaviate class with externally supplied vectors
type WeaviateBackend struct {
	client *weaviate.Client
	class  string
}

// NewWeaviateBackend creates a Weaviate backend
func NewWeaviateBackend(cfg WeaviateConfig) (*WeaviateBackend, error) {
	wcfg := weaviate.Config{Host: cfg.URL, Scheme: "http"}
	switch {
	case strings.HasPrefix(cfg.URL, "https://"):
		wcfg.Scheme = "https"
		wcfg.Host = strings.TrimPrefix(cfg.URL, "https://")
	case strings.HasPrefix(cfg.URL, "http://"):
		wcfg.Host = strings.TrimPrefix(cfg.URL, "http://")
	}

	client, err := weaviate.NewClient(wcfg)
	if err != nil {
		return nil, fmt.Errorf("create weaviate client: %w", err)
	}

	class := cfg.Class
	if class == "" {
		class = DefaultWeaviateClass
	}
	return &WeaviateBackend{client: client, class: class}, nil
}

func (b *WeaviateBackend) Name() string { return "weaviate" }

func (b *WeaviateBackend) Ping(ctx context.Context) error {
	ready, err := b.client.Misc().ReadyChecker().Do(ctx)
	if err != nil {
		return err
	}
	if !ready {
		return fmt.Errorf("weaviate not ready")
	}
	return nil
}

func (b *WeaviateBackend) IndexExists(ctx context.Context) (bool, error) {
	return b.client.Schema().ClassExistenceChecker().WithClassName(b.class).Do(ctx)
}

func (b *WeaviateBackend) CreateIndex(ctx context.Context) error {
	class := &wmodels.Class{
		Class:       b.class,
		Description: "Regulation corpus chunks",
		Vectorizer:  "none",
		Properties: []*wmodels.Property{
			{Name: "text", DataType: []string{"text"}},
			{Name: "docId", DataType: []string{"text"}},
			{Name: "clauseId", DataType: []string{"text"}},
			{Name: "chunkId", DataType: []string{"text"}},
		},
	}
	return b.client.Schema().ClassCreator().WithClass(class).Do(ctx)
}

func (b *WeaviateBackend) DropIndex(ctx context.Context) error {
	return b.client.Schema().ClassDeleter().WithClassName(b.class).Do(ctx)
}

func (b *WeaviateBackend) BulkIndex(ctx context.Context, chunks []models.RegulationChunk) error {
	if len(chunks) == 0 {
		return nil
	}

	objects := make([]*wmodels.Object, len(chunks))
	for i, c := range chunks {
		objects[i] = &wmodels.Object{
			Class:  b.class,
			ID:     strfmt.UUID(chunkUUID(c.ChunkID).String()),
			Vector: toFloat32(c.Embedding),
			Properties: map[string]interface{}{
				"text":     c.Text,
				"docId":    c.DocID,
				"clauseId": c.ClauseID,
				"chunkId":  c.ChunkID,
			},
		}
	}

	result, err := b.client.Batch().ObjectsBatcher().WithObjects(objects...).Do(ctx)
	if err != nil {
		return fmt.Errorf("batch import failed: %w", err)
	}

	failed := 0
	for _, obj := range result {
		if obj.Result != nil && obj.Result.Errors != nil {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("batch import: %d of %d objects failed", failed, len(objects))
	}
	return nil
}

func (b *WeaviateBackend) HybridSearch(ctx context.Context, text string, vector []float64, topK int) ([]models.CandidateRule, error) {
	hybrid := b.client.GraphQL().HybridArgumentBuilder().
		WithQuery(text).
		WithVector(toFloat32(vector)).
		WithAlpha(hybridAlpha)

	fields := []graphql.Field{
		{Name: "text"},
		{Name: "docId"},
		{Name: "clauseId"},
		{Name: "chunkId"},
		{Name: "_additional", Fields: []graphql.Field{{Name: "score"}}},
	}

	result, err := b.client.GraphQL().Get().
		WithClassName(b.class).
		WithFields(fields...).
		WithHybrid(hybrid).
		WithLimit(topK).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("hybrid search: %w", err)
	}
	if len(result.Errors) > 0 {
		return nil, fmt.Errorf("search error: %s", result.Errors[0].Message)
	}

	get, ok := result.Data["Get"].(map[string]interface{})
	if !ok {
		return []models.CandidateRule{}, nil
	}
	items, _ := get[b.class].([]interface{})

	rules := make([]models.CandidateRule, 0, len(items))
	for _, item := range items {
		obj, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		rule := models.CandidateRule{
			RuleText: stringField(obj, "text"),
			Metadata: models.RuleMetadata{
				DocID:    stringField(obj, "docId"),
				ClauseID: stringField(obj, "clauseId"),
				ChunkID:  stringField(obj, "chunkId"),
			},
		}
		if add, ok := obj["_additional"].(map[string]interface{}); ok {
			rule.Metadata.RelevanceScore = numberField(add["score"])
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

func chunkUUID(chunkID string) uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("regulation-chunk:"+chunkID))
}

func toFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(x)
	}
	return out
}

func stringField(obj map[string]interface{}, key string) string {
	s, _ := obj[key].(string)
	return s
}

// Weaviate reports hybrid scores as strings
func numberField(v interface{}) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err == nil {
			return f
		}
	}
	return 0
}
