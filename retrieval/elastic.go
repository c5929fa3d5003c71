package retrieval

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"clausecheck-backend/models"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

// DefaultElasticIndex is the regulation index name
const DefaultElasticIndex = "sebi_compliance_index"

// ElasticConfig configures the Elasticsearch backend
type ElasticConfig struct {
	Addresses []string
	APIKey    string
	Index     string
}

// ElasticBackend runs hybrid queries against Elasticsearch
type ElasticBackend struct {
	es    *elasticsearch.Client
	index string
}

// NewElasticBackend creates an Elasticsearch backend. No request is made until first use.
func NewElasticBackend(cfg ElasticConfig) (*ElasticBackend, error) {
	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: cfg.Addresses,
		APIKey:    cfg.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create elasticsearch client: %w", err)
	}

	index := cfg.Index
	if index == "" {
		index = DefaultElasticIndex
	}
	return &ElasticBackend{es: es, index: index}, nil
}

func (b *ElasticBackend) Name() string { return "elasticsearch" }

func (b *ElasticBackend) Ping(ctx context.Context) error {
	res, err := b.es.Ping(b.es.Ping.WithContext(ctx))
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("ping: %s", res.Status())
	}
	return nil
}

func (b *ElasticBackend) IndexExists(ctx context.Context) (bool, error) {
	res, err := b.es.Indices.Exists([]string{b.index}, b.es.Indices.Exists.WithContext(ctx))
	if err != nil {
		return false, err
	}
	defer res.Body.Close()

	switch res.StatusCode {
	case 200:
		return true, nil
	case 404:
		return false, nil
	default:
		return false, fmt.Errorf("index exists: %s", res.Status())
	}
}

func (b *ElasticBackend) CreateIndex(ctx context.Context) error {
	mapping := map[string]interface{}{
		"mappings": map[string]interface{}{
			"properties": map[string]interface{}{
				"text":      map[string]string{"type": "text"},
				"doc_id":    map[string]string{"type": "keyword"},
				"clause_id": map[string]string{"type": "keyword"},
				"chunk_id":  map[string]string{"type": "keyword"},
				"embedding": map[string]interface{}{
					"type": "dense_vector",
					"dims": models.EmbeddingDimensions,
				},
			},
		},
	}
	body, err := json.Marshal(mapping)
	if err != nil {
		return err
	}

	res, err := b.es.Indices.Create(b.index,
		b.es.Indices.Create.WithBody(bytes.NewReader(body)),
		b.es.Indices.Create.WithContext(ctx),
	)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	return responseError("create index", res)
}

func (b *ElasticBackend) DropIndex(ctx context.Context) error {
	res, err := b.es.Indices.Delete([]string{b.index}, b.es.Indices.Delete.WithContext(ctx))
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode == 404 {
		return nil
	}
	return responseError("delete index", res)
}

type elasticDoc struct {
	Text      string    `json:"text"`
	DocID     string    `json:"doc_id"`
	ClauseID  string    `json:"clause_id"`
	ChunkID   string    `json:"chunk_id"`
	Embedding []float64 `json:"embedding,omitempty"`
}

func (b *ElasticBackend) BulkIndex(ctx context.Context, chunks []models.RegulationChunk) error {
	if len(chunks) == 0 {
		return nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, c := range chunks {
		action := map[string]map[string]string{"index": {"_id": c.ChunkID}}
		if err := enc.Encode(action); err != nil {
			return err
		}
		if err := enc.Encode(elasticDoc{
			Text:      c.Text,
			DocID:     c.DocID,
			ClauseID:  c.ClauseID,
			ChunkID:   c.ChunkID,
			Embedding: c.Embedding,
		}); err != nil {
			return err
		}
	}

	res, err := b.es.Bulk(&buf,
		b.es.Bulk.WithIndex(b.index),
		b.es.Bulk.WithRefresh("true"),
		b.es.Bulk.WithContext(ctx),
	)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if err := responseError("bulk", res); err != nil {
		return err
	}

	var out struct {
		Errors bool `json:"errors"`
		Items  []map[string]struct {
			Status int `json:"status"`
			Error  *struct {
				Reason string `json:"reason"`
			} `json:"error"`
		} `json:"items"`
	}
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return fmt.Errorf("failed to decode bulk response: %w", err)
	}
	if out.Errors {
		for _, item := range out.Items {
			for _, r := range item {
				if r.Error != nil {
					return fmt.Errorf("bulk item failed (%d): %s", r.Status, r.Error.Reason)
				}
			}
		}
		return fmt.Errorf("bulk request reported errors")
	}
	return nil
}

func (b *ElasticBackend) HybridSearch(ctx context.Context, text string, vector []float64, topK int) ([]models.CandidateRule, error) {
	query := map[string]interface{}{
		"size":    topK,
		"_source": map[string]interface{}{"excludes": []string{"embedding"}},
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"should": []interface{}{
					map[string]interface{}{
						"match": map[string]interface{}{"text": text},
					},
					map[string]interface{}{
						"script_score": map[string]interface{}{
							"query": map[string]interface{}{"match_all": map[string]interface{}{}},
							"script": map[string]interface{}{
								"source": "cosineSimilarity(params.query_vector, 'embedding') + 1.0",
								"params": map[string]interface{}{"query_vector": vector},
							},
						},
					},
				},
			},
		},
	}
	body, err := json.Marshal(query)
	if err != nil {
		return nil, err
	}

	res, err := b.es.Search(
		b.es.Search.WithContext(ctx),
		b.es.Search.WithIndex(b.index),
		b.es.Search.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	if err := responseError("search", res); err != nil {
		return nil, err
	}

	var out struct {
		Hits struct {
			Hits []struct {
				Score  float64    `json:"_score"`
				Source elasticDoc `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	rules := make([]models.CandidateRule, 0, len(out.Hits.Hits))
	for _, h := range out.Hits.Hits {
		rules = append(rules, models.CandidateRule{
			RuleText: h.Source.Text,
			Metadata: models.RuleMetadata{
				DocID:          h.Source.DocID,
				ClauseID:       h.Source.ClauseID,
				ChunkID:        h.Source.ChunkID,
				RelevanceScore: h.Score,
			},
		})
	}
	return rules, nil
}

func responseError(op string, res *esapi.Response) error {
	if !res.IsError() {
		return nil
	}
	raw, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
	return fmt.Errorf("%s: %s: %s", op, res.Status(), strings.TrimSpace(string(raw)))
}
