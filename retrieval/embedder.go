package retrieval

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"clausecheck-backend/models"
)

// Embedder turns texts into fixed-size vectors. The same model must be used for
// the indexed corpus and for queries.
type Embedder interface {
	Encode(ctx context.Context, texts []string) ([][]float64, error)
	Model() string
}

// Gemini task types
const (
	TaskRetrievalQuery    = "RETRIEVAL_QUERY"
	TaskRetrievalDocument = "RETRIEVAL_DOCUMENT"
)

const (
	defaultEmbeddingModel = "gemini-embedding-001"
	geminiAPIBase         = "https://generativelanguage.googleapis.com/v1beta"
	embedBatchSize        = 100
	maxRetries            = 3
	initialBackoff        = time.Second
)

// ErrEmbeddingFailed is returned when the embedding API cannot produce vectors
var ErrEmbeddingFailed = errors.New("failed to generate embedding")

type embeddingRequest struct {
	Model                string       `json:"model"`
	Content              contentInput `json:"content"`
	TaskType             string       `json:"task_type,omitempty"`
	OutputDimensionality int          `json:"output_dimensionality,omitempty"`
}

type contentInput struct {
	Parts []partInput `json:"parts"`
}

type partInput struct {
	Text string `json:"text"`
}

type batchEmbeddingRequest struct {
	Requests []embeddingRequest `json:"requests"`
}

type batchEmbeddingResponse struct {
	Embeddings []struct {
		Values []float64 `json:"values"`
	} `json:"embeddings"`
}

// GeminiEmbedder calls the Gemini batch embedding endpoint
type GeminiEmbedder struct {
	apiKey     string
	model      string
	taskType   string
	baseURL    string
	httpClient *http.Client
	backoff    time.Duration
}

// EmbedderOption configures a GeminiEmbedder
type EmbedderOption func(*GeminiEmbedder)

// EmbedWithModel overrides the embedding model
func EmbedWithModel(model string) EmbedderOption {
	return func(e *GeminiEmbedder) {
		if model != "" {
			e.model = model
		}
	}
}

// EmbedWithBaseURL points the embedder at another endpoint
func EmbedWithBaseURL(url string) EmbedderOption {
	return func(e *GeminiEmbedder) {
		e.baseURL = url
	}
}

// EmbedWithHTTPClient sets the HTTP client
func EmbedWithHTTPClient(c *http.Client) EmbedderOption {
	return func(e *GeminiEmbedder) {
		e.httpClient = c
	}
}

// EmbedWithBackoff sets the initial retry backoff
func EmbedWithBackoff(d time.Duration) EmbedderOption {
	return func(e *GeminiEmbedder) {
		e.backoff = d
	}
}

// NewGeminiEmbedder creates an embedder for taskType (TaskRetrievalQuery or TaskRetrievalDocument)
func NewGeminiEmbedder(apiKey, taskType string, opts ...EmbedderOption) *GeminiEmbedder {
	e := &GeminiEmbedder{
		apiKey:     apiKey,
		model:      defaultEmbeddingModel,
		taskType:   taskType,
		baseURL:    geminiAPIBase,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		backoff:    initialBackoff,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Model returns the embedding model name
func (e *GeminiEmbedder) Model() string {
	return e.model
}

// Encode embeds texts in batches and L2-normalises every vector
func (e *GeminiEmbedder) Encode(ctx context.Context, texts []string) ([][]float64, error) {
	if e.apiKey == "" {
		return nil, fmt.Errorf("%w: GEMINI_API_KEY not set", ErrEmbeddingFailed)
	}

	out := make([][]float64, 0, len(texts))
	for i := 0; i < len(texts); i += embedBatchSize {
		end := i + embedBatchSize
		if end > len(texts) {
			end = len(texts)
		}
		vectors, err := e.encodeBatch(ctx, texts[i:end])
		if err != nil {
			return nil, err
		}
		out = append(out, vectors...)
	}
	return out, nil
}

func (e *GeminiEmbedder) encodeBatch(ctx context.Context, texts []string) ([][]float64, error) {
	requests := make([]embeddingRequest, len(texts))
	for i, t := range texts {
		requests[i] = embeddingRequest{
			Model:                "models/" + e.model,
			Content:              contentInput{Parts: []partInput{{Text: t}}},
			TaskType:             e.taskType,
			OutputDimensionality: models.EmbeddingDimensions,
		}
	}
	jsonData, err := json.Marshal(batchEmbeddingRequest{Requests: requests})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal batch request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:batchEmbedContents", e.baseURL, e.model)
	backoff := e.backoff
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("x-goog-api-key", e.apiKey)

		resp, err := e.httpClient.Do(req)
		if err != nil {
			if attempt == maxRetries-1 || ctx.Err() != nil {
				return nil, fmt.Errorf("%w: failed to send request after %d attempts: %v", ErrEmbeddingFailed, attempt+1, err)
			}
			continue
		}

		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()

		if resp.StatusCode == http.StatusOK && readErr == nil {
			var apiResp batchEmbeddingResponse
			if err := json.Unmarshal(body, &apiResp); err != nil {
				return nil, fmt.Errorf("%w: failed to decode response: %v", ErrEmbeddingFailed, err)
			}
			if len(apiResp.Embeddings) != len(texts) {
				return nil, fmt.Errorf("%w: got %d embeddings for %d texts", ErrEmbeddingFailed, len(apiResp.Embeddings), len(texts))
			}

			vectors := make([][]float64, len(texts))
			for i, emb := range apiResp.Embeddings {
				if len(emb.Values) != models.EmbeddingDimensions {
					return nil, fmt.Errorf("%w: embedding %d has %d dimensions, want %d",
						ErrEmbeddingFailed, i, len(emb.Values), models.EmbeddingDimensions)
				}
				vectors[i] = Normalize(emb.Values)
			}
			return vectors, nil
		}

		// Don't retry on 400 or 401 errors
		if resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnauthorized {
			return nil, fmt.Errorf("%w: API error: %d - %s", ErrEmbeddingFailed, resp.StatusCode, string(body))
		}
		if attempt == maxRetries-1 {
			return nil, fmt.Errorf("%w: API error after %d attempts: %d", ErrEmbeddingFailed, maxRetries, resp.StatusCode)
		}
	}
	return nil, ErrEmbeddingFailed
}

// Normalize scales v to unit length in place and returns it
func Normalize(v []float64) []float64 {
	var sumSq float64
	for _, x := range v {
		sumSq += x * x
	}
	if sumSq == 0 {
		return v
	}
	norm := math.Sqrt(sumSq)
	for i := range v {
		v[i] /= norm
	}
	return v
}
