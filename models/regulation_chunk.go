package models

// RegulationChunk is one indexed piece of the regulation corpus
type RegulationChunk struct {
	Text           string    `json:"text"`
	DocID          string    `json:"doc_id"`
	ClauseID       string    `json:"clause_id"`
	ChunkID        string    `json:"chunk_id"`
	EmbeddingModel string    `json:"embedding_model,omitempty"`
	Embedding      []float64 `json:"embedding"`
}

// EmbeddingDimensions is the vector size used at index and query time
const EmbeddingDimensions = 768
