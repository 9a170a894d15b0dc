package models

import (
	"time"
)

// Document is a stored clinical document (SOAP note, discharge summary, ...).
// UpdatedAt is the authority for staleness decisions on derived artifacts.
type Document struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DocumentEmbedding is one embedded chunk of a document. Chunk indices are
// zero-based, contiguous per document and assigned at insert time.
type DocumentEmbedding struct {
	ID         int64     `json:"id"`
	DocumentID int64     `json:"document_id"`
	ChunkIndex int       `json:"chunk_index"`
	ChunkText  string    `json:"chunk_text"`
	Embedding  []float32 `json:"-"`
	CreatedAt  time.Time `json:"created_at"`
}

// SearchResult is one retrieved chunk with its similarity score in [0,1],
// where 1 means identical vectors. Ephemeral, never persisted.
type SearchResult struct {
	EmbeddingID   int64   `json:"embedding_id"`
	DocumentID    int64   `json:"document_id"`
	DocumentTitle string  `json:"document_title"`
	ChunkIndex    int     `json:"chunk_index"`
	ChunkText     string  `json:"chunk_text"`
	Similarity    float64 `json:"similarity"`
}

// DocumentSummary is the cached LLM summary for a document, keyed 1:1 by
// document id. It is valid only while UpdatedAt >= the document's UpdatedAt.
type DocumentSummary struct {
	DocumentID  int64      `json:"document_id"`
	SummaryText string     `json:"summary_text"`
	ModelUsed   string     `json:"model_used"`
	TokenUsage  TokenUsage `json:"token_usage"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Message is a single chat message sent to the generation provider.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// TokenUsage is the provider's token accounting for one completion.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Completion is the result of one generation call.
type Completion struct {
	Text  string     `json:"text"`
	Model string     `json:"model"`
	Usage TokenUsage `json:"token_usage"`
}

// EmbeddingStats is aggregate information about the vector store.
type EmbeddingStats struct {
	TotalEmbeddings         int64   `json:"total_embeddings"`
	DocumentsWithEmbeddings int64   `json:"documents_with_embeddings"`
	AvgChunksPerDocument    float64 `json:"avg_chunks_per_document"`
}
