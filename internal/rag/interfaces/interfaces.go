package interfaces

import (
	"context"

	"github.com/ryanpkennedy/df-healthbench/internal/rag/models"
)

// Chunker defines the interface for breaking document text into
// bounded-size, context-preserving segments.
type Chunker interface {
	// ChunkDocument splits content into chunks of at most maxSize characters
	// with overlap characters of carried-over context between chunks
	ChunkDocument(content string, maxSize, overlap int) ([]string, error)

	// GetChunkingStrategy returns the strategy name used by this chunker
	GetChunkingStrategy() string
}

// Embedder defines the interface for generating vector embeddings.
type Embedder interface {
	// GenerateEmbedding creates a vector embedding for the given text
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)

	// GenerateEmbeddingBatch creates embeddings for multiple texts in one
	// provider call, preserving input order
	GenerateEmbeddingBatch(ctx context.Context, texts []string) ([][]float32, error)

	// GetModelName returns the name of the embedding model
	GetModelName() string

	// GetDimension returns the dimension of the embedding vectors
	GetDimension() int

	// GetMaxBatchSize returns the largest batch the provider accepts
	GetMaxBatchSize() int
}

// Generator defines the interface for chat-completion providers.
type Generator interface {
	// CreateCompletion sends the message sequence and returns completion
	// text plus token accounting. An empty model selects the default;
	// a nil temperature selects the configured default.
	CreateCompletion(
		ctx context.Context,
		messages []models.Message,
		model string,
		temperature *float64,
	) (*models.Completion, error)

	// GetDefaultModel returns the model used when none is requested
	GetDefaultModel() string
}

// DocumentStore provides read access to stored documents.
// A nil document with a nil error means the document does not exist.
type DocumentStore interface {
	GetByID(ctx context.Context, id int64) (*models.Document, error)
	List(ctx context.Context, skip, limit int) ([]models.Document, error)
	Count(ctx context.Context) (int64, error)
}

// VectorStore persists chunk vectors and performs similarity search.
type VectorStore interface {
	// CreateBatch inserts all chunks for a document in one transaction,
	// assigning sequential chunk indices starting at 0 in input order
	CreateBatch(ctx context.Context, documentID int64, chunks []string, vectors [][]float32) ([]models.DocumentEmbedding, error)

	// SearchSimilar returns up to limit chunks ranked by descending cosine
	// similarity. A non-nil similarityThreshold keeps only results with
	// score >= threshold, applied inside the store query.
	SearchSimilar(ctx context.Context, queryVector []float32, limit int, similarityThreshold *float64) ([]models.SearchResult, error)

	// DeleteByDocument removes all vectors for a document
	DeleteByDocument(ctx context.Context, documentID int64) (int64, error)

	CountByDocument(ctx context.Context, documentID int64) (int64, error)
	Count(ctx context.Context) (int64, error)
	Stats(ctx context.Context) (*models.EmbeddingStats, error)
}

// SummaryStore persists cached document summaries.
type SummaryStore interface {
	// GetByDocumentID returns the cached summary, or (nil, nil) if absent
	GetByDocumentID(ctx context.Context, documentID int64) (*models.DocumentSummary, error)

	// Upsert updates the cached summary in place, inserting if absent
	Upsert(ctx context.Context, documentID int64, summaryText, modelUsed string, usage models.TokenUsage) error
}

// EmbedResult is the outcome of embedding one document.
type EmbedResult struct {
	DocumentID         int64  `json:"document_id"`
	DocumentTitle      string `json:"document_title"`
	ChunksCreated      int    `json:"chunks_created"`
	EmbeddingsCreated  int    `json:"embeddings_created"`
	ExistingEmbeddings int64  `json:"existing_embeddings,omitempty"`
	ProcessingTimeMs   int64  `json:"processing_time_ms"`
	Skipped            bool   `json:"skipped"`
	Error              string `json:"error,omitempty"`
}

// EmbedAllResult aggregates per-document embed outcomes for a batch run.
type EmbedAllResult struct {
	DocumentsProcessed int           `json:"documents_processed"`
	DocumentsSkipped   int           `json:"documents_skipped"`
	TotalChunks        int           `json:"total_chunks"`
	TotalEmbeddings    int           `json:"total_embeddings"`
	ProcessingTimeMs   int64         `json:"processing_time_ms"`
	Results            []EmbedResult `json:"results"`
}

// AnswerSource is one cited chunk backing an answer.
type AnswerSource struct {
	DocumentID      int64   `json:"document_id"`
	DocumentTitle   string  `json:"document_title"`
	ChunkIndex      int     `json:"chunk_index"`
	ChunkText       string  `json:"chunk_text"`
	SimilarityScore float64 `json:"similarity_score"`
}

// Answer is the result of one question through the RAG pipeline.
type Answer struct {
	Answer           string            `json:"answer"`
	Sources          []AnswerSource    `json:"sources"`
	ModelUsed        string            `json:"model_used"`
	TokenUsage       models.TokenUsage `json:"token_usage"`
	ProcessingTimeMs int64             `json:"processing_time_ms"`
	RetrievalTimeMs  int64             `json:"retrieval_time_ms"`
	GenerationTimeMs int64             `json:"generation_time_ms"`
}

// AnswerOptions are per-question overrides for AnswerQuestion.
type AnswerOptions struct {
	TopK                int
	SimilarityThreshold *float64
	Model               string
}

// SummaryResult is the outcome of summarizing one document.
type SummaryResult struct {
	DocumentID       int64             `json:"document_id"`
	Summary          string            `json:"summary"`
	ModelUsed        string            `json:"model_used"`
	TokenUsage       models.TokenUsage `json:"token_usage"`
	FromCache        bool              `json:"from_cache"`
	ProcessingTimeMs int64             `json:"processing_time_ms"`
}

// RAGStats describes the current state of the retrieval corpus.
type RAGStats struct {
	TotalDocuments          int64   `json:"total_documents"`
	TotalEmbeddings         int64   `json:"total_embeddings"`
	DocumentsWithEmbeddings int64   `json:"documents_with_embeddings"`
	AvgChunksPerDocument    float64 `json:"avg_chunks_per_document"`
	EmbeddingModel          string  `json:"embedding_model"`
	EmbeddingDimension      int     `json:"embedding_dimension"`
	ChunkMaxSize            int     `json:"chunk_max_size"`
	ChunkOverlap            int     `json:"chunk_overlap"`
	TopK                    int     `json:"rag_top_k"`
}
