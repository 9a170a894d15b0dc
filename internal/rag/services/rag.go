package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/ryanpkennedy/df-healthbench/internal/rag/interfaces"
	"github.com/ryanpkennedy/df-healthbench/internal/rag/models"
	"github.com/ryanpkennedy/df-healthbench/pkg/util"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var (
	ErrDocumentNotFound  = errors.New("document not found")
	ErrNoEmbeddingsFound = errors.New("no document embeddings found, embed documents first")
	ErrEmptyQuestion     = errors.New("question cannot be empty")
)

const noContextAnswer = "I couldn't find any relevant information in the documents to answer your question."

const answerSystemPrompt = `You are a medical documentation assistant specialized in clinical notes.

Your task is to:
1. Answer the question based ONLY on the provided context from medical documents
2. Be accurate and precise - cite specific information from the sources
3. If the context doesn't contain enough information to answer fully, say so
4. Use medical terminology appropriately but explain complex terms when helpful
5. Reference which source(s) you're using (e.g., "According to Source 1...")

Do not make up information or use knowledge outside the provided context.`

// RAGService orchestrates the retrieval-augmented generation pipeline:
// chunking, embedding, vector search and grounded answer generation.
type RAGService struct {
	documents  interfaces.DocumentStore
	embeddings interfaces.VectorStore
	chunker    interfaces.Chunker
	embedder   interfaces.Embedder
	generator  interfaces.Generator
	cfg        Config
	logger     zerolog.Logger
}

// NewRAGService wires the pipeline from its collaborators. The embedder and
// generator are expected to be the process-wide singleton adapters.
func NewRAGService(
	documents interfaces.DocumentStore,
	embeddings interfaces.VectorStore,
	chunker interfaces.Chunker,
	embedder interfaces.Embedder,
	generator interfaces.Generator,
	cfg Config,
) *RAGService {
	return &RAGService{
		documents:  documents,
		embeddings: embeddings,
		chunker:    chunker,
		embedder:   embedder,
		generator:  generator,
		cfg:        cfg,
		logger:     util.NewLogger(zerolog.ErrorLevel),
	}
}

// EmbedDocument chunks and embeds one document. Without force the call is
// idempotent: a document that already has vectors is skipped so provider
// spend is never repeated. With force the existing vectors are deleted
// first; delete and insert are each atomic, so two racing forced runs
// converge on one writer's complete chunk set (last writer wins).
func (s *RAGService) EmbedDocument(ctx context.Context, documentID int64, force bool) (*interfaces.EmbedResult, error) {
	start := time.Now()
	logger := s.logger.With().Str("request_id", uuid.New().String()).Int64("document_id", documentID).Logger()

	document, err := s.documents.GetByID(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if document == nil {
		logger.Error().Msg("document not found")
		return nil, fmt.Errorf("%w: id %d", ErrDocumentNotFound, documentID)
	}

	logger.Info().Str("title", document.Title).Bool("force", force).Msg("embedding document")

	if !force {
		existing, err := s.embeddings.CountByDocument(ctx, documentID)
		if err != nil {
			return nil, err
		}
		if existing > 0 {
			logger.Info().Int64("existing", existing).Msg("document already embedded, skipping")
			return &interfaces.EmbedResult{
				DocumentID:         documentID,
				DocumentTitle:      document.Title,
				ExistingEmbeddings: existing,
				ProcessingTimeMs:   time.Since(start).Milliseconds(),
				Skipped:            true,
			}, nil
		}
	}

	if force {
		deleted, err := s.embeddings.DeleteByDocument(ctx, documentID)
		if err != nil {
			return nil, err
		}
		if deleted > 0 {
			logger.Info().Int64("deleted", deleted).Msg("deleted existing embeddings")
		}
	}

	chunks, err := s.chunker.ChunkDocument(document.Content, s.cfg.ChunkMaxSize, s.cfg.ChunkOverlap)
	if err != nil {
		return nil, err
	}
	logger.Info().Int("chunks", len(chunks)).Msg("document chunked")

	vectors, err := s.embedChunks(ctx, chunks)
	if err != nil {
		return nil, err
	}

	created, err := s.embeddings.CreateBatch(ctx, documentID, chunks, vectors)
	if err != nil {
		return nil, err
	}

	elapsed := time.Since(start).Milliseconds()
	logger.Info().Int("embeddings", len(created)).Int64("elapsed_ms", elapsed).Msg("document embedded")

	return &interfaces.EmbedResult{
		DocumentID:        documentID,
		DocumentTitle:     document.Title,
		ChunksCreated:     len(chunks),
		EmbeddingsCreated: len(created),
		ProcessingTimeMs:  elapsed,
	}, nil
}

// embedChunks batch-embeds the chunk list, transparently splitting it when
// it exceeds the provider's batch cap.
func (s *RAGService) embedChunks(ctx context.Context, chunks []string) ([][]float32, error) {
	maxBatch := s.embedder.GetMaxBatchSize()
	vectors := make([][]float32, 0, len(chunks))

	for start := 0; start < len(chunks); start += maxBatch {
		end := start + maxBatch
		if end > len(chunks) {
			end = len(chunks)
		}

		batch, err := s.embedder.GenerateEmbeddingBatch(ctx, chunks[start:end])
		if err != nil {
			return nil, err
		}
		vectors = append(vectors, batch...)
	}

	return vectors, nil
}

// EmbedAllDocuments embeds every stored document. A failure on one document
// is recorded in its result entry and does not abort the batch.
func (s *RAGService) EmbedAllDocuments(ctx context.Context, force bool) (*interfaces.EmbedAllResult, error) {
	start := time.Now()

	const pageLimit = 1000
	documents, err := s.documents.List(ctx, 0, pageLimit)
	if err != nil {
		return nil, err
	}

	s.logger.Info().Int("documents", len(documents)).Bool("force", force).Msg("embedding all documents")

	aggregate := &interfaces.EmbedAllResult{
		Results: make([]interfaces.EmbedResult, 0, len(documents)),
	}

	for _, document := range documents {
		result, err := s.EmbedDocument(ctx, document.ID, force)
		if err != nil {
			s.logger.Error().Err(err).Int64("document_id", document.ID).Msg("failed to embed document")
			aggregate.Results = append(aggregate.Results, interfaces.EmbedResult{
				DocumentID:    document.ID,
				DocumentTitle: document.Title,
				Error:         err.Error(),
			})
			continue
		}

		aggregate.Results = append(aggregate.Results, *result)
		aggregate.TotalChunks += result.ChunksCreated
		aggregate.TotalEmbeddings += result.EmbeddingsCreated
		if result.Skipped {
			aggregate.DocumentsSkipped++
		} else {
			aggregate.DocumentsProcessed++
		}
	}

	aggregate.ProcessingTimeMs = time.Since(start).Milliseconds()
	s.logger.Info().
		Int("processed", aggregate.DocumentsProcessed).
		Int("skipped", aggregate.DocumentsSkipped).
		Int("total_chunks", aggregate.TotalChunks).
		Int64("elapsed_ms", aggregate.ProcessingTimeMs).
		Msg("batch embedding complete")

	return aggregate, nil
}

// AnswerQuestion runs the retrieval pipeline for one question: embed it,
// retrieve the top-K most similar chunks, compose a grounded prompt and
// generate the answer with source citations. Matching nothing is a valid
// outcome and yields a canned answer; an empty index is an error.
func (s *RAGService) AnswerQuestion(
	ctx context.Context,
	question string,
	opts *interfaces.AnswerOptions,
) (*interfaces.Answer, error) {
	if strings.TrimSpace(question) == "" {
		return nil, ErrEmptyQuestion
	}
	if opts == nil {
		opts = &interfaces.AnswerOptions{}
	}

	start := time.Now()
	topK := opts.TopK
	if topK <= 0 {
		topK = s.cfg.TopK
	}
	model := opts.Model
	if model == "" {
		model = s.generator.GetDefaultModel()
	}

	logger := s.logger.With().Str("request_id", uuid.New().String()).Logger()
	logger.Info().Str("question", truncate(question, 100)).Int("top_k", topK).Msg("answering question")

	total, err := s.embeddings.Count(ctx)
	if err != nil {
		return nil, err
	}
	if total == 0 {
		logger.Error().Msg("no embeddings in store")
		return nil, ErrNoEmbeddingsFound
	}

	retrievalStart := time.Now()
	questionVector, err := s.embedder.GenerateEmbedding(ctx, question)
	if err != nil {
		return nil, err
	}

	results, err := s.embeddings.SearchSimilar(ctx, questionVector, topK, opts.SimilarityThreshold)
	if err != nil {
		return nil, err
	}
	retrievalMs := time.Since(retrievalStart).Milliseconds()

	if len(results) == 0 {
		logger.Warn().Msg("no similar chunks found")
		return &interfaces.Answer{
			Answer:           noContextAnswer,
			Sources:          []interfaces.AnswerSource{},
			ModelUsed:        model,
			ProcessingTimeMs: time.Since(start).Milliseconds(),
			RetrievalTimeMs:  retrievalMs,
		}, nil
	}

	logger.Info().Int("chunks", len(results)).Int64("retrieval_ms", retrievalMs).Msg("retrieved similar chunks")

	var contextParts []string
	sources := make([]interfaces.AnswerSource, 0, len(results))
	for i, result := range results {
		contextParts = append(contextParts, fmt.Sprintf("[Source %d] Document: %s\n%s\n",
			i+1, result.DocumentTitle, result.ChunkText))

		sources = append(sources, interfaces.AnswerSource{
			DocumentID:      result.DocumentID,
			DocumentTitle:   result.DocumentTitle,
			ChunkIndex:      result.ChunkIndex,
			ChunkText:       result.ChunkText,
			SimilarityScore: roundScore(result.Similarity),
		})
	}

	userPrompt := fmt.Sprintf(
		"Use the following context from medical documents to answer the question:\n\n%s\nQuestion: %s\n\n"+
			"Please provide a clear, accurate answer based on the context above. Reference the sources you use.",
		strings.Join(contextParts, "\n"), question)

	messages := []models.Message{
		{Role: "system", Content: answerSystemPrompt},
		{Role: "user", Content: userPrompt},
	}

	generationStart := time.Now()
	completion, err := s.generator.CreateCompletion(ctx, messages, opts.Model, nil)
	if err != nil {
		return nil, err
	}
	generationMs := time.Since(generationStart).Milliseconds()

	elapsed := time.Since(start).Milliseconds()
	logger.Info().
		Int64("retrieval_ms", retrievalMs).
		Int64("generation_ms", generationMs).
		Int64("elapsed_ms", elapsed).
		Msg("question answered")

	return &interfaces.Answer{
		Answer:           completion.Text,
		Sources:          sources,
		ModelUsed:        completion.Model,
		TokenUsage:       completion.Usage,
		ProcessingTimeMs: elapsed,
		RetrievalTimeMs:  retrievalMs,
		GenerationTimeMs: generationMs,
	}, nil
}

// Stats reports the current state of the retrieval corpus.
func (s *RAGService) Stats(ctx context.Context) (*interfaces.RAGStats, error) {
	totalDocuments, err := s.documents.Count(ctx)
	if err != nil {
		return nil, err
	}

	embeddingStats, err := s.embeddings.Stats(ctx)
	if err != nil {
		return nil, err
	}

	return &interfaces.RAGStats{
		TotalDocuments:          totalDocuments,
		TotalEmbeddings:         embeddingStats.TotalEmbeddings,
		DocumentsWithEmbeddings: embeddingStats.DocumentsWithEmbeddings,
		AvgChunksPerDocument:    embeddingStats.AvgChunksPerDocument,
		EmbeddingModel:          s.embedder.GetModelName(),
		EmbeddingDimension:      s.embedder.GetDimension(),
		ChunkMaxSize:            s.cfg.ChunkMaxSize,
		ChunkOverlap:            s.cfg.ChunkOverlap,
		TopK:                    s.cfg.TopK,
	}, nil
}

// roundScore rounds a similarity score to 4 decimal places.
func roundScore(score float64) float64 {
	return math.Round(score*10000) / 10000
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
