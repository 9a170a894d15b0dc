package services

import (
	"context"
	"errors"
	"sort"
	"strings"
	"testing"

	"github.com/ryanpkennedy/df-healthbench/internal/rag/interfaces"
	"github.com/ryanpkennedy/df-healthbench/internal/rag/models"
)

type fakeDocumentStore struct {
	docs map[int64]*models.Document
}

func (f *fakeDocumentStore) GetByID(_ context.Context, id int64) (*models.Document, error) {
	return f.docs[id], nil
}

func (f *fakeDocumentStore) List(_ context.Context, skip, limit int) ([]models.Document, error) {
	ids := make([]int64, 0, len(f.docs))
	for id := range f.docs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var documents []models.Document
	for i, id := range ids {
		if i < skip || len(documents) >= limit {
			continue
		}
		documents = append(documents, *f.docs[id])
	}
	return documents, nil
}

func (f *fakeDocumentStore) Count(_ context.Context) (int64, error) {
	return int64(len(f.docs)), nil
}

type fakeVectorStore struct {
	counts  map[int64]int64
	total   int64
	results []models.SearchResult

	insertedChunks map[int64][]string
	deletes        []int64
	searchCalls    int
	lastThreshold  *float64
}

func newFakeVectorStore() *fakeVectorStore {
	return &fakeVectorStore{
		counts:         make(map[int64]int64),
		insertedChunks: make(map[int64][]string),
	}
}

func (f *fakeVectorStore) CreateBatch(
	_ context.Context,
	documentID int64,
	chunks []string,
	vectors [][]float32,
) ([]models.DocumentEmbedding, error) {
	if len(chunks) != len(vectors) {
		return nil, errors.New("chunk and vector count mismatch")
	}

	f.insertedChunks[documentID] = append([]string(nil), chunks...)
	f.counts[documentID] = int64(len(chunks))

	created := make([]models.DocumentEmbedding, len(chunks))
	for i, chunk := range chunks {
		created[i] = models.DocumentEmbedding{
			ID:         int64(i + 1),
			DocumentID: documentID,
			ChunkIndex: i,
			ChunkText:  chunk,
		}
	}
	return created, nil
}

func (f *fakeVectorStore) SearchSimilar(
	_ context.Context,
	_ []float32,
	limit int,
	similarityThreshold *float64,
) ([]models.SearchResult, error) {
	f.searchCalls++
	f.lastThreshold = similarityThreshold

	var results []models.SearchResult
	for _, res := range f.results {
		if similarityThreshold != nil && res.Similarity < *similarityThreshold {
			continue
		}
		if len(results) == limit {
			break
		}
		results = append(results, res)
	}
	return results, nil
}

func (f *fakeVectorStore) DeleteByDocument(_ context.Context, documentID int64) (int64, error) {
	deleted := f.counts[documentID]
	f.counts[documentID] = 0
	f.deletes = append(f.deletes, documentID)
	return deleted, nil
}

func (f *fakeVectorStore) CountByDocument(_ context.Context, documentID int64) (int64, error) {
	return f.counts[documentID], nil
}

func (f *fakeVectorStore) Count(_ context.Context) (int64, error) {
	return f.total, nil
}

func (f *fakeVectorStore) Stats(_ context.Context) (*models.EmbeddingStats, error) {
	stats := &models.EmbeddingStats{TotalEmbeddings: f.total}
	for _, count := range f.counts {
		if count > 0 {
			stats.DocumentsWithEmbeddings++
		}
	}
	return stats, nil
}

type fakeChunker struct {
	failOn string
}

func (f *fakeChunker) ChunkDocument(content string, maxSize, _ int) ([]string, error) {
	if f.failOn != "" && strings.Contains(content, f.failOn) {
		return nil, errors.New("chunking failed")
	}

	var chunks []string
	for len(content) > maxSize {
		chunks = append(chunks, content[:maxSize])
		content = content[maxSize:]
	}
	return append(chunks, content), nil
}

func (f *fakeChunker) GetChunkingStrategy() string {
	return "fixed"
}

type fakeEmbedder struct {
	dimension  int
	maxBatch   int
	batchCalls int
	err        error
}

func (f *fakeEmbedder) vector() []float32 {
	v := make([]float32, f.dimension)
	for i := range v {
		v[i] = 0.1
	}
	return v
}

func (f *fakeEmbedder) GenerateEmbedding(_ context.Context, _ string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.vector(), nil
}

func (f *fakeEmbedder) GenerateEmbeddingBatch(_ context.Context, texts []string) ([][]float32, error) {
	f.batchCalls++
	if f.err != nil {
		return nil, f.err
	}
	if len(texts) > f.maxBatch {
		return nil, errors.New("batch exceeds limit")
	}

	vectors := make([][]float32, len(texts))
	for i := range texts {
		vectors[i] = f.vector()
	}
	return vectors, nil
}

func (f *fakeEmbedder) GetModelName() string { return "fake-embedding-model" }
func (f *fakeEmbedder) GetDimension() int    { return f.dimension }
func (f *fakeEmbedder) GetMaxBatchSize() int { return f.maxBatch }

type fakeGenerator struct {
	completion  *models.Completion
	err         error
	gotMessages []models.Message
	gotModel    string
	calls       int
}

func (f *fakeGenerator) CreateCompletion(
	_ context.Context,
	messages []models.Message,
	model string,
	_ *float64,
) (*models.Completion, error) {
	f.calls++
	f.gotMessages = messages
	f.gotModel = model
	if f.err != nil {
		return nil, f.err
	}
	return f.completion, nil
}

func (f *fakeGenerator) GetDefaultModel() string { return "fake-chat-model" }

func testConfig() Config {
	return Config{
		ChunkMaxSize:       100,
		ChunkOverlap:       10,
		TopK:               5,
		EmbeddingDimension: 4,
	}
}

func newTestService(
	docs *fakeDocumentStore,
	vectors *fakeVectorStore,
	embedder *fakeEmbedder,
	generator *fakeGenerator,
) *RAGService {
	return NewRAGService(docs, vectors, &fakeChunker{}, embedder, generator, testConfig())
}

func TestRAGService_EmbedDocument_NotFound(t *testing.T) {
	docs := &fakeDocumentStore{docs: map[int64]*models.Document{}}
	service := newTestService(docs, newFakeVectorStore(), &fakeEmbedder{dimension: 4, maxBatch: 10}, &fakeGenerator{})

	_, err := service.EmbedDocument(context.Background(), 99, false)
	if !errors.Is(err, ErrDocumentNotFound) {
		t.Errorf("Expected ErrDocumentNotFound, got %v", err)
	}
}

func TestRAGService_EmbedDocument_SkipsExisting(t *testing.T) {
	docs := &fakeDocumentStore{docs: map[int64]*models.Document{
		1: {ID: 1, Title: "Note", Content: "short note"},
	}}
	vectors := newFakeVectorStore()
	vectors.counts[1] = 3
	embedder := &fakeEmbedder{dimension: 4, maxBatch: 10}

	service := newTestService(docs, vectors, embedder, &fakeGenerator{})
	result, err := service.EmbedDocument(context.Background(), 1, false)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if !result.Skipped {
		t.Error("Expected the document to be skipped")
	}
	if result.ExistingEmbeddings != 3 {
		t.Errorf("Expected 3 existing embeddings, got %d", result.ExistingEmbeddings)
	}
	if embedder.batchCalls != 0 {
		t.Errorf("Expected no embedding calls for a skipped document, got %d", embedder.batchCalls)
	}
	if result.EmbeddingsCreated != 0 {
		t.Errorf("Expected no embeddings created, got %d", result.EmbeddingsCreated)
	}
}

func TestRAGService_EmbedDocument_ForceReplaces(t *testing.T) {
	docs := &fakeDocumentStore{docs: map[int64]*models.Document{
		1: {ID: 1, Title: "Note", Content: "short note"},
	}}
	vectors := newFakeVectorStore()
	vectors.counts[1] = 3
	embedder := &fakeEmbedder{dimension: 4, maxBatch: 10}

	service := newTestService(docs, vectors, embedder, &fakeGenerator{})
	result, err := service.EmbedDocument(context.Background(), 1, true)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if result.Skipped {
		t.Error("Expected a forced run to never skip")
	}
	if len(vectors.deletes) != 1 || vectors.deletes[0] != 1 {
		t.Errorf("Expected existing vectors deleted first, got deletes %v", vectors.deletes)
	}
	if result.EmbeddingsCreated != 1 {
		t.Errorf("Expected 1 embedding created, got %d", result.EmbeddingsCreated)
	}
	if got := vectors.insertedChunks[1]; len(got) != 1 || got[0] != "short note" {
		t.Errorf("Unexpected inserted chunks: %v", got)
	}
}

func TestRAGService_EmbedDocument_SplitsBatches(t *testing.T) {
	// 250 characters at maxSize 100 chunks into 3; with a provider cap of 2
	// the embedder must be called twice.
	docs := &fakeDocumentStore{docs: map[int64]*models.Document{
		1: {ID: 1, Title: "Long Note", Content: strings.Repeat("x", 250)},
	}}
	vectors := newFakeVectorStore()
	embedder := &fakeEmbedder{dimension: 4, maxBatch: 2}

	service := newTestService(docs, vectors, embedder, &fakeGenerator{})
	result, err := service.EmbedDocument(context.Background(), 1, false)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if result.ChunksCreated != 3 {
		t.Errorf("Expected 3 chunks, got %d", result.ChunksCreated)
	}
	if embedder.batchCalls != 2 {
		t.Errorf("Expected 2 provider calls, got %d", embedder.batchCalls)
	}
	if result.EmbeddingsCreated != 3 {
		t.Errorf("Expected 3 embeddings created, got %d", result.EmbeddingsCreated)
	}
}

func TestRAGService_EmbedAllDocuments_PartialFailure(t *testing.T) {
	docs := &fakeDocumentStore{docs: map[int64]*models.Document{
		1: {ID: 1, Title: "First", Content: "first note"},
		2: {ID: 2, Title: "Second", Content: "POISON second note"},
		3: {ID: 3, Title: "Third", Content: "third note"},
	}}
	vectors := newFakeVectorStore()
	embedder := &fakeEmbedder{dimension: 4, maxBatch: 10}

	service := NewRAGService(docs, vectors, &fakeChunker{failOn: "POISON"}, embedder, &fakeGenerator{}, testConfig())
	result, err := service.EmbedAllDocuments(context.Background(), false)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if len(result.Results) != 3 {
		t.Fatalf("Expected a result entry per document, got %d", len(result.Results))
	}
	if result.DocumentsProcessed != 2 {
		t.Errorf("Expected 2 documents processed, got %d", result.DocumentsProcessed)
	}

	var failed *interfaces.EmbedResult
	for i := range result.Results {
		if result.Results[i].Error != "" {
			failed = &result.Results[i]
		}
	}
	if failed == nil {
		t.Fatal("Expected one failed result entry")
	}
	if failed.DocumentID != 2 {
		t.Errorf("Expected document 2 to fail, got %d", failed.DocumentID)
	}
}

func TestRAGService_AnswerQuestion_EmptyQuestion(t *testing.T) {
	service := newTestService(
		&fakeDocumentStore{docs: map[int64]*models.Document{}},
		newFakeVectorStore(),
		&fakeEmbedder{dimension: 4, maxBatch: 10},
		&fakeGenerator{},
	)

	for _, question := range []string{"", "   \n\t "} {
		if _, err := service.AnswerQuestion(context.Background(), question, nil); !errors.Is(err, ErrEmptyQuestion) {
			t.Errorf("Expected ErrEmptyQuestion for %q, got %v", question, err)
		}
	}
}

func TestRAGService_AnswerQuestion_EmptyIndex(t *testing.T) {
	vectors := newFakeVectorStore()
	vectors.total = 0

	service := newTestService(
		&fakeDocumentStore{docs: map[int64]*models.Document{}},
		vectors,
		&fakeEmbedder{dimension: 4, maxBatch: 10},
		&fakeGenerator{},
	)

	_, err := service.AnswerQuestion(context.Background(), "what happened?", nil)
	if !errors.Is(err, ErrNoEmbeddingsFound) {
		t.Errorf("Expected ErrNoEmbeddingsFound, got %v", err)
	}
}

func TestRAGService_AnswerQuestion_NoMatches(t *testing.T) {
	vectors := newFakeVectorStore()
	vectors.total = 10
	vectors.results = nil

	generator := &fakeGenerator{}
	service := newTestService(
		&fakeDocumentStore{docs: map[int64]*models.Document{}},
		vectors,
		&fakeEmbedder{dimension: 4, maxBatch: 10},
		generator,
	)

	answer, err := service.AnswerQuestion(context.Background(), "unrelated question", nil)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if answer.Answer != noContextAnswer {
		t.Errorf("Expected the canned no-context answer, got %q", answer.Answer)
	}
	if answer.Sources == nil || len(answer.Sources) != 0 {
		t.Errorf("Expected an empty, non-nil sources list, got %v", answer.Sources)
	}
	if generator.calls != 0 {
		t.Errorf("Expected no generation call without context, got %d", generator.calls)
	}
}

func TestRAGService_AnswerQuestion_Success(t *testing.T) {
	vectors := newFakeVectorStore()
	vectors.total = 10
	vectors.results = []models.SearchResult{
		{EmbeddingID: 1, DocumentID: 1, DocumentTitle: "Progress Note", ChunkIndex: 0,
			ChunkText: "BP 130/82 on lisinopril.", Similarity: 0.91239},
		{EmbeddingID: 2, DocumentID: 2, DocumentTitle: "Discharge Summary", ChunkIndex: 3,
			ChunkText: "Discharged on amoxicillin.", Similarity: 0.80001},
	}

	generator := &fakeGenerator{completion: &models.Completion{
		Text:  "According to Source 1, blood pressure was 130/82.",
		Model: "fake-chat-model",
		Usage: models.TokenUsage{PromptTokens: 200, CompletionTokens: 20, TotalTokens: 220},
	}}

	service := newTestService(
		&fakeDocumentStore{docs: map[int64]*models.Document{}},
		vectors,
		&fakeEmbedder{dimension: 4, maxBatch: 10},
		generator,
	)

	answer, err := service.AnswerQuestion(context.Background(), "What was the blood pressure?", nil)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if answer.Answer != generator.completion.Text {
		t.Errorf("Unexpected answer text: %q", answer.Answer)
	}
	if answer.ModelUsed != "fake-chat-model" {
		t.Errorf("Unexpected model: %s", answer.ModelUsed)
	}
	if answer.TokenUsage.TotalTokens != 220 {
		t.Errorf("Expected 220 total tokens, got %d", answer.TokenUsage.TotalTokens)
	}

	if len(answer.Sources) != 2 {
		t.Fatalf("Expected 2 sources, got %d", len(answer.Sources))
	}
	if answer.Sources[0].SimilarityScore != 0.9124 {
		t.Errorf("Expected score rounded to 0.9124, got %v", answer.Sources[0].SimilarityScore)
	}
	if answer.Sources[1].SimilarityScore != 0.8 {
		t.Errorf("Expected score rounded to 0.8, got %v", answer.Sources[1].SimilarityScore)
	}

	if len(generator.gotMessages) != 2 {
		t.Fatalf("Expected system and user messages, got %d", len(generator.gotMessages))
	}
	userPrompt := generator.gotMessages[1].Content
	if !strings.Contains(userPrompt, "Progress Note") || !strings.Contains(userPrompt, "Discharge Summary") {
		t.Error("Expected the prompt to include both source documents")
	}
	if !strings.Contains(userPrompt, "What was the blood pressure?") {
		t.Error("Expected the prompt to include the question")
	}

	if answer.ProcessingTimeMs < 0 || answer.RetrievalTimeMs < 0 || answer.GenerationTimeMs < 0 {
		t.Error("Expected non-negative timing values")
	}
}

func TestRAGService_AnswerQuestion_ThresholdFiltersSources(t *testing.T) {
	vectors := newFakeVectorStore()
	vectors.total = 10
	vectors.results = []models.SearchResult{
		{EmbeddingID: 1, DocumentID: 1, DocumentTitle: "Progress Note", ChunkIndex: 0,
			ChunkText: "BP 130/82 on lisinopril.", Similarity: 0.95},
		{EmbeddingID: 2, DocumentID: 2, DocumentTitle: "Old Note", ChunkIndex: 1,
			ChunkText: "Unrelated earlier visit.", Similarity: 0.6},
	}

	generator := &fakeGenerator{completion: &models.Completion{
		Text:  "Blood pressure was 130/82.",
		Model: "fake-chat-model",
	}}

	service := newTestService(
		&fakeDocumentStore{docs: map[int64]*models.Document{}},
		vectors,
		&fakeEmbedder{dimension: 4, maxBatch: 10},
		generator,
	)

	threshold := 0.9
	answer, err := service.AnswerQuestion(context.Background(), "What was the blood pressure?",
		&interfaces.AnswerOptions{SimilarityThreshold: &threshold})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if vectors.lastThreshold == nil || *vectors.lastThreshold != threshold {
		t.Errorf("Expected the threshold passed through to the store, got %v", vectors.lastThreshold)
	}
	if len(answer.Sources) != 1 {
		t.Fatalf("Expected only the above-threshold source, got %d", len(answer.Sources))
	}
	if answer.Sources[0].DocumentTitle != "Progress Note" {
		t.Errorf("Expected the matching chunk kept, got %q", answer.Sources[0].DocumentTitle)
	}
}

func TestRAGService_Stats(t *testing.T) {
	docs := &fakeDocumentStore{docs: map[int64]*models.Document{
		1: {ID: 1}, 2: {ID: 2},
	}}
	vectors := newFakeVectorStore()
	vectors.total = 7
	vectors.counts[1] = 7

	service := newTestService(docs, vectors, &fakeEmbedder{dimension: 4, maxBatch: 10}, &fakeGenerator{})
	stats, err := service.Stats(context.Background())
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if stats.TotalDocuments != 2 {
		t.Errorf("Expected 2 documents, got %d", stats.TotalDocuments)
	}
	if stats.TotalEmbeddings != 7 {
		t.Errorf("Expected 7 embeddings, got %d", stats.TotalEmbeddings)
	}
	if stats.EmbeddingModel != "fake-embedding-model" {
		t.Errorf("Unexpected embedding model: %s", stats.EmbeddingModel)
	}
	if stats.EmbeddingDimension != 4 {
		t.Errorf("Expected dimension 4, got %d", stats.EmbeddingDimension)
	}
}
