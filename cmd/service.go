package cmd

import (
	"github.com/ryanpkennedy/df-healthbench/internal/rag/chunkers"
	"github.com/ryanpkennedy/df-healthbench/internal/rag/embedders"
	"github.com/ryanpkennedy/df-healthbench/internal/rag/generators"
	"github.com/ryanpkennedy/df-healthbench/internal/rag/repository"
	"github.com/ryanpkennedy/df-healthbench/internal/rag/services"
	"github.com/ryanpkennedy/df-healthbench/pkg/db"
)

// newRAGService wires the full pipeline against an open connection, reusing
// the process-wide provider adapters.
func newRAGService(database *db.DB) (*services.RAGService, error) {
	embedder, err := embedders.Default()
	if err != nil {
		return nil, err
	}
	generator, err := generators.Default()
	if err != nil {
		return nil, err
	}

	return services.NewRAGService(
		repository.NewDocumentRepository(database),
		repository.NewEmbeddingRepository(database),
		chunkers.NewSectionChunker(),
		embedder,
		generator,
		services.LoadConfig(),
	), nil
}

// newSummaryService wires the summary cache pipeline.
func newSummaryService(database *db.DB) (*services.SummaryService, error) {
	generator, err := generators.Default()
	if err != nil {
		return nil, err
	}

	return services.NewSummaryService(
		repository.NewDocumentRepository(database),
		repository.NewSummaryRepository(database),
		generator,
	), nil
}
