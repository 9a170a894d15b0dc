package services

import (
	"context"
	"fmt"
	"time"

	"github.com/ryanpkennedy/df-healthbench/internal/rag/interfaces"
	"github.com/ryanpkennedy/df-healthbench/internal/rag/models"
	"github.com/ryanpkennedy/df-healthbench/pkg/util"

	"github.com/rs/zerolog"
)

const summarySystemPrompt = `You are a medical documentation assistant. Summarize the clinical note
you are given into a concise, clinically accurate paragraph. Preserve
diagnoses, medications with doses, and follow-up instructions. Do not add
information that is not in the note.`

// SummaryService generates document summaries behind a freshness-gated
// cache: a cached summary is served only while it is at least as new as the
// document's last edit.
type SummaryService struct {
	documents interfaces.DocumentStore
	summaries interfaces.SummaryStore
	generator interfaces.Generator
	logger    zerolog.Logger
}

func NewSummaryService(
	documents interfaces.DocumentStore,
	summaries interfaces.SummaryStore,
	generator interfaces.Generator,
) *SummaryService {
	return &SummaryService{
		documents: documents,
		summaries: summaries,
		generator: generator,
		logger:    util.NewLogger(zerolog.ErrorLevel),
	}
}

// CheckCache returns the cached summary for a document, or nil when there
// is no document, no cache row, or the cache row predates the document's
// last modification. Lookup failures degrade to a miss; the cache must
// never block the generation path.
func (s *SummaryService) CheckCache(ctx context.Context, documentID int64) *models.DocumentSummary {
	document, err := s.documents.GetByID(ctx, documentID)
	if err != nil || document == nil {
		if err != nil {
			s.logger.Warn().Err(err).Int64("document_id", documentID).Msg("cache check failed, treating as miss")
		}
		return nil
	}

	summary, err := s.summaries.GetByDocumentID(ctx, documentID)
	if err != nil {
		s.logger.Warn().Err(err).Int64("document_id", documentID).Msg("cache check failed, treating as miss")
		return nil
	}
	if summary == nil {
		return nil
	}

	if summary.UpdatedAt.Before(document.UpdatedAt) {
		s.logger.Debug().
			Int64("document_id", documentID).
			Time("summary_at", summary.UpdatedAt).
			Time("document_at", document.UpdatedAt).
			Msg("cached summary is stale")
		return nil
	}

	return summary
}

// SummarizeDocument returns the document's summary, serving the cache when
// fresh and regenerating (and overwriting the cache) otherwise. force skips
// the cache read but still writes through.
func (s *SummaryService) SummarizeDocument(ctx context.Context, documentID int64, force bool) (*interfaces.SummaryResult, error) {
	start := time.Now()

	if !force {
		if cached := s.CheckCache(ctx, documentID); cached != nil {
			s.logger.Info().Int64("document_id", documentID).Msg("serving cached summary")
			return &interfaces.SummaryResult{
				DocumentID:       documentID,
				Summary:          cached.SummaryText,
				ModelUsed:        cached.ModelUsed,
				TokenUsage:       cached.TokenUsage,
				FromCache:        true,
				ProcessingTimeMs: time.Since(start).Milliseconds(),
			}, nil
		}
	}

	document, err := s.documents.GetByID(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if document == nil {
		return nil, fmt.Errorf("%w: id %d", ErrDocumentNotFound, documentID)
	}

	messages := []models.Message{
		{Role: "system", Content: summarySystemPrompt},
		{Role: "user", Content: fmt.Sprintf("Please summarize the following medical note:\n\n%s", document.Content)},
	}

	completion, err := s.generator.CreateCompletion(ctx, messages, "", nil)
	if err != nil {
		return nil, err
	}

	if err := s.summaries.Upsert(ctx, documentID, completion.Text, completion.Model, completion.Usage); err != nil {
		// A failed cache write costs a regeneration later, not the answer now.
		s.logger.Warn().Err(err).Int64("document_id", documentID).Msg("failed to cache summary")
	}

	s.logger.Info().
		Int64("document_id", documentID).
		Int("total_tokens", completion.Usage.TotalTokens).
		Msg("summary generated")

	return &interfaces.SummaryResult{
		DocumentID:       documentID,
		Summary:          completion.Text,
		ModelUsed:        completion.Model,
		TokenUsage:       completion.Usage,
		FromCache:        false,
		ProcessingTimeMs: time.Since(start).Milliseconds(),
	}, nil
}
