package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/ryanpkennedy/df-healthbench/internal/rag/models"
	"github.com/ryanpkennedy/df-healthbench/pkg/db"
	"github.com/ryanpkennedy/df-healthbench/pkg/util"

	"github.com/rs/zerolog"
)

// SummaryRepository persists cached document summaries, keyed 1:1 by
// document id. Only the latest generation is kept; Upsert overwrites.
type SummaryRepository struct {
	db     *db.DB
	logger zerolog.Logger
}

func NewSummaryRepository(database *db.DB) *SummaryRepository {
	logger := util.NewLogger(zerolog.ErrorLevel)
	return &SummaryRepository{
		db:     database,
		logger: logger,
	}
}

// GetByDocumentID returns the cached summary or (nil, nil) when absent.
func (r *SummaryRepository) GetByDocumentID(ctx context.Context, documentID int64) (*models.DocumentSummary, error) {
	query := `
		SELECT document_id, summary_text, model_used, token_usage, updated_at
		FROM document_summaries WHERE document_id = ?
	`
	row := r.db.QueryRowContext(ctx, query, documentID)

	var summary models.DocumentSummary
	var modelUsed, tokenUsageJSON sql.NullString
	var updatedAtStr string

	err := row.Scan(&summary.DocumentID, &summary.SummaryText, &modelUsed, &tokenUsageJSON, &updatedAtStr)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error().Err(err).Int64("document_id", documentID).Msg("Failed to get summary")
		return nil, err
	}

	if modelUsed.Valid {
		summary.ModelUsed = modelUsed.String
	}
	if tokenUsageJSON.Valid && tokenUsageJSON.String != "" {
		if err := json.Unmarshal([]byte(tokenUsageJSON.String), &summary.TokenUsage); err != nil {
			r.logger.Warn().Err(err).Int64("document_id", documentID).Msg("Failed to decode token usage")
		}
	}
	if updatedAt, err := time.Parse(time.RFC3339, updatedAtStr); err == nil {
		summary.UpdatedAt = updatedAt
	}

	return &summary, nil
}

// Upsert updates the cached summary in place, inserting the row if this is
// the document's first summary.
func (r *SummaryRepository) Upsert(
	ctx context.Context,
	documentID int64,
	summaryText, modelUsed string,
	usage models.TokenUsage,
) error {
	usageJSON, err := json.Marshal(usage)
	if err != nil {
		r.logger.Error().Err(err).Msg("Failed to encode token usage")
		return err
	}

	now := time.Now().UTC()
	query := `
		INSERT INTO document_summaries (document_id, summary_text, model_used, token_usage, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(document_id) DO UPDATE SET
			summary_text = excluded.summary_text,
			model_used = excluded.model_used,
			token_usage = excluded.token_usage,
			updated_at = excluded.updated_at
	`

	_, err = r.db.ExecContext(ctx, query, documentID, summaryText, modelUsed,
		string(usageJSON), now.Format(time.RFC3339))
	if err != nil {
		r.logger.Error().Err(err).Int64("document_id", documentID).Msg("Failed to upsert summary")
		return err
	}

	r.logger.Debug().Int64("document_id", documentID).Msg("Summary cached")
	return nil
}

// Delete removes a cached summary.
func (r *SummaryRepository) Delete(ctx context.Context, documentID int64) (bool, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM document_summaries WHERE document_id = ?`, documentID)
	if err != nil {
		r.logger.Error().Err(err).Int64("document_id", documentID).Msg("Failed to delete summary")
		return false, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}
