package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/ryanpkennedy/df-healthbench/internal/rag/models"
	"github.com/ryanpkennedy/df-healthbench/pkg/db"
	"github.com/ryanpkennedy/df-healthbench/pkg/util"

	"github.com/rs/zerolog"
)

// DocumentRepository persists clinical documents. Absent documents are
// reported as (nil, nil), not as an error.
type DocumentRepository struct {
	db     *db.DB
	logger zerolog.Logger
}

func NewDocumentRepository(database *db.DB) *DocumentRepository {
	logger := util.NewLogger(zerolog.ErrorLevel)
	return &DocumentRepository{
		db:     database,
		logger: logger,
	}
}

// Create inserts a new document and returns it with its assigned id.
func (r *DocumentRepository) Create(ctx context.Context, title, content string) (*models.Document, error) {
	now := time.Now().UTC()
	query := `
		INSERT INTO documents (title, content, created_at, updated_at)
		VALUES (?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query, title, content,
		now.Format(time.RFC3339), now.Format(time.RFC3339))
	if err != nil {
		r.logger.Error().Err(err).Msg("Failed to create document")
		return nil, err
	}

	id, err := result.LastInsertId()
	if err != nil {
		r.logger.Error().Err(err).Msg("Failed to get document id")
		return nil, err
	}

	return &models.Document{
		ID:        id,
		Title:     title,
		Content:   content,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// GetByID returns the document or (nil, nil) when it does not exist.
func (r *DocumentRepository) GetByID(ctx context.Context, id int64) (*models.Document, error) {
	query := `
		SELECT id, title, content, created_at, updated_at
		FROM documents WHERE id = ?
	`
	row := r.db.QueryRowContext(ctx, query, id)

	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error().Err(err).Int64("document_id", id).Msg("Failed to get document")
		return nil, err
	}

	return doc, nil
}

// List returns documents ordered by id, with skip/limit paging.
func (r *DocumentRepository) List(ctx context.Context, skip, limit int) ([]models.Document, error) {
	query := `
		SELECT id, title, content, created_at, updated_at
		FROM documents ORDER BY id LIMIT ? OFFSET ?
	`
	rows, err := r.db.QueryContext(ctx, query, limit, skip)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var documents []models.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			r.logger.Error().Err(err).Msg("Failed to scan document")
			return nil, err
		}
		documents = append(documents, *doc)
	}

	return documents, rows.Err()
}

// Update replaces title and content and advances updated_at, which
// invalidates every derived artifact for the document.
func (r *DocumentRepository) Update(ctx context.Context, id int64, title, content string) (*models.Document, error) {
	now := time.Now().UTC()
	query := `
		UPDATE documents SET title = ?, content = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := r.db.ExecContext(ctx, query, title, content, now.Format(time.RFC3339), id)
	if err != nil {
		r.logger.Error().Err(err).Int64("document_id", id).Msg("Failed to update document")
		return nil, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, nil
	}

	return r.GetByID(ctx, id)
}

// Delete removes a document; its embeddings and summary cascade.
func (r *DocumentRepository) Delete(ctx context.Context, id int64) (bool, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
	if err != nil {
		r.logger.Error().Err(err).Int64("document_id", id).Msg("Failed to delete document")
		return false, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// Count returns the number of stored documents.
func (r *DocumentRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&count)
	return count, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*models.Document, error) {
	var doc models.Document
	var createdAtStr, updatedAtStr string

	if err := row.Scan(&doc.ID, &doc.Title, &doc.Content, &createdAtStr, &updatedAtStr); err != nil {
		return nil, err
	}

	if createdAt, err := time.Parse(time.RFC3339, createdAtStr); err == nil {
		doc.CreatedAt = createdAt
	}
	if updatedAt, err := time.Parse(time.RFC3339, updatedAtStr); err == nil {
		doc.UpdatedAt = updatedAt
	}

	return &doc, nil
}
