package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ryanpkennedy/df-healthbench/internal/rag/models"
	"github.com/ryanpkennedy/df-healthbench/pkg/db"
	"github.com/ryanpkennedy/df-healthbench/pkg/util"

	"github.com/rs/zerolog"
)

// EmbeddingRepository persists chunk vectors in libsql F32_BLOB columns and
// performs cosine similarity search with the native vector_distance_cos
// operator. Store errors propagate unwrapped; this layer is infrastructure.
type EmbeddingRepository struct {
	db     *db.DB
	logger zerolog.Logger
}

func NewEmbeddingRepository(database *db.DB) *EmbeddingRepository {
	logger := util.NewLogger(zerolog.ErrorLevel)
	return &EmbeddingRepository{
		db:     database,
		logger: logger,
	}
}

// CreateBatch inserts all chunks for a document in one transaction. Chunk
// indices are assigned sequentially from 0 in input order and are never
// renumbered afterwards.
func (r *EmbeddingRepository) CreateBatch(
	ctx context.Context,
	documentID int64,
	chunks []string,
	vectors [][]float32,
) ([]models.DocumentEmbedding, error) {
	if len(chunks) != len(vectors) {
		return nil, fmt.Errorf("chunk count %d does not match vector count %d", len(chunks), len(vectors))
	}
	if len(chunks) == 0 {
		return nil, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		r.logger.Error().Err(err).Msg("Failed to begin transaction")
		return nil, err
	}
	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			r.logger.Error().Err(err).Msg("Failed to rollback transaction")
		}
	}()

	query := `
		INSERT INTO document_embeddings (document_id, chunk_index, chunk_text, embedding, created_at)
		VALUES (?, ?, ?, vector32(?), ?)
	`
	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		r.logger.Error().Err(err).Msg("Failed to prepare insert")
		return nil, err
	}
	defer stmt.Close()

	now := time.Now().UTC()
	created := make([]models.DocumentEmbedding, 0, len(chunks))

	for i, chunk := range chunks {
		result, err := stmt.ExecContext(ctx, documentID, i, chunk,
			vectorToString(vectors[i]), now.Format(time.RFC3339))
		if err != nil {
			r.logger.Error().Err(err).Int64("document_id", documentID).Int("chunk_index", i).
				Msg("Failed to insert embedding")
			return nil, err
		}

		id, err := result.LastInsertId()
		if err != nil {
			return nil, err
		}

		created = append(created, models.DocumentEmbedding{
			ID:         id,
			DocumentID: documentID,
			ChunkIndex: i,
			ChunkText:  chunk,
			Embedding:  vectors[i],
			CreatedAt:  now,
		})
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	r.logger.Info().Int64("document_id", documentID).Int("count", len(created)).
		Msg("Created embeddings batch")
	return created, nil
}

// SearchSimilar ranks every stored vector against queryVector by cosine
// distance and returns up to limit results as similarity scores in [0,1].
// vector_distance_cos returns cosine distance in [0,2], so
// similarity = 1 - distance/2; a threshold therefore becomes the store-side
// predicate distance <= 2*(1-threshold), applied inside the query so it
// composes correctly with LIMIT.
func (r *EmbeddingRepository) SearchSimilar(
	ctx context.Context,
	queryVector []float32,
	limit int,
	similarityThreshold *float64,
) ([]models.SearchResult, error) {
	vectorStr := vectorToString(queryVector)

	query := `
		SELECT e.id, e.document_id, d.title, e.chunk_index, e.chunk_text,
		       vector_distance_cos(e.embedding, vector32(?)) AS distance
		FROM document_embeddings e
		JOIN documents d ON d.id = e.document_id
	`
	args := []any{vectorStr}

	if similarityThreshold != nil {
		query += ` WHERE vector_distance_cos(e.embedding, vector32(?)) <= ?`
		args = append(args, vectorStr, 2*(1-*similarityThreshold))
	}

	query += ` ORDER BY distance LIMIT ?`
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error().Err(err).Msg("Vector search failed")
		return nil, err
	}
	defer rows.Close()

	var results []models.SearchResult
	for rows.Next() {
		var res models.SearchResult
		var distance float64
		if err := rows.Scan(&res.EmbeddingID, &res.DocumentID, &res.DocumentTitle,
			&res.ChunkIndex, &res.ChunkText, &distance); err != nil {
			r.logger.Error().Err(err).Msg("Failed to scan search result")
			return nil, err
		}
		res.Similarity = 1 - distance/2
		results = append(results, res)
	}

	r.logger.Debug().Int("results", len(results)).Int("limit", limit).Msg("Vector search complete")
	return results, rows.Err()
}

// GetByDocument returns a document's embeddings ordered by chunk index.
func (r *EmbeddingRepository) GetByDocument(ctx context.Context, documentID int64) ([]models.DocumentEmbedding, error) {
	query := `
		SELECT id, document_id, chunk_index, chunk_text, created_at
		FROM document_embeddings WHERE document_id = ? ORDER BY chunk_index
	`
	rows, err := r.db.QueryContext(ctx, query, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var embeddings []models.DocumentEmbedding
	for rows.Next() {
		var emb models.DocumentEmbedding
		var createdAtStr string
		if err := rows.Scan(&emb.ID, &emb.DocumentID, &emb.ChunkIndex, &emb.ChunkText, &createdAtStr); err != nil {
			return nil, err
		}
		if createdAt, err := time.Parse(time.RFC3339, createdAtStr); err == nil {
			emb.CreatedAt = createdAt
		}
		embeddings = append(embeddings, emb)
	}

	return embeddings, rows.Err()
}

// DeleteByDocument removes all vectors for a document in one statement.
func (r *EmbeddingRepository) DeleteByDocument(ctx context.Context, documentID int64) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM document_embeddings WHERE document_id = ?`, documentID)
	if err != nil {
		r.logger.Error().Err(err).Int64("document_id", documentID).Msg("Failed to delete embeddings")
		return 0, err
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}

	if deleted > 0 {
		r.logger.Info().Int64("document_id", documentID).Int64("deleted", deleted).
			Msg("Deleted embeddings for document")
	}
	return deleted, nil
}

// CountByDocument returns the number of vectors stored for a document.
func (r *EmbeddingRepository) CountByDocument(ctx context.Context, documentID int64) (int64, error) {
	var count int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM document_embeddings WHERE document_id = ?`, documentID).Scan(&count)
	return count, err
}

// Count returns the total number of vectors in the store.
func (r *EmbeddingRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM document_embeddings`).Scan(&count)
	return count, err
}

// Stats aggregates vector-store statistics.
func (r *EmbeddingRepository) Stats(ctx context.Context) (*models.EmbeddingStats, error) {
	var stats models.EmbeddingStats

	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COUNT(DISTINCT document_id)
		FROM document_embeddings
	`).Scan(&stats.TotalEmbeddings, &stats.DocumentsWithEmbeddings)
	if err != nil {
		return nil, err
	}

	if stats.DocumentsWithEmbeddings > 0 {
		avg := float64(stats.TotalEmbeddings) / float64(stats.DocumentsWithEmbeddings)
		// two decimal places, matching the stats surface
		stats.AvgChunksPerDocument = float64(int(avg*100+0.5)) / 100
	}

	return &stats, nil
}

// vectorToString converts a float32 slice to the textual vector literal
// accepted by vector32: [0.1,0.2,0.3].
func vectorToString(v []float32) string {
	parts := make([]string, len(v))
	for i, val := range v {
		parts[i] = fmt.Sprintf("%g", val)
	}
	return "[" + strings.Join(parts, ",") + "]"
}
