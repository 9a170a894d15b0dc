package cmd

import (
	"errors"
	"os"

	"github.com/ryanpkennedy/df-healthbench/internal/rag/chunkers"
	"github.com/ryanpkennedy/df-healthbench/internal/rag/embedders"
	"github.com/ryanpkennedy/df-healthbench/internal/rag/generators"
	"github.com/ryanpkennedy/df-healthbench/internal/rag/services"

	"github.com/rs/zerolog"
)

// Error categories reported on the CLI surface. Each failure maps to
// exactly one category so callers and scripts can branch on it.
const (
	categoryInvalidInput  = "invalid_input"
	categoryNotFound      = "not_found"
	categoryNotReady      = "not_ready"
	categoryRetryLater    = "retry_later"
	categoryProviderError = "provider_error"
	categoryInternal      = "internal"
)

// categorize maps an error from the pipeline to its CLI category.
func categorize(err error) string {
	switch {
	case errors.Is(err, services.ErrEmptyQuestion),
		errors.Is(err, chunkers.ErrContentEmpty),
		errors.Is(err, chunkers.ErrMaxSizeTooSmall),
		errors.Is(err, chunkers.ErrInvalidOverlap),
		errors.Is(err, embedders.ErrContentEmpty),
		errors.Is(err, embedders.ErrTextTooLong),
		errors.Is(err, embedders.ErrBatchTooLarge),
		errors.Is(err, generators.ErrNoMessages):
		return categoryInvalidInput
	case errors.Is(err, services.ErrDocumentNotFound):
		return categoryNotFound
	case errors.Is(err, services.ErrNoEmbeddingsFound):
		return categoryNotReady
	case errors.Is(err, embedders.ErrRateLimit),
		errors.Is(err, embedders.ErrTimeout),
		errors.Is(err, embedders.ErrConnection),
		errors.Is(err, generators.ErrRateLimit),
		errors.Is(err, generators.ErrTimeout),
		errors.Is(err, generators.ErrConnection):
		return categoryRetryLater
	case errors.Is(err, embedders.ErrAPI),
		errors.Is(err, generators.ErrAPI):
		return categoryProviderError
	default:
		return categoryInternal
	}
}

// exitWithError logs the failure with its category and terminates.
func exitWithError(logger zerolog.Logger, err error, msg string) {
	logger.Error().Err(err).Str("category", categorize(err)).Msg(msg)
	os.Exit(1)
}
