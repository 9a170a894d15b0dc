package services

import (
	"os"
	"strconv"
	"time"

	"github.com/ryanpkennedy/df-healthbench/internal/rag/chunkers"
)

const (
	topKDefault        = 5
	dimensionDefault   = 1536
	timeoutSecsDefault = 30
)

// Config is the deployment configuration for the RAG pipeline, read once
// from the environment. The embedding dimension must match the width of the
// store's F32_BLOB column.
type Config struct {
	ChunkMaxSize       int
	ChunkOverlap       int
	TopK               int
	EmbeddingDimension int
	RequestTimeout     time.Duration
}

// LoadConfig reads the pipeline configuration from environment variables,
// falling back to defaults for anything unset. Chunk sizing comes from the
// chunker package so its defaults live in one place.
func LoadConfig() Config {
	return Config{
		ChunkMaxSize:       chunkers.GetDefaultMaxChunkSize(),
		ChunkOverlap:       chunkers.GetDefaultOverlap(),
		TopK:               getIntFromEnv("RAG_TOP_K", topKDefault),
		EmbeddingDimension: getIntFromEnv("EMBEDDING_DIMENSION", dimensionDefault),
		RequestTimeout:     time.Duration(getIntFromEnv("OPENAI_TIMEOUT_SECONDS", timeoutSecsDefault)) * time.Second,
	}
}

// getIntFromEnv returns an integer from environment variable or default value.
func getIntFromEnv(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}
	return defaultValue
}
