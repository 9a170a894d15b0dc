package services

import (
	"testing"
	"time"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("CHUNK_MAX_SIZE", "")
	t.Setenv("CHUNK_OVERLAP", "")
	t.Setenv("RAG_TOP_K", "")
	t.Setenv("EMBEDDING_DIMENSION", "")
	t.Setenv("OPENAI_TIMEOUT_SECONDS", "")

	cfg := LoadConfig()
	if cfg.ChunkMaxSize != 800 {
		t.Errorf("Expected default chunk max size 800, got %d", cfg.ChunkMaxSize)
	}
	if cfg.ChunkOverlap != 50 {
		t.Errorf("Expected default chunk overlap 50, got %d", cfg.ChunkOverlap)
	}
	if cfg.TopK != 5 {
		t.Errorf("Expected default top-k 5, got %d", cfg.TopK)
	}
	if cfg.EmbeddingDimension != 1536 {
		t.Errorf("Expected default dimension 1536, got %d", cfg.EmbeddingDimension)
	}
	if cfg.RequestTimeout != 30*time.Second {
		t.Errorf("Expected default timeout 30s, got %v", cfg.RequestTimeout)
	}
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("CHUNK_MAX_SIZE", "400")
	t.Setenv("CHUNK_OVERLAP", "25")
	t.Setenv("RAG_TOP_K", "7")
	t.Setenv("EMBEDDING_DIMENSION", "3072")
	t.Setenv("OPENAI_TIMEOUT_SECONDS", "5")

	cfg := LoadConfig()
	if cfg.ChunkMaxSize != 400 {
		t.Errorf("Expected chunk max size 400, got %d", cfg.ChunkMaxSize)
	}
	if cfg.ChunkOverlap != 25 {
		t.Errorf("Expected chunk overlap 25, got %d", cfg.ChunkOverlap)
	}
	if cfg.TopK != 7 {
		t.Errorf("Expected top-k 7, got %d", cfg.TopK)
	}
	if cfg.EmbeddingDimension != 3072 {
		t.Errorf("Expected dimension 3072, got %d", cfg.EmbeddingDimension)
	}
	if cfg.RequestTimeout != 5*time.Second {
		t.Errorf("Expected timeout 5s, got %v", cfg.RequestTimeout)
	}
}
