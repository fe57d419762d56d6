// Package embedding provides batched embedding providers for the private
// index.
//
// Supported providers:
//   - ollama (default): local embeddings via Ollama. No API keys, fully private.
//   - openai: OpenAI text-embedding-3-small/large. Requires an API key.
//   - none: no provider; the index runs in lexical-only mode.
//
// Embedding failures are never fatal to indexing or search: callers fall
// back to lexical-only scoring and surface that through a fallback flag.
package embedding

import (
	"context"
	"fmt"
	"math"
)

// Provider generates embedding vectors from text. All providers must
// produce vectors of consistent dimensionality within a single index;
// switching providers requires reindexing.
type Provider interface {
	// EmbedDocuments returns one embedding per input text in a single
	// batched call, in input order.
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedQuery returns an embedding optimized for search queries.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)

	// Name returns the provider identifier (e.g., "ollama", "openai").
	Name() string

	// Model returns the embedding model name.
	Model() string

	// Dimensions returns the embedding vector dimensionality.
	Dimensions() int
}

// ProviderConfig holds embedding provider settings.
type ProviderConfig struct {
	Provider   string // "ollama" (default), "openai", "none"
	Model      string // model name (provider-specific defaults if empty)
	APIKey     string // API key (required for openai)
	BaseURL    string // base URL (provider-specific defaults if empty)
	Dimensions int    // vector dimensions (0 = provider default)
}

// NewProvider creates an embedding provider from the given config.
// A "none" provider returns (nil, nil): the caller runs lexical-only.
func NewProvider(cfg ProviderConfig) (Provider, error) {
	switch cfg.Provider {
	case "", "ollama":
		return newOllamaProvider(cfg)
	case "openai":
		return newOpenAIProvider(cfg)
	case "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown embedding provider: %q (supported: ollama, openai, none)", cfg.Provider)
	}
}

// validateEmbedding checks that a returned vector has the expected
// dimensionality and is not all zeros (which indicates a provider error).
func validateEmbedding(vec []float32, expectedDims int) error {
	if expectedDims > 0 && len(vec) != expectedDims {
		return fmt.Errorf("embedding dimension mismatch: expected %d, got %d", expectedDims, len(vec))
	}
	allZero := true
	for _, v := range vec {
		if math.Float32bits(v) != 0 {
			allZero = false
			break
		}
	}
	if allZero {
		return fmt.Errorf("embedding is all zeros (provider returned invalid vector)")
	}
	return nil
}

// Cosine returns the cosine similarity of two vectors, or 0 when either
// is empty or their lengths differ.
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
