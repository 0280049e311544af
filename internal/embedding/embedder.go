// Package embedding provides text embedding generation with multiple backend support.
package embedding

import (
	"context"
	"fmt"

	"github.com/raphaelgruber/helix-go/internal/config"
)

// Embedder defines the interface for text embedding providers.
// Implementations include the hash fingerprint (default), real models
// through langchaingo (Ollama local, OpenAI API), and Voyage AI.
type Embedder interface {
	// Embed generates an embedding vector for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts.
	// More efficient than multiple Embed calls for bulk operations.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Model returns the name of the embedding model being used.
	Model() string

	// Dimension returns the embedding vector dimension.
	// Every vector stored in a collection must match this.
	Dimension() int
}

// ProviderType identifies the embedding provider.
type ProviderType string

const (
	// ProviderFingerprint derives vectors from a content digest. No model,
	// no network, fully deterministic.
	ProviderFingerprint ProviderType = "fingerprint"

	// ProviderOllama uses a local Ollama server for embeddings.
	ProviderOllama ProviderType = "ollama"

	// ProviderOpenAI uses the OpenAI embeddings API.
	ProviderOpenAI ProviderType = "openai"

	// ProviderVoyage uses the Voyage AI embeddings API.
	ProviderVoyage ProviderType = "voyage"
)

// New creates an Embedder based on the provided configuration.
func New(cfg config.Config) (Embedder, error) {
	switch ProviderType(cfg.EmbedProvider) {
	case ProviderFingerprint, "":
		return NewFingerprint(cfg.EmbedDim), nil

	case ProviderOllama, ProviderOpenAI:
		return NewLangChain(cfg)

	case ProviderVoyage:
		return NewVoyageClient(cfg.VoyageKey, cfg.EmbedModel, cfg.EmbedDim)

	default:
		return nil, fmt.Errorf("unknown embedding provider: %s", cfg.EmbedProvider)
	}
}
