package embedding

import (
	"context"
	"fmt"
	"strings"

	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"pdf-rag/internal/config"
)

const (
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
	ProviderAuto   = "auto"
)

// Adapter exposes embed(text) → vector on top of a langchaingo embedder.
// Errors are never retried.
type Adapter struct {
	embedder embeddings.Embedder
	provider string
	model    string
}

// New builds the adapter for the configured provider. No network call is made.
func New(llmConfig config.LLMConfig, batchSize int) (*Adapter, error) {
	provider, model := resolve(llmConfig)

	log.Debug().Interface("config", map[string]string{
		"provider": provider,
		"model":    model,
		"base_url": llmConfig.BaseURL,
	}).Msg("Embedding provider")

	var client embeddings.EmbedderClient
	switch provider {
	case ProviderOpenAI:
		key := strings.TrimPrefix(llmConfig.Key, "Bearer ")
		if key == "" {
			return nil, fmt.Errorf("%w: set OPENAI_API_KEY or embed_llm.key", ErrMissingCredentials)
		}
		opts := []openai.Option{
			openai.WithToken(key),
			openai.WithEmbeddingModel(model),
		}
		if llmConfig.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(llmConfig.BaseURL))
		}
		llm, err := openai.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMissingCredentials, err)
		}
		client = llm
	case ProviderOllama:
		llm, err := ollama.New(
			ollama.WithServerURL(llmConfig.OllamaURL()),
			ollama.WithModel(model),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize ollama client: %w", err)
		}
		client = llm
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, llmConfig.Provider)
	}

	opts := []embeddings.Option{}
	if batchSize > 0 {
		opts = append(opts, embeddings.WithBatchSize(batchSize))
	}
	embedder, err := embeddings.NewEmbedder(client, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}
	return NewWithEmbedder(embedder, provider, model), nil
}

// NewWithEmbedder wraps an existing embedder.
func NewWithEmbedder(embedder embeddings.Embedder, provider, model string) *Adapter {
	return &Adapter{embedder: embedder, provider: provider, model: model}
}

// resolve picks the provider and model. auto prefers OpenAI when a key is
// present and local embeddings are not requested, otherwise the local model.
func resolve(llmConfig config.LLMConfig) (string, string) {
	provider := strings.ToLower(strings.TrimSpace(llmConfig.Provider))
	if provider == "" {
		provider = ProviderOpenAI
	}
	if provider != ProviderAuto {
		return provider, llmConfig.Model
	}
	if !llmConfig.UseLocal && llmConfig.Key != "" {
		return ProviderOpenAI, llmConfig.Model
	}
	log.Warn().Msg("OpenAI embeddings unavailable, falling back to local embeddings")
	return ProviderOllama, llmConfig.LocalModel
}

func (a *Adapter) Provider() string { return a.provider }

func (a *Adapter) Model() string { return a.model }

// EmbedQuery embeds a single text.
func (a *Adapter) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vector, err := a.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("%w: %s/%s: %v", ErrEmbedding, a.provider, a.model, err)
	}
	if len(vector) == 0 {
		return nil, fmt.Errorf("%w: %s/%s returned an empty vector", ErrEmbedding, a.provider, a.model)
	}
	return vector, nil
}

// EmbedDocuments embeds texts in order. The first failure aborts the call.
func (a *Adapter) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	vectors, err := a.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("%w: %s/%s: %v", ErrEmbedding, a.provider, a.model, err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("%w: got %d vectors for %d texts", ErrEmbedding, len(vectors), len(texts))
	}
	return vectors, nil
}

// EmbeddingFunc adapts the adapter to the chromem collection interface.
func (a *Adapter) EmbeddingFunc() chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		return a.EmbedQuery(ctx, text)
	}
}
