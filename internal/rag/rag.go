package rag

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"pdf-rag/internal/config"
	"pdf-rag/internal/models"
)

// Generator answers a fully built prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

type RAG struct {
	store     models.VectorStore
	embedder  models.Embedder
	generator Generator
	cfg       *config.Config
}

// NewRAG wires the query pipeline. generator may be nil when only retrieval is needed.
func NewRAG(store models.VectorStore, embedder models.Embedder, generator Generator, cfg *config.Config) *RAG {
	if cfg == nil {
		cfg = config.Default()
	}
	return &RAG{store: store, embedder: embedder, generator: generator, cfg: cfg}
}

// Search embeds query and returns up to k matches by ascending distance.
// k <= 0 uses rag.top_k.
func (r *RAG) Search(ctx context.Context, query string, k int) ([]models.Match, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}
	if k <= 0 {
		k = r.cfg.RAG.TopK
	}

	queryEmbedding, err := r.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, err
	}
	matches, err := r.store.Search(ctx, queryEmbedding, k)
	if err != nil {
		return nil, err
	}
	log.Debug().Str("query", query).Int("k", k).Int("matches", len(matches)).Msg("Searched vector store")
	return matches, nil
}

// Query retrieves the top matches and, with a generator configured, answers
// the question from them.
func (r *RAG) Query(ctx context.Context, query string) (*models.PromptResponse, error) {
	matches, err := r.Search(ctx, query, r.cfg.RAG.TopK)
	if err != nil {
		return nil, err
	}

	response := &models.PromptResponse{
		Query:   query,
		Source:  Sources(matches),
		Matches: matches,
	}
	if r.generator == nil || len(matches) == 0 {
		return response, nil
	}

	content, err := r.generator.Generate(ctx, BuildPrompt(query, matches))
	if err != nil {
		return nil, fmt.Errorf("failed to generate answer: %w", err)
	}
	response.Content = content
	return response, nil
}

// BuildPrompt places the chunk texts, separated by ContextSeparator, in the answer template.
func BuildPrompt(query string, matches []models.Match) string {
	texts := make([]string, len(matches))
	for i, m := range matches {
		texts[i] = m.Content
	}
	return fmt.Sprintf(models.PromptTemplate, strings.Join(texts, models.ContextSeparator), query)
}

// Sources lists the chunk ids of matches, comma separated.
func Sources(matches []models.Match) string {
	ids := make([]string, len(matches))
	for i, m := range matches {
		ids[i] = m.ID
	}
	return strings.Join(ids, ", ")
}
