package models

import (
	"context"
	"fmt"
	"strconv"
)

// Page is the extracted text of one page of a source file
type Page struct {
	Source     string
	PageNumber int
	Content    string
}

// Chunk represents a parsed chunk with metadata
type Chunk struct {
	Content    string
	Source     string
	PageNumber int
	ChunkID    int
}

// ID returns the identifier of the chunk, stable across runs for the same file.
func (c Chunk) ID() string {
	return ChunkKey(c.Source, c.PageNumber, c.ChunkID)
}

// Metadata returns the source metadata stored next to the chunk.
func (c Chunk) Metadata() map[string]string {
	return map[string]string{
		MetaSource: c.Source,
		MetaPage:   strconv.Itoa(c.PageNumber),
		MetaChunk:  strconv.Itoa(c.ChunkID),
	}
}

// ChunkKey builds the "<source>:<page>:<chunk>" identifier.
func ChunkKey(source string, page, chunk int) string {
	return fmt.Sprintf("%s:%d:%d", source, page, chunk)
}

// Record is a chunk as persisted in a vector store
type Record struct {
	ID        string
	Content   string
	Embedding []float32
	Metadata  map[string]string
}

// Match is a record returned by a similarity search. Distance is 1 - cosine similarity.
type Match struct {
	ID       string            `json:"id"`
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata"`
	Score    float32           `json:"score"`
	Distance float32           `json:"distance"`
}

type PromptResponse struct {
	Query   string  `json:"query"`
	Source  string  `json:"source"`
	Content string  `json:"content,omitempty"`
	Matches []Match `json:"matches"`
}

// VectorStore is implemented by every storage backend.
type VectorStore interface {
	// ExistingIDs returns the subset of ids already stored.
	ExistingIDs(ctx context.Context, ids []string) (map[string]struct{}, error)
	Add(ctx context.Context, records []Record) error
	// Search returns at most k matches ordered by ascending distance.
	Search(ctx context.Context, embedding []float32, k int) ([]Match, error)
	Count(ctx context.Context) (int, error)
	Reset(ctx context.Context) error
	Close() error
}

// Embedder is the capability the pipelines need from an embedding provider.
type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}
