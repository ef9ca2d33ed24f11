// Package testutil holds fixtures shared by package tests.
package testutil

import (
	"context"
	"errors"
	"hash/fnv"
	"strings"
	"unicode"
)

const hashDimension = 64

// ErrEmbedderFailure is returned once a HashEmbedder runs past FailAfter.
var ErrEmbedderFailure = errors.New("embedder failure")

// HashEmbedder is a deterministic bag-of-words embedder. Equal texts map to
// equal vectors and texts sharing words point in similar directions.
type HashEmbedder struct {
	// Embedded counts the texts embedded so far.
	Embedded int
	// FailAfter, when positive, makes the embedder fail once that many texts were embedded.
	FailAfter int
}

func (h *HashEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, 0, len(texts))
	for _, text := range texts {
		if h.FailAfter > 0 && h.Embedded >= h.FailAfter {
			return nil, ErrEmbedderFailure
		}
		vectors = append(vectors, Vector(text))
		h.Embedded++
	}
	return vectors, nil
}

func (h *HashEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := h.EmbedDocuments(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// Vector returns the embedding HashEmbedder produces for text.
func Vector(text string) []float32 {
	v := make([]float32, hashDimension)
	// bias keeps the vector non-zero for empty or punctuation-only text
	v[hashDimension-1] = 0.01
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		f := fnv.New32a()
		_, _ = f.Write([]byte(w))
		v[f.Sum32()%(hashDimension-1)] += 1
	}
	return v
}
