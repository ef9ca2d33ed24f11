//go:build integration

package qdrantdb

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdf-rag/internal/config"
	"pdf-rag/internal/models"
)

// setupTestStore skips the test if Qdrant is not running.
func setupTestStore(t *testing.T) *Store {
	ctx := context.Background()
	s, err := New(ctx, config.QdrantConfig{Host: "localhost", Port: 6334}, "test_"+uuid.NewString(), 3)
	if err != nil {
		t.Skipf("Qdrant not available: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Reset(ctx)
		s.Close()
	})
	return s
}

func TestStoreRoundTrip(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	records := []models.Record{
		{ID: "a.pdf:1:0", Content: "alpha", Embedding: []float32{1, 0, 0}, Metadata: map[string]string{models.MetaSource: "a.pdf"}},
		{ID: "a.pdf:1:1", Content: "beta", Embedding: []float32{0, 1, 0}, Metadata: map[string]string{models.MetaSource: "a.pdf"}},
	}
	require.NoError(t, s.Add(ctx, records))

	existing, err := s.ExistingIDs(ctx, []string{"a.pdf:1:0", "a.pdf:9:9"})
	require.NoError(t, err)
	assert.Equal(t, map[string]struct{}{"a.pdf:1:0": {}}, existing)

	matches, err := s.Search(ctx, []float32{1, 0, 0}, 5)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "a.pdf:1:0", matches[0].ID)
	assert.InDelta(t, 0, matches[0].Distance, 1e-5)

	n, err = s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestStoreDimensionMismatch(t *testing.T) {
	s := setupTestStore(t)
	err := s.Add(context.Background(), []models.Record{
		{ID: "a", Embedding: []float32{1, 0, 0}},
		{ID: "b", Embedding: []float32{1, 0}},
	})
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestReopenUsesCollectionDimension(t *testing.T) {
	ctx := context.Background()
	name := "test_" + uuid.NewString()
	cfg := config.QdrantConfig{Host: "localhost", Port: 6334}

	first, err := New(ctx, cfg, name, 1536)
	if err != nil {
		t.Skipf("Qdrant not available: %v", err)
	}
	t.Cleanup(func() {
		_ = first.Reset(ctx)
		first.Close()
	})
	require.NoError(t, first.Add(ctx, []models.Record{
		{ID: "a.pdf:1:0", Content: "alpha", Embedding: []float32{1, 0, 0, 0}},
	}))

	reopened, err := New(ctx, cfg, name, 1536)
	require.NoError(t, err)
	defer reopened.Close()

	require.NoError(t, reopened.Add(ctx, []models.Record{
		{ID: "b.pdf:1:0", Content: "beta", Embedding: []float32{0, 1, 0, 0}},
	}))
	n, err := reopened.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}
