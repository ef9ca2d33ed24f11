package vectorstore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdf-rag/internal/chromemdb"
	"pdf-rag/internal/config"
)

func TestOpenChromemCreatesFolder(t *testing.T) {
	cfg := config.Default()
	cfg.Store.Path = filepath.Join(t.TempDir(), "nested", "chroma")

	store, err := Open(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer store.Close()

	assert.IsType(t, &chromemdb.VectorDBManager{}, store)
	assert.DirExists(t, cfg.Store.Path)
}

func TestOpenUnknownBackend(t *testing.T) {
	cfg := config.Default()
	cfg.Store.Backend = "faiss"

	_, err := Open(context.Background(), cfg, nil)
	assert.ErrorIs(t, err, ErrUnknownBackend)
}

func TestOpenPgvectorWithoutURL(t *testing.T) {
	cfg := config.Default()
	cfg.Store.Backend = BackendPgvector

	_, err := Open(context.Background(), cfg, nil)
	assert.Error(t, err)
}
