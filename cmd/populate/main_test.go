package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdf-rag/internal/chromemdb"
	"pdf-rag/internal/config"
	"pdf-rag/internal/ingest"
	"pdf-rag/internal/models"
	"pdf-rag/internal/parser"
	"pdf-rag/internal/testutil"
)

type otherStore struct {
	models.VectorStore
}

func TestChromemStoreRejectsOtherBackends(t *testing.T) {
	_, err := chromemStore(otherStore{}, "qdrant", "import")
	assert.ErrorContains(t, err, "import is only supported by the chromem backend, not qdrant")
}

func TestImportedCollectionIsNotEmbeddedAgain(t *testing.T) {
	ctx := context.Background()
	dataDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dataDir, "rules.txt"), []byte("Each player starts with fifteen hundred dollars."), 0o644))
	file := filepath.Join(t.TempDir(), "backup.chromem")

	loader := parser.NewLoader(config.DataConfig{Extensions: []string{".txt"}})
	splitter, err := parser.NewSplitter(parser.SplitterRecursive, 800, 80)
	require.NoError(t, err)

	src, err := chromemdb.NewVectorDBManager("", "documents", false, "", nil)
	require.NoError(t, err)
	_, err = ingest.NewPipeline(loader, splitter, &testutil.HashEmbedder{}, src, 0).Run(ctx, dataDir)
	require.NoError(t, err)
	m, err := chromemStore(src, "chromem", "export")
	require.NoError(t, err)
	require.NoError(t, m.Export(file))

	dst, err := chromemdb.NewVectorDBManager("", "documents", false, "", nil)
	require.NoError(t, err)
	m, err = chromemStore(dst, "chromem", "import")
	require.NoError(t, err)
	require.NoError(t, m.Import(file))

	embedder := &testutil.HashEmbedder{}
	res, err := ingest.NewPipeline(loader, splitter, embedder, dst, 0).Run(ctx, dataDir)
	require.NoError(t, err)
	assert.Zero(t, res.Added)
	assert.Equal(t, 1, res.Skipped)
	assert.Zero(t, embedder.Embedded)
}
