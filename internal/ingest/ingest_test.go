package ingest

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdf-rag/internal/chromemdb"
	"pdf-rag/internal/config"
	"pdf-rag/internal/models"
	"pdf-rag/internal/parser"
	"pdf-rag/internal/testutil"
)

type fixture struct {
	dir      string
	loader   *parser.Loader
	splitter parser.Splitter
	embedder *testutil.HashEmbedder
	store    *chromemdb.VectorDBManager
	pipeline *Pipeline
}

func newFixture(t *testing.T, batchSize int) *fixture {
	t.Helper()
	splitter, err := parser.NewSplitter(parser.SplitterRecursive, 800, 80)
	require.NoError(t, err)
	store, err := chromemdb.NewVectorDBManager("", "test", false, "", nil)
	require.NoError(t, err)

	f := &fixture{
		dir:      t.TempDir(),
		loader:   parser.NewLoader(config.DataConfig{Extensions: []string{".pdf", ".txt"}}),
		splitter: splitter,
		embedder: &testutil.HashEmbedder{},
		store:    store,
	}
	f.pipeline = NewPipeline(f.loader, f.splitter, f.embedder, f.store, batchSize)
	return f
}

func (f *fixture) write(t *testing.T, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(f.dir, name), []byte(content), 0o644))
}

// expectedChunks loads and splits a file the same way the pipeline does.
func (f *fixture) expectedChunks(t *testing.T, name string) []models.Chunk {
	t.Helper()
	pages, err := f.loader.Load(f.dir, name)
	require.NoError(t, err)
	chunks, err := parser.SplitPages(f.splitter, pages)
	require.NoError(t, err)
	return chunks
}

func longText(topic string, sentences int) string {
	var b strings.Builder
	for i := 0; i < sentences; i++ {
		fmt.Fprintf(&b, "Sentence %d about %s mentions item%d and value%d. ", i, topic, i, i*7)
	}
	return b.String()
}

func TestRunIsIdempotent(t *testing.T) {
	f := newFixture(t, 2)
	f.write(t, "a.txt", longText("rules", 60))
	f.write(t, "b.txt", longText("scoring", 40))
	ctx := context.Background()

	first, err := f.pipeline.Run(ctx, f.dir)
	require.NoError(t, err)
	assert.Equal(t, 2, first.Files)
	assert.Greater(t, first.Chunks, 2)
	assert.Equal(t, first.Chunks, first.Added)
	assert.Zero(t, first.Skipped)
	assert.Equal(t, first.Added, f.embedder.Embedded)

	count, err := f.store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, first.Added, count)

	second, err := f.pipeline.Run(ctx, f.dir)
	require.NoError(t, err)
	assert.Zero(t, second.Added)
	assert.Equal(t, first.Chunks, second.Skipped)
	assert.Equal(t, first.Added, f.embedder.Embedded, "no chunk is embedded twice")

	count, err = f.store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, first.Added, count)
}

func TestRunOnlyEmbedsNewFiles(t *testing.T) {
	f := newFixture(t, 0)
	f.write(t, "a.txt", longText("rules", 30))
	ctx := context.Background()

	first, err := f.pipeline.Run(ctx, f.dir)
	require.NoError(t, err)

	f.write(t, "b.txt", longText("setup", 30))
	second, err := f.pipeline.Run(ctx, f.dir)
	require.NoError(t, err)

	assert.Equal(t, first.Chunks, second.Skipped)
	assert.Equal(t, len(f.expectedChunks(t, "b.txt")), second.Added)
	assert.Equal(t, first.Added+second.Added, f.embedder.Embedded)
}

func TestRunStoresDeterministicIDs(t *testing.T) {
	f := newFixture(t, 0)
	f.write(t, "a.txt", longText("rules", 50))
	ctx := context.Background()

	_, err := f.pipeline.Run(ctx, f.dir)
	require.NoError(t, err)

	chunks := f.expectedChunks(t, "a.txt")
	ids := make([]string, len(chunks))
	for i, c := range chunks {
		ids[i] = c.ID()
		assert.Equal(t, fmt.Sprintf("a.txt:1:%d", i), ids[i])
	}
	existing, err := f.store.ExistingIDs(ctx, ids)
	require.NoError(t, err)
	assert.Len(t, existing, len(ids))

	// a second, independent ingestion yields the same ids
	g := newFixture(t, 0)
	g.write(t, "a.txt", longText("rules", 50))
	_, err = g.pipeline.Run(ctx, g.dir)
	require.NoError(t, err)
	existing, err = g.store.ExistingIDs(ctx, ids)
	require.NoError(t, err)
	assert.Len(t, existing, len(ids))
}

func TestRunStoresChunkTextVerbatim(t *testing.T) {
	f := newFixture(t, 0)
	f.write(t, "a.txt", "Première règle : lancer les dés.\n\n"+longText("naïve café", 30))
	ctx := context.Background()

	res, err := f.pipeline.Run(ctx, f.dir)
	require.NoError(t, err)

	matches, err := f.store.Search(ctx, testutil.Vector("dés"), res.Added)
	require.NoError(t, err)
	stored := make(map[string]string, len(matches))
	for _, m := range matches {
		stored[m.ID] = m.Content
	}
	for _, c := range f.expectedChunks(t, "a.txt") {
		assert.Equal(t, c.Content, stored[c.ID()])
	}
}

func TestRunEmptyDirectory(t *testing.T) {
	f := newFixture(t, 0)
	f.write(t, "ignored.docx", "not selected")

	res, err := f.pipeline.Run(context.Background(), f.dir)
	require.NoError(t, err)
	assert.Zero(t, res.Files)
	assert.Zero(t, res.Added)
	assert.Zero(t, f.embedder.Embedded)
}

func TestRunMissingDirectory(t *testing.T) {
	f := newFixture(t, 0)

	_, err := f.pipeline.Run(context.Background(), filepath.Join(f.dir, "missing"))
	assert.ErrorIs(t, err, fs.ErrNotExist)
	assert.Zero(t, f.embedder.Embedded)
}

func TestRunAbortsOnEmbeddingFailure(t *testing.T) {
	f := newFixture(t, 1)
	f.embedder.FailAfter = 1
	f.write(t, "a.txt", longText("rules", 60))
	ctx := context.Background()

	_, err := f.pipeline.Run(ctx, f.dir)
	require.ErrorIs(t, err, testutil.ErrEmbedderFailure)
	assert.ErrorContains(t, err, "a.txt")

	count, err := f.store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count, "batches stored before the failure are kept")
}

func TestPlanDoesNotWrite(t *testing.T) {
	f := newFixture(t, 0)
	f.write(t, "a.txt", longText("rules", 30))
	ctx := context.Background()

	plan, err := f.pipeline.Plan(ctx, f.dir)
	require.NoError(t, err)
	assert.Equal(t, plan.Chunks, plan.Added)
	assert.Zero(t, f.embedder.Embedded)

	count, err := f.store.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestRunSinglePagePDF(t *testing.T) {
	f := newFixture(t, 0)
	paragraph := "Each player receives two cards and the dealer shuffles the deck before every round."
	require.NoError(t, testutil.WritePDF(filepath.Join(f.dir, "guide.pdf"), []string{paragraph}))
	ctx := context.Background()

	res, err := f.pipeline.Run(ctx, f.dir)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Files)
	assert.Equal(t, 1, res.Pages)
	assert.Equal(t, 1, res.Chunks)
	assert.Equal(t, 1, res.Added)

	matches, err := f.store.Search(ctx, testutil.Vector("dealer shuffles the deck"), 5)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "guide.pdf:1:0", matches[0].ID)
	assert.Contains(t, matches[0].Content, "dealer shuffles the deck")
	assert.Equal(t, "guide.pdf", matches[0].Metadata[models.MetaSource])
	assert.Equal(t, "1", matches[0].Metadata[models.MetaPage])
}
