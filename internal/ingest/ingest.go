package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"pdf-rag/internal/models"
	"pdf-rag/internal/parser"
)

const defaultBatchSize = 64

// DocumentLoader lists the source files of a directory and extracts their pages.
type DocumentLoader interface {
	Discover(dir string) ([]string, error)
	Load(dir, rel string) ([]models.Page, error)
}

// Result summarizes one ingestion run. For a dry run Added counts the chunks
// that would be added.
type Result struct {
	Files    int           `json:"files"`
	Pages    int           `json:"pages"`
	Chunks   int           `json:"chunks"`
	Added    int           `json:"added"`
	Skipped  int           `json:"skipped"`
	Duration time.Duration `json:"duration"`
}

// Pipeline turns a directory of documents into vector store records.
// Chunks whose id is already stored are neither embedded nor written again.
type Pipeline struct {
	loader    DocumentLoader
	splitter  parser.Splitter
	embedder  models.Embedder
	store     models.VectorStore
	batchSize int
}

func NewPipeline(loader DocumentLoader, splitter parser.Splitter, embedder models.Embedder, store models.VectorStore, batchSize int) *Pipeline {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &Pipeline{
		loader:    loader,
		splitter:  splitter,
		embedder:  embedder,
		store:     store,
		batchSize: batchSize,
	}
}

// Run ingests every file of dir in order. The first error aborts the run;
// records written before it stay in the store.
func (p *Pipeline) Run(ctx context.Context, dir string) (*Result, error) {
	return p.run(ctx, dir, false)
}

// Plan loads and splits dir and reports what Run would add, without embedding
// or writing anything.
func (p *Pipeline) Plan(ctx context.Context, dir string) (*Result, error) {
	return p.run(ctx, dir, true)
}

func (p *Pipeline) run(ctx context.Context, dir string, dryRun bool) (*Result, error) {
	start := time.Now()
	files, err := p.loader.Discover(dir)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		log.Warn().Str("dir", dir).Msg("No documents found")
	}

	res := &Result{}
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		pages, err := p.loader.Load(dir, file)
		if err != nil {
			return nil, err
		}
		chunks, err := parser.SplitPages(p.splitter, pages)
		if err != nil {
			return nil, err
		}

		novel, err := p.novelChunks(ctx, chunks)
		if err != nil {
			return nil, err
		}
		if !dryRun {
			if err := p.addChunks(ctx, novel); err != nil {
				return nil, fmt.Errorf("failed to ingest %s: %w", file, err)
			}
		}

		res.Files++
		res.Pages += len(pages)
		res.Chunks += len(chunks)
		res.Added += len(novel)
		res.Skipped += len(chunks) - len(novel)

		log.Info().
			Str("source", file).
			Int("pages", len(pages)).
			Int("chunks", len(chunks)).
			Int("new", len(novel)).
			Bool("dry_run", dryRun).
			Msg("Processed document")
	}
	res.Duration = time.Since(start)

	log.Info().
		Int("files", res.Files).
		Int("added", res.Added).
		Int("skipped", res.Skipped).
		Dur("duration", res.Duration).
		Msg("Ingestion finished")
	return res, nil
}

// novelChunks returns the chunks whose ids are not in the store yet, in order.
func (p *Pipeline) novelChunks(ctx context.Context, chunks []models.Chunk) ([]models.Chunk, error) {
	if len(chunks) == 0 {
		return nil, nil
	}
	ids := make([]string, len(chunks))
	for i, c := range chunks {
		ids[i] = c.ID()
	}
	existing, err := p.store.ExistingIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to read existing ids: %w", err)
	}

	novel := make([]models.Chunk, 0, len(chunks))
	seen := make(map[string]struct{}, len(chunks))
	for _, c := range chunks {
		id := c.ID()
		if _, ok := existing[id]; ok {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		novel = append(novel, c)
	}
	return novel, nil
}

// addChunks embeds chunks batch by batch and appends each batch to the store.
func (p *Pipeline) addChunks(ctx context.Context, chunks []models.Chunk) error {
	for start := 0; start < len(chunks); start += p.batchSize {
		batch := chunks[start:min(start+p.batchSize, len(chunks))]
		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.Content
		}

		vectors, err := p.embedder.EmbedDocuments(ctx, texts)
		if err != nil {
			return err
		}
		if len(vectors) != len(batch) {
			return fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(batch))
		}

		records := make([]models.Record, len(batch))
		for i, c := range batch {
			records[i] = models.Record{
				ID:        c.ID(),
				Content:   c.Content,
				Embedding: vectors[i],
				Metadata:  c.Metadata(),
			}
		}
		if err := p.store.Add(ctx, records); err != nil {
			return err
		}
		log.Debug().Int("records", len(records)).Msg("Stored batch")
	}
	return nil
}
