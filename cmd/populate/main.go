package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"pdf-rag/internal/chromemdb"
	"pdf-rag/internal/config"
	"pdf-rag/internal/embedding"
	"pdf-rag/internal/helper"
	"pdf-rag/internal/ingest"
	"pdf-rag/internal/models"
	"pdf-rag/internal/parser"
	"pdf-rag/internal/vectorstore"
)

var (
	configPath string
	dataDir    string
	reset      bool
	dryRun     bool
	exportPath string
	importPath string
)

var rootCmd = &cobra.Command{
	Use:   "populate",
	Short: "Embed the documents of the data directory into the vector store",
	Long: `Reads every document of the data directory, splits it into overlapping chunks,
embeds the chunks that are not stored yet and appends them to the vector store.

Environment variables:
  OPENAI_API_KEY        OpenAI API key for embeddings
  USE_LOCAL_EMBEDDINGS  use the local Ollama model when embed_llm.provider is auto
  OLLAMA_HOST           Ollama server URL (default: http://localhost:11434)
  RAG_DATA_DIR          data directory (default: data)
  RAG_STORE_BACKEND     chromem, pgvector or qdrant (default: chromem)
  DATABASE_URL          Postgres DSN for the pgvector backend
  QDRANT_HOST           Qdrant hostname (default: localhost)
  QDRANT_PORT           Qdrant gRPC port (default: 6334)
  LOG_LEVEL             debug, info, warn or error`,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runPopulate,
}

func init() {
	rootCmd.Flags().StringVar(&configPath, "config", config.DefaultConfigPath, "path to the YAML config file")
	rootCmd.Flags().StringVar(&dataDir, "data", "", "directory with the documents (overrides data.dir)")
	rootCmd.Flags().BoolVar(&reset, "reset", false, "clear the vector store before ingesting")
	rootCmd.Flags().BoolVar(&dryRun, "dry-run", false, "split the documents and report the plan without embedding")
	rootCmd.Flags().StringVar(&exportPath, "export", "", "export the chromem collection to this file after ingesting")
	rootCmd.Flags().StringVar(&importPath, "import", "", "load a file written by --export into the chromem collection before ingesting")
}

func main() {
	_ = godotenv.Load()
	helper.InitLogger(os.Getenv("LOG_LEVEL"), nil)

	if err := rootCmd.Execute(); err != nil {
		log.Fatal().Err(err).Msg("Populate failed")
	}
}

func runPopulate(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	helper.InitLogger(cfg.Log.Level, nil)
	if dataDir != "" {
		cfg.Data.Dir = dataDir
	}

	if dryRun && importPath != "" {
		return fmt.Errorf("--import cannot be combined with --dry-run")
	}

	splitter, err := parser.NewSplitter(cfg.RAG.Splitter, cfg.RAG.ChunkSize, cfg.RAG.ChunkOverlap)
	if err != nil {
		return err
	}

	var (
		embedder      models.Embedder
		embeddingFunc chromem.EmbeddingFunc
	)
	if !dryRun {
		adapter, err := embedding.New(cfg.EmbedLLM, cfg.RAG.BatchSize)
		if err != nil {
			return err
		}
		log.Info().Str("provider", adapter.Provider()).Str("model", adapter.Model()).Msg("Using embeddings")
		embedder = adapter
		embeddingFunc = adapter.EmbeddingFunc()
	}

	store, err := vectorstore.Open(ctx, cfg, embeddingFunc)
	if err != nil {
		return fmt.Errorf("failed to open vector store: %w", err)
	}
	defer store.Close()

	if reset && !dryRun {
		if err := store.Reset(ctx); err != nil {
			return fmt.Errorf("failed to clear vector store: %w", err)
		}
		log.Info().Str("backend", cfg.Store.Backend).Msg("Cleared vector store")
	}

	if importPath != "" {
		m, err := chromemStore(store, cfg.Store.Backend, "import")
		if err != nil {
			return err
		}
		if err := m.Import(importPath); err != nil {
			return err
		}
		log.Info().Str("file", importPath).Msg("Imported collection")
	}

	pipeline := ingest.NewPipeline(parser.NewLoader(cfg.Data), splitter, embedder, store, cfg.RAG.BatchSize)
	if dryRun {
		plan, err := pipeline.Plan(ctx, cfg.Data.Dir)
		if err != nil {
			return err
		}
		return helper.PrettyPrint(os.Stdout, plan)
	}

	res, err := pipeline.Run(ctx, cfg.Data.Dir)
	if err != nil {
		return err
	}
	fmt.Printf("Added %d new chunks from %d files (%d already stored)\n", res.Added, res.Files, res.Skipped)

	if exportPath != "" {
		m, err := chromemStore(store, cfg.Store.Backend, "export")
		if err != nil {
			return err
		}
		if err := m.Export(exportPath); err != nil {
			return err
		}
		log.Info().Str("file", exportPath).Msg("Exported collection")
	}
	return nil
}

// chromemStore returns store as a chromem manager, for the file based operations.
func chromemStore(store models.VectorStore, backend, op string) (*chromemdb.VectorDBManager, error) {
	m, ok := store.(*chromemdb.VectorDBManager)
	if !ok {
		return nil, fmt.Errorf("%s is only supported by the chromem backend, not %s", op, backend)
	}
	return m, nil
}
