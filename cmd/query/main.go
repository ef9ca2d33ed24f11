package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"pdf-rag/internal/config"
	"pdf-rag/internal/embedding"
	"pdf-rag/internal/helper"
	"pdf-rag/internal/llmservice"
	"pdf-rag/internal/models"
	"pdf-rag/internal/rag"
	"pdf-rag/internal/vectorstore"
)

var (
	configPath string
	topK       int
	answer     bool
	jsonOutput bool
)

var rootCmd = &cobra.Command{
	Use:   "query \"query text\"",
	Short: "Search the vector store for the chunks closest to a query",
	Long: `Embeds the query, returns the top K chunks by ascending distance and,
with --answer, asks the inference model to answer from them.`,
	Args:          cobra.MinimumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runQuery,
}

func init() {
	rootCmd.Flags().StringVar(&configPath, "config", config.DefaultConfigPath, "path to the YAML config file")
	rootCmd.Flags().IntVar(&topK, "k", 0, "number of chunks to return (default rag.top_k)")
	rootCmd.Flags().BoolVar(&answer, "answer", false, "generate an answer from the retrieved chunks")
	rootCmd.Flags().BoolVar(&jsonOutput, "json", false, "print the response as JSON")
}

func main() {
	_ = godotenv.Load()
	helper.InitLogger(os.Getenv("LOG_LEVEL"), nil)

	if err := rootCmd.Execute(); err != nil {
		log.Fatal().Err(err).Msg("Query failed")
	}
}

func runQuery(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	query := strings.Join(args, " ")

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	helper.InitLogger(cfg.Log.Level, nil)
	if topK > 0 {
		cfg.RAG.TopK = topK
	}

	embedder, err := embedding.New(cfg.EmbedLLM, cfg.RAG.BatchSize)
	if err != nil {
		return err
	}

	var generator rag.Generator
	if answer {
		llm, err := llmservice.New(&cfg.InferenceLLM)
		if err != nil {
			return err
		}
		generator = llmservice.NewGenerator(llm)
	}

	store, err := vectorstore.Open(ctx, cfg, embedder.EmbeddingFunc())
	if err != nil {
		return fmt.Errorf("failed to open vector store: %w", err)
	}
	defer store.Close()

	response, err := rag.NewRAG(store, embedder, generator, cfg).Query(ctx, query)
	if err != nil {
		return err
	}

	if jsonOutput {
		return helper.PrettyPrint(os.Stdout, response)
	}
	printResponse(response)
	return nil
}

func printResponse(response *models.PromptResponse) {
	log.Info().Msg("Query: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
	fmt.Printf("%s\n\n", response.Query)

	if len(response.Matches) == 0 {
		fmt.Println("No matching chunks found.")
		return
	}

	log.Info().Msg("Matches: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
	for i, m := range response.Matches {
		fmt.Printf("%d. [%s] distance=%.4f\n%s\n\n", i+1, m.ID, m.Distance, m.Content)
	}

	if response.Content != "" {
		log.Info().Msg("Assistant: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
		fmt.Printf("%s\n\nSources: %s\n", response.Content, response.Source)
	}
}
