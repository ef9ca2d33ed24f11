package llmservice

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"pdf-rag/internal/config"
	"pdf-rag/internal/models"
)

var (
	ErrMissingCredentials = errors.New("missing inference credentials")
	ErrEmptyResponse      = errors.New("llm returned no choices")

	thinkRe = regexp.MustCompile(models.ThinkTag)
)

// New returns the chat model configured by llmConfig.
func New(llmConfig *config.LLMConfig) (llms.Model, error) {
	log.Debug().Str("provider", llmConfig.Provider).Str("model", llmConfig.Model).Msg("Inference provider")

	switch strings.ToLower(llmConfig.Provider) {
	case "openai", "":
		key := strings.TrimPrefix(llmConfig.Key, "Bearer ")
		if key == "" {
			return nil, fmt.Errorf("%w: set OPENAI_API_KEY or inference_llm.key", ErrMissingCredentials)
		}
		opts := []openai.Option{
			openai.WithToken(key),
			openai.WithModel(llmConfig.Model),
		}
		if llmConfig.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(llmConfig.BaseURL))
		}
		llm, err := openai.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize openai client: %w", err)
		}
		return llm, nil
	case "ollama":
		llm, err := ollama.New(
			ollama.WithServerURL(llmConfig.OllamaURL()),
			ollama.WithModel(llmConfig.Model),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize ollama client: %w", err)
		}
		return llm, nil
	default:
		return nil, fmt.Errorf("unknown inference provider: %q", llmConfig.Provider)
	}
}

// call llm
func GenerateContent(ctx context.Context, llm llms.Model, tools []llms.Tool, messages []llms.MessageContent) (*llms.ContentResponse, error) {
	if len(tools) > 0 {
		return llm.GenerateContent(ctx, messages, llms.WithTools(tools))
	}
	return llm.GenerateContent(ctx, messages)
}

// Generator answers single prompts with a chat model.
type Generator struct {
	llm llms.Model
}

func NewGenerator(llm llms.Model) *Generator {
	return &Generator{llm: llm}
}

// Generate sends prompt as one user message. Reasoning blocks are stripped from the answer.
func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeHuman, prompt),
	}
	resp, err := GenerateContent(ctx, g.llm, nil, messages)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	return strings.TrimSpace(thinkRe.ReplaceAllString(resp.Choices[0].Content, "")), nil
}
