package config

import (
	"errors"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	DefaultConfigPath = "./configs/config.yaml"

	defaultDataDir        = "data"
	defaultStorePath      = "chroma"
	defaultCollection     = "documents"
	defaultChunkSize      = 800
	defaultChunkOverlap   = 80
	defaultTopK           = 5
	defaultBatchSize      = 64
	defaultSplitter       = "recursive"
	defaultEmbedProvider  = "openai"
	defaultEmbedModel     = "text-embedding-3-small"
	defaultOllamaURL      = "http://localhost:11434"
	defaultOllamaEmbed    = "nomic-embed-text"
	defaultInferenceModel = "gpt-4o-mini"
	defaultQdrantPort     = 6334
	defaultVectorSize     = 1536
)

type Config struct {
	Data         DataConfig     `yaml:"data"`
	EmbedLLM     LLMConfig      `yaml:"embed_llm"`
	InferenceLLM LLMConfig      `yaml:"inference_llm"`
	RAG          RAGConfig      `yaml:"rag"`
	Store        StoreConfig    `yaml:"store"`
	Database     DatabaseConfig `yaml:"database"`
	Qdrant       QdrantConfig   `yaml:"qdrant"`
	Log          LogConfig      `yaml:"log"`
}

type DataConfig struct {
	Dir        string   `yaml:"dir"`
	Extensions []string `yaml:"extensions"`
	Recursive  bool     `yaml:"recursive"`
}

// LLMConfig configures either the embedding or the inference model.
type LLMConfig struct {
	Provider string `yaml:"provider"` // openai, ollama or auto
	BaseURL  string `yaml:"base_url"`
	Key      string `yaml:"key"`
	Model    string `yaml:"model"`
	// LocalModel and LocalURL are used when provider is auto and the local fallback is taken.
	LocalModel string `yaml:"local_model"`
	LocalURL   string `yaml:"local_url"`
	UseLocal   bool   `yaml:"use_local"`
}

type RAGConfig struct {
	ChunkSize    int    `yaml:"chunk_size"`
	ChunkOverlap int    `yaml:"chunk_overlap"`
	Splitter     string `yaml:"splitter"`
	TopK         int    `yaml:"top_k"`
	BatchSize    int    `yaml:"batch_size"`
}

type StoreConfig struct {
	Backend       string `yaml:"backend"` // chromem, pgvector or qdrant
	Path          string `yaml:"path"`
	Collection    string `yaml:"collection"`
	Compress      bool   `yaml:"compress"`
	EncryptionKey string `yaml:"encryption_key"`
	VectorSize    int    `yaml:"vector_size"`
}

type DatabaseConfig struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
	Driver   string `yaml:"driver"` // pgdriver or postgres
	Debug    bool   `yaml:"debug"`
}

type QdrantConfig struct {
	Host   string `yaml:"host"`
	Port   int    `yaml:"port"`
	APIKey string `yaml:"api_key"`
	UseTLS bool   `yaml:"use_tls"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// LoadConfig reads the YAML file at path. A missing file yields the defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := newConfig()
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, err
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, err
		}
	}
	applyEnv(&cfg)
	applyDefaults(&cfg)
	return &cfg, nil
}

// Default returns a config with every default applied and no environment overlay.
func Default() *Config {
	cfg := newConfig()
	applyDefaults(&cfg)
	return &cfg
}

// newConfig seeds the values whose zero is meaningful. Keys absent from the
// file keep them through yaml.Unmarshal, so chunk_overlap: 0 stays 0.
func newConfig() Config {
	return Config{RAG: RAGConfig{ChunkOverlap: defaultChunkOverlap}}
}

func applyDefaults(cfg *Config) {
	if cfg.Data.Dir == "" {
		cfg.Data.Dir = defaultDataDir
	}
	if len(cfg.Data.Extensions) == 0 {
		cfg.Data.Extensions = []string{".pdf"}
	}

	if cfg.EmbedLLM.Provider == "" {
		cfg.EmbedLLM.Provider = defaultEmbedProvider
	}
	if cfg.EmbedLLM.Model == "" {
		if cfg.EmbedLLM.Provider == "ollama" {
			cfg.EmbedLLM.Model = defaultOllamaEmbed
		} else {
			cfg.EmbedLLM.Model = defaultEmbedModel
		}
	}
	if cfg.EmbedLLM.LocalModel == "" {
		cfg.EmbedLLM.LocalModel = defaultOllamaEmbed
	}
	if cfg.InferenceLLM.Provider == "" {
		cfg.InferenceLLM.Provider = defaultEmbedProvider
	}
	if cfg.InferenceLLM.Model == "" {
		cfg.InferenceLLM.Model = defaultInferenceModel
	}

	if cfg.RAG.ChunkSize <= 0 {
		cfg.RAG.ChunkSize = defaultChunkSize
	}
	if cfg.RAG.ChunkOverlap < 0 || cfg.RAG.ChunkOverlap >= cfg.RAG.ChunkSize {
		cfg.RAG.ChunkOverlap = defaultChunkOverlap
		if cfg.RAG.ChunkOverlap >= cfg.RAG.ChunkSize {
			cfg.RAG.ChunkOverlap = cfg.RAG.ChunkSize / 10
		}
	}
	if cfg.RAG.Splitter == "" {
		cfg.RAG.Splitter = defaultSplitter
	}
	if cfg.RAG.TopK <= 0 {
		cfg.RAG.TopK = defaultTopK
	}
	if cfg.RAG.BatchSize <= 0 {
		cfg.RAG.BatchSize = defaultBatchSize
	}

	if cfg.Store.Backend == "" {
		cfg.Store.Backend = "chromem"
	}
	if cfg.Store.Path == "" {
		cfg.Store.Path = defaultStorePath
	}
	if cfg.Store.Collection == "" {
		cfg.Store.Collection = defaultCollection
	}
	if cfg.Store.VectorSize <= 0 {
		cfg.Store.VectorSize = defaultVectorSize
	}

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "pgdriver"
	}
	if cfg.Qdrant.Host == "" {
		cfg.Qdrant.Host = "localhost"
	}
	if cfg.Qdrant.Port == 0 {
		cfg.Qdrant.Port = defaultQdrantPort
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
}

// applyEnv overlays the environment on top of the file values.
func applyEnv(cfg *Config) {
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		if cfg.EmbedLLM.Key == "" {
			cfg.EmbedLLM.Key = v
		}
		if cfg.InferenceLLM.Key == "" {
			cfg.InferenceLLM.Key = v
		}
	}
	if v := os.Getenv("USE_LOCAL_EMBEDDINGS"); v != "" {
		cfg.EmbedLLM.UseLocal = isTruthy(v)
	}
	if v := os.Getenv("OLLAMA_HOST"); v != "" {
		for _, llm := range []*LLMConfig{&cfg.EmbedLLM, &cfg.InferenceLLM} {
			if llm.LocalURL == "" {
				llm.LocalURL = v
			}
		}
	}
	if v := os.Getenv("RAG_DATA_DIR"); v != "" {
		cfg.Data.Dir = v
	}
	if v := os.Getenv("RAG_STORE_BACKEND"); v != "" {
		cfg.Store.Backend = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("QDRANT_HOST"); v != "" {
		cfg.Qdrant.Host = v
	}
	if v := os.Getenv("QDRANT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Qdrant.Port = port
		}
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
}

func isTruthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes":
		return true
	}
	return false
}

// OllamaURL returns the server URL for a local model.
func (c LLMConfig) OllamaURL() string {
	if c.Provider == "ollama" && c.BaseURL != "" {
		return c.BaseURL
	}
	if c.LocalURL != "" {
		return c.LocalURL
	}
	return defaultOllamaURL
}
