package vectorstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog/log"

	"pdf-rag/internal/chromemdb"
	"pdf-rag/internal/config"
	"pdf-rag/internal/db"
	"pdf-rag/internal/helper"
	"pdf-rag/internal/models"
	"pdf-rag/internal/qdrantdb"
)

const (
	BackendChromem  = "chromem"
	BackendPgvector = "pgvector"
	BackendQdrant   = "qdrant"
)

var ErrUnknownBackend = errors.New("unknown vector store backend")

// Open returns the store selected by store.backend.
// embeddingFunc is only used by the chromem backend and may be nil.
func Open(ctx context.Context, cfg *config.Config, embeddingFunc chromem.EmbeddingFunc) (models.VectorStore, error) {
	log.Debug().Str("backend", cfg.Store.Backend).Str("collection", cfg.Store.Collection).Msg("Opening vector store")

	var (
		store models.VectorStore
		err   error
	)
	switch cfg.Store.Backend {
	case BackendChromem:
		if cfg.Store.Path != "" {
			if err := helper.CreateFolder(cfg.Store.Path); err != nil {
				return nil, err
			}
		}
		var m *chromemdb.VectorDBManager
		if m, err = chromemdb.NewVectorDBManager(cfg.Store.Path, cfg.Store.Collection, cfg.Store.Compress, cfg.Store.EncryptionKey, embeddingFunc); err == nil {
			store = m
		}
	case BackendPgvector:
		var s *db.Store
		if s, err = db.New(ctx, &cfg.Database); err == nil {
			store = s
		}
	case BackendQdrant:
		var s *qdrantdb.Store
		if s, err = qdrantdb.New(ctx, cfg.Qdrant, cfg.Store.Collection, cfg.Store.VectorSize); err == nil {
			store = s
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Store.Backend)
	}
	if err != nil {
		return nil, err
	}
	return store, nil
}
