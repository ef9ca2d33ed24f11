package chromemdb

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog/log"

	"pdf-rag/internal/models"
)

// VectorDBManager encapsulates the chromem-go database operations
type VectorDBManager struct {
	db             *chromem.DB
	collection     *chromem.Collection
	collectionName string
	embeddingFunc  chromem.EmbeddingFunc
	dbPath         string
	compress       bool
	encryptionKey  string
}

// NewVectorDBManager opens the database at dbPath, or an in-memory one when dbPath is empty,
// and gets or creates the collection.
func NewVectorDBManager(dbPath, collectionName string, compress bool, encryptionKey string, embeddingFunc chromem.EmbeddingFunc) (*VectorDBManager, error) {
	var db *chromem.DB
	if dbPath == "" {
		db = chromem.NewDB()
	} else {
		var err error
		db, err = chromem.NewPersistentDB(dbPath, compress)
		if err != nil {
			return nil, fmt.Errorf("failed to create database: %w", err)
		}
	}

	m := &VectorDBManager{
		db:             db,
		collectionName: collectionName,
		embeddingFunc:  embeddingFunc,
		dbPath:         dbPath,
		compress:       compress,
		encryptionKey:  encryptionKey,
	}
	if _, err := m.GetOrCreateCollection(collectionName); err != nil {
		return nil, err
	}
	return m, nil
}

// create or read collection
func (m *VectorDBManager) GetOrCreateCollection(collectionName string) (*chromem.Collection, error) {
	c, err := m.db.GetOrCreateCollection(collectionName, nil, m.embeddingFunc)
	if err != nil {
		return nil, fmt.Errorf("failed to create/get collection: %w", err)
	}
	m.collection = c
	m.collectionName = collectionName
	return c, nil
}

// ExistingIDs looks every id up in the collection and returns those present.
func (m *VectorDBManager) ExistingIDs(ctx context.Context, ids []string) (map[string]struct{}, error) {
	existing := make(map[string]struct{})
	if m.collection.Count() == 0 {
		return existing, nil
	}
	for _, id := range ids {
		if _, err := m.collection.GetByID(ctx, id); err == nil {
			existing[id] = struct{}{}
		}
	}
	return existing, nil
}

// Add appends records. Documents are added sequentially.
func (m *VectorDBManager) Add(ctx context.Context, records []models.Record) error {
	if len(records) == 0 {
		return nil
	}
	docs := make([]chromem.Document, len(records))
	for i, r := range records {
		docs[i] = chromem.Document{
			ID:        r.ID,
			Content:   r.Content,
			Metadata:  r.Metadata,
			Embedding: r.Embedding,
		}
	}
	if err := m.collection.AddDocuments(ctx, docs, 1); err != nil {
		return fmt.Errorf("failed to add documents: %w", err)
	}
	return nil
}

// Search returns the k nearest records. Equal distances are ordered by id.
func (m *VectorDBManager) Search(ctx context.Context, embedding []float32, k int) ([]models.Match, error) {
	if len(embedding) == 0 {
		return nil, fmt.Errorf("query embedding must be provided")
	}
	k = min(k, m.collection.Count())
	if k <= 0 {
		return nil, nil
	}

	results, err := m.collection.QueryEmbedding(ctx, embedding, k, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query by similarity: %w", err)
	}

	matches := make([]models.Match, len(results))
	for i, r := range results {
		matches[i] = models.Match{
			ID:       r.ID,
			Content:  r.Content,
			Metadata: r.Metadata,
			Score:    r.Similarity,
			Distance: 1 - r.Similarity,
		}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Distance != matches[j].Distance {
			return matches[i].Distance < matches[j].Distance
		}
		return matches[i].ID < matches[j].ID
	})
	return matches, nil
}

func (m *VectorDBManager) Count(_ context.Context) (int, error) {
	return m.collection.Count(), nil
}

// Reset drops the collection and creates it again empty.
func (m *VectorDBManager) Reset(_ context.Context) error {
	if err := m.DeleteCollection(); err != nil {
		return err
	}
	_, err := m.GetOrCreateCollection(m.collectionName)
	return err
}

// delete collection
func (m *VectorDBManager) DeleteCollection() error {
	err := m.db.DeleteCollection(m.collectionName)
	if err != nil {
		return fmt.Errorf("failed to drop collection: %w", err)
	}
	return nil
}

// Close is a no-op: the persistent DB writes every document on insert.
func (m *VectorDBManager) Close() error {
	return nil
}

// Export writes the collection to filePath, encrypted when a key is configured.
func (m *VectorDBManager) Export(filePath string) error {
	if filePath == "" {
		filePath = filepath.Join(m.dbPath, m.collectionName+".chromem")
	}
	if m.encryptionKey != "" && len(m.encryptionKey) != 32 {
		return fmt.Errorf("encryption key must be 32 bytes, got %d", len(m.encryptionKey))
	}

	log.Debug().
		Str("collection", m.collectionName).
		Str("file", filePath).
		Bool("compress", m.compress).
		Bool("encrypted", m.encryptionKey != "").
		Msg("Exporting collection")

	err := m.db.ExportToFile(filePath, m.compress, m.encryptionKey, m.collectionName)
	if err != nil {
		return fmt.Errorf("failed to export database: %w", err)
	}
	return nil
}

// Import loads the collection from a file written by Export.
func (m *VectorDBManager) Import(filePath string) error {
	err := m.db.ImportFromFile(filePath, m.encryptionKey, m.collectionName)
	if err != nil {
		return fmt.Errorf("failed to import database: %w", err)
	}
	if _, err := m.GetOrCreateCollection(m.collectionName); err != nil {
		return err
	}
	return nil
}
