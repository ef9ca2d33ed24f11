package db

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	_ "github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
	"github.com/rs/zerolog/log"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"

	"pdf-rag/internal/config"
	"pdf-rag/internal/models"
)

// lookupBatch bounds the size of the IN list in ExistingIDs.
const lookupBatch = 500

type Document struct {
	bun.BaseModel `bun:"table:documents,alias:d"`
	ID            string          `bun:"id,pk"`
	Content       string          `bun:"content,notnull"`
	Embedding     pgvector.Vector `bun:"embedding,notnull,type:vector"`
	Source        string          `bun:"source,notnull"`
	PageNumber    int             `bun:"page_number,notnull"`
	ChunkID       int             `bun:"chunk_id,notnull"`
	Distance      float64         `bun:"distance,scanonly"`
}

// Store keeps records in a Postgres table with a pgvector column.
type Store struct {
	db *bun.DB
}

// New connects, installs the vector extension and creates the table if needed.
func New(ctx context.Context, dbConfig *config.DatabaseConfig) (*Store, error) {
	if dbConfig.URL == "" {
		return nil, fmt.Errorf("database url is required for the pgvector backend")
	}
	sqldb, err := ConnectDB(dbConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	bunDB := NewDB(sqldb, dbConfig.Debug)
	if err := InitDB(ctx, bunDB); err != nil {
		bunDB.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return &Store{db: bunDB}, nil
}

func NewDB(sqldb *sql.DB, debug bool) *bun.DB {
	db := bun.NewDB(sqldb, pgdialect.New())
	if debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}
	return db
}

// ConnectDB opens the pool with pgdriver, or with lib/pq when driver is "postgres".
func ConnectDB(dbConfig *config.DatabaseConfig) (*sql.DB, error) {
	if dbConfig.Driver == "postgres" {
		return sql.Open("postgres", dbConfig.URL)
	}
	opts := []pgdriver.Option{pgdriver.WithDSN(dbConfig.URL)}
	if dbConfig.Password != "" {
		opts = append(opts, pgdriver.WithPassword(dbConfig.Password))
	}
	return sql.OpenDB(pgdriver.NewConnector(opts...)), nil
}

func InitDB(ctx context.Context, db *bun.DB) error {
	if _, err := db.ExecContext(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return err
	}
	_, err := db.NewCreateTable().Model((*Document)(nil)).IfNotExists().Exec(ctx)
	return err
}

func (s *Store) ExistingIDs(ctx context.Context, ids []string) (map[string]struct{}, error) {
	existing := make(map[string]struct{})
	for start := 0; start < len(ids); start += lookupBatch {
		end := min(start+lookupBatch, len(ids))
		var found []string
		err := s.db.NewSelect().
			Model((*Document)(nil)).
			Column("id").
			Where("id IN (?)", bun.In(ids[start:end])).
			Scan(ctx, &found)
		if err != nil {
			return nil, fmt.Errorf("failed to look up ids: %w", err)
		}
		for _, id := range found {
			existing[id] = struct{}{}
		}
	}
	return existing, nil
}

func (s *Store) Add(ctx context.Context, records []models.Record) error {
	if len(records) == 0 {
		return nil
	}
	docs := make([]Document, len(records))
	for i, r := range records {
		docs[i] = toDocument(r)
	}
	// existing ids are filtered out before Add; a conflict here never overwrites
	_, err := s.db.NewInsert().Model(&docs).On("CONFLICT (id) DO NOTHING").Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to store documents: %w", err)
	}
	return nil
}

// Search orders by cosine distance, then id.
func (s *Store) Search(ctx context.Context, embedding []float32, k int) ([]models.Match, error) {
	if k <= 0 {
		return nil, nil
	}
	var docs []Document
	err := s.db.NewSelect().
		Model(&docs).
		Column("id", "content", "source", "page_number", "chunk_id").
		ColumnExpr("embedding <=> ? AS distance", pgvector.NewVector(embedding)).
		OrderExpr("distance ASC, id ASC").
		Limit(k).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to search documents: %w", err)
	}
	matches := make([]models.Match, len(docs))
	for i, d := range docs {
		matches[i] = toMatch(d)
	}
	return matches, nil
}

func (s *Store) Count(ctx context.Context) (int, error) {
	return s.db.NewSelect().Model((*Document)(nil)).Count(ctx)
}

// drop table documents and create it again
func (s *Store) Reset(ctx context.Context) error {
	if _, err := s.db.NewDropTable().Model((*Document)(nil)).IfExists().Exec(ctx); err != nil {
		return fmt.Errorf("failed to drop documents: %w", err)
	}
	log.Info().Msg("Dropped documents table")
	return InitDB(ctx, s.db)
}

func (s *Store) Close() error {
	return s.db.Close()
}

func toDocument(r models.Record) Document {
	page, _ := strconv.Atoi(r.Metadata[models.MetaPage])
	chunk, _ := strconv.Atoi(r.Metadata[models.MetaChunk])
	return Document{
		ID:         r.ID,
		Content:    r.Content,
		Embedding:  pgvector.NewVector(r.Embedding),
		Source:     r.Metadata[models.MetaSource],
		PageNumber: page,
		ChunkID:    chunk,
	}
}

func toMatch(d Document) models.Match {
	return models.Match{
		ID:      d.ID,
		Content: d.Content,
		Metadata: map[string]string{
			models.MetaSource: d.Source,
			models.MetaPage:   strconv.Itoa(d.PageNumber),
			models.MetaChunk:  strconv.Itoa(d.ChunkID),
		},
		Score:    float32(1 - d.Distance),
		Distance: float32(d.Distance),
	}
}
