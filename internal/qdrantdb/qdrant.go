package qdrantdb

import (
	"context"
	"fmt"
	"sort"

	"github.com/qdrant/go-client/qdrant"
	"github.com/rs/zerolog/log"

	"pdf-rag/internal/config"
	"pdf-rag/internal/helper"
	"pdf-rag/internal/models"
)

const (
	payloadChunkID = "chunk_id"
	payloadContent = "content"

	upsertBatch = 100
)

// Store keeps records in a Qdrant collection. Point ids are UUIDs derived from
// the chunk id, which is kept in the payload.
type Store struct {
	client     *qdrant.Client
	collection string
	vectorSize int
	exists     bool
}

// New connects and checks the server health. The collection is created on the
// first Add with the dimension of the first embedding.
func New(ctx context.Context, qdrantConfig config.QdrantConfig, collection string, vectorSize int) (*Store, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   qdrantConfig.Host,
		Port:   qdrantConfig.Port,
		APIKey: qdrantConfig.APIKey,
		UseTLS: qdrantConfig.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}

	s := &Store{client: client, collection: collection, vectorSize: vectorSize}
	if _, err := client.HealthCheck(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: %v", ErrQdrantUnreachable, err)
	}
	if s.exists, err = s.collectionExists(ctx); err != nil {
		client.Close()
		return nil, err
	}
	if s.exists {
		info, err := client.GetCollectionInfo(ctx, collection)
		if err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to read collection %s: %w", collection, err)
		}
		s.useCollection(info)
	}
	return s, nil
}

// useCollection adopts the vector size of an existing collection.
func (s *Store) useCollection(info *qdrant.CollectionInfo) {
	s.exists = true
	if size := collectionVectorSize(info); size > 0 {
		s.vectorSize = size
	}
}

// collectionVectorSize returns the dimension of the unnamed vector of an
// existing collection, or 0 when it is not configured.
func collectionVectorSize(info *qdrant.CollectionInfo) int {
	return int(info.GetConfig().GetParams().GetVectorsConfig().GetParams().GetSize())
}

func (s *Store) collectionExists(ctx context.Context) (bool, error) {
	collections, err := s.client.ListCollections(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to list collections: %w", err)
	}
	for _, name := range collections {
		if name == s.collection {
			return true, nil
		}
	}
	return false, nil
}

// EnsureCollection creates the collection with cosine distance if it is missing.
func (s *Store) EnsureCollection(ctx context.Context, size int) error {
	if s.exists {
		return nil
	}
	if size <= 0 {
		size = s.vectorSize
	}
	err := s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(size),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}
	log.Info().Str("collection", s.collection).Int("size", size).Msg("Created qdrant collection")
	s.exists = true
	s.vectorSize = size
	return nil
}

func (s *Store) ExistingIDs(ctx context.Context, ids []string) (map[string]struct{}, error) {
	existing := make(map[string]struct{})
	if !s.exists || len(ids) == 0 {
		return existing, nil
	}
	pointIDs := make([]*qdrant.PointId, len(ids))
	for i, id := range ids {
		pointIDs[i] = qdrant.NewIDUUID(helper.UUIDFromKey(id))
	}
	points, err := s.client.Get(ctx, &qdrant.GetPoints{
		CollectionName: s.collection,
		Ids:            pointIDs,
		WithPayload:    qdrant.NewWithPayloadInclude(payloadChunkID),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to look up ids: %w", err)
	}
	for _, p := range points {
		existing[p.GetPayload()[payloadChunkID].GetStringValue()] = struct{}{}
	}
	return existing, nil
}

func (s *Store) Add(ctx context.Context, records []models.Record) error {
	if len(records) == 0 {
		return nil
	}
	if err := s.EnsureCollection(ctx, len(records[0].Embedding)); err != nil {
		return err
	}

	for start := 0; start < len(records); start += upsertBatch {
		end := min(start+upsertBatch, len(records))
		points := make([]*qdrant.PointStruct, 0, end-start)
		if err := s.checkDimensions(records[start:end]); err != nil {
			return err
		}
		for _, r := range records[start:end] {
			points = append(points, toPoint(r))
		}
		_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: s.collection,
			Wait:           qdrant.PtrOf(true),
			Points:         points,
		})
		if err != nil {
			return fmt.Errorf("failed to store points: %w", err)
		}
	}
	return nil
}

// Search returns the k nearest points. Equal distances are ordered by chunk id.
func (s *Store) Search(ctx context.Context, embedding []float32, k int) ([]models.Match, error) {
	if !s.exists || k <= 0 {
		return nil, nil
	}
	results, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.collection,
		Query:          qdrant.NewQuery(embedding...),
		Limit:          qdrant.PtrOf(uint64(k)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search points: %w", err)
	}

	matches := make([]models.Match, len(results))
	for i, r := range results {
		matches[i] = toMatch(r)
	}
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Distance != matches[j].Distance {
			return matches[i].Distance < matches[j].Distance
		}
		return matches[i].ID < matches[j].ID
	})
	return matches, nil
}

func (s *Store) checkDimensions(records []models.Record) error {
	for _, r := range records {
		if len(r.Embedding) != s.vectorSize {
			return fmt.Errorf("%w: %s has %d, collection has %d", ErrDimensionMismatch, r.ID, len(r.Embedding), s.vectorSize)
		}
	}
	return nil
}

func (s *Store) Count(ctx context.Context) (int, error) {
	if !s.exists {
		return 0, nil
	}
	n, err := s.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: s.collection,
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count points: %w", err)
	}
	return int(n), nil
}

// Reset deletes the collection. It is recreated by the next Add.
func (s *Store) Reset(ctx context.Context) error {
	if !s.exists {
		return nil
	}
	if err := s.client.DeleteCollection(ctx, s.collection); err != nil {
		return fmt.Errorf("failed to delete collection: %w", err)
	}
	s.exists = false
	return nil
}

func (s *Store) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

func toPoint(r models.Record) *qdrant.PointStruct {
	payload := map[string]any{
		payloadChunkID: r.ID,
		payloadContent: r.Content,
	}
	for k, v := range r.Metadata {
		payload[k] = v
	}
	return &qdrant.PointStruct{
		Id:      qdrant.NewIDUUID(helper.UUIDFromKey(r.ID)),
		Vectors: qdrant.NewVectors(r.Embedding...),
		Payload: qdrant.NewValueMap(payload),
	}
}

func toMatch(p *qdrant.ScoredPoint) models.Match {
	payload := p.GetPayload()
	metadata := make(map[string]string, len(payload))
	for k, v := range payload {
		if k == payloadChunkID || k == payloadContent {
			continue
		}
		metadata[k] = v.GetStringValue()
	}
	return models.Match{
		ID:       payload[payloadChunkID].GetStringValue(),
		Content:  payload[payloadContent].GetStringValue(),
		Metadata: metadata,
		Score:    p.GetScore(),
		Distance: 1 - p.GetScore(),
	}
}
