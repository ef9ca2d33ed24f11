package qdrantdb

import (
	"testing"

	"github.com/qdrant/go-client/qdrant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdf-rag/internal/helper"
	"pdf-rag/internal/models"
)

func TestToPointUsesDerivedUUID(t *testing.T) {
	r := models.Record{
		ID:        "doc.pdf:1:0",
		Content:   "hello",
		Embedding: []float32{0.1, 0.2},
		Metadata:  map[string]string{models.MetaSource: "doc.pdf", models.MetaPage: "1", models.MetaChunk: "0"},
	}
	p := toPoint(r)

	assert.Equal(t, helper.UUIDFromKey(r.ID), p.GetId().GetUuid())
	assert.Equal(t, "doc.pdf:1:0", p.GetPayload()[payloadChunkID].GetStringValue())
	assert.Equal(t, "hello", p.GetPayload()[payloadContent].GetStringValue())
	assert.Equal(t, "1", p.GetPayload()[models.MetaPage].GetStringValue())
}

func TestToMatch(t *testing.T) {
	p := &qdrant.ScoredPoint{
		Id:    qdrant.NewIDUUID(helper.UUIDFromKey("a.pdf:2:1")),
		Score: 0.75,
		Payload: qdrant.NewValueMap(map[string]any{
			payloadChunkID:    "a.pdf:2:1",
			payloadContent:    "text",
			models.MetaSource: "a.pdf",
			models.MetaPage:   "2",
			models.MetaChunk:  "1",
		}),
	}
	m := toMatch(p)

	assert.Equal(t, "a.pdf:2:1", m.ID)
	assert.Equal(t, "text", m.Content)
	assert.InDelta(t, 0.25, m.Distance, 1e-6)
	assert.InDelta(t, 0.75, m.Score, 1e-6)
	require.Len(t, m.Metadata, 3)
	assert.Equal(t, "a.pdf", m.Metadata[models.MetaSource])
}

func collectionInfo(size uint64) *qdrant.CollectionInfo {
	return &qdrant.CollectionInfo{
		Config: &qdrant.CollectionConfig{
			Params: &qdrant.CollectionParams{
				VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
					Size:     size,
					Distance: qdrant.Distance_Cosine,
				}),
			},
		},
	}
}

func TestCollectionVectorSize(t *testing.T) {
	assert.Equal(t, 768, collectionVectorSize(collectionInfo(768)))
	assert.Zero(t, collectionVectorSize(&qdrant.CollectionInfo{}))
	assert.Zero(t, collectionVectorSize(nil))
}

func TestReopenedCollectionAcceptsItsOwnDimension(t *testing.T) {
	// configured for 1536, but the stored collection holds 768-dim vectors
	s := &Store{vectorSize: 1536}
	s.useCollection(collectionInfo(768))
	assert.True(t, s.exists)

	records := []models.Record{{ID: "new.pdf:1:0", Embedding: make([]float32, 768)}}
	require.NoError(t, s.checkDimensions(records))

	err := s.checkDimensions([]models.Record{{ID: "odd.pdf:1:0", Embedding: make([]float32, 1536)}})
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}
