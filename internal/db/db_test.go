package db

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"pdf-rag/internal/config"
	"pdf-rag/internal/models"
)

func TestDocumentConversion(t *testing.T) {
	r := models.Record{
		ID:        "report.pdf:3:2",
		Content:   "some text",
		Embedding: []float32{0.5, 0.5},
		Metadata: map[string]string{
			models.MetaSource: "report.pdf",
			models.MetaPage:   "3",
			models.MetaChunk:  "2",
		},
	}
	d := toDocument(r)
	assert.Equal(t, "report.pdf", d.Source)
	assert.Equal(t, 3, d.PageNumber)
	assert.Equal(t, 2, d.ChunkID)
	assert.Equal(t, []float32{0.5, 0.5}, d.Embedding.Slice())

	d.Distance = 0.125
	m := toMatch(d)
	assert.Equal(t, r.ID, m.ID)
	assert.Equal(t, r.Content, m.Content)
	assert.Equal(t, r.Metadata, m.Metadata)
	assert.InDelta(t, 0.125, m.Distance, 1e-6)
	assert.InDelta(t, 0.875, m.Score, 1e-6)
}

func TestNewRequiresURL(t *testing.T) {
	_, err := New(context.Background(), &config.DatabaseConfig{})
	assert.Error(t, err)
}
