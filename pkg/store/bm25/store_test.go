package bm25

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graphfuse/graphfuse/pkg/domain"
)

func chunk(id, content string) domain.Chunk {
	return domain.Chunk{
		ID:         id,
		DocumentID: "doc-1",
		Content:    content,
		Metadata:   map[string]interface{}{"file_name": "dune.txt"},
	}
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(NewDocStore(""), "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStoreIndexAndSearch(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	err := s.Index(ctx, []domain.Chunk{
		chunk("c1", "Paul Atreides is the heir of House Atreides on Caladan."),
		chunk("c2", "The spice melange extends life and expands consciousness."),
		chunk("c3", "Arrakis is a desert planet and the only source of spice."),
	})
	require.NoError(t, err)

	hits, err := s.Search(ctx, "spice", 10)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	for _, h := range hits {
		assert.Contains(t, h.Content, "spice")
		assert.Greater(t, h.Score, 0.0)
		assert.Equal(t, "dune.txt", h.MetaString("file_name"))
	}

	hits, err = s.Search(ctx, "spice", 1)
	require.NoError(t, err)
	assert.Len(t, hits, 1)
}

func TestStoreHasIndex(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	has, err := s.HasIndex(ctx)
	require.NoError(t, err)
	assert.False(t, has)

	require.NoError(t, s.Index(ctx, []domain.Chunk{chunk("c1", "text body")}))
	has, err = s.HasIndex(ctx)
	require.NoError(t, err)
	assert.True(t, has)
}

func TestStoreReset(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Index(ctx, []domain.Chunk{chunk("c1", "some searchable text")}))
	require.NoError(t, s.Reset(ctx))

	has, err := s.HasIndex(ctx)
	require.NoError(t, err)
	assert.False(t, has)

	hits, err := s.Search(ctx, "searchable", 5)
	require.NoError(t, err)
	assert.Empty(t, hits)

	// Reset leaves a usable index behind.
	require.NoError(t, s.Index(ctx, []domain.Chunk{chunk("c2", "fresh content")}))
	hits, err = s.Search(ctx, "fresh", 5)
	require.NoError(t, err)
	assert.Len(t, hits, 1)
}

func TestStorePersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s, err := NewStore(NewDocStore(dir), dir)
	require.NoError(t, err)
	require.NoError(t, s.Index(ctx, []domain.Chunk{chunk("c1", "persistent passage about sandworms")}))
	require.NoError(t, s.Close())

	reopened, err := NewStore(NewDocStore(dir), dir)
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()

	has, err := reopened.HasIndex(ctx)
	require.NoError(t, err)
	assert.True(t, has)

	hits, err := reopened.Search(ctx, "sandworms", 5)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "c1", hits[0].ID)
}

func TestDocStoreStripsVectors(t *testing.T) {
	d := NewDocStore("")
	c := chunk("c1", "body")
	c.Vector = []float64{1, 2, 3}
	d.Add([]domain.Chunk{c})

	got, ok := d.Get("c1")
	require.True(t, ok)
	assert.Nil(t, got.Vector)
}
