package extract

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graphfuse/graphfuse/pkg/domain"
)

type scriptedGen struct{ reply string }

func (s scriptedGen) Generate(ctx context.Context, prompt string, opts *domain.GenerationOptions) (string, error) {
	return s.reply, nil
}

func TestExtractParsesJSONTriples(t *testing.T) {
	gen := scriptedGen{reply: `[
		{"subject": "Paul", "subject_label": "person", "relation": "works_for", "object": "House Atreides", "object_label": "ORGANIZATION"},
		{"subject": "House Atreides", "subject_label": "ORGANIZATION", "relation": "LOCATED_IN", "object": "Caladan", "object_label": "LOCATION"}
	]`}

	e := New(gen, nil, 10)
	triples, err := e.Extract(context.Background(), domain.Chunk{ID: "c-1", Content: "..."})
	require.NoError(t, err)
	require.Len(t, triples, 2)

	assert.Equal(t, "Paul", triples[0].Subject.Name)
	assert.Equal(t, "PERSON", triples[0].Subject.Label)
	assert.Equal(t, "WORKS_FOR", triples[0].Relation)
	assert.Equal(t, "House Atreides", triples[0].Object.Name)
	assert.Equal(t, []string{"c-1"}, triples[0].ChunkIDs)
}

func TestExtractParsesFencedJSON(t *testing.T) {
	gen := scriptedGen{reply: "```json\n[{\"subject\":\"A\",\"subject_label\":\"PERSON\",\"relation\":\"USES\",\"object\":\"B\",\"object_label\":\"TECHNOLOGY\"}]\n```"}
	e := New(gen, nil, 10)
	triples, err := e.Extract(context.Background(), domain.Chunk{ID: "c-2", Content: "..."})
	require.NoError(t, err)
	require.Len(t, triples, 1)
	assert.Equal(t, "USES", triples[0].Relation)
}

func TestExtractParsesArrowLinesFallback(t *testing.T) {
	gen := scriptedGen{reply: "Paul -> WORKS_FOR -> House Atreides\nAtreides -> LOCATED_IN -> Caladan"}
	e := New(gen, nil, 10)
	triples, err := e.Extract(context.Background(), domain.Chunk{ID: "c-3", Content: "..."})
	require.NoError(t, err)
	require.Len(t, triples, 2)
	assert.Equal(t, "LOCATED_IN", triples[1].Relation)
}

func TestExtractStrictSchemaDropsInvalidTriples(t *testing.T) {
	schema := DefaultSchema()
	schema.Strict = true

	gen := scriptedGen{reply: `[
		{"subject": "Paul", "subject_label": "PERSON", "relation": "WORKS_FOR", "object": "House Atreides", "object_label": "ORGANIZATION"},
		{"subject": "Paul", "subject_label": "PERSON", "relation": "EATS", "object": "Spice", "object_label": "FOOD"}
	]`}

	e := New(gen, schema, 10)
	triples, err := e.Extract(context.Background(), domain.Chunk{ID: "c-4", Content: "..."})
	require.NoError(t, err)
	require.Len(t, triples, 1)
	assert.Equal(t, "WORKS_FOR", triples[0].Relation)
}

func TestExtractCapsTripleCount(t *testing.T) {
	gen := scriptedGen{reply: `[
		{"subject": "A", "relation": "USES", "object": "B"},
		{"subject": "C", "relation": "USES", "object": "D"},
		{"subject": "E", "relation": "USES", "object": "F"}
	]`}
	e := New(gen, nil, 2)
	triples, err := e.Extract(context.Background(), domain.Chunk{ID: "c-5", Content: "..."})
	require.NoError(t, err)
	assert.Len(t, triples, 2)
}

func TestSchemaUsesItsOwnTripletCap(t *testing.T) {
	e := New(scriptedGen{}, DefaultSchema(), 10)
	assert.Equal(t, 15, e.maxTriplets)
}

func TestResolveSchema(t *testing.T) {
	s, err := ResolveSchema("none", nil)
	require.NoError(t, err)
	assert.Nil(t, s)

	s, err = ResolveSchema("default", nil)
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, "default", s.Name)
	assert.False(t, s.Strict)

	custom := []domain.Schema{{Name: "legal", Entities: []string{"CASE"}}}
	s, err = ResolveSchema("legal", custom)
	require.NoError(t, err)
	assert.Equal(t, "legal", s.Name)

	_, err = ResolveSchema("missing", custom)
	assert.ErrorIs(t, err, domain.ErrConfig)
}

func TestSchemaAllows(t *testing.T) {
	schema := DefaultSchema()
	ok := schema.Allows(domain.Triple{
		Subject:  domain.Entity{Name: "Paul", Label: "PERSON"},
		Relation: "WORKS_FOR",
		Object:   domain.Entity{Name: "Atreides", Label: "ORGANIZATION"},
	})
	assert.True(t, ok)

	bad := schema.Allows(domain.Triple{
		Subject:  domain.Entity{Name: "Paul", Label: "PERSON"},
		Relation: "DEVELOPS",
		Object:   domain.Entity{Name: "Spice", Label: "LOCATION"},
	})
	assert.False(t, bad)

	free := domain.Schema{Entities: []string{"X"}}
	assert.True(t, free.Allows(domain.Triple{Relation: "ANY"}))
}
