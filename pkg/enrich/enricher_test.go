package enrich

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graphfuse/graphfuse/pkg/domain"
)

type fakeGen struct {
	reply string
	err   error
}

func (f fakeGen) Generate(ctx context.Context, prompt string, opts *domain.GenerationOptions) (string, error) {
	return f.reply, f.err
}

type fakeEmbedder struct{ dim int }

func (f fakeEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	vec := make([]float64, f.dim)
	for i := range vec {
		vec[i] = float64(len(text) % (i + 2))
	}
	return vec, nil
}

func sampleDoc() domain.Document {
	return domain.Document{
		ID:               "doc-1",
		Source:           "/docs/dune.txt",
		FileName:         "dune.txt",
		FileType:         "txt",
		ConversionMethod: "direct",
	}
}

func TestEnrichAttachesMetadataAndVectors(t *testing.T) {
	e := New(fakeGen{reply: "atreides, caladan, duke, jessica, paul"}, fakeEmbedder{dim: 8}, true, true)

	texts := []string{
		"Paul is the heir of House Atreides.",
		"House Atreides rules the planet Caladan.",
	}
	chunks, err := e.Enrich(context.Background(), sampleDoc(), texts)
	require.NoError(t, err)
	require.Len(t, chunks, 2)

	for i, c := range chunks {
		assert.Equal(t, "doc-1", c.DocumentID)
		assert.Equal(t, i, c.Position)
		assert.Len(t, c.Vector, 8)
		assert.Equal(t, "/docs/dune.txt", c.MetaString("source"))
		assert.Equal(t, "dune.txt", c.MetaString("file_name"))
		assert.Equal(t, "txt", c.MetaString("file_type"))
		assert.Equal(t, "direct", c.MetaString("conversion_method"))
		assert.NotEmpty(t, c.Metadata["keywords"])
		assert.NotEmpty(t, c.Metadata["section_summary"])
	}

	kws, ok := chunks[0].Metadata["keywords"].([]string)
	require.True(t, ok)
	assert.Contains(t, kws, "atreides")
}

func TestEnrichChunkIDsAreDeterministic(t *testing.T) {
	e := New(nil, nil, false, false)

	first, err := e.Enrich(context.Background(), sampleDoc(), []string{"Some text."})
	require.NoError(t, err)
	second, err := e.Enrich(context.Background(), sampleDoc(), []string{"Some text."})
	require.NoError(t, err)

	assert.Equal(t, first[0].ID, second[0].ID)
}

func TestEnrichKeywordFallbackOnModelError(t *testing.T) {
	e := New(fakeGen{err: errors.New("model down")}, nil, true, false)

	text := "Caladan Caladan Caladan Atreides Atreides planet harvest harvest spice"
	chunks, err := e.Enrich(context.Background(), sampleDoc(), []string{text})
	require.NoError(t, err)

	kws, ok := chunks[0].Metadata["keywords"].([]string)
	require.True(t, ok)
	assert.Equal(t, "caladan", kws[0])
	assert.Contains(t, kws, "atreides")
}

func TestEnrichSummaryFallback(t *testing.T) {
	e := New(fakeGen{err: errors.New("model down")}, nil, false, true)

	chunks, err := e.Enrich(context.Background(), sampleDoc(), []string{
		"First sentence here. Second sentence follows.",
	})
	require.NoError(t, err)
	assert.Equal(t, "First sentence here.", chunks[0].Metadata["section_summary"])
}

func TestFrequencyKeywords(t *testing.T) {
	text := "The spice must flow. Spice is the key. The key to spice is Arrakis."
	kws := FrequencyKeywords(text, 3)
	require.NotEmpty(t, kws)
	assert.Equal(t, "spice", kws[0])
	assert.NotContains(t, kws, "the")
	assert.NotContains(t, kws, "is")
}

func TestParseKeywordListRejectsProse(t *testing.T) {
	assert.Nil(t, parseKeywordList("Here are the keywords I found:\n\n1. alpha\n2. beta"))
	got := parseKeywordList("Alpha, Beta Gamma, delta")
	assert.Equal(t, []string{"alpha", "beta gamma", "delta"}, got)
}

func TestLeadSentenceTruncatesLongText(t *testing.T) {
	long := strings.Repeat("x", 500)
	assert.Len(t, leadSentence(long), 200)
}
