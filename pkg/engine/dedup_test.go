package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graphfuse/graphfuse/pkg/config"
	"github.com/graphfuse/graphfuse/pkg/domain"
)

func testDeduper() *Deduper {
	return NewDeduper(config.DedupConfig{
		PreamblePrefixes: config.DefaultPreamblePrefixes,
		ClosingPhrases:   config.DefaultClosingPhrases,
		DatePatterns:     config.DefaultDatePatterns,
	})
}

func prose(content, file string) domain.Chunk {
	return domain.Chunk{
		Content:  content,
		Metadata: map[string]interface{}{"file_name": file},
	}
}

func graphHit(content string) domain.Chunk {
	return domain.Chunk{
		Content: content,
		Metadata: map[string]interface{}{
			"source":    "knowledge_graph",
			"file_name": "knowledge_graph",
		},
	}
}

func TestDeduplicateKeepsDistinctPassages(t *testing.T) {
	d := testDeduper()
	out := d.Deduplicate([]domain.Chunk{
		prose("Paul Atreides is the heir of House Atreides.", "dune.txt"),
		prose("The spice melange is found only on Arrakis.", "dune.txt"),
	})
	assert.Len(t, out, 2)
}

func TestDeduplicateExactCopies(t *testing.T) {
	d := testDeduper()
	out := d.Deduplicate([]domain.Chunk{
		prose("Paul Atreides is the heir of House Atreides.", "dune.txt"),
		prose("Paul Atreides is the heir of House Atreides.", "dune.txt"),
	})
	assert.Len(t, out, 1)
}

func TestDeduplicateIgnoresPreambleFraming(t *testing.T) {
	d := testDeduper()
	out := d.Deduplicate([]domain.Chunk{
		prose("Paul Atreides is the heir of House Atreides and rules Caladan.", "dune.txt"),
		prose("Based on the provided information: Paul Atreides is the heir of House Atreides and rules Caladan.", "dune.txt"),
		prose("Here are some facts extracted from the provided text: Paul Atreides is the heir of House Atreides and rules Caladan.", "dune.txt"),
	})
	assert.Len(t, out, 1)
}

func TestDeduplicateDifferentSourcesKept(t *testing.T) {
	d := testDeduper()
	// Near-identical wording from different files stays separate.
	out := d.Deduplicate([]domain.Chunk{
		prose("The duke rules the rainy planet Caladan with his family.", "a.txt"),
		prose("The duke rules the rainy planet Caladan with his family there.", "b.txt"),
	})
	assert.Len(t, out, 2)
}

func TestDeduplicateGraphAgainstProse(t *testing.T) {
	d := testDeduper()
	text := "Paul is the heir of House Atreides, the family that rules the planet Caladan."
	out := d.Deduplicate([]domain.Chunk{
		prose(text, "dune.txt"),
		graphHit("Paul -> MEMBER_OF -> House Atreides: " + text),
	})
	assert.Len(t, out, 1)
}

func TestDeduplicateRecoversDateFacts(t *testing.T) {
	d := testDeduper()
	kept := "Paul is the heir of House Atreides, an aristocratic family that rules the planet Caladan."
	dropped := "Paul is the heir of House Atreides, an aristocratic family that rules the planet Caladan since 10191."

	out := d.Deduplicate([]domain.Chunk{
		prose(kept, "dune.txt"),
		prose(dropped, "dune.txt"),
	})
	require.Len(t, out, 1)
	assert.Contains(t, out[0].Content, "since 10191")
}

func TestDeduplicateDateAlreadyPresent(t *testing.T) {
	d := testDeduper()
	text := "House Atreides has ruled Caladan since 10191."
	out := d.Deduplicate([]domain.Chunk{
		prose(text, "dune.txt"),
		prose(text, "dune.txt"),
	})
	require.Len(t, out, 1)
	assert.Equal(t, text, out[0].Content)
}

func TestNormalizeStripsGraphChain(t *testing.T) {
	d := testDeduper()
	norm := d.normalize("Paul -> MEMBER_OF -> House Atreides: Paul is the heir.")
	assert.Equal(t, "paul is the heir.", norm)
}

func TestJaccard(t *testing.T) {
	a := wordSet("the quick brown fox")
	b := wordSet("the quick brown dog")
	assert.InDelta(t, 0.6, jaccard(a, b), 1e-9)
	assert.Equal(t, 0.0, jaccard(a, wordSet("")))
}
