package chunker

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graphfuse/graphfuse/pkg/domain"
)

func TestSplitEmptyText(t *testing.T) {
	s := New()
	chunks, err := s.Split("   \n ", 100, 10)
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestSplitInvalidOptions(t *testing.T) {
	s := New()

	_, err := s.Split("hello", 0, 0)
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))

	_, err = s.Split("hello", 10, 10)
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))
}

func TestSplitShortTextSingleChunk(t *testing.T) {
	s := New()
	chunks, err := s.Split("One sentence. Another sentence.", 1024, 128)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "One sentence. Another sentence.", chunks[0])
}

func TestSplitRespectsSentenceBoundaries(t *testing.T) {
	s := New()
	text := "The first sentence is here. The second sentence is also here. The third one closes it."
	chunks, err := s.Split(text, 60, 0)
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)

	for _, c := range chunks {
		assert.True(t, strings.HasSuffix(c, "."), "chunk should end on a sentence: %q", c)
	}
}

func TestSplitCoversAllText(t *testing.T) {
	s := New()
	var b strings.Builder
	for i := 0; i < 40; i++ {
		b.WriteString("Paul Atreides rules the planet Caladan with his family. ")
	}
	text := strings.TrimSpace(b.String())

	chunks, err := s.Split(text, 200, 40)
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)

	// Every word of the input appears in the concatenation, and every
	// chunk is drawn from the input.
	joined := strings.Join(chunks, " ")
	for _, word := range strings.Fields(text) {
		assert.Contains(t, joined, word)
	}
	for _, c := range chunks {
		for _, sentence := range strings.Split(c, ". ") {
			assert.Contains(t, text, strings.TrimSuffix(strings.TrimSpace(sentence), "."))
		}
	}
}

func TestSplitCarriesOverlap(t *testing.T) {
	s := New()
	text := "Alpha beta gamma delta epsilon. Zeta eta theta iota kappa. Lambda mu nu xi omicron."
	chunks, err := s.Split(text, 40, 15)
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)

	// Overlap repeats the tail of the previous chunk at the head of the next.
	head := strings.Fields(chunks[1])[0]
	assert.Contains(t, chunks[0], head)
}

func TestSplitCJKSentences(t *testing.T) {
	s := New()
	chunks, err := s.Split("这是第一句。这是第二句。", 1024, 0)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Contains(t, chunks[0], "第一句")
	assert.Contains(t, chunks[0], "第二句")
}

func TestSplitOversizedSentenceKeptWhole(t *testing.T) {
	s := New()
	long := strings.Repeat("word ", 50) + "end."
	chunks, err := s.Split(long, 40, 0)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, strings.TrimSpace(long), chunks[0])
}
