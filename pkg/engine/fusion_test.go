package engine

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graphfuse/graphfuse/pkg/domain"
)

func ranked(name string, ids ...string) rankedList {
	chunks := make([]domain.Chunk, len(ids))
	for i, id := range ids {
		chunks[i] = domain.Chunk{ID: id, Content: "content of " + id}
	}
	return rankedList{name: name, chunks: chunks}
}

func TestFuseRRFAgreementWins(t *testing.T) {
	// "b" is second in both lists; "a" and "c" each lead only one.
	fused := fuseRRF([]rankedList{
		ranked("vector", "a", "b", "c"),
		ranked("bm25", "c", "b", "a"),
	}, 10)

	require.Len(t, fused, 3)
	assert.Equal(t, "b", fused[0].ID)
}

func TestFuseRRFSingleListPassthrough(t *testing.T) {
	list := ranked("bm25", "a", "b", "c")
	list.chunks[0].Score = 2.5

	fused := fuseRRF([]rankedList{list}, 2)
	require.Len(t, fused, 2)
	assert.Equal(t, "a", fused[0].ID)
	assert.Equal(t, 2.5, fused[0].Score)
}

func TestFuseRRFLimit(t *testing.T) {
	fused := fuseRRF([]rankedList{
		ranked("vector", "a", "b", "c", "d"),
		ranked("bm25", "e", "f", "g", "h"),
	}, 3)
	assert.Len(t, fused, 3)
}

func TestFuseRRFEmptyLists(t *testing.T) {
	assert.Nil(t, fuseRRF(nil, 10))
	assert.Nil(t, fuseRRF([]rankedList{{name: "vector"}}, 10))
}

func TestFuseRRFContentKeyForGraphHits(t *testing.T) {
	// Graph hits without ids merge by content.
	graph := rankedList{name: "graph", chunks: []domain.Chunk{
		{Content: "Paul -> MEMBER_OF -> House Atreides"},
	}}
	graphAgain := rankedList{name: "graph2", chunks: []domain.Chunk{
		{Content: "Paul -> MEMBER_OF -> House Atreides"},
	}}

	fused := fuseRRF([]rankedList{graph, graphAgain}, 10)
	assert.Len(t, fused, 1)
}

func TestFuseRRFDropsScoresBelowFloor(t *testing.T) {
	// Deep tail positions contribute less than the floor and are cut
	// even when the limit would admit them.
	long := rankedList{name: "vector"}
	for i := 0; i < 1200; i++ {
		id := fmt.Sprintf("v-%04d", i)
		long.chunks = append(long.chunks, domain.Chunk{ID: id, Content: id})
	}

	fused := fuseRRF([]rankedList{long, ranked("bm25", "t-0")}, 5000)
	for _, c := range fused {
		assert.GreaterOrEqual(t, c.Score, scoreFloor)
	}
	assert.Less(t, len(fused), 1201)
}

func TestFuseRRFScoresAreRankSums(t *testing.T) {
	fused := fuseRRF([]rankedList{
		ranked("vector", "a"),
		ranked("bm25", "a"),
	}, 10)
	require.Len(t, fused, 1)
	assert.InDelta(t, 2.0/float64(rrfK+1), fused[0].Score, 1e-9)
}
