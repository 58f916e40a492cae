package engine

import (
	"sort"
	"strings"

	"github.com/graphfuse/graphfuse/pkg/domain"
)

const (
	rrfK       = 60
	fusedLimit = 15
	scoreFloor = 1e-3
)

// rankedList is one retriever's output in rank order.
type rankedList struct {
	name   string
	chunks []domain.Chunk
}

// fuseRRF merges ranked lists with reciprocal rank fusion. Each chunk
// scores sum(1/(k+rank)) across the lists it appears in, so agreement
// between retrievers outranks a single high position. A single list
// passes through with its native ordering and scores.
func fuseRRF(lists []rankedList, limit int) []domain.Chunk {
	lists = nonEmpty(lists)
	if len(lists) == 0 {
		return nil
	}
	if len(lists) == 1 {
		chunks := lists[0].chunks
		if len(chunks) > limit {
			chunks = chunks[:limit]
		}
		return chunks
	}

	type entry struct {
		chunk domain.Chunk
		score float64
		order int
	}
	merged := make(map[string]*entry)
	order := 0

	for _, list := range lists {
		for rank, chunk := range list.chunks {
			key := fuseKey(chunk)
			contribution := 1.0 / float64(rrfK+rank+1)
			if e, ok := merged[key]; ok {
				e.score += contribution
				continue
			}
			merged[key] = &entry{chunk: chunk, score: contribution, order: order}
			order++
		}
	}

	entries := make([]*entry, 0, len(merged))
	for _, e := range merged {
		if e.score < scoreFloor {
			continue
		}
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].score != entries[j].score {
			return entries[i].score > entries[j].score
		}
		return entries[i].order < entries[j].order
	})

	if len(entries) > limit {
		entries = entries[:limit]
	}
	out := make([]domain.Chunk, 0, len(entries))
	for _, e := range entries {
		c := e.chunk
		c.Score = e.score
		out = append(out, c)
	}
	return out
}

func nonEmpty(lists []rankedList) []rankedList {
	out := lists[:0]
	for _, l := range lists {
		if len(l.chunks) > 0 {
			out = append(out, l)
		}
	}
	return out
}

// fuseKey identifies the same passage across retrievers. Graph hits
// have synthesized content and often no stable id, so content is the
// fallback identity.
func fuseKey(chunk domain.Chunk) string {
	if chunk.ID != "" {
		return "id:" + chunk.ID
	}
	return "content:" + strings.TrimSpace(chunk.Content)
}
