package engine

import (
	"context"
	"fmt"

	"github.com/graphfuse/graphfuse/pkg/domain"
	"github.com/graphfuse/graphfuse/pkg/store/opensearch"
)

// Per-retriever depth before fusion. Graph passages are short
// synthesized facts, so fewer of them carry the same weight.
const (
	vectorTopK = 10
	graphTopK  = 5
)

type vectorRetriever struct {
	store    domain.VectorStore
	embedder domain.Embedder
	topK     int
}

func (r *vectorRetriever) Name() string { return "vector" }

func (r *vectorRetriever) Retrieve(ctx context.Context, query string, topK int) ([]domain.Chunk, error) {
	if topK <= 0 {
		topK = r.topK
	}
	vec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: embedding query: %v", domain.ErrModelIO, err)
	}
	return r.store.Search(ctx, vec, topK)
}

type textRetriever struct {
	store domain.FullTextStore
	topK  int
}

func (r *textRetriever) Name() string { return "bm25" }

func (r *textRetriever) Retrieve(ctx context.Context, query string, topK int) ([]domain.Chunk, error) {
	if topK <= 0 {
		topK = r.topK
	}
	return r.store.Search(ctx, query, topK)
}

type graphRetriever struct {
	store domain.GraphStore
	topK  int
}

func (r *graphRetriever) Name() string { return "graph" }

func (r *graphRetriever) Retrieve(ctx context.Context, query string, topK int) ([]domain.Chunk, error) {
	if topK <= 0 {
		topK = r.topK
	}
	return r.store.Retrieve(ctx, query, topK)
}

// hybridRetriever delegates fusion of the vector and keyword legs to
// OpenSearch's own search pipeline.
type hybridRetriever struct {
	store    *opensearch.Store
	embedder domain.Embedder
	topK     int
}

func (r *hybridRetriever) Name() string { return "hybrid" }

func (r *hybridRetriever) Retrieve(ctx context.Context, query string, topK int) ([]domain.Chunk, error) {
	if topK <= 0 {
		topK = r.topK
	}
	vec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: embedding query: %v", domain.ErrModelIO, err)
	}
	return r.store.SearchHybrid(ctx, query, vec, topK)
}
