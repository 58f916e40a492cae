package engine

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/graphfuse/graphfuse/pkg/config"
	"github.com/graphfuse/graphfuse/pkg/domain"
	"github.com/graphfuse/graphfuse/pkg/log"
	"github.com/graphfuse/graphfuse/pkg/store"
)

// Composer runs the enabled retrievers against a query, fuses their
// rankings and answers questions over the fused context.
type Composer struct {
	retrievers []domain.Retriever
	deduper    *Deduper
	generator  domain.Generator
	bundle     *store.Bundle

	mu    sync.RWMutex
	ready bool
}

// NewComposer assembles retrievers for the enabled modalities. When
// vector and keyword search share one OpenSearch instance the two are
// replaced by a single engine-native hybrid retriever.
func NewComposer(cfg *config.Config, bundle *store.Bundle, embedder domain.Embedder, generator domain.Generator) *Composer {
	var retrievers []domain.Retriever

	if bundle.Hybrid != nil {
		retrievers = append(retrievers, &hybridRetriever{
			store:    bundle.Hybrid,
			embedder: embedder,
			topK:     vectorTopK,
		})
	} else {
		if bundle.Vector != nil {
			retrievers = append(retrievers, &vectorRetriever{
				store:    bundle.Vector,
				embedder: embedder,
				topK:     vectorTopK,
			})
		}
		if bundle.Text != nil {
			retrievers = append(retrievers, &textRetriever{
				store: bundle.Text,
				topK:  cfg.BM25.SimilarityTopK,
			})
		}
	}
	if bundle.Graph != nil {
		retrievers = append(retrievers, &graphRetriever{
			store: bundle.Graph,
			topK:  graphTopK,
		})
	}

	return &Composer{
		retrievers: retrievers,
		deduper:    NewDeduper(cfg.Dedup),
		generator:  generator,
		bundle:     bundle,
	}
}

// Ready checks whether any enabled store holds data, caching a positive
// answer for the process lifetime. Reset clears the cache.
func (c *Composer) Ready(ctx context.Context) error {
	c.mu.RLock()
	ready := c.ready
	c.mu.RUnlock()
	if ready {
		return nil
	}

	has, err := c.bundle.HasAny(ctx)
	if err != nil {
		return err
	}
	if !has {
		return fmt.Errorf("%w, please ingest documents first", domain.ErrNotReady)
	}

	c.mu.Lock()
	c.ready = true
	c.mu.Unlock()
	return nil
}

// MarkReady is called by the ingestion pipeline after a successful run.
func (c *Composer) MarkReady() {
	c.mu.Lock()
	c.ready = true
	c.mu.Unlock()
}

// MarkReset drops the readiness cache after stores are cleared.
func (c *Composer) MarkReset() {
	c.mu.Lock()
	c.ready = false
	c.mu.Unlock()
}

// Search fans the query out to every retriever, fuses the rankings and
// collapses near-duplicates. A retriever error fails the search; an
// empty list from one retriever is fine.
func (c *Composer) Search(ctx context.Context, query string, topK int) ([]domain.SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: empty query", domain.ErrInvalidInput)
	}
	if err := c.Ready(ctx); err != nil {
		return nil, err
	}
	if topK <= 0 || topK > fusedLimit {
		topK = fusedLimit
	}

	lists := make([]rankedList, len(c.retrievers))
	g, gctx := errgroup.WithContext(ctx)
	for i, r := range c.retrievers {
		g.Go(func() error {
			chunks, err := r.Retrieve(gctx, query, 0)
			if err != nil {
				return fmt.Errorf("%s retrieval: %w", r.Name(), err)
			}
			lists[i] = rankedList{name: r.Name(), chunks: chunks}
			log.Debugf("%s retriever returned %d hits", r.Name(), len(chunks))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	fused := fuseRRF(lists, topK)
	deduped := c.deduper.Deduplicate(fused)

	results := make([]domain.SearchResult, 0, len(deduped))
	for i, chunk := range deduped {
		results = append(results, domain.SearchResult{
			Rank:     i + 1,
			Content:  chunk.Content,
			Score:    chunk.Score,
			Source:   chunk.MetaString("source"),
			FileName: chunk.MetaString("file_name"),
			FileType: chunk.MetaString("file_type"),
		})
	}
	return results, nil
}

// Query answers a question over the retrieved context.
func (c *Composer) Query(ctx context.Context, question string, topK int) (domain.QueryAnswer, error) {
	start := time.Now()

	results, err := c.Search(ctx, question, topK)
	if err != nil {
		return domain.QueryAnswer{}, err
	}
	if len(results) == 0 {
		return domain.QueryAnswer{
			Answer:  "No relevant information was found in the ingested documents.",
			Elapsed: time.Since(start).Seconds(),
		}, nil
	}

	answer, err := c.generator.Generate(ctx, answerPrompt(question, results), &domain.GenerationOptions{
		Temperature: 0.2,
	})
	if err != nil {
		return domain.QueryAnswer{}, fmt.Errorf("%w: generating answer: %v", domain.ErrModelIO, err)
	}

	return domain.QueryAnswer{
		Answer:  strings.TrimSpace(answer),
		Sources: results,
		Elapsed: time.Since(start).Seconds(),
	}, nil
}

func answerPrompt(question string, results []domain.SearchResult) string {
	var b strings.Builder
	b.WriteString("Answer the question using only the context below. ")
	b.WriteString("If the context does not contain the answer, say so.\n\nContext:\n")
	for _, r := range results {
		fmt.Fprintf(&b, "[%d] (%s) %s\n", r.Rank, r.FileName, r.Content)
	}
	b.WriteString("\nQuestion: ")
	b.WriteString(question)
	b.WriteString("\nAnswer:")
	return b.String()
}
