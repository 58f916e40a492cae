// Package store wires the configured storage backends into the bundle
// the retrieval engine works against.
package store

import (
	"context"
	"fmt"

	"github.com/graphfuse/graphfuse/pkg/config"
	"github.com/graphfuse/graphfuse/pkg/domain"
	"github.com/graphfuse/graphfuse/pkg/extract"
	"github.com/graphfuse/graphfuse/pkg/log"
	"github.com/graphfuse/graphfuse/pkg/store/bm25"
	"github.com/graphfuse/graphfuse/pkg/store/elastic"
	"github.com/graphfuse/graphfuse/pkg/store/kuzu"
	"github.com/graphfuse/graphfuse/pkg/store/neo4j"
	"github.com/graphfuse/graphfuse/pkg/store/opensearch"
	"github.com/graphfuse/graphfuse/pkg/store/qdrant"
)

// Bundle holds the stores for the enabled modalities. Disabled
// modalities are nil. Hybrid is non-nil when vector and full-text
// search share one OpenSearch instance; the engine then runs the
// engine-native hybrid query instead of fusing the two client-side.
type Bundle struct {
	Vector domain.VectorStore
	Text   domain.FullTextStore
	Graph  domain.GraphStore
	Hybrid *opensearch.Store

	// SharedText is set when Text wraps the same backend store as
	// Vector. The vector write already carries the document body, and a
	// second full-document write would overwrite the embedding, so
	// writers and lifecycle calls skip Text when this is set.
	SharedText bool
}

// Open builds the bundle from configuration. dim is the embedding
// width, only consulted by the vector-capable backends.
func Open(ctx context.Context, cfg *config.Config, dim int) (*Bundle, error) {
	b := &Bundle{}

	if cfg.OpenSearchHybrid() {
		s, err := opensearch.New(ctx, cfg.OpenSearch, dim)
		if err != nil {
			return nil, err
		}
		b.Vector = s
		b.Text = opensearch.TextIndex{Store: s}
		b.Hybrid = s
		b.SharedText = true
	} else {
		if err := b.openVector(ctx, cfg, dim); err != nil {
			b.Close()
			return nil, err
		}
		if err := b.openText(ctx, cfg, dim); err != nil {
			b.Close()
			return nil, err
		}
	}

	if err := b.openGraph(ctx, cfg); err != nil {
		b.Close()
		return nil, err
	}

	log.Infof("stores ready: vector=%s search=%s graph=%s", cfg.VectorDB, cfg.SearchDB, cfg.GraphDB)
	return b, nil
}

func (b *Bundle) openVector(ctx context.Context, cfg *config.Config, dim int) error {
	switch cfg.VectorDB {
	case config.VectorNone:
	case config.VectorQdrant:
		s, err := qdrant.New(cfg.Qdrant, dim)
		if err != nil {
			return err
		}
		b.Vector = s
	case config.VectorNeo4j:
		s, err := neo4j.NewVectorStore(ctx, cfg.Neo4j, dim)
		if err != nil {
			return err
		}
		b.Vector = s
	case config.VectorElasticsearch:
		s, err := elastic.New(ctx, cfg.Elasticsearch, dim)
		if err != nil {
			return err
		}
		b.Vector = s
	case config.VectorOpenSearch:
		s, err := opensearch.New(ctx, cfg.OpenSearch, dim)
		if err != nil {
			return err
		}
		b.Vector = s
	default:
		return fmt.Errorf("%w: unknown vector_db %q", domain.ErrConfig, cfg.VectorDB)
	}
	return nil
}

func (b *Bundle) openText(ctx context.Context, cfg *config.Config, dim int) error {
	switch cfg.SearchDB {
	case config.SearchNone:
	case config.SearchBM25:
		s, err := bm25.NewStore(bm25.NewDocStore(cfg.BM25.PersistDir), cfg.BM25.PersistDir)
		if err != nil {
			return err
		}
		b.Text = s
	case config.SearchElasticsearch:
		// Reuse the vector store's index when it is the same backend.
		if es, ok := b.Vector.(*elastic.Store); ok {
			b.Text = elastic.TextIndex{Store: es}
			b.SharedText = true
			return nil
		}
		s, err := elastic.New(ctx, cfg.Elasticsearch, dim)
		if err != nil {
			return err
		}
		b.Text = elastic.TextIndex{Store: s}
	case config.SearchOpenSearch:
		s, err := opensearch.New(ctx, cfg.OpenSearch, dim)
		if err != nil {
			return err
		}
		b.Text = opensearch.TextIndex{Store: s}
	default:
		return fmt.Errorf("%w: unknown search_db %q", domain.ErrConfig, cfg.SearchDB)
	}
	return nil
}

func (b *Bundle) openGraph(ctx context.Context, cfg *config.Config) error {
	switch cfg.GraphDB {
	case config.GraphNone:
	case config.GraphNeo4j:
		s, err := neo4j.NewGraphStore(ctx, cfg.Neo4j)
		if err != nil {
			return err
		}
		b.Graph = s
	case config.GraphKuzu:
		schema, err := extract.ResolveSchema(cfg.SchemaName, cfg.Schemas)
		if err != nil {
			return err
		}
		if schema == nil {
			schema = extract.DefaultSchema()
		}
		s, err := kuzu.New(cfg.Kuzu, schema)
		if err != nil {
			return err
		}
		b.Graph = s
	default:
		return fmt.Errorf("%w: unknown graph_db %q", domain.ErrConfig, cfg.GraphDB)
	}
	return nil
}

// HasAny reports whether at least one enabled modality holds data.
func (b *Bundle) HasAny(ctx context.Context) (bool, error) {
	checks := []interface {
		HasIndex(context.Context) (bool, error)
	}{}
	if b.Vector != nil {
		checks = append(checks, b.Vector)
	}
	if b.Text != nil {
		checks = append(checks, b.Text)
	}
	if b.Graph != nil {
		checks = append(checks, b.Graph)
	}
	for _, c := range checks {
		has, err := c.HasIndex(ctx)
		if err != nil {
			return false, err
		}
		if has {
			return true, nil
		}
	}
	return false, nil
}

// Reset clears every enabled modality.
func (b *Bundle) Reset(ctx context.Context) error {
	if b.Vector != nil {
		if err := b.Vector.Reset(ctx); err != nil {
			return err
		}
	}
	if b.Text != nil && !b.SharedText {
		if err := b.Text.Reset(ctx); err != nil {
			return err
		}
	}
	if b.Graph != nil {
		if err := b.Graph.Reset(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Close releases every backend, keeping the first error.
func (b *Bundle) Close() error {
	var first error
	closeOne := func(c interface{ Close() error }) {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	if b.Vector != nil {
		closeOne(b.Vector)
	}
	if b.Text != nil && !b.SharedText {
		closeOne(b.Text)
	}
	if b.Graph != nil {
		closeOne(b.Graph)
	}
	return first
}
