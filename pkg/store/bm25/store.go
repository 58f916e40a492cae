package bm25

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/blevesearch/bleve/v2"

	"github.com/graphfuse/graphfuse/pkg/domain"
)

// indexedChunk is the shape bleve analyzes. Scores come from bleve's
// BM25-style relevance ranking; bodies come from the docstore.
type indexedChunk struct {
	Content string `json:"content"`
}

// Store is a local full-text index over the shared docstore.
type Store struct {
	mu    sync.Mutex
	index bleve.Index
	docs  *DocStore
	dir   string
}

// NewStore opens or creates the index. An empty dir keeps everything
// in memory, which tests rely on.
func NewStore(docs *DocStore, dir string) (*Store, error) {
	s := &Store{docs: docs, dir: dir}
	if err := s.open(); err != nil {
		return nil, err
	}
	if err := docs.Load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) indexPath() string {
	return filepath.Join(s.dir, "bleve")
}

func (s *Store) open() error {
	if s.dir == "" {
		index, err := bleve.NewMemOnly(bleve.NewIndexMapping())
		if err != nil {
			return fmt.Errorf("%w: creating in-memory index: %v", domain.ErrBackendIO, err)
		}
		s.index = index
		return nil
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrBackendIO, err)
	}
	index, err := bleve.Open(s.indexPath())
	if err == bleve.ErrorIndexPathDoesNotExist {
		index, err = bleve.New(s.indexPath(), bleve.NewIndexMapping())
	}
	if err != nil {
		return fmt.Errorf("%w: opening index: %v", domain.ErrBackendIO, err)
	}
	s.index = index
	return nil
}

func (s *Store) Index(ctx context.Context, chunks []domain.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	batch := s.index.NewBatch()
	for _, c := range chunks {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := batch.Index(c.ID, indexedChunk{Content: c.Content}); err != nil {
			return fmt.Errorf("%w: indexing chunk %s: %v", domain.ErrBackendIO, c.ID, err)
		}
	}
	if err := s.index.Batch(batch); err != nil {
		return fmt.Errorf("%w: committing batch: %v", domain.ErrBackendIO, err)
	}

	s.docs.Add(chunks)
	return s.docs.Persist()
}

func (s *Store) Search(ctx context.Context, query string, topK int) ([]domain.Chunk, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	matchQuery := bleve.NewMatchQuery(query)
	req := bleve.NewSearchRequestOptions(matchQuery, topK, 0, false)

	res, err := s.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("%w: bm25 search: %v", domain.ErrBackendIO, err)
	}

	chunks := make([]domain.Chunk, 0, len(res.Hits))
	for _, hit := range res.Hits {
		chunk, ok := s.docs.Get(hit.ID)
		if !ok {
			continue
		}
		chunk.Score = hit.Score
		chunks = append(chunks, chunk)
	}
	return chunks, nil
}

func (s *Store) HasIndex(ctx context.Context) (bool, error) {
	return s.docs.Len() > 0, nil
}

// Reset drops both the index and the docstore, recreating an empty
// index in place.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.index.Close(); err != nil {
		return fmt.Errorf("%w: closing index: %v", domain.ErrBackendIO, err)
	}
	if s.dir != "" {
		if err := os.RemoveAll(s.indexPath()); err != nil {
			return fmt.Errorf("%w: removing index: %v", domain.ErrBackendIO, err)
		}
	}
	s.docs.Clear()
	return s.open()
}

func (s *Store) Close() error {
	return s.index.Close()
}
