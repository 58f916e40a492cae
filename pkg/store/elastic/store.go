package elastic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/graphfuse/graphfuse/pkg/config"
	"github.com/graphfuse/graphfuse/pkg/domain"
)

// Store backs both dense vector and full-text retrieval with a single
// Elasticsearch index: a dense_vector field for knn and an analyzed text
// field for BM25 match queries.
type Store struct {
	client *elasticsearch.Client
	index  string
	dim    int
}

type storedChunk struct {
	ChunkID    string    `json:"chunk_id"`
	DocumentID string    `json:"doc_id"`
	Content    string    `json:"content"`
	Embedding  []float32 `json:"embedding,omitempty"`
	Source     string    `json:"source,omitempty"`
	FileName   string    `json:"file_name,omitempty"`
	FileType   string    `json:"file_type,omitempty"`
}

func New(ctx context.Context, cfg config.ESConfig, dim int) (*Store, error) {
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{cfg.URL},
		Username:  cfg.Username,
		Password:  cfg.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: creating elasticsearch client: %v", domain.ErrBackendIO, err)
	}

	s := &Store{client: client, index: cfg.Index, dim: dim}
	if err := s.ensureIndex(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureIndex(ctx context.Context) error {
	res, err := s.client.Indices.Exists([]string{s.index},
		s.client.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("%w: checking index: %v", domain.ErrBackendIO, err)
	}
	defer res.Body.Close()
	if res.StatusCode == 200 {
		return nil
	}

	mapping := indexMapping(s.dim)

	createRes, err := s.client.Indices.Create(s.index,
		s.client.Indices.Create.WithContext(ctx),
		s.client.Indices.Create.WithBody(strings.NewReader(mapping)))
	if err != nil {
		return fmt.Errorf("%w: creating index: %v", domain.ErrBackendIO, err)
	}
	defer createRes.Body.Close()
	if createRes.IsError() {
		return fmt.Errorf("%w: creating index: %s", domain.ErrBackendIO, responseError(createRes))
	}
	return nil
}

// indexMapping builds the index mapping. A search-only store has no
// embedding width, and the dense_vector field is left out so the
// mapping stays valid for full-text use.
func indexMapping(dim int) string {
	embedding := ""
	if dim > 0 {
		embedding = fmt.Sprintf(`,
				"embedding": {"type": "dense_vector", "dims": %d, "index": true, "similarity": "cosine"}`, dim)
	}
	return fmt.Sprintf(`{
		"mappings": {
			"properties": {
				"chunk_id":  {"type": "keyword"},
				"doc_id":    {"type": "keyword"},
				"content":   {"type": "text"},
				"source":    {"type": "keyword"},
				"file_name": {"type": "keyword"},
				"file_type": {"type": "keyword"}%s
			}
		}
	}`, embedding)
}

// Store writes chunks with their embeddings, serving the vector side.
func (s *Store) Store(ctx context.Context, chunks []domain.Chunk) error {
	return s.indexChunks(ctx, chunks, true)
}

// Index writes chunks without embeddings, serving the full-text side.
// Each write replaces the whole document, so when the same index also
// carries vectors the caller must write through Store alone.
func (s *Store) Index(ctx context.Context, chunks []domain.Chunk) error {
	return s.indexChunks(ctx, chunks, false)
}

func (s *Store) indexChunks(ctx context.Context, chunks []domain.Chunk, withVectors bool) error {
	for _, c := range chunks {
		doc := storedChunk{
			ChunkID:    c.ID,
			DocumentID: c.DocumentID,
			Content:    c.Content,
			Source:     c.MetaString("source"),
			FileName:   c.MetaString("file_name"),
			FileType:   c.MetaString("file_type"),
		}
		if withVectors && len(c.Vector) > 0 {
			doc.Embedding = make([]float32, len(c.Vector))
			for i, v := range c.Vector {
				doc.Embedding[i] = float32(v)
			}
		}

		body, err := json.Marshal(doc)
		if err != nil {
			return fmt.Errorf("%w: encoding chunk: %v", domain.ErrBackendIO, err)
		}

		res, err := s.client.Index(s.index, bytes.NewReader(body),
			s.client.Index.WithContext(ctx),
			s.client.Index.WithDocumentID(c.ID),
			s.client.Index.WithRefresh("true"))
		if err != nil {
			return fmt.Errorf("%w: indexing chunk %s: %v", domain.ErrBackendIO, c.ID, err)
		}
		if res.IsError() {
			msg := responseError(res)
			res.Body.Close()
			return fmt.Errorf("%w: indexing chunk %s: %s", domain.ErrBackendIO, c.ID, msg)
		}
		res.Body.Close()
	}
	return nil
}

// Search runs a knn query against the dense_vector field.
func (s *Store) Search(ctx context.Context, vector []float64, topK int) ([]domain.Chunk, error) {
	query := map[string]any{
		"knn": map[string]any{
			"field":          "embedding",
			"query_vector":   vector,
			"k":              topK,
			"num_candidates": topK * 10,
		},
		"size": topK,
	}
	return s.runSearch(ctx, query)
}

// SearchText runs a BM25 match query against the content field.
func (s *Store) SearchText(ctx context.Context, query string, topK int) ([]domain.Chunk, error) {
	body := map[string]any{
		"query": map[string]any{
			"match": map[string]any{"content": query},
		},
		"size": topK,
	}
	return s.runSearch(ctx, body)
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			Score  float64     `json:"_score"`
			Source storedChunk `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

func (s *Store) runSearch(ctx context.Context, body map[string]any) ([]domain.Chunk, error) {
	encoded, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("%w: encoding query: %v", domain.ErrBackendIO, err)
	}

	res, err := s.client.Search(
		s.client.Search.WithContext(ctx),
		s.client.Search.WithIndex(s.index),
		s.client.Search.WithBody(bytes.NewReader(encoded)))
	if err != nil {
		return nil, fmt.Errorf("%w: elasticsearch search: %v", domain.ErrBackendIO, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, fmt.Errorf("%w: elasticsearch search: %s", domain.ErrBackendIO, responseError(res))
	}

	var parsed searchResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("%w: decoding search response: %v", domain.ErrBackendIO, err)
	}

	chunks := make([]domain.Chunk, 0, len(parsed.Hits.Hits))
	for _, hit := range parsed.Hits.Hits {
		chunks = append(chunks, domain.Chunk{
			ID:         hit.Source.ChunkID,
			DocumentID: hit.Source.DocumentID,
			Content:    hit.Source.Content,
			Score:      hit.Score,
			Metadata: map[string]interface{}{
				"source":    hit.Source.Source,
				"file_name": hit.Source.FileName,
				"file_type": hit.Source.FileType,
			},
		})
	}
	return chunks, nil
}

func (s *Store) HasIndex(ctx context.Context) (bool, error) {
	res, err := s.client.Count(
		s.client.Count.WithContext(ctx),
		s.client.Count.WithIndex(s.index))
	if err != nil {
		return false, fmt.Errorf("%w: counting documents: %v", domain.ErrBackendIO, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		// A missing index is just an empty store.
		if res.StatusCode == 404 {
			return false, nil
		}
		return false, fmt.Errorf("%w: counting documents: %s", domain.ErrBackendIO, responseError(res))
	}

	var parsed struct {
		Count int `json:"count"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return false, fmt.Errorf("%w: decoding count: %v", domain.ErrBackendIO, err)
	}
	return parsed.Count > 0, nil
}

// Reset deletes and recreates the index.
func (s *Store) Reset(ctx context.Context) error {
	res, err := s.client.Indices.Delete([]string{s.index},
		s.client.Indices.Delete.WithContext(ctx),
		s.client.Indices.Delete.WithIgnoreUnavailable(true))
	if err != nil {
		return fmt.Errorf("%w: deleting index: %v", domain.ErrBackendIO, err)
	}
	res.Body.Close()
	return s.ensureIndex(ctx)
}

func (s *Store) Close() error {
	return nil
}

// TextIndex is the full-text view over the shared index. Its Search
// shadows the vector one with the match-query variant.
type TextIndex struct {
	*Store
}

func (t TextIndex) Search(ctx context.Context, query string, topK int) ([]domain.Chunk, error) {
	return t.SearchText(ctx, query, topK)
}

func responseError(res *esapi.Response) string {
	data, err := io.ReadAll(io.LimitReader(res.Body, 512))
	if err != nil || len(data) == 0 {
		return res.Status()
	}
	return string(data)
}
