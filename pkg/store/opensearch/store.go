package opensearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	opensearch "github.com/opensearch-project/opensearch-go/v2"
	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"

	"github.com/graphfuse/graphfuse/pkg/config"
	"github.com/graphfuse/graphfuse/pkg/domain"
	"github.com/graphfuse/graphfuse/pkg/log"
)

// Store keeps chunks in a knn-enabled OpenSearch index. Beyond the
// separate vector and BM25 queries it exposes the engine-native hybrid
// query, normalized and combined by a search pipeline so callers get a
// single fused ranking without client-side merging.
type Store struct {
	client   *opensearch.Client
	index    string
	pipeline string
	dim      int
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

func New(ctx context.Context, cfg config.OpenSearchConfig, dim int) (*Store, error) {
	client, err := opensearch.NewClient(opensearch.Config{
		Addresses: []string{cfg.URL},
		Username:  cfg.Username,
		Password:  cfg.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: creating opensearch client: %v", domain.ErrBackendIO, err)
	}

	s := &Store{client: client, index: cfg.Index, pipeline: cfg.Pipeline, dim: dim}
	if err := s.ensureIndex(ctx); err != nil {
		return nil, err
	}
	if err := s.ensurePipeline(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureIndex(ctx context.Context) error {
	exists := opensearchapi.IndicesExistsRequest{Index: []string{s.index}}
	res, err := exists.Do(ctx, s.client)
	if err != nil {
		return fmt.Errorf("%w: checking index: %v", domain.ErrBackendIO, err)
	}
	res.Body.Close()
	if res.StatusCode == 200 {
		return nil
	}

	mapping := indexMapping(s.dim)

	create := opensearchapi.IndicesCreateRequest{
		Index: s.index,
		Body:  strings.NewReader(mapping),
	}
	createRes, err := create.Do(ctx, s.client)
	if err != nil {
		return fmt.Errorf("%w: creating index: %v", domain.ErrBackendIO, err)
	}
	defer createRes.Body.Close()
	if createRes.IsError() {
		return fmt.Errorf("%w: creating index: %s", domain.ErrBackendIO, bodyText(createRes.Body, createRes.Status()))
	}
	return nil
}

// indexMapping builds the index mapping. A search-only store has no
// embedding width, and the knn field and setting are left out so the
// mapping stays valid for full-text use.
func indexMapping(dim int) string {
	settings, embedding := "", ""
	if dim > 0 {
		settings = `"settings": {"index.knn": true},
		`
		embedding = fmt.Sprintf(`,
				"embedding": {
					"type": "knn_vector",
					"dimension": %d,
					"method": {"name": "hnsw", "space_type": "cosinesimil", "engine": "lucene"}
				}`, dim)
	}
	return fmt.Sprintf(`{
		%s"mappings": {
			"properties": {
				"chunk_id":  {"type": "keyword"},
				"doc_id":    {"type": "keyword"},
				"content":   {"type": "text"},
				"source":    {"type": "keyword"},
				"file_name": {"type": "keyword"},
				"file_type": {"type": "keyword"}%s
			}
		}
	}`, settings, embedding)
}

// ensurePipeline installs the normalization pipeline the hybrid query
// runs through. Overwriting an existing pipeline of the same name is
// harmless.
func (s *Store) ensurePipeline(ctx context.Context) error {
	body := `{
		"description": "normalize and combine hybrid sub-query scores",
		"phase_results_processors": [{
			"normalization-processor": {
				"normalization": {"technique": "min_max"},
				"combination": {"technique": "harmonic_mean"}
			}
		}]
	}`

	req, err := http.NewRequestWithContext(ctx, http.MethodPut,
		"/_search/pipeline/"+s.pipeline, strings.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: building pipeline request: %v", domain.ErrBackendIO, err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := s.client.Perform(req)
	if err != nil {
		return fmt.Errorf("%w: installing search pipeline: %v", domain.ErrBackendIO, err)
	}
	defer res.Body.Close()
	if res.StatusCode >= 300 {
		return fmt.Errorf("%w: installing search pipeline: %s", domain.ErrBackendIO, bodyText(res.Body, res.Status))
	}
	log.Debugf("opensearch search pipeline %s ready", s.pipeline)
	return nil
}

func (s *Store) Store(ctx context.Context, chunks []domain.Chunk) error {
	return s.indexChunks(ctx, chunks, true)
}

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

		req := opensearchapi.IndexRequest{
			Index:      s.index,
			DocumentID: c.ID,
			Body:       bytes.NewReader(body),
			Refresh:    "true",
		}
		res, err := req.Do(ctx, s.client)
		if err != nil {
			return fmt.Errorf("%w: indexing chunk %s: %v", domain.ErrBackendIO, c.ID, err)
		}
		if res.IsError() {
			msg := bodyText(res.Body, res.Status())
			res.Body.Close()
			return fmt.Errorf("%w: indexing chunk %s: %s", domain.ErrBackendIO, c.ID, msg)
		}
		res.Body.Close()
	}
	return nil
}

func (s *Store) Search(ctx context.Context, vector []float64, topK int) ([]domain.Chunk, error) {
	body := map[string]any{
		"query": map[string]any{
			"knn": map[string]any{
				"embedding": map[string]any{"vector": vector, "k": topK},
			},
		},
		"size": topK,
	}
	return s.runSearch(ctx, body, "")
}

func (s *Store) SearchText(ctx context.Context, query string, topK int) ([]domain.Chunk, error) {
	body := map[string]any{
		"query": map[string]any{
			"match": map[string]any{"content": query},
		},
		"size": topK,
	}
	return s.runSearch(ctx, body, "")
}

// SearchHybrid runs both sub-queries server-side through the search
// pipeline and returns the combined ranking.
func (s *Store) SearchHybrid(ctx context.Context, query string, vector []float64, topK int) ([]domain.Chunk, error) {
	body := map[string]any{
		"query": map[string]any{
			"hybrid": map[string]any{
				"queries": []any{
					map[string]any{"match": map[string]any{"content": map[string]any{"query": query}}},
					map[string]any{"knn": map[string]any{"embedding": map[string]any{"vector": vector, "k": topK}}},
				},
			},
		},
		"size": topK,
	}
	return s.runSearch(ctx, body, s.pipeline)
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			Score  float64     `json:"_score"`
			Source storedChunk `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

func (s *Store) runSearch(ctx context.Context, body map[string]any, pipeline string) ([]domain.Chunk, error) {
	encoded, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("%w: encoding query: %v", domain.ErrBackendIO, err)
	}

	req := opensearchapi.SearchRequest{
		Index: []string{s.index},
		Body:  bytes.NewReader(encoded),
	}
	if pipeline != "" {
		req.SearchPipeline = pipeline
	}

	res, err := req.Do(ctx, s.client)
	if err != nil {
		return nil, fmt.Errorf("%w: opensearch search: %v", domain.ErrBackendIO, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, fmt.Errorf("%w: opensearch search: %s", domain.ErrBackendIO, bodyText(res.Body, res.Status()))
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
	req := opensearchapi.CountRequest{Index: []string{s.index}}
	res, err := req.Do(ctx, s.client)
	if err != nil {
		return false, fmt.Errorf("%w: counting documents: %v", domain.ErrBackendIO, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		if res.StatusCode == 404 {
			return false, nil
		}
		return false, fmt.Errorf("%w: counting documents: %s", domain.ErrBackendIO, bodyText(res.Body, res.Status()))
	}

	var parsed struct {
		Count int `json:"count"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return false, fmt.Errorf("%w: decoding count: %v", domain.ErrBackendIO, err)
	}
	return parsed.Count > 0, nil
}

func (s *Store) Reset(ctx context.Context) error {
	req := opensearchapi.IndicesDeleteRequest{
		Index:             []string{s.index},
		IgnoreUnavailable: boolPtr(true),
	}
	res, err := req.Do(ctx, s.client)
	if err != nil {
		return fmt.Errorf("%w: deleting index: %v", domain.ErrBackendIO, err)
	}
	res.Body.Close()
	return s.ensureIndex(ctx)
}

func (s *Store) Close() error {
	return nil
}

// TextIndex is the full-text view over the shared index.
type TextIndex struct {
	*Store
}

func (t TextIndex) Search(ctx context.Context, query string, topK int) ([]domain.Chunk, error) {
	return t.SearchText(ctx, query, topK)
}

func bodyText(r io.Reader, fallback string) string {
	data, err := io.ReadAll(io.LimitReader(r, 512))
	if err != nil || len(data) == 0 {
		return fallback
	}
	return string(data)
}

func boolPtr(b bool) *bool {
	return &b
}
