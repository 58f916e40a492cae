package neo4j

import (
	"context"
	"fmt"
	"regexp"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/graphfuse/graphfuse/pkg/config"
	"github.com/graphfuse/graphfuse/pkg/domain"
)

var indexNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// VectorStore keeps embedded chunks as :Chunk nodes behind a Neo4j
// vector index.
type VectorStore struct {
	driver    neo4j.DriverWithContext
	database  string
	indexName string
	dim       int
}

func NewVectorStore(ctx context.Context, cfg config.Neo4jConfig, dim int) (*VectorStore, error) {
	if !indexNamePattern.MatchString(cfg.VectorIndex) {
		return nil, fmt.Errorf("%w: invalid vector index name %q", domain.ErrConfig, cfg.VectorIndex)
	}

	driver, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(cfg.Username, cfg.Password, ""))
	if err != nil {
		return nil, fmt.Errorf("%w: creating neo4j driver: %v", domain.ErrBackendIO, err)
	}

	s := &VectorStore{
		driver:    driver,
		database:  cfg.Database,
		indexName: cfg.VectorIndex,
		dim:       dim,
	}
	if err := s.ensureIndex(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, err
	}
	return s, nil
}

func (s *VectorStore) session(ctx context.Context) neo4j.SessionWithContext {
	return s.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: s.database})
}

func (s *VectorStore) ensureIndex(ctx context.Context) error {
	session := s.session(ctx)
	defer func() { _ = session.Close(ctx) }()

	// Index names cannot be parameterized; the name is validated above.
	query := fmt.Sprintf(
		"CREATE VECTOR INDEX %s IF NOT EXISTS FOR (c:Chunk) ON (c.embedding) "+
			"OPTIONS {indexConfig: {`vector.dimensions`: $dim, `vector.similarity_function`: 'cosine'}}",
		s.indexName)

	if _, err := session.Run(ctx, query, map[string]any{"dim": s.dim}); err != nil {
		return fmt.Errorf("%w: creating vector index: %v", domain.ErrBackendIO, err)
	}
	return nil
}

func (s *VectorStore) Store(ctx context.Context, chunks []domain.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	rows := make([]map[string]any, 0, len(chunks))
	for _, c := range chunks {
		rows = append(rows, map[string]any{
			"id":        c.ID,
			"doc_id":    c.DocumentID,
			"content":   c.Content,
			"embedding": c.Vector,
			"source":    c.MetaString("source"),
			"file_name": c.MetaString("file_name"),
			"file_type": c.MetaString("file_type"),
		})
	}

	session := s.session(ctx)
	defer func() { _ = session.Close(ctx) }()

	_, err := session.Run(ctx, `
		UNWIND $rows AS row
		MERGE (c:Chunk {id: row.id})
		SET c.doc_id = row.doc_id,
		    c.content = row.content,
		    c.embedding = row.embedding,
		    c.source = row.source,
		    c.file_name = row.file_name,
		    c.file_type = row.file_type`,
		map[string]any{"rows": rows})
	if err != nil {
		return fmt.Errorf("%w: storing chunks: %v", domain.ErrBackendIO, err)
	}
	return nil
}

func (s *VectorStore) Search(ctx context.Context, vector []float64, topK int) ([]domain.Chunk, error) {
	session := s.session(ctx)
	defer func() { _ = session.Close(ctx) }()

	result, err := session.Run(ctx, `
		CALL db.index.vector.queryNodes($index, $k, $embedding)
		YIELD node, score
		RETURN node.id AS id, node.doc_id AS doc_id, node.content AS content,
		       node.source AS source, node.file_name AS file_name,
		       node.file_type AS file_type, score`,
		map[string]any{"index": s.indexName, "k": topK, "embedding": vector})
	if err != nil {
		return nil, fmt.Errorf("%w: vector query: %v", domain.ErrBackendIO, err)
	}

	var chunks []domain.Chunk
	for result.Next(ctx) {
		rec := result.Record()
		chunk := domain.Chunk{
			ID:         stringValue(rec, "id"),
			DocumentID: stringValue(rec, "doc_id"),
			Content:    stringValue(rec, "content"),
			Metadata: map[string]interface{}{
				"source":    stringValue(rec, "source"),
				"file_name": stringValue(rec, "file_name"),
				"file_type": stringValue(rec, "file_type"),
			},
		}
		if v, ok := rec.Get("score"); ok {
			if f, ok := v.(float64); ok {
				chunk.Score = f
			}
		}
		chunks = append(chunks, chunk)
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("%w: reading vector results: %v", domain.ErrBackendIO, err)
	}
	return chunks, nil
}

func (s *VectorStore) HasIndex(ctx context.Context) (bool, error) {
	session := s.session(ctx)
	defer func() { _ = session.Close(ctx) }()

	result, err := session.Run(ctx, "MATCH (c:Chunk) RETURN count(c) > 0 AS populated", nil)
	if err != nil {
		return false, fmt.Errorf("%w: checking chunks: %v", domain.ErrBackendIO, err)
	}
	if result.Next(ctx) {
		if v, ok := result.Record().Get("populated"); ok {
			b, _ := v.(bool)
			return b, nil
		}
	}
	return false, result.Err()
}

func (s *VectorStore) Reset(ctx context.Context) error {
	session := s.session(ctx)
	defer func() { _ = session.Close(ctx) }()

	if _, err := session.Run(ctx, "MATCH (c:Chunk) DETACH DELETE c", nil); err != nil {
		return fmt.Errorf("%w: deleting chunks: %v", domain.ErrBackendIO, err)
	}
	return nil
}

func (s *VectorStore) Close() error {
	return s.driver.Close(context.Background())
}

func stringValue(rec *neo4j.Record, key string) string {
	if v, ok := rec.Get(key); ok {
		if str, ok := v.(string); ok {
			return str
		}
	}
	return ""
}
