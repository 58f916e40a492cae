package neo4j

import (
	"context"
	"fmt"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/graphfuse/graphfuse/pkg/config"
	"github.com/graphfuse/graphfuse/pkg/domain"
)

// GraphStore keeps extracted triples as (:Entity)-[:RELATES_TO]->(:Entity)
// edges, with the originating chunk text on :Section nodes so graph hits
// can carry real passages back into retrieval.
type GraphStore struct {
	driver   neo4j.DriverWithContext
	database string
}

func NewGraphStore(ctx context.Context, cfg config.Neo4jConfig) (*GraphStore, error) {
	driver, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(cfg.Username, cfg.Password, ""))
	if err != nil {
		return nil, fmt.Errorf("%w: creating neo4j driver: %v", domain.ErrBackendIO, err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("%w: neo4j unreachable: %v", domain.ErrBackendIO, err)
	}
	return &GraphStore{driver: driver, database: cfg.Database}, nil
}

func (g *GraphStore) session(ctx context.Context) neo4j.SessionWithContext {
	return g.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: g.database})
}

func (g *GraphStore) UpsertTriples(ctx context.Context, triples []domain.Triple, chunks []domain.Chunk) error {
	if len(triples) == 0 {
		return nil
	}

	session := g.session(ctx)
	defer func() { _ = session.Close(ctx) }()

	sections := make([]map[string]any, 0, len(chunks))
	for _, c := range chunks {
		sections = append(sections, map[string]any{"id": c.ID, "text": c.Content})
	}
	if len(sections) > 0 {
		_, err := session.Run(ctx, `
			UNWIND $sections AS sec
			MERGE (s:Section {id: sec.id})
			SET s.text = sec.text`,
			map[string]any{"sections": sections})
		if err != nil {
			return fmt.Errorf("%w: storing sections: %v", domain.ErrBackendIO, err)
		}
	}

	rows := make([]map[string]any, 0, len(triples))
	for _, t := range triples {
		rows = append(rows, map[string]any{
			"subject":       t.Subject.Name,
			"subject_label": t.Subject.Label,
			"relation":      t.Relation,
			"object":        t.Object.Name,
			"object_label":  t.Object.Label,
			"chunk_ids":     t.ChunkIDs,
		})
	}

	_, err := session.Run(ctx, `
		UNWIND $rows AS row
		MERGE (a:Entity {name: row.subject})
		SET a.label = row.subject_label
		MERGE (b:Entity {name: row.object})
		SET b.label = row.object_label
		MERGE (a)-[r:RELATES_TO {type: row.relation}]->(b)
		SET r.chunk_ids = row.chunk_ids`,
		map[string]any{"rows": rows})
	if err != nil {
		return fmt.Errorf("%w: storing triples: %v", domain.ErrBackendIO, err)
	}
	return nil
}

// Retrieve matches entities against the query terms and returns one
// synthesized passage per edge, subject -> RELATION -> object, followed
// by a source section when one is linked.
func (g *GraphStore) Retrieve(ctx context.Context, query string, topK int) ([]domain.Chunk, error) {
	words := queryWords(query)
	if len(words) == 0 {
		return nil, nil
	}

	session := g.session(ctx)
	defer func() { _ = session.Close(ctx) }()

	result, err := session.Run(ctx, `
		MATCH (a:Entity)-[r:RELATES_TO]->(b:Entity)
		WHERE any(w IN $words WHERE toLower(a.name) CONTAINS w OR toLower(b.name) CONTAINS w)
		WITH a, r, b,
		     size([w IN $words WHERE toLower(a.name) CONTAINS w OR toLower(b.name) CONTAINS w]) AS matched
		ORDER BY matched DESC
		LIMIT $k
		OPTIONAL MATCH (s:Section)
		WHERE size(r.chunk_ids) > 0 AND s.id = r.chunk_ids[0]
		RETURN a.name AS subject, r.type AS relation, b.name AS object,
		       r.chunk_ids AS chunk_ids, s.text AS text, matched`,
		map[string]any{"words": words, "k": topK})
	if err != nil {
		return nil, fmt.Errorf("%w: graph retrieval: %v", domain.ErrBackendIO, err)
	}

	var chunks []domain.Chunk
	for result.Next(ctx) {
		rec := result.Record()
		subject := stringValue(rec, "subject")
		relation := stringValue(rec, "relation")
		object := stringValue(rec, "object")

		content := fmt.Sprintf("%s -> %s -> %s", subject, relation, object)
		if text := stringValue(rec, "text"); text != "" {
			content += ": " + text
		}

		matched := 1.0
		if v, ok := rec.Get("matched"); ok {
			if n, ok := v.(int64); ok {
				matched = float64(n)
			}
		}

		chunk := domain.Chunk{
			Content: content,
			Score:   matched / float64(len(words)),
			Metadata: map[string]interface{}{
				"source":    "knowledge_graph",
				"file_name": "knowledge_graph",
			},
		}
		if v, ok := rec.Get("chunk_ids"); ok {
			if ids, ok := v.([]any); ok && len(ids) > 0 {
				if id, ok := ids[0].(string); ok {
					chunk.ID = id
				}
			}
		}
		chunks = append(chunks, chunk)
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("%w: reading graph results: %v", domain.ErrBackendIO, err)
	}
	return chunks, nil
}

func (g *GraphStore) HasIndex(ctx context.Context) (bool, error) {
	session := g.session(ctx)
	defer func() { _ = session.Close(ctx) }()

	result, err := session.Run(ctx, "MATCH (e:Entity) RETURN count(e) > 0 AS populated", nil)
	if err != nil {
		return false, fmt.Errorf("%w: checking entities: %v", domain.ErrBackendIO, err)
	}
	if result.Next(ctx) {
		if v, ok := result.Record().Get("populated"); ok {
			b, _ := v.(bool)
			return b, nil
		}
	}
	return false, result.Err()
}

func (g *GraphStore) Reset(ctx context.Context) error {
	session := g.session(ctx)
	defer func() { _ = session.Close(ctx) }()

	_, err := session.Run(ctx, "MATCH (n) WHERE n:Entity OR n:Section DETACH DELETE n", nil)
	if err != nil {
		return fmt.Errorf("%w: deleting graph: %v", domain.ErrBackendIO, err)
	}
	return nil
}

func (g *GraphStore) Close() error {
	return g.driver.Close(context.Background())
}

func queryWords(query string) []string {
	fields := strings.Fields(strings.ToLower(query))
	words := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, ".,;:!?\"'()")
		if len(f) >= 3 {
			words = append(words, f)
		}
	}
	return words
}
