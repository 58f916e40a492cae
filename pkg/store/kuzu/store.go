package kuzu

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/kuzudb/go-kuzu"

	"github.com/graphfuse/graphfuse/pkg/config"
	"github.com/graphfuse/graphfuse/pkg/domain"
	"github.com/graphfuse/graphfuse/pkg/log"
)

var relNamePattern = regexp.MustCompile(`^[A-Z][A-Z0-9_]*$`)

// Store is an embedded property graph. Relation vocabulary becomes one
// rel table per relation name; tables for relations outside the seed
// schema are created lazily as extraction discovers them.
type Store struct {
	mu         sync.Mutex
	db         *kuzu.Database
	conn       *kuzu.Connection
	allowReset bool
	relTables  map[string]bool
}

func New(cfg config.KuzuConfig, schema *domain.Schema) (*Store, error) {
	db, err := kuzu.OpenDatabase(cfg.DBPath, kuzu.DefaultSystemConfig())
	if err != nil {
		return nil, fmt.Errorf("%w: opening kuzu database: %v", domain.ErrBackendIO, err)
	}
	conn, err := kuzu.OpenConnection(db)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: opening kuzu connection: %v", domain.ErrBackendIO, err)
	}

	s := &Store{
		db:         db,
		conn:       conn,
		allowReset: cfg.AllowReset,
		relTables:  make(map[string]bool),
	}
	if err := s.ensureSchema(schema); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureSchema(schema *domain.Schema) error {
	ddl := []string{
		"CREATE NODE TABLE IF NOT EXISTS Entity(name STRING, label STRING, PRIMARY KEY(name))",
		"CREATE NODE TABLE IF NOT EXISTS Section(id STRING, text STRING, PRIMARY KEY(id))",
	}
	for _, stmt := range ddl {
		if result, err := s.conn.Query(stmt); err != nil {
			return fmt.Errorf("%w: creating node tables: %v", domain.ErrBackendIO, err)
		} else {
			result.Close()
		}
	}

	var relations []string
	if schema != nil {
		relations = schema.Relations
	}
	for _, rel := range relations {
		if err := s.ensureRelTable(rel); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) ensureRelTable(name string) error {
	if s.relTables[name] {
		return nil
	}
	if !relNamePattern.MatchString(name) {
		return fmt.Errorf("%w: invalid relation name %q", domain.ErrInvalidInput, name)
	}

	// Table names cannot be parameterized; the name is validated above.
	stmt := fmt.Sprintf(
		"CREATE REL TABLE IF NOT EXISTS %s(FROM Entity TO Entity, chunk_id STRING)", name)
	result, err := s.conn.Query(stmt)
	if err != nil {
		return fmt.Errorf("%w: creating rel table %s: %v", domain.ErrBackendIO, name, err)
	}
	result.Close()
	s.relTables[name] = true
	return nil
}

func (s *Store) execute(query string, params map[string]any) error {
	stmt, err := s.conn.Prepare(query)
	if err != nil {
		return fmt.Errorf("%w: preparing query: %v", domain.ErrBackendIO, err)
	}
	defer stmt.Close()

	result, err := s.conn.Execute(stmt, params)
	if err != nil {
		return fmt.Errorf("%w: executing query: %v", domain.ErrBackendIO, err)
	}
	result.Close()
	return nil
}

func (s *Store) UpsertTriples(ctx context.Context, triples []domain.Triple, chunks []domain.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range chunks {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := s.execute(
			"MERGE (s:Section {id: $id}) ON MATCH SET s.text = $text ON CREATE SET s.text = $text",
			map[string]any{"id": c.ID, "text": c.Content})
		if err != nil {
			return err
		}
	}

	for _, t := range triples {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.ensureRelTable(t.Relation); err != nil {
			log.Warnf("skipping triple with relation %q: %v", t.Relation, err)
			continue
		}

		err := s.execute(
			"MERGE (a:Entity {name: $name}) ON CREATE SET a.label = $label ON MATCH SET a.label = $label",
			map[string]any{"name": t.Subject.Name, "label": t.Subject.Label})
		if err != nil {
			return err
		}
		err = s.execute(
			"MERGE (b:Entity {name: $name}) ON CREATE SET b.label = $label ON MATCH SET b.label = $label",
			map[string]any{"name": t.Object.Name, "label": t.Object.Label})
		if err != nil {
			return err
		}

		chunkID := ""
		if len(t.ChunkIDs) > 0 {
			chunkID = t.ChunkIDs[0]
		}
		edge := fmt.Sprintf(
			"MATCH (a:Entity {name: $subject}), (b:Entity {name: $object}) "+
				"MERGE (a)-[r:%s]->(b) ON CREATE SET r.chunk_id = $chunk ON MATCH SET r.chunk_id = $chunk",
			t.Relation)
		err = s.execute(edge, map[string]any{
			"subject": t.Subject.Name,
			"object":  t.Object.Name,
			"chunk":   chunkID,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) Retrieve(ctx context.Context, query string, topK int) ([]domain.Chunk, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	words := queryWords(query)
	if len(words) == 0 {
		return nil, nil
	}

	seen := make(map[string]bool)
	var chunks []domain.Chunk

	for _, word := range words {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if len(chunks) >= topK {
			break
		}

		stmt, err := s.conn.Prepare(`
			MATCH (a:Entity)-[r]->(b:Entity)
			WHERE lower(a.name) CONTAINS $w OR lower(b.name) CONTAINS $w
			RETURN a.name, label(r), b.name, r.chunk_id
			LIMIT $k`)
		if err != nil {
			return nil, fmt.Errorf("%w: preparing retrieval: %v", domain.ErrBackendIO, err)
		}
		result, err := s.conn.Execute(stmt, map[string]any{"w": word, "k": int64(topK)})
		stmt.Close()
		if err != nil {
			return nil, fmt.Errorf("%w: graph retrieval: %v", domain.ErrBackendIO, err)
		}

		for result.HasNext() {
			tuple, err := result.Next()
			if err != nil {
				result.Close()
				return nil, fmt.Errorf("%w: reading graph results: %v", domain.ErrBackendIO, err)
			}
			subject := tupleString(tuple, 0)
			relation := tupleString(tuple, 1)
			object := tupleString(tuple, 2)
			chunkID := tupleString(tuple, 3)
			tuple.Close()

			key := subject + "|" + relation + "|" + object
			if seen[key] {
				continue
			}
			seen[key] = true

			content := fmt.Sprintf("%s -> %s -> %s", subject, relation, object)
			if text := s.sectionText(chunkID); text != "" {
				content += ": " + text
			}
			chunks = append(chunks, domain.Chunk{
				ID:      chunkID,
				Content: content,
				Score:   1.0 / float64(len(chunks)+1),
				Metadata: map[string]interface{}{
					"source":    "knowledge_graph",
					"file_name": "knowledge_graph",
				},
			})
			if len(chunks) >= topK {
				break
			}
		}
		result.Close()
	}
	return chunks, nil
}

func (s *Store) sectionText(chunkID string) string {
	if chunkID == "" {
		return ""
	}
	stmt, err := s.conn.Prepare("MATCH (s:Section {id: $id}) RETURN s.text")
	if err != nil {
		return ""
	}
	defer stmt.Close()

	result, err := s.conn.Execute(stmt, map[string]any{"id": chunkID})
	if err != nil {
		return ""
	}
	defer result.Close()

	if result.HasNext() {
		tuple, err := result.Next()
		if err != nil {
			return ""
		}
		defer tuple.Close()
		return tupleString(tuple, 0)
	}
	return ""
}

func (s *Store) HasIndex(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.conn.Query("MATCH (e:Entity) RETURN count(e)")
	if err != nil {
		return false, fmt.Errorf("%w: counting entities: %v", domain.ErrBackendIO, err)
	}
	defer result.Close()

	if result.HasNext() {
		tuple, err := result.Next()
		if err != nil {
			return false, fmt.Errorf("%w: reading count: %v", domain.ErrBackendIO, err)
		}
		defer tuple.Close()
		if v, err := tuple.GetValue(0); err == nil {
			if n, ok := v.(int64); ok {
				return n > 0, nil
			}
		}
	}
	return false, nil
}

// Reset wipes the embedded graph. Guarded by an explicit opt-in since
// the database lives on local disk and may be shared.
func (s *Store) Reset(ctx context.Context) error {
	if !s.allowReset {
		return fmt.Errorf("%w: kuzu reset is disabled, set KUZU_ALLOW_RESET=true to allow it", domain.ErrConfig)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.conn.Query("MATCH (n) DETACH DELETE n")
	if err != nil {
		return fmt.Errorf("%w: deleting graph: %v", domain.ErrBackendIO, err)
	}
	result.Close()
	return nil
}

func (s *Store) Close() error {
	s.conn.Close()
	s.db.Close()
	return nil
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

func tupleString(tuple *kuzu.FlatTuple, idx uint64) string {
	v, err := tuple.GetValue(idx)
	if err != nil {
		return ""
	}
	if str, ok := v.(string); ok {
		return str
	}
	return fmt.Sprint(v)
}
