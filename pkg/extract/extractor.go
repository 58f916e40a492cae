package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/graphfuse/graphfuse/pkg/domain"
	"github.com/graphfuse/graphfuse/pkg/log"
)

const defaultMaxTriplets = 10

// Extractor pulls graph triples out of chunk text with an LLM. With a
// schema it runs guided extraction against the allowed entity and
// relation vocabularies; without one it extracts freely.
type Extractor struct {
	gen         domain.Generator
	schema      *domain.Schema
	maxTriplets int
	logger      interface{ Debug(string, ...any) }
}

func New(gen domain.Generator, schema *domain.Schema, maxTriplets int) *Extractor {
	if maxTriplets <= 0 {
		maxTriplets = defaultMaxTriplets
	}
	if schema != nil && schema.MaxTripletsPerChunk > 0 {
		maxTriplets = schema.MaxTripletsPerChunk
	}
	return &Extractor{
		gen:         gen,
		schema:      schema,
		maxTriplets: maxTriplets,
		logger:      log.WithModule("extract"),
	}
}

// Extract returns at most the configured number of triples for one
// chunk. Every triple carries the chunk's ID as provenance.
func (e *Extractor) Extract(ctx context.Context, chunk domain.Chunk) ([]domain.Triple, error) {
	resp, err := e.gen.Generate(ctx, e.prompt(chunk.Content), &domain.GenerationOptions{MaxTokens: 1024})
	if err != nil {
		return nil, fmt.Errorf("%w: triple extraction: %v", domain.ErrModelIO, err)
	}

	triples := parseTriples(resp)

	out := make([]domain.Triple, 0, len(triples))
	for _, t := range triples {
		if t.Subject.Name == "" || t.Relation == "" || t.Object.Name == "" {
			continue
		}
		t.Relation = normalizeRelation(t.Relation)
		if e.schema != nil && e.schema.Strict && !e.schema.Allows(t) {
			e.logger.Debug("dropping triple outside schema",
				"subject", t.Subject.Name, "relation", t.Relation, "object", t.Object.Name)
			continue
		}
		t.ChunkIDs = []string{chunk.ID}
		out = append(out, t)
		if len(out) == e.maxTriplets {
			break
		}
	}
	return out, nil
}

func (e *Extractor) prompt(text string) string {
	var b strings.Builder
	b.WriteString("Extract knowledge graph triples from the text below.\n")
	fmt.Fprintf(&b, "Return at most %d triples as a JSON array of objects with the keys ", e.maxTriplets)
	b.WriteString(`"subject", "subject_label", "relation", "object", "object_label".` + "\n")

	if e.schema != nil {
		fmt.Fprintf(&b, "Allowed entity labels: %s.\n", strings.Join(e.schema.Entities, ", "))
		fmt.Fprintf(&b, "Allowed relations: %s.\n", strings.Join(e.schema.Relations, ", "))
	} else {
		b.WriteString("Choose short UPPER_SNAKE_CASE labels and relations that fit the text.\n")
	}

	b.WriteString("Return only the JSON array.\n\nText:\n")
	b.WriteString(text)
	return b.String()
}

type rawTriple struct {
	Subject      string `json:"subject"`
	SubjectLabel string `json:"subject_label"`
	Relation     string `json:"relation"`
	Object       string `json:"object"`
	ObjectLabel  string `json:"object_label"`
}

var (
	fencePattern = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")
	arrowPattern = regexp.MustCompile(`(?m)^\s*(.+?)\s*->\s*([A-Z_]+)\s*->\s*(.+?)\s*$`)
)

// parseTriples accepts the requested JSON array, a fenced variant of
// it, or "subject -> RELATION -> object" lines as a last resort.
func parseTriples(resp string) []domain.Triple {
	resp = strings.TrimSpace(resp)
	if m := fencePattern.FindStringSubmatch(resp); m != nil {
		resp = strings.TrimSpace(m[1])
	}

	if start := strings.Index(resp, "["); start >= 0 {
		if end := strings.LastIndex(resp, "]"); end > start {
			var raw []rawTriple
			if err := json.Unmarshal([]byte(resp[start:end+1]), &raw); err == nil {
				out := make([]domain.Triple, 0, len(raw))
				for _, r := range raw {
					out = append(out, domain.Triple{
						Subject:  domain.Entity{Name: strings.TrimSpace(r.Subject), Label: normalizeLabel(r.SubjectLabel)},
						Relation: r.Relation,
						Object:   domain.Entity{Name: strings.TrimSpace(r.Object), Label: normalizeLabel(r.ObjectLabel)},
					})
				}
				return out
			}
		}
	}

	var out []domain.Triple
	for _, m := range arrowPattern.FindAllStringSubmatch(resp, -1) {
		out = append(out, domain.Triple{
			Subject:  domain.Entity{Name: strings.TrimSpace(m[1])},
			Relation: m[2],
			Object:   domain.Entity{Name: strings.TrimSpace(m[3])},
		})
	}
	return out
}

func normalizeRelation(rel string) string {
	rel = strings.TrimSpace(rel)
	rel = strings.ReplaceAll(rel, " ", "_")
	return strings.ToUpper(rel)
}

func normalizeLabel(label string) string {
	return strings.ToUpper(strings.TrimSpace(label))
}
