package domain

import "time"

// Document is the canonical text form of one ingested item, plus the
// source metadata that travels with every chunk derived from it.
type Document struct {
	ID               string                 `json:"id"`
	Content          string                 `json:"content"`
	Source           string                 `json:"source"`
	FileName         string                 `json:"file_name"`
	FileType         string                 `json:"file_type"`
	ConversionMethod string                 `json:"conversion_method"`
	Created          time.Time              `json:"created"`
	Metadata         map[string]interface{} `json:"metadata,omitempty"`
}

// Chunk is one retrievable passage. Position is the zero-based order of
// the chunk within its document.
type Chunk struct {
	ID         string                 `json:"id"`
	DocumentID string                 `json:"document_id"`
	Position   int                    `json:"position"`
	Content    string                 `json:"content"`
	Vector     []float64              `json:"vector,omitempty"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
	Score      float64                `json:"score,omitempty"`
}

// MetaString reads a string metadata field, tolerating absence.
func (c Chunk) MetaString(key string) string {
	if c.Metadata == nil {
		return ""
	}
	if s, ok := c.Metadata[key].(string); ok {
		return s
	}
	return ""
}

// Entity is a graph node extracted from text.
type Entity struct {
	Name  string `json:"name"`
	Label string `json:"label"`
}

// Triple is one extracted relationship with provenance back to the
// chunks it was observed in.
type Triple struct {
	Subject  Entity   `json:"subject"`
	Relation string   `json:"relation"`
	Object   Entity   `json:"object"`
	ChunkIDs []string `json:"chunk_ids,omitempty"`
}

// ValidationTriple constrains which (subject label, relation, object
// label) combinations a guided extraction may emit.
type ValidationTriple struct {
	Subject  string `json:"subject"`
	Relation string `json:"relation"`
	Object   string `json:"object"`
}

// Schema guides graph extraction. Strict drops triples that fail
// validation; otherwise they are kept with best-effort labels.
type Schema struct {
	Name                string             `json:"name"`
	Entities            []string           `json:"entities"`
	Relations           []string           `json:"relations"`
	Validation          []ValidationTriple `json:"validation_schema,omitempty"`
	Strict              bool               `json:"strict"`
	MaxTripletsPerChunk int                `json:"max_triplets_per_chunk"`
}

// Allows reports whether the triple is admissible under the schema's
// validation list. An empty validation list admits everything.
func (s *Schema) Allows(t Triple) bool {
	if len(s.Validation) == 0 {
		return true
	}
	for _, v := range s.Validation {
		if v.Subject == t.Subject.Label && v.Relation == t.Relation && v.Object == t.Object.Label {
			return true
		}
	}
	return false
}

// SearchResult is one ranked passage returned to the caller.
type SearchResult struct {
	Rank     int     `json:"rank"`
	Content  string  `json:"content"`
	Score    float64 `json:"score"`
	Source   string  `json:"source"`
	FileName string  `json:"file_name"`
	FileType string  `json:"file_type"`
}

// QueryAnswer is the generated answer for a question, with the passages
// it was grounded on.
type QueryAnswer struct {
	Answer  string         `json:"answer"`
	Sources []SearchResult `json:"sources,omitempty"`
	Elapsed float64        `json:"elapsed_seconds"`
}

// GenerationOptions tune a single LLM call.
type GenerationOptions struct {
	Temperature float64
	MaxTokens   int
}

// DocumentRef identifies one document inside a source. Callers treat it
// as opaque and pass it back to Fetch unchanged.
type DocumentRef struct {
	ID   string
	Name string
	Path string
	Mime string
	Size int64
}
