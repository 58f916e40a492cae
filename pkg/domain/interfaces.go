package domain

import "context"

// Embedder turns text into a dense vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

// Generator produces text from a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string, opts *GenerationOptions) (string, error)
}

// Chunker splits canonical text into ordered passages.
type Chunker interface {
	Split(text string, size, overlap int) ([]string, error)
}

// Source enumerates and fetches documents from one connector
// (filesystem, CMIS, Alfresco, uploaded content).
type Source interface {
	Enumerate(ctx context.Context) ([]DocumentRef, error)
	Fetch(ctx context.Context, ref DocumentRef) ([]byte, error)
}

// Converter produces canonical text from raw document bytes.
type Converter interface {
	Supported(name string) bool
	Convert(ctx context.Context, ref DocumentRef, data []byte) (Document, error)
}

// VectorStore persists embedded chunks and answers nearest-neighbour
// queries.
type VectorStore interface {
	Store(ctx context.Context, chunks []Chunk) error
	Search(ctx context.Context, vector []float64, topK int) ([]Chunk, error)
	HasIndex(ctx context.Context) (bool, error)
	Reset(ctx context.Context) error
	Close() error
}

// FullTextStore persists chunk text and answers keyword queries with
// BM25-style relevance scores.
type FullTextStore interface {
	Index(ctx context.Context, chunks []Chunk) error
	Search(ctx context.Context, query string, topK int) ([]Chunk, error)
	HasIndex(ctx context.Context) (bool, error)
	Reset(ctx context.Context) error
	Close() error
}

// GraphStore persists extracted triples and answers entity-oriented
// queries with synthesized passages.
type GraphStore interface {
	UpsertTriples(ctx context.Context, triples []Triple, chunks []Chunk) error
	Retrieve(ctx context.Context, query string, topK int) ([]Chunk, error)
	HasIndex(ctx context.Context) (bool, error)
	Reset(ctx context.Context) error
	Close() error
}

// Retriever is one retrieval channel feeding rank fusion.
type Retriever interface {
	Name() string
	Retrieve(ctx context.Context, query string, topK int) ([]Chunk, error)
}

// PathExtractor pulls graph triples out of chunk text.
type PathExtractor interface {
	Extract(ctx context.Context, chunk Chunk) ([]Triple, error)
}
