// Package engine ties sources, conversion, enrichment, extraction and
// the storage bundle into the ingestion and retrieval surface the API
// and CLI sit on.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/graphfuse/graphfuse/pkg/chunker"
	"github.com/graphfuse/graphfuse/pkg/config"
	"github.com/graphfuse/graphfuse/pkg/convert"
	"github.com/graphfuse/graphfuse/pkg/domain"
	"github.com/graphfuse/graphfuse/pkg/enrich"
	"github.com/graphfuse/graphfuse/pkg/extract"
	"github.com/graphfuse/graphfuse/pkg/jobs"
	"github.com/graphfuse/graphfuse/pkg/log"
	"github.com/graphfuse/graphfuse/pkg/providers"
	"github.com/graphfuse/graphfuse/pkg/source"
	"github.com/graphfuse/graphfuse/pkg/store"
)

// Status is the health summary exposed by the API and CLI.
type Status struct {
	Ready             bool   `json:"ready"`
	VectorDB          string `json:"vector_db"`
	GraphDB           string `json:"graph_db"`
	SearchDB          string `json:"search_db"`
	LLMProvider       string `json:"llm_provider"`
	EmbeddingProvider string `json:"embedding_provider"`
	DataSource        string `json:"data_source"`
}

// Engine is the long-lived application core.
type Engine struct {
	cfg       *config.Config
	pair      *providers.Pair
	bundle    *store.Bundle
	composer  *Composer
	registry  *jobs.Registry
	converter *convert.Converter
	chunker   *chunker.Service
	enricher  *enrich.Enricher
	extractor domain.PathExtractor
}

// New builds the engine from configuration: model providers first, the
// embedding width from the embedder, then the stores sized to it.
func New(ctx context.Context, cfg *config.Config) (*Engine, error) {
	pair, err := providers.New(cfg)
	if err != nil {
		return nil, err
	}

	needsVectors := cfg.VectorDB != config.VectorNone
	dim := 0
	if needsVectors {
		if cfg.Neo4j.EmbedDim > 0 {
			dim = cfg.Neo4j.EmbedDim
			log.Infof("embedding dimension pinned to %d via EMBED_DIM", dim)
		} else {
			dim, err = providers.EmbeddingDim(ctx, embeddingModel(cfg), pair.Embedder)
			if err != nil {
				return nil, err
			}
			log.Infof("embedding dimension resolved to %d", dim)
		}
	}

	bundle, err := store.Open(ctx, cfg, dim)
	if err != nil {
		return nil, err
	}

	var extractor domain.PathExtractor
	if cfg.GraphDB != config.GraphNone {
		schema, err := extractionSchema(cfg)
		if err != nil {
			bundle.Close()
			return nil, err
		}
		extractor = extract.New(pair.Generator, schema, cfg.Chunking.MaxTripletsPerChunk)
	}

	var chunkEmbedder domain.Embedder
	if needsVectors {
		chunkEmbedder = pair.Embedder
	}

	e := &Engine{
		cfg:       cfg,
		pair:      pair,
		bundle:    bundle,
		composer:  NewComposer(cfg, bundle, pair.Embedder, pair.Generator),
		registry:  jobs.NewRegistry(),
		converter: convert.New(),
		chunker:   chunker.New(),
		enricher: enrich.New(pair.Generator, chunkEmbedder,
			cfg.Chunking.EnrichKeywords, cfg.Chunking.EnrichSummaries),
		extractor: extractor,
	}
	return e, nil
}

// Status reports readiness without failing: a store error just means
// not ready.
func (e *Engine) Status(ctx context.Context) Status {
	ready := e.composer.Ready(ctx) == nil
	return Status{
		Ready:             ready,
		VectorDB:          e.cfg.VectorDB,
		GraphDB:           e.cfg.GraphDB,
		SearchDB:          e.cfg.SearchDB,
		LLMProvider:       e.cfg.LLMProvider,
		EmbeddingProvider: e.cfg.EmbeddingProvider,
		DataSource:        e.cfg.DataSource,
	}
}

// Ingest enumerates the configured source and processes everything it
// returns. The work runs in the background; the returned id tracks it.
func (e *Engine) Ingest(ctx context.Context) (string, error) {
	src, err := e.configuredSource()
	if err != nil {
		return "", err
	}
	return e.start(ctx, src)
}

// IngestSource processes documents from a caller-built source, the
// entry point for per-request connector selection.
func (e *Engine) IngestSource(ctx context.Context, src domain.Source) (string, error) {
	return e.start(ctx, src)
}

// IngestPaths processes explicit filesystem paths, the upload flow's
// entry point.
func (e *Engine) IngestPaths(ctx context.Context, paths []string) (string, error) {
	if len(paths) == 0 {
		return "", fmt.Errorf("%w: no paths given", domain.ErrInvalidInput)
	}
	return e.start(ctx, source.NewFileSystem(paths))
}

// IngestText processes raw text under the given name.
func (e *Engine) IngestText(ctx context.Context, name, content string) (string, error) {
	if content == "" {
		return "", fmt.Errorf("%w: empty content", domain.ErrInvalidInput)
	}
	if name == "" {
		name = "pasted-text"
	}
	return e.start(ctx, source.NewText(map[string]string{name: content}))
}

func (e *Engine) start(ctx context.Context, src domain.Source) (string, error) {
	refs, err := src.Enumerate(ctx)
	if err != nil {
		return "", err
	}
	if len(refs) == 0 {
		return "", fmt.Errorf("%w: source contains no documents", domain.ErrInvalidInput)
	}

	jobID := e.registry.Create(len(refs))

	// The initial estimate is set before the run starts so the ingest
	// response can already carry it.
	var totalBytes int64
	hasComplex := false
	for _, ref := range refs {
		totalBytes += ref.Size
		if convert.IsComplex(ref.Name) {
			hasComplex = true
		}
	}
	_ = e.registry.Update(jobID, jobs.PatchETA(
		jobs.HumanDuration(jobs.InitialEstimate(totalBytes, len(refs), hasComplex))))

	pipeline := NewPipeline(src, e.converter, e.chunker, e.enricher, e.extractor,
		e.bundle, e.registry, e.cfg.Timeouts, e.cfg.Chunking, convert.IsComplex)

	go func() {
		// The request context ends with the HTTP response; the run
		// must not.
		runCtx := context.Background()
		if err := pipeline.Run(runCtx, jobID, refs); err != nil {
			log.Warnf("ingestion %s ended: %v", jobID, err)
			return
		}
		e.composer.MarkReady()
	}()

	return jobID, nil
}

// Search returns fused, deduplicated passages for the query.
func (e *Engine) Search(ctx context.Context, query string, topK int) ([]domain.SearchResult, error) {
	return e.composer.Search(ctx, query, topK)
}

// Query answers a question over the retrieved passages.
func (e *Engine) Query(ctx context.Context, question string, topK int) (domain.QueryAnswer, error) {
	return e.composer.Query(ctx, question, topK)
}

// ProcessingStatus returns the current snapshot of a job.
func (e *Engine) ProcessingStatus(id string) (jobs.Job, error) {
	return e.registry.Get(id)
}

// Cancel requests cooperative cancellation of a running job.
func (e *Engine) Cancel(id string) error {
	return e.registry.Cancel(id)
}

// Events streams job snapshots until the job finishes.
func (e *Engine) Events(ctx context.Context, id string, interval time.Duration) (<-chan jobs.Job, error) {
	return e.registry.Stream(ctx, id, interval)
}

// Reset clears every enabled store.
func (e *Engine) Reset(ctx context.Context) error {
	if err := e.bundle.Reset(ctx); err != nil {
		return err
	}
	e.composer.MarkReset()
	log.Info("all stores reset")
	return nil
}

func (e *Engine) Close() error {
	return e.bundle.Close()
}

func (e *Engine) configuredSource() (domain.Source, error) {
	switch e.cfg.DataSource {
	case config.SourceFilesystem:
		if len(e.cfg.SourcePaths) == 0 {
			return nil, fmt.Errorf("%w: SOURCE_PATHS is empty", domain.ErrConfig)
		}
		return source.NewFileSystem(e.cfg.SourcePaths), nil
	case config.SourceCMIS:
		return source.NewCMIS(e.cfg.CMIS), nil
	case config.SourceAlfresco:
		return source.NewAlfresco(e.cfg.Alfresco), nil
	case config.SourceUpload:
		return nil, fmt.Errorf("%w: the upload source has no enumerable backend, use the upload endpoint", domain.ErrConfig)
	default:
		return nil, fmt.Errorf("%w: unknown data_source %q", domain.ErrConfig, e.cfg.DataSource)
	}
}

// extractionSchema picks the schema guiding triple extraction. Kuzu
// tables come from the schema, so extraction against Kuzu is always
// schema-guided even when the configured name selects none.
func extractionSchema(cfg *config.Config) (*domain.Schema, error) {
	schema, err := extract.ResolveSchema(cfg.SchemaName, cfg.Schemas)
	if err != nil {
		return nil, err
	}
	if schema == nil && cfg.GraphDB == config.GraphKuzu {
		schema = extract.DefaultSchema()
	}
	return schema, nil
}

func embeddingModel(cfg *config.Config) string {
	switch cfg.EmbeddingProvider {
	case "ollama":
		return cfg.Ollama.EmbeddingModel
	case "openai":
		return cfg.OpenAI.EmbeddingModel
	case "azure_openai":
		return cfg.Azure.EmbeddingDeployment
	case "gemini":
		return cfg.Gemini.EmbeddingModel
	default:
		return ""
	}
}
