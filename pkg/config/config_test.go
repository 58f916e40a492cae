package config

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graphfuse/graphfuse/pkg/domain"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, SourceFilesystem, cfg.DataSource)
	assert.Equal(t, VectorNone, cfg.VectorDB)
	assert.Equal(t, GraphNone, cfg.GraphDB)
	assert.Equal(t, SearchBM25, cfg.SearchDB)
	assert.Equal(t, "ollama", cfg.LLMProvider)
	assert.Equal(t, "ollama", cfg.EmbeddingProvider)
	assert.Equal(t, 1024, cfg.Chunking.ChunkSize)
	assert.Equal(t, 128, cfg.Chunking.ChunkOverlap)
	assert.Equal(t, 10, cfg.BM25.SimilarityTopK)
	assert.Equal(t, 5*time.Minute, cfg.Timeouts.ConvertTimeout)
	assert.Equal(t, 500*time.Millisecond, cfg.Timeouts.ConvertCheckInterval)
	assert.Equal(t, time.Hour, cfg.Timeouts.ExtractTimeout)
	assert.Equal(t, 2*time.Second, cfg.Timeouts.ExtractCheckInterval)
	assert.Equal(t, "default", cfg.SchemaName)
	assert.NotEmpty(t, cfg.Dedup.PreamblePrefixes)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("SEARCH_DB", "elasticsearch")
	t.Setenv("CHUNK_SIZE", "512")
	t.Setenv("DOCLING_TIMEOUT", "12.5")
	t.Setenv("ES_URL", "http://search:9200")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, SearchElasticsearch, cfg.SearchDB)
	assert.Equal(t, 512, cfg.Chunking.ChunkSize)
	assert.Equal(t, 12500*time.Millisecond, cfg.Timeouts.ConvertTimeout)
	assert.Equal(t, "http://search:9200", cfg.Elasticsearch.URL)
}

func TestLoadPrefixedEnvAlternate(t *testing.T) {
	t.Setenv("GRAPHFUSE_VECTOR_DB", "qdrant")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, VectorQdrant, cfg.VectorDB)
}

func TestLoadSourcePathsJSON(t *testing.T) {
	t.Setenv("SOURCE_PATHS", `["/data/docs", "/data/more"]`)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, []string{"/data/docs", "/data/more"}, cfg.SourcePaths)
}

func TestLoadSourcePathsCommaSeparated(t *testing.T) {
	t.Setenv("SOURCE_PATHS", "/data/a, /data/b")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, []string{"/data/a", "/data/b"}, cfg.SourcePaths)
}

func TestLoadSchemasJSON(t *testing.T) {
	t.Setenv("SCHEMAS", `[{"name":"tiny","entities":["Person"],"relations":["KNOWS"]}]`)
	t.Setenv("SCHEMA_NAME", "tiny")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Len(t, cfg.Schemas, 1)
	assert.Equal(t, "tiny", cfg.Schemas[0].Name)
}

func TestLoadRejectsBadSchemas(t *testing.T) {
	t.Setenv("SCHEMAS", "{not json")

	_, err := Load("")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrConfig))
}

func TestLoadEmbedDimOverride(t *testing.T) {
	t.Setenv("EMBED_DIM", "768")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 768, cfg.Neo4j.EmbedDim)
}

func TestEmbeddingProviderFollowsLLM(t *testing.T) {
	t.Setenv("LLM_PROVIDER", "openai")
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "openai", cfg.EmbeddingProvider)
}

func TestValidateAllModalitiesDisabled(t *testing.T) {
	t.Setenv("SEARCH_DB", "none")

	_, err := Load("")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrConfig))
}

func TestValidateAnthropicEmbedderRejected(t *testing.T) {
	t.Setenv("LLM_PROVIDER", "anthropic")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no embeddings API")
}

func TestValidateUnknownBackend(t *testing.T) {
	t.Setenv("VECTOR_DB", "pinecone")

	_, err := Load("")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrConfig))
}

func TestValidateOverlapBounds(t *testing.T) {
	t.Setenv("CHUNK_SIZE", "100")
	t.Setenv("CHUNK_OVERLAP", "100")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chunk_overlap")
}

func TestOpenSearchHybrid(t *testing.T) {
	c := &Config{VectorDB: VectorOpenSearch, SearchDB: SearchOpenSearch}
	assert.True(t, c.OpenSearchHybrid())

	c.SearchDB = SearchBM25
	assert.False(t, c.OpenSearchHybrid())
}
