package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/graphfuse/graphfuse/pkg/domain"
)

// Backend and source kind enumerations. "none" disables a modality.
const (
	SourceFilesystem = "filesystem"
	SourceCMIS       = "cmis"
	SourceAlfresco   = "alfresco"
	SourceUpload     = "upload"

	VectorNone          = "none"
	VectorQdrant        = "qdrant"
	VectorNeo4j         = "neo4j"
	VectorElasticsearch = "elasticsearch"
	VectorOpenSearch    = "opensearch"

	GraphNone  = "none"
	GraphNeo4j = "neo4j"
	GraphKuzu  = "kuzu"

	SearchNone          = "none"
	SearchBM25          = "bm25"
	SearchElasticsearch = "elasticsearch"
	SearchOpenSearch    = "opensearch"
)

type Config struct {
	Server ServerConfig `mapstructure:"server"`

	DataSource  string   `mapstructure:"data_source"`
	SourcePaths []string `mapstructure:"source_paths"`

	VectorDB string `mapstructure:"vector_db"`
	GraphDB  string `mapstructure:"graph_db"`
	SearchDB string `mapstructure:"search_db"`

	LLMProvider       string `mapstructure:"llm_provider"`
	EmbeddingProvider string `mapstructure:"embedding_provider"`

	Chunking ChunkingConfig `mapstructure:"chunking"`
	BM25     BM25Config     `mapstructure:"bm25"`
	Timeouts TimeoutConfig  `mapstructure:"timeouts"`
	Dedup    DedupConfig    `mapstructure:"dedup"`

	SchemaName string          `mapstructure:"schema_name"`
	Schemas    []domain.Schema `mapstructure:"-"`

	Neo4j         Neo4jConfig      `mapstructure:"neo4j"`
	Qdrant        QdrantConfig     `mapstructure:"qdrant"`
	Elasticsearch ESConfig         `mapstructure:"elasticsearch"`
	OpenSearch    OpenSearchConfig `mapstructure:"opensearch"`
	Kuzu          KuzuConfig       `mapstructure:"kuzu"`

	CMIS     CMISConfig     `mapstructure:"cmis"`
	Alfresco AlfrescoConfig `mapstructure:"alfresco"`

	Ollama    OllamaConfig    `mapstructure:"ollama"`
	OpenAI    OpenAIConfig    `mapstructure:"openai"`
	Azure     AzureConfig     `mapstructure:"azure_openai"`
	Gemini    GeminiConfig    `mapstructure:"gemini"`
	Anthropic AnthropicConfig `mapstructure:"anthropic"`
}

type ServerConfig struct {
	Host        string   `mapstructure:"host"`
	Port        int      `mapstructure:"port"`
	CORSOrigins []string `mapstructure:"cors_origins"`
}

type ChunkingConfig struct {
	ChunkSize           int  `mapstructure:"chunk_size"`
	ChunkOverlap        int  `mapstructure:"chunk_overlap"`
	MaxTripletsPerChunk int  `mapstructure:"max_triplets_per_chunk"`
	EnrichKeywords      bool `mapstructure:"enrich_keywords"`
	EnrichSummaries     bool `mapstructure:"enrich_summaries"`
}

type BM25Config struct {
	SimilarityTopK int    `mapstructure:"similarity_top_k"`
	PersistDir     string `mapstructure:"persist_dir"`
}

// TimeoutConfig carries the conversion and extraction budgets. The env
// surface expresses these in seconds.
type TimeoutConfig struct {
	ConvertTimeout       time.Duration `mapstructure:"-"`
	ConvertCheckInterval time.Duration `mapstructure:"-"`
	ExtractTimeout       time.Duration `mapstructure:"-"`
	ExtractCheckInterval time.Duration `mapstructure:"-"`
}

// DedupConfig holds the replaceable phrase lists and date-recovery
// rules used by result deduplication.
type DedupConfig struct {
	PreamblePrefixes []string `mapstructure:"preamble_prefixes"`
	ClosingPhrases   []string `mapstructure:"closing_phrases"`
	DatePatterns     []string `mapstructure:"date_patterns"`
}

type Neo4jConfig struct {
	URI         string `mapstructure:"uri"`
	Username    string `mapstructure:"username"`
	Password    string `mapstructure:"password"`
	Database    string `mapstructure:"database"`
	VectorIndex string `mapstructure:"vector_index"`
	EmbedDim    int    `mapstructure:"embed_dim"`
}

type QdrantConfig struct {
	URL        string `mapstructure:"url"`
	Collection string `mapstructure:"collection"`
}

type ESConfig struct {
	URL      string `mapstructure:"url"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Index    string `mapstructure:"index"`
}

type OpenSearchConfig struct {
	URL      string `mapstructure:"url"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Index    string `mapstructure:"index"`
	Pipeline string `mapstructure:"pipeline"`
}

type KuzuConfig struct {
	DBPath     string `mapstructure:"db_path"`
	AllowReset bool   `mapstructure:"allow_reset"`
}

type CMISConfig struct {
	URL        string `mapstructure:"url"`
	Username   string `mapstructure:"username"`
	Password   string `mapstructure:"password"`
	FolderPath string `mapstructure:"folder_path"`
}

type AlfrescoConfig struct {
	URL      string `mapstructure:"url"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Path     string `mapstructure:"path"`
}

type OllamaConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	Model          string `mapstructure:"model"`
	EmbeddingModel string `mapstructure:"embedding_model"`
}

type OpenAIConfig struct {
	APIKey         string `mapstructure:"api_key"`
	BaseURL        string `mapstructure:"base_url"`
	Model          string `mapstructure:"model"`
	EmbeddingModel string `mapstructure:"embedding_model"`
}

type AzureConfig struct {
	Endpoint            string `mapstructure:"endpoint"`
	APIKey              string `mapstructure:"api_key"`
	APIVersion          string `mapstructure:"api_version"`
	Deployment          string `mapstructure:"deployment"`
	EmbeddingDeployment string `mapstructure:"embedding_deployment"`
}

type GeminiConfig struct {
	APIKey         string `mapstructure:"api_key"`
	BaseURL        string `mapstructure:"base_url"`
	Model          string `mapstructure:"model"`
	EmbeddingModel string `mapstructure:"embedding_model"`
}

type AnthropicConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
	Model   string `mapstructure:"model"`
}

// Load reads configuration from an optional TOML file, a .env file in
// the working directory, and the process environment, in increasing
// precedence. Passing an empty path looks for ./graphfuse.toml.
func Load(configPath string) (*Config, error) {
	// .env first so viper's env bindings see its values.
	_ = godotenv.Load()

	v := viper.New()

	if configPath != "" {
		abs, _ := filepath.Abs(configPath)
		v.SetConfigFile(abs)
	} else if _, err := os.Stat("graphfuse.toml"); err == nil {
		abs, _ := filepath.Abs("graphfuse.toml")
		v.SetConfigFile(abs)
	}

	setDefaults(v)
	bindEnvVars(v)

	if v.ConfigFileUsed() != "" {
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", v.ConfigFileUsed(), err)
		}
	}

	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	config.SourcePaths = splitPaths(v.GetString("source_paths_raw"), config.SourcePaths)

	config.Timeouts = TimeoutConfig{
		ConvertTimeout:       secondsDuration(v.GetFloat64("timeouts.convert_seconds")),
		ConvertCheckInterval: secondsDuration(v.GetFloat64("timeouts.convert_check_seconds")),
		ExtractTimeout:       secondsDuration(v.GetFloat64("timeouts.extract_seconds")),
		ExtractCheckInterval: secondsDuration(v.GetFloat64("timeouts.extract_check_seconds")),
	}

	if raw := v.GetString("schemas_json"); raw != "" {
		var schemas []domain.Schema
		if err := json.Unmarshal([]byte(raw), &schemas); err != nil {
			return nil, fmt.Errorf("%w: SCHEMAS is not valid JSON: %v", domain.ErrConfig, err)
		}
		config.Schemas = schemas
	}

	if config.EmbeddingProvider == "" {
		config.EmbeddingProvider = config.LLMProvider
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.cors_origins", []string{"*"})

	v.SetDefault("data_source", SourceFilesystem)

	v.SetDefault("vector_db", VectorNone)
	v.SetDefault("graph_db", GraphNone)
	v.SetDefault("search_db", SearchBM25)

	v.SetDefault("llm_provider", "ollama")

	v.SetDefault("chunking.chunk_size", 1024)
	v.SetDefault("chunking.chunk_overlap", 128)
	v.SetDefault("chunking.max_triplets_per_chunk", 10)
	v.SetDefault("chunking.enrich_keywords", true)
	v.SetDefault("chunking.enrich_summaries", true)

	v.SetDefault("bm25.similarity_top_k", 10)
	v.SetDefault("bm25.persist_dir", "./data/bm25")

	v.SetDefault("timeouts.convert_seconds", 300.0)
	v.SetDefault("timeouts.convert_check_seconds", 0.5)
	v.SetDefault("timeouts.extract_seconds", 3600.0)
	v.SetDefault("timeouts.extract_check_seconds", 2.0)

	v.SetDefault("schema_name", "default")

	v.SetDefault("dedup.preamble_prefixes", DefaultPreamblePrefixes)
	v.SetDefault("dedup.closing_phrases", DefaultClosingPhrases)
	v.SetDefault("dedup.date_patterns", DefaultDatePatterns)

	v.SetDefault("neo4j.uri", "bolt://localhost:7687")
	v.SetDefault("neo4j.username", "neo4j")
	v.SetDefault("neo4j.database", "neo4j")
	v.SetDefault("neo4j.vector_index", "vector_index")

	v.SetDefault("qdrant.url", "localhost:6334")
	v.SetDefault("qdrant.collection", "graphfuse")

	v.SetDefault("elasticsearch.url", "http://localhost:9200")
	v.SetDefault("elasticsearch.index", "graphfuse")

	v.SetDefault("opensearch.url", "http://localhost:9201")
	v.SetDefault("opensearch.index", "graphfuse")
	v.SetDefault("opensearch.pipeline", "hybrid-search-pipeline")

	v.SetDefault("kuzu.db_path", "./data/kuzu")
	v.SetDefault("kuzu.allow_reset", false)

	v.SetDefault("ollama.base_url", "http://localhost:11434")
	v.SetDefault("ollama.model", "llama3.1")
	v.SetDefault("ollama.embedding_model", "nomic-embed-text")

	v.SetDefault("openai.model", "gpt-4o-mini")
	v.SetDefault("openai.embedding_model", "text-embedding-3-small")

	v.SetDefault("azure_openai.api_version", "2024-06-01")

	v.SetDefault("gemini.model", "gemini-2.0-flash")
	v.SetDefault("gemini.embedding_model", "text-embedding-004")

	v.SetDefault("anthropic.model", "claude-sonnet-4-20250514")
}

func bindEnvVars(v *viper.Viper) {
	binds := map[string][]string{
		"server.host":                       {"GRAPHFUSE_HOST"},
		"server.port":                       {"GRAPHFUSE_PORT"},
		"data_source":                       {"DATA_SOURCE", "GRAPHFUSE_DATA_SOURCE"},
		"source_paths_raw":                  {"SOURCE_PATHS", "GRAPHFUSE_SOURCE_PATHS"},
		"vector_db":                         {"VECTOR_DB", "GRAPHFUSE_VECTOR_DB"},
		"graph_db":                          {"GRAPH_DB", "GRAPHFUSE_GRAPH_DB"},
		"search_db":                         {"SEARCH_DB", "GRAPHFUSE_SEARCH_DB"},
		"llm_provider":                      {"LLM_PROVIDER", "GRAPHFUSE_LLM_PROVIDER"},
		"embedding_provider":                {"EMBEDDING_PROVIDER", "GRAPHFUSE_EMBEDDING_PROVIDER"},
		"chunking.chunk_size":               {"CHUNK_SIZE"},
		"chunking.chunk_overlap":            {"CHUNK_OVERLAP"},
		"chunking.max_triplets_per_chunk":   {"MAX_TRIPLETS_PER_CHUNK"},
		"bm25.similarity_top_k":             {"BM25_SIMILARITY_TOP_K"},
		"bm25.persist_dir":                  {"BM25_PERSIST_DIR"},
		"timeouts.convert_seconds":          {"DOCLING_TIMEOUT"},
		"timeouts.convert_check_seconds":    {"DOCLING_CANCEL_CHECK_INTERVAL"},
		"timeouts.extract_seconds":          {"KG_EXTRACTION_TIMEOUT"},
		"timeouts.extract_check_seconds":    {"KG_CANCEL_CHECK_INTERVAL"},
		"schema_name":                       {"SCHEMA_NAME"},
		"schemas_json":                      {"SCHEMAS"},
		"neo4j.uri":                         {"NEO4J_URI"},
		"neo4j.username":                    {"NEO4J_USER", "NEO4J_USERNAME"},
		"neo4j.password":                    {"NEO4J_PASSWORD"},
		"neo4j.database":                    {"NEO4J_DATABASE"},
		"neo4j.vector_index":                {"NEO4J_VECTOR_INDEX"},
		"neo4j.embed_dim":                   {"EMBED_DIM", "NEO4J_EMBED_DIM"},
		"qdrant.url":                        {"QDRANT_URL"},
		"qdrant.collection":                 {"QDRANT_COLLECTION"},
		"elasticsearch.url":                 {"ES_URL"},
		"elasticsearch.username":            {"ES_USERNAME"},
		"elasticsearch.password":            {"ES_PASSWORD"},
		"elasticsearch.index":               {"ES_INDEX"},
		"opensearch.url":                    {"OPENSEARCH_URL"},
		"opensearch.username":               {"OPENSEARCH_USERNAME"},
		"opensearch.password":               {"OPENSEARCH_PASSWORD"},
		"opensearch.index":                  {"OPENSEARCH_INDEX"},
		"kuzu.db_path":                      {"KUZU_DB_PATH"},
		"kuzu.allow_reset":                  {"KUZU_ALLOW_RESET"},
		"cmis.url":                          {"CMIS_URL"},
		"cmis.username":                     {"CMIS_USERNAME"},
		"cmis.password":                     {"CMIS_PASSWORD"},
		"cmis.folder_path":                  {"CMIS_FOLDER_PATH"},
		"alfresco.url":                      {"ALFRESCO_URL"},
		"alfresco.username":                 {"ALFRESCO_USERNAME"},
		"alfresco.password":                 {"ALFRESCO_PASSWORD"},
		"alfresco.path":                     {"ALFRESCO_PATH"},
		"ollama.base_url":                   {"OLLAMA_BASE_URL"},
		"ollama.model":                      {"OLLAMA_MODEL"},
		"ollama.embedding_model":            {"OLLAMA_EMBEDDING_MODEL"},
		"openai.api_key":                    {"OPENAI_API_KEY"},
		"openai.base_url":                   {"OPENAI_BASE_URL"},
		"openai.model":                      {"OPENAI_MODEL"},
		"openai.embedding_model":            {"OPENAI_EMBEDDING_MODEL"},
		"azure_openai.endpoint":             {"AZURE_OPENAI_ENDPOINT"},
		"azure_openai.api_key":              {"AZURE_OPENAI_API_KEY"},
		"azure_openai.api_version":          {"AZURE_OPENAI_API_VERSION"},
		"azure_openai.deployment":           {"AZURE_OPENAI_DEPLOYMENT"},
		"azure_openai.embedding_deployment": {"AZURE_OPENAI_EMBEDDING_DEPLOYMENT"},
		"gemini.api_key":                    {"GEMINI_API_KEY"},
		"gemini.model":                      {"GEMINI_MODEL"},
		"gemini.embedding_model":            {"GEMINI_EMBEDDING_MODEL"},
		"anthropic.api_key":                 {"ANTHROPIC_API_KEY"},
		"anthropic.model":                   {"ANTHROPIC_MODEL"},
	}
	for key, envs := range binds {
		args := append([]string{key}, envs...)
		_ = v.BindEnv(args...)
	}
}

// Validate rejects configurations that cannot serve any request.
func (c *Config) Validate() error {
	if c.VectorDB == VectorNone && c.GraphDB == GraphNone && c.SearchDB == SearchNone {
		return fmt.Errorf("%w: all of vector_db, graph_db and search_db are disabled", domain.ErrConfig)
	}

	if !oneOf(c.DataSource, SourceFilesystem, SourceCMIS, SourceAlfresco, SourceUpload) {
		return fmt.Errorf("%w: unknown data_source %q", domain.ErrConfig, c.DataSource)
	}
	if !oneOf(c.VectorDB, VectorNone, VectorQdrant, VectorNeo4j, VectorElasticsearch, VectorOpenSearch) {
		return fmt.Errorf("%w: unknown vector_db %q", domain.ErrConfig, c.VectorDB)
	}
	if !oneOf(c.GraphDB, GraphNone, GraphNeo4j, GraphKuzu) {
		return fmt.Errorf("%w: unknown graph_db %q", domain.ErrConfig, c.GraphDB)
	}
	if !oneOf(c.SearchDB, SearchNone, SearchBM25, SearchElasticsearch, SearchOpenSearch) {
		return fmt.Errorf("%w: unknown search_db %q", domain.ErrConfig, c.SearchDB)
	}
	if !oneOf(c.LLMProvider, "ollama", "openai", "azure_openai", "gemini", "anthropic") {
		return fmt.Errorf("%w: unknown llm_provider %q", domain.ErrConfig, c.LLMProvider)
	}
	if !oneOf(c.EmbeddingProvider, "ollama", "openai", "azure_openai", "gemini", "anthropic") {
		return fmt.Errorf("%w: unknown embedding_provider %q", domain.ErrConfig, c.EmbeddingProvider)
	}
	if c.EmbeddingProvider == "anthropic" {
		return fmt.Errorf("%w: anthropic has no embeddings API, set EMBEDDING_PROVIDER to ollama or openai", domain.ErrConfig)
	}

	if c.Chunking.ChunkSize <= 0 {
		return fmt.Errorf("%w: chunk_size must be positive", domain.ErrConfig)
	}
	if c.Chunking.ChunkOverlap < 0 || c.Chunking.ChunkOverlap >= c.Chunking.ChunkSize {
		return fmt.Errorf("%w: chunk_overlap must be in [0, chunk_size)", domain.ErrConfig)
	}
	if c.BM25.SimilarityTopK <= 0 {
		return fmt.Errorf("%w: bm25 similarity_top_k must be positive", domain.ErrConfig)
	}

	return nil
}

// OpenSearchHybrid reports whether vector and full-text search share a
// single OpenSearch instance, in which case one native hybrid retriever
// replaces the two separate ones.
func (c *Config) OpenSearchHybrid() bool {
	return c.VectorDB == VectorOpenSearch && c.SearchDB == SearchOpenSearch
}

func oneOf(s string, allowed ...string) bool {
	for _, a := range allowed {
		if s == a {
			return true
		}
	}
	return false
}

func secondsDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// splitPaths parses SOURCE_PATHS, which may be a JSON array or a
// comma-separated list.
func splitPaths(raw string, fallback []string) []string {
	if raw == "" {
		return fallback
	}
	trimmed := strings.TrimSpace(raw)
	if strings.HasPrefix(trimmed, "[") {
		var paths []string
		if err := json.Unmarshal([]byte(trimmed), &paths); err == nil {
			return paths
		}
	}
	var paths []string
	for _, p := range strings.Split(trimmed, ",") {
		if p = strings.TrimSpace(p); p != "" {
			paths = append(paths, p)
		}
	}
	return paths
}
