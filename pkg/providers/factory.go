package providers

import (
	"context"
	"fmt"

	"github.com/graphfuse/graphfuse/pkg/config"
	"github.com/graphfuse/graphfuse/pkg/domain"
)

// Pair bundles the generator and embedder resolved from configuration.
// The two may come from different providers: Anthropic has no
// embeddings API, so it is always paired with another embedder.
type Pair struct {
	Generator domain.Generator
	Embedder  domain.Embedder
}

// New resolves LLM_PROVIDER and EMBEDDING_PROVIDER into concrete
// clients.
func New(cfg *config.Config) (*Pair, error) {
	gen, err := newGenerator(cfg, cfg.LLMProvider)
	if err != nil {
		return nil, err
	}
	emb, err := newEmbedder(cfg, cfg.EmbeddingProvider)
	if err != nil {
		return nil, err
	}
	return &Pair{Generator: gen, Embedder: emb}, nil
}

func newGenerator(cfg *config.Config, kind string) (domain.Generator, error) {
	switch kind {
	case "ollama":
		return NewOllama(cfg.Ollama)
	case "openai":
		return NewOpenAI(cfg.OpenAI)
	case "azure_openai":
		return NewAzureOpenAI(cfg.Azure)
	case "gemini":
		return NewGemini(cfg.Gemini)
	case "anthropic":
		return NewAnthropic(cfg.Anthropic)
	default:
		return nil, fmt.Errorf("%w: unknown llm provider %q", domain.ErrConfig, kind)
	}
}

func newEmbedder(cfg *config.Config, kind string) (domain.Embedder, error) {
	switch kind {
	case "ollama":
		return NewOllama(cfg.Ollama)
	case "openai":
		return NewOpenAI(cfg.OpenAI)
	case "azure_openai":
		return NewAzureOpenAI(cfg.Azure)
	case "gemini":
		return NewGemini(cfg.Gemini)
	default:
		return nil, fmt.Errorf("%w: provider %q cannot embed", domain.ErrConfig, kind)
	}
}

// knownDims maps embedding models to their fixed vector width.
var knownDims = map[string]int{
	"text-embedding-3-small": 1536,
	"text-embedding-3-large": 3072,
	"nomic-embed-text":       768,
	"mxbai-embed-large":      1024,
}

// EmbeddingDim resolves the vector width for a model, probing the
// embedder with a one-word input when the model is not in the table.
func EmbeddingDim(ctx context.Context, model string, embedder domain.Embedder) (int, error) {
	if dim, ok := knownDims[model]; ok {
		return dim, nil
	}
	vec, err := embedder.Embed(ctx, "dimension probe")
	if err != nil {
		return 0, fmt.Errorf("%w: probing embedding dimension: %v", domain.ErrModelIO, err)
	}
	if len(vec) == 0 {
		return 0, fmt.Errorf("%w: embedder returned empty vector", domain.ErrModelIO)
	}
	return len(vec), nil
}
