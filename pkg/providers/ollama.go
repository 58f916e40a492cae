package providers

import (
	"context"
	"fmt"

	ollama "github.com/liliang-cn/ollama-go"

	"github.com/graphfuse/graphfuse/pkg/config"
	"github.com/graphfuse/graphfuse/pkg/domain"
)

// Ollama talks to a local Ollama instance for both generation and
// embeddings.
type Ollama struct {
	client     *ollama.Client
	model      string
	embedModel string
}

func NewOllama(cfg config.OllamaConfig) (*Ollama, error) {
	client, err := ollama.NewClient()
	if err != nil {
		return nil, fmt.Errorf("%w: creating ollama client: %v", domain.ErrModelIO, err)
	}
	return &Ollama{
		client:     client,
		model:      cfg.Model,
		embedModel: cfg.EmbeddingModel,
	}, nil
}

func (p *Ollama) Generate(ctx context.Context, prompt string, opts *domain.GenerationOptions) (string, error) {
	if prompt == "" {
		return "", fmt.Errorf("%w: empty prompt", domain.ErrInvalidInput)
	}

	stream := false
	req := &ollama.GenerateRequest{
		Model:  p.model,
		Prompt: prompt,
		Stream: &stream,
	}
	if opts != nil {
		options := &ollama.Options{}
		if opts.Temperature >= 0 {
			options.Temperature = &opts.Temperature
		}
		if opts.MaxTokens > 0 {
			numPredict := opts.MaxTokens
			options.NumPredict = &numPredict
		}
		req.Options = options
	}

	resp, err := p.client.Generate(ctx, req)
	if err != nil {
		return "", fmt.Errorf("%w: ollama generate: %v", domain.ErrModelIO, err)
	}
	return resp.Response, nil
}

func (p *Ollama) Embed(ctx context.Context, text string) ([]float64, error) {
	if text == "" {
		return nil, fmt.Errorf("%w: empty text", domain.ErrInvalidInput)
	}

	resp, err := p.client.Embed(ctx, &ollama.EmbedRequest{
		Model: p.embedModel,
		Input: text,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: ollama embed: %v", domain.ErrModelIO, err)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0]) == 0 {
		return nil, fmt.Errorf("%w: empty embedding response", domain.ErrModelIO)
	}
	return resp.Embeddings[0], nil
}

// Health verifies the daemon is reachable.
func (p *Ollama) Health(ctx context.Context) error {
	if _, err := p.client.Version(ctx); err != nil {
		return fmt.Errorf("%w: ollama unreachable: %v", domain.ErrModelIO, err)
	}
	return nil
}
