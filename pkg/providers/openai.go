package providers

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"github.com/graphfuse/graphfuse/pkg/config"
	"github.com/graphfuse/graphfuse/pkg/domain"
)

// OpenAI covers both the public API and Azure OpenAI deployments; the
// two differ only in client options and model naming.
type OpenAI struct {
	client     openai.Client
	model      string
	embedModel string
}

func NewOpenAI(cfg config.OpenAIConfig) (*OpenAI, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: openai api key is required", domain.ErrConfig)
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &OpenAI{
		client:     openai.NewClient(opts...),
		model:      cfg.Model,
		embedModel: cfg.EmbeddingModel,
	}, nil
}

func NewAzureOpenAI(cfg config.AzureConfig) (*OpenAI, error) {
	if cfg.APIKey == "" || cfg.Endpoint == "" {
		return nil, fmt.Errorf("%w: azure openai endpoint and api key are required", domain.ErrConfig)
	}

	base := strings.TrimSuffix(cfg.Endpoint, "/") + "/openai/deployments/" + cfg.Deployment
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithBaseURL(base),
		option.WithQuery("api-version", cfg.APIVersion),
		option.WithHeader("api-key", cfg.APIKey),
	}

	embedModel := cfg.EmbeddingDeployment
	if embedModel == "" {
		embedModel = cfg.Deployment
	}

	return &OpenAI{
		client:     openai.NewClient(opts...),
		model:      cfg.Deployment,
		embedModel: embedModel,
	}, nil
}

func (p *OpenAI) Generate(ctx context.Context, prompt string, opts *domain.GenerationOptions) (string, error) {
	if prompt == "" {
		return "", fmt.Errorf("%w: empty prompt", domain.ErrInvalidInput)
	}

	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(p.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
	}
	if opts != nil {
		if opts.Temperature > 0 {
			params.Temperature = openai.Float(opts.Temperature)
		}
		if opts.MaxTokens > 0 {
			params.MaxCompletionTokens = openai.Int(int64(opts.MaxTokens))
		}
	}

	completion, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("%w: openai completion: %v", domain.ErrModelIO, err)
	}
	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices in completion", domain.ErrModelIO)
	}
	return completion.Choices[0].Message.Content, nil
}

func (p *OpenAI) Embed(ctx context.Context, text string) ([]float64, error) {
	if text == "" {
		return nil, fmt.Errorf("%w: empty text", domain.ErrInvalidInput)
	}

	resp, err := p.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Model: openai.EmbeddingModel(p.embedModel),
		Input: openai.EmbeddingNewParamsInputUnion{
			OfString: openai.String(text),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: openai embedding: %v", domain.ErrModelIO, err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("%w: empty embedding response", domain.ErrModelIO)
	}
	return resp.Data[0].Embedding, nil
}
