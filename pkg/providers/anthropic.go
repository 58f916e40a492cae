package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/graphfuse/graphfuse/pkg/config"
	"github.com/graphfuse/graphfuse/pkg/domain"
)

const anthropicVersion = "2023-06-01"

// Anthropic calls the messages API over plain HTTP. It only generates;
// embeddings come from a different provider.
type Anthropic struct {
	cfg        config.AnthropicConfig
	httpClient *http.Client
}

func NewAnthropic(cfg config.AnthropicConfig) (*Anthropic, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: anthropic api key is required", domain.ErrConfig)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.anthropic.com"
	}
	return &Anthropic{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}, nil
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	Messages    []anthropicMessage `json:"messages"`
	Temperature *float64           `json:"temperature,omitempty"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
}

func (p *Anthropic) Generate(ctx context.Context, prompt string, opts *domain.GenerationOptions) (string, error) {
	if prompt == "" {
		return "", fmt.Errorf("%w: empty prompt", domain.ErrInvalidInput)
	}

	req := &anthropicRequest{
		Model:     p.cfg.Model,
		MaxTokens: 4096,
		Messages:  []anthropicMessage{{Role: "user", Content: prompt}},
	}
	if opts != nil {
		if opts.MaxTokens > 0 {
			req.MaxTokens = opts.MaxTokens
		}
		if opts.Temperature > 0 {
			req.Temperature = &opts.Temperature
		}
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("%w: marshaling request: %v", domain.ErrModelIO, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.BaseURL+"/v1/messages", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrModelIO, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", p.cfg.APIKey)
	httpReq.Header.Set("anthropic-version", anthropicVersion)

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("%w: anthropic request failed: %v", domain.ErrModelIO, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: reading anthropic response: %v", domain.ErrModelIO, err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: anthropic api error %d: %s", domain.ErrModelIO, resp.StatusCode, body)
	}

	var out anthropicResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("%w: decoding anthropic response: %v", domain.ErrModelIO, err)
	}
	if len(out.Content) == 0 {
		return "", fmt.Errorf("%w: no content in anthropic response", domain.ErrModelIO)
	}
	return out.Content[0].Text, nil
}
