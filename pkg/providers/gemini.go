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

// Gemini calls the Google generative language API over plain HTTP.
type Gemini struct {
	cfg        config.GeminiConfig
	httpClient *http.Client
}

func NewGemini(cfg config.GeminiConfig) (*Gemini, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: gemini api key is required", domain.ErrConfig)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://generativelanguage.googleapis.com"
	}
	return &Gemini{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}, nil
}

type geminiPart struct {
	Text string `json:"text,omitempty"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiGenerateRequest struct {
	Contents         []geminiContent `json:"contents"`
	GenerationConfig *struct {
		Temperature     float64 `json:"temperature,omitempty"`
		MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
	} `json:"generationConfig,omitempty"`
}

type geminiGenerateResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

type geminiEmbedRequest struct {
	Model   string        `json:"model"`
	Content geminiContent `json:"content"`
}

type geminiEmbedResponse struct {
	Embedding struct {
		Values []float64 `json:"values"`
	} `json:"embedding"`
}

func (p *Gemini) Generate(ctx context.Context, prompt string, opts *domain.GenerationOptions) (string, error) {
	if prompt == "" {
		return "", fmt.Errorf("%w: empty prompt", domain.ErrInvalidInput)
	}

	req := &geminiGenerateRequest{
		Contents: []geminiContent{{Parts: []geminiPart{{Text: prompt}}}},
	}
	if opts != nil && (opts.Temperature > 0 || opts.MaxTokens > 0) {
		req.GenerationConfig = &struct {
			Temperature     float64 `json:"temperature,omitempty"`
			MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
		}{Temperature: opts.Temperature, MaxOutputTokens: opts.MaxTokens}
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s",
		p.cfg.BaseURL, p.cfg.Model, p.cfg.APIKey)

	var resp geminiGenerateResponse
	if err := p.post(ctx, url, req, &resp); err != nil {
		return "", err
	}
	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("%w: no candidates in gemini response", domain.ErrModelIO)
	}
	return resp.Candidates[0].Content.Parts[0].Text, nil
}

func (p *Gemini) Embed(ctx context.Context, text string) ([]float64, error) {
	if text == "" {
		return nil, fmt.Errorf("%w: empty text", domain.ErrInvalidInput)
	}

	req := &geminiEmbedRequest{
		Model:   "models/" + p.cfg.EmbeddingModel,
		Content: geminiContent{Parts: []geminiPart{{Text: text}}},
	}
	url := fmt.Sprintf("%s/v1beta/models/%s:embedContent?key=%s",
		p.cfg.BaseURL, p.cfg.EmbeddingModel, p.cfg.APIKey)

	var resp geminiEmbedResponse
	if err := p.post(ctx, url, req, &resp); err != nil {
		return nil, err
	}
	if len(resp.Embedding.Values) == 0 {
		return nil, fmt.Errorf("%w: empty gemini embedding", domain.ErrModelIO)
	}
	return resp.Embedding.Values, nil
}

func (p *Gemini) post(ctx context.Context, url string, in, out interface{}) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("%w: marshaling request: %v", domain.ErrModelIO, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrModelIO, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%w: gemini request failed: %v", domain.ErrModelIO, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: reading gemini response: %v", domain.ErrModelIO, err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: gemini api error %d: %s", domain.ErrModelIO, resp.StatusCode, body)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: decoding gemini response: %v", domain.ErrModelIO, err)
	}
	return nil
}
