package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Provider is a pluggable external embedding source. Implementations return a
// raw float vector for the given text, or an error on any failure; the
// generator degrades to TF-IDF and then hash embeddings when a provider
// fails, so providers should report failures rather than guess.
type Provider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// ErrProviderUnavailable is returned by a provider that is configured but
// cannot currently serve requests (e.g. missing API key).
var ErrProviderUnavailable = errors.New("embedding provider unavailable")

// HTTPProviderConfig configures an OpenAI-compatible embeddings endpoint.
type HTTPProviderConfig struct {
	URL        string // Endpoint URL, e.g. https://api.openai.com/v1/embeddings
	Model      string // Model name, e.g. text-embedding-3-small
	APIKey     string // Bearer token
	Dimensions int    // Requested output dimensions
	Timeout    time.Duration
}

// DefaultHTTPProviderConfig returns the endpoint defaults used by the
// original memory pipeline.
func DefaultHTTPProviderConfig(apiKey string) HTTPProviderConfig {
	return HTTPProviderConfig{
		URL:        "https://api.openai.com/v1/embeddings",
		Model:      "text-embedding-3-small",
		APIKey:     apiKey,
		Dimensions: DefaultDimensions,
		Timeout:    30 * time.Second,
	}
}

// HTTPProvider calls an OpenAI-compatible /v1/embeddings endpoint.
type HTTPProvider struct {
	cfg    HTTPProviderConfig
	client *http.Client
}

// NewHTTPProvider creates a provider for the given endpoint configuration.
func NewHTTPProvider(cfg HTTPProviderConfig) *HTTPProvider {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Dimensions <= 0 {
		cfg.Dimensions = DefaultDimensions
	}
	return &HTTPProvider{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

type embedRequest struct {
	Input      string `json:"input"`
	Model      string `json:"model"`
	Dimensions int    `json:"dimensions,omitempty"`
}

type embedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// Embed requests an embedding for text from the remote endpoint.
func (p *HTTPProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	if p.cfg.APIKey == "" {
		return nil, ErrProviderUnavailable
	}

	body, err := json.Marshal(embedRequest{
		Input:      text,
		Model:      p.cfg.Model,
		Dimensions: p.cfg.Dimensions,
	})
	if err != nil {
		return nil, fmt.Errorf("encode embeddings request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build embeddings request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call embeddings endpoint: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embeddings endpoint returned HTTP %d", resp.StatusCode)
	}

	var parsed embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode embeddings response: %w", err)
	}
	if len(parsed.Data) == 0 || len(parsed.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("embeddings response contained no vector")
	}

	vec := parsed.Data[0].Embedding
	if len(vec) > p.cfg.Dimensions {
		vec = vec[:p.cfg.Dimensions]
	} else if len(vec) < p.cfg.Dimensions {
		// Pad short responses so every embedding in a store shares dimensions.
		padded := make([]float32, p.cfg.Dimensions)
		copy(padded, vec)
		vec = padded
	}

	return vec, nil
}
