// Package embed provides a client for the text embedding API.
package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/appsight/insights-cli/internal/resilience"
)

// Client defines the embedding operations.
type Client interface {
	// Embed returns one vector per input text, in input order.
	Embed(ctx context.Context, texts []string) (*EmbedResponse, error)
}

// EmbedResponse holds the vectors and token accounting for one call.
type EmbedResponse struct {
	Vectors [][]float64 `json:"vectors"`
	Tokens  int         `json:"tokens"`
}

type embedRequest struct {
	Model string   `json:"model"`
	Texts []string `json:"texts"`
}

type embedAPIResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float64 `json:"embedding"`
	} `json:"data"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}

// Option configures the embedding client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithModel selects the embedding model.
func WithModel(model string) Option {
	return func(c *httpClient) {
		c.model = model
	}
}

// WithRateLimit overrides the default request rate.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *httpClient) {
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	model   string
	limiter *rate.Limiter
	http    *http.Client
}

// NewClient creates a new embedding client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: "https://api.appsight.dev/embeddings/v1",
		model:   "text-embed-3",
		limiter: rate.NewLimiter(rate.Limit(5), 10),
		http: &http.Client{
			Timeout: 60 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) Embed(ctx context.Context, texts []string) (*EmbedResponse, error) {
	if len(texts) == 0 {
		return &EmbedResponse{}, nil
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "embed: rate limiter")
	}

	payload, err := json.Marshal(embedRequest{Model: c.model, Texts: texts})
	if err != nil {
		return nil, eris.Wrap(err, "embed: marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/embed", bytes.NewReader(payload))
	if err != nil {
		return nil, eris.Wrap(err, "embed: create request")
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, resilience.ClassifyHTTP(eris.Wrap(err, "embed: request failed"), 0)
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "embed: read response body")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, resilience.ClassifyHTTP(
			eris.Errorf("embed: status %d: %s", resp.StatusCode, string(body)),
			resp.StatusCode,
		)
	}

	var apiResp embedAPIResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, eris.Wrap(err, "embed: unmarshal response")
	}

	// The API must return exactly one vector per input, addressed by index.
	// Anything else means the response cannot be trusted for this input.
	if len(apiResp.Data) != len(texts) {
		return nil, resilience.NewPermanentError(
			eris.Errorf("embed: got %d vectors for %d texts", len(apiResp.Data), len(texts)), 0)
	}

	vectors := make([][]float64, len(texts))
	for _, d := range apiResp.Data {
		if d.Index < 0 || d.Index >= len(texts) {
			return nil, resilience.NewPermanentError(
				eris.Errorf("embed: vector index %d out of range", d.Index), 0)
		}
		if len(d.Embedding) == 0 {
			return nil, resilience.NewPermanentError(
				eris.Errorf("embed: empty vector at index %d", d.Index), 0)
		}
		vectors[d.Index] = d.Embedding
	}
	for i, v := range vectors {
		if v == nil {
			return nil, resilience.NewPermanentError(
				eris.Errorf("embed: missing vector for index %d", i), 0)
		}
	}

	return &EmbedResponse{Vectors: vectors, Tokens: apiResp.Usage.TotalTokens}, nil
}
