package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/mohammad-safakhou/confscout/config"
)

// Embedder turns query text into a vector in the corpus embedding space.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Client calls an OpenAI-compatible /v1/embeddings endpoint. The configured
// model must be the one the ingestion pipeline used; a model mismatch is
// undetectable here and silently degrades ranking, so only the dimension is
// checked.
type Client struct {
	baseURL    string
	model      string
	dimension  int
	apiKey     string
	httpClient *http.Client
}

// NewClient builds an embedding client from config.
func NewClient(cfg config.EmbeddingConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		model:      cfg.Model,
		dimension:  cfg.Dimension,
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// EmbedQuery embeds a single query string and L2-normalizes the result.
func (c *Client) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(embedRequest{Model: c.model, Input: []string{text}})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embedding endpoint returned %d: %s", resp.StatusCode, string(raw))
	}

	var parsed embedResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode embedding response: %w", err)
	}
	if len(parsed.Data) == 0 {
		return nil, fmt.Errorf("embedding endpoint returned no vectors")
	}
	vec := parsed.Data[0].Embedding
	if c.dimension > 0 && len(vec) != c.dimension {
		return nil, fmt.Errorf("embedding dimension %d, want %d (model mismatch with ingestion?)", len(vec), c.dimension)
	}
	return normalize(vec), nil
}

func normalize(v []float32) []float32 {
	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		return v
	}
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}
