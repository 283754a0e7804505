package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mohammad-safakhou/confscout/config"
	"github.com/mohammad-safakhou/confscout/models"
	"github.com/mohammad-safakhou/confscout/papers"
)

const openaiBaseURL = "https://api.openai.com/v1"

// openaiClient answers over extracted paper text. OpenAI has no document
// ingestion here, so each referenced paper is fetched and flattened into a
// titled context block. Temperature is fixed from config (default 0.2) so
// the adapter's sampling policy is stable across turns.
type openaiClient struct {
	baseURL     string
	apiKey      string
	model       string
	temperature float64
	maxTokens   int
	httpClient  *http.Client
	fetcher     *papers.Fetcher
}

func newOpenAI(cfg config.OpenAIConfig, fetcher *papers.Fetcher) *openaiClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	model := cfg.Model
	if model == "" {
		model = "gpt-4o"
	}
	return &openaiClient{
		baseURL:     openaiBaseURL,
		apiKey:      cfg.APIKey,
		model:       model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		httpClient:  &http.Client{Timeout: timeout},
		fetcher:     fetcher,
	}
}

func (c *openaiClient) Name() Client { return OpenAI }

func (c *openaiClient) key(override string) string {
	if override != "" {
		return override
	}
	return c.apiKey
}

// Message represents a message in a conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// ListModels fetches the account's model list, keeps chat-capable gpt*
// entries, and orders the gpt-4 family first.
func (c *openaiClient) ListModels(ctx context.Context, apiKey string) ([]models.ProviderModel, error) {
	key := c.key(apiKey)
	if key == "" {
		return nil, &ProviderError{Provider: OpenAI, Kind: KindInvalidAPIKey, Message: "api key not provided"}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/models", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+key)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, transportError(OpenAI, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return nil, statusError(OpenAI, resp.StatusCode, string(body))
	}

	var parsed struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode models response: %w", err)
	}

	out := make([]models.ProviderModel, 0, len(parsed.Data))
	for _, m := range parsed.Data {
		if strings.HasPrefix(m.ID, "gpt") {
			out = append(out, models.ProviderModel{Name: m.ID, DisplayName: m.ID})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		gi := strings.HasPrefix(out[i].Name, "gpt-4")
		gj := strings.HasPrefix(out[j].Name, "gpt-4")
		if gi != gj {
			return gi
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

// Chat fetches every referenced paper, extracts its text, and asks one
// chat completion over the combined context. Papers that fail to fetch are
// represented by an inline note rather than failing the whole turn.
func (c *openaiClient) Chat(ctx context.Context, req ChatRequest) (string, error) {
	key := c.key(req.APIKey)
	if key == "" {
		return "", &ProviderError{Provider: OpenAI, Kind: KindInvalidAPIKey, Message: "api key not provided"}
	}

	texts := make([]string, len(req.Papers))
	g, gctx := errgroup.WithContext(ctx)
	for i, p := range req.Papers {
		i, p := i, p
		g.Go(func() error {
			text, err := c.fetcher.FetchText(gctx, p.URL)
			if err != nil {
				text = fmt.Sprintf("(could not fetch paper: %v)", err)
			}
			texts[i] = text
			return nil
		})
	}
	_ = g.Wait()

	var contextBlocks strings.Builder
	for i, p := range req.Papers {
		fmt.Fprintf(&contextBlocks, "--- Paper: %s ---\n%s\n\n", p.Title, texts[i])
	}

	systemPrompt := req.SystemPrompt
	if systemPrompt == "" {
		systemPrompt = DefaultSystemPrompt
	}
	model := req.Model
	if model == "" {
		model = c.model
	}

	payload, err := json.Marshal(chatCompletionRequest{
		Model: model,
		Messages: []Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: fmt.Sprintf("Papers Content:\n%s\nQuestion: %s", contextBlocks.String(), req.Question)},
		},
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+key)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", transportError(OpenAI, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return "", statusError(OpenAI, resp.StatusCode, string(body))
	}

	var parsed chatCompletionResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("failed to decode chat response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", &ProviderError{Provider: OpenAI, Kind: KindUpstream, Message: "empty choices in response"}
	}
	return parsed.Choices[0].Message.Content, nil
}
