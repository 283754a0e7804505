package server

import (
	"github.com/mohammad-safakhou/confscout/models"
)

// SearchRequest is the wire form of one search call. Filter fields accept
// null, a single string, or an array of strings.
type SearchRequest struct {
	Query       string             `json:"query"`
	Affiliation models.FilterValue `json:"affiliation"`
	Author      models.FilterValue `json:"author"`
	Session     models.FilterValue `json:"session"`
	Day         models.FilterValue `json:"day"`
	AMPM        string             `json:"ampm"`
	Limit       *int               `json:"limit"`
	Threshold   *float64           `json:"threshold"`
}

// SearchResultItem is one ranked hit as the UI consumes it: flattened item
// metadata plus the cosine distance to the query.
type SearchResultItem struct {
	ID             string  `json:"id"`
	Title          string  `json:"title"`
	Abstract       string  `json:"abstract"`
	Authors        string  `json:"authors"`
	Affiliation    string  `json:"affiliation"`
	Session        string  `json:"session"`
	Day            string  `json:"day,omitempty"`
	AMPM           string  `json:"ampm,omitempty"`
	StartTime      string  `json:"start_time,omitempty"`
	PosterPosition string  `json:"poster_position,omitempty"`
	PaperURL       string  `json:"paper_url"`
	OpenReviewURL  string  `json:"openreview_url"`
	Distance       float64 `json:"distance"`
}

// SearchResponse wraps ranked hits. Notice carries an inline degradation
// message when the backend could not serve the query; the status stays 200.
type SearchResponse struct {
	Results []SearchResultItem `json:"results"`
	Notice  string             `json:"notice,omitempty"`
}

// ChatRequest is the wire form of one conversation turn. Model selects the
// provider; the per-provider model name rides in OpenAIModel/GeminiModel.
type ChatRequest struct {
	Papers       []models.PaperRef `json:"papers"`
	Question     string            `json:"question"`
	Model        string            `json:"model"`
	APIKey       string            `json:"api_key"`
	OpenAIModel  string            `json:"openai_model"`
	GeminiModel  string            `json:"gemini_model"`
	SystemPrompt string            `json:"system_prompt"`
}

// ChatResponse carries either the assistant's answer or an inline error.
// Provider failures keep status 200; Status classifies the failure kind.
type ChatResponse struct {
	Answer string `json:"answer,omitempty"`
	Error  string `json:"error,omitempty"`
	Status string `json:"status,omitempty"`
}

// ModelsRequest carries the caller's API key for model discovery.
type ModelsRequest struct {
	APIKey string `json:"api_key"`
}

// ModelsResponse lists available models; on an invalid key Error is set and
// Models is empty, still with status 200.
type ModelsResponse struct {
	Models []models.ProviderModel `json:"models"`
	Error  string                 `json:"error,omitempty"`
}
