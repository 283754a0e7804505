package provider

import (
	"context"
	"errors"
	"time"

	"github.com/mohammad-safakhou/confscout/config"
	"github.com/mohammad-safakhou/confscout/models"
	"github.com/mohammad-safakhou/confscout/papers"
)

// Client represents different chat providers.
type Client string

const (
	OpenAI Client = "openai"
	Gemini Client = "gemini"
)

// FileHandle is a provider-side reference to previously uploaded content,
// reusable until expiry.
type FileHandle struct {
	RemoteID  string    `json:"remote_id"`
	URI       string    `json:"uri"`
	MIMEType  string    `json:"mime_type"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ChatRequest composes one conversation turn. Handles, when present, is
// ordered like Papers and carries provider-native references for adapters
// with native document ingestion.
type ChatRequest struct {
	Papers       []models.PaperRef
	Question     string
	Model        string
	APIKey       string
	SystemPrompt string
	Handles      []FileHandle
}

// Provider is the interface every chat adapter must satisfy. ListModels
// returns a structured error value for invalid credentials rather than
// faulting, so the API layer can surface it inline.
type Provider interface {
	Name() Client
	ListModels(ctx context.Context, apiKey string) ([]models.ProviderModel, error)
	Chat(ctx context.Context, req ChatRequest) (string, error)
}

// DocumentIngester marks adapters with native document ingestion. The
// orchestrator resolves every paper to a FileHandle (through the session
// cache) before calling Chat on such adapters.
type DocumentIngester interface {
	UploadDocument(ctx context.Context, apiKey string, paper models.PaperRef) (FileHandle, error)
}

// DefaultSystemPrompt is used when a request carries none.
const DefaultSystemPrompt = "You are a helpful assistant answering questions about research papers. Use the provided paper content to answer the question."

// Registry holds the configured adapters keyed by provider name.
type Registry struct {
	providers map[Client]Provider
}

// NewRegistry wires the built-in adapters from config. The fetcher is
// shared, so both adapters use one bounded HTTP client for paper downloads.
func NewRegistry(cfg config.ProvidersConfig, fetcher *papers.Fetcher) *Registry {
	return &Registry{providers: map[Client]Provider{
		OpenAI: newOpenAI(cfg.OpenAI, fetcher),
		Gemini: newGemini(cfg.Gemini, fetcher),
	}}
}

// NewStaticRegistry builds a registry from explicit adapters.
func NewStaticRegistry(providers map[Client]Provider) *Registry {
	return &Registry{providers: providers}
}

// Get returns the adapter for the given provider name.
func (r *Registry) Get(client Client) (Provider, error) {
	p, ok := r.providers[client]
	if !ok {
		return nil, errors.New("unsupported chat provider: " + string(client))
	}
	return p, nil
}
