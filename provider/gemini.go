package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/mohammad-safakhou/confscout/config"
	"github.com/mohammad-safakhou/confscout/models"
	"github.com/mohammad-safakhou/confscout/papers"
)

const geminiBaseURL = "https://generativelanguage.googleapis.com"

// geminiClient uses Gemini's native document ingestion: papers are pushed
// through the File API once and referenced by handle on every later turn,
// so upload cost is paid once per session, not per turn.
type geminiClient struct {
	baseURL      string
	apiKey       string
	model        string
	handleTTL    time.Duration
	httpClient   *http.Client
	uploadClient *http.Client
	fetcher      *papers.Fetcher
}

func newGemini(cfg config.GeminiConfig, fetcher *papers.Fetcher) *geminiClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	uploadTimeout := cfg.UploadTimeout
	if uploadTimeout <= 0 {
		uploadTimeout = 120 * time.Second
	}
	handleTTL := cfg.HandleTTL
	if handleTTL <= 0 {
		handleTTL = 48 * time.Hour
	}
	model := cfg.Model
	if model == "" {
		model = "gemini-1.5-flash"
	}
	return &geminiClient{
		baseURL:      geminiBaseURL,
		apiKey:       cfg.APIKey,
		model:        model,
		handleTTL:    handleTTL,
		httpClient:   &http.Client{Timeout: timeout},
		uploadClient: &http.Client{Timeout: uploadTimeout},
		fetcher:      fetcher,
	}
}

func (c *geminiClient) Name() Client { return Gemini }

func (c *geminiClient) key(override string) string {
	if override != "" {
		return override
	}
	return c.apiKey
}

// ListModels returns the models able to serve generateContent calls.
func (c *geminiClient) ListModels(ctx context.Context, apiKey string) ([]models.ProviderModel, error) {
	key := c.key(apiKey)
	if key == "" {
		return nil, &ProviderError{Provider: Gemini, Kind: KindInvalidAPIKey, Message: "api key not provided"}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1beta/models?key="+key, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, transportError(Gemini, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return nil, statusError(Gemini, resp.StatusCode, string(body))
	}

	var parsed struct {
		Models []struct {
			Name                       string   `json:"name"`
			DisplayName                string   `json:"displayName"`
			Description                string   `json:"description"`
			SupportedGenerationMethods []string `json:"supportedGenerationMethods"`
		} `json:"models"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode models response: %w", err)
	}

	out := make([]models.ProviderModel, 0, len(parsed.Models))
	for _, m := range parsed.Models {
		for _, method := range m.SupportedGenerationMethods {
			if method == "generateContent" {
				out = append(out, models.ProviderModel{Name: m.Name, DisplayName: m.DisplayName, Description: m.Description})
				break
			}
		}
	}
	return out, nil
}

// UploadDocument downloads the paper PDF and pushes it through the File
// API. The returned handle carries the provider expiry when reported,
// otherwise the configured TTL.
func (c *geminiClient) UploadDocument(ctx context.Context, apiKey string, paper models.PaperRef) (FileHandle, error) {
	key := c.key(apiKey)
	if key == "" {
		return FileHandle{}, &ProviderError{Provider: Gemini, Kind: KindInvalidAPIKey, Message: "api key not provided"}
	}

	data, err := c.fetcher.FetchPDF(ctx, paper.URL)
	if err != nil {
		return FileHandle{}, uploadError(Gemini, err)
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	metaHeader := textproto.MIMEHeader{}
	metaHeader.Set("Content-Type", "application/json; charset=UTF-8")
	metaPart, err := mw.CreatePart(metaHeader)
	if err != nil {
		return FileHandle{}, fmt.Errorf("failed to build upload metadata: %w", err)
	}
	meta := map[string]interface{}{"file": map[string]string{"display_name": paper.Title}}
	if err := json.NewEncoder(metaPart).Encode(meta); err != nil {
		return FileHandle{}, fmt.Errorf("failed to encode upload metadata: %w", err)
	}

	fileHeader := textproto.MIMEHeader{}
	fileHeader.Set("Content-Type", "application/pdf")
	filePart, err := mw.CreatePart(fileHeader)
	if err != nil {
		return FileHandle{}, fmt.Errorf("failed to build upload body: %w", err)
	}
	if _, err := filePart.Write(data); err != nil {
		return FileHandle{}, fmt.Errorf("failed to write upload body: %w", err)
	}
	if err := mw.Close(); err != nil {
		return FileHandle{}, fmt.Errorf("failed to finalize upload body: %w", err)
	}

	url := c.baseURL + "/upload/v1beta/files?key=" + key
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &buf)
	if err != nil {
		return FileHandle{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "multipart/related; boundary="+mw.Boundary())
	req.Header.Set("X-Goog-Upload-Protocol", "multipart")

	resp, err := c.uploadClient.Do(req)
	if err != nil {
		return FileHandle{}, uploadError(Gemini, transportError(Gemini, err))
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		perr := statusError(Gemini, resp.StatusCode, string(body))
		if perr.Kind == KindUpstream {
			perr.Kind = KindUpload
		}
		return FileHandle{}, perr
	}

	var parsed struct {
		File struct {
			Name           string `json:"name"`
			URI            string `json:"uri"`
			MIMEType       string `json:"mimeType"`
			ExpirationTime string `json:"expirationTime"`
		} `json:"file"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return FileHandle{}, fmt.Errorf("failed to decode upload response: %w", err)
	}
	if parsed.File.URI == "" {
		return FileHandle{}, &ProviderError{Provider: Gemini, Kind: KindUpload, Message: "upload response missing file uri"}
	}

	expiresAt := time.Now().Add(c.handleTTL)
	if parsed.File.ExpirationTime != "" {
		if t, err := time.Parse(time.RFC3339, parsed.File.ExpirationTime); err == nil {
			expiresAt = t
		}
	}
	mimeType := parsed.File.MIMEType
	if mimeType == "" {
		mimeType = "application/pdf"
	}
	return FileHandle{RemoteID: parsed.File.Name, URI: parsed.File.URI, MIMEType: mimeType, ExpiresAt: expiresAt}, nil
}

type geminiPart struct {
	Text     string          `json:"text,omitempty"`
	FileData *geminiFileData `json:"file_data,omitempty"`
}

type geminiFileData struct {
	FileURI  string `json:"file_uri"`
	MIMEType string `json:"mime_type"`
}

// Chat builds one generateContent call referencing the resolved handles.
// Handles must be ordered like Papers; the orchestrator guarantees that.
func (c *geminiClient) Chat(ctx context.Context, req ChatRequest) (string, error) {
	key := c.key(req.APIKey)
	if key == "" {
		return "", &ProviderError{Provider: Gemini, Kind: KindInvalidAPIKey, Message: "api key not provided"}
	}
	if len(req.Handles) != len(req.Papers) {
		return "", &ProviderError{Provider: Gemini, Kind: KindUpload, Message: fmt.Sprintf("resolved %d handles for %d papers", len(req.Handles), len(req.Papers))}
	}

	systemPrompt := req.SystemPrompt
	if systemPrompt == "" {
		systemPrompt = DefaultSystemPrompt
	}
	model := strings.TrimPrefix(req.Model, "models/")
	if model == "" {
		model = c.model
	}

	parts := []geminiPart{{Text: systemPrompt + "\n\nPapers:\n"}}
	for i, p := range req.Papers {
		parts = append(parts, geminiPart{Text: "- " + p.Title + "\n"})
		parts = append(parts, geminiPart{FileData: &geminiFileData{FileURI: req.Handles[i].URI, MIMEType: req.Handles[i].MIMEType}})
	}
	parts = append(parts, geminiPart{Text: "\n\nQuestion: " + req.Question})

	payload, err := json.Marshal(map[string]interface{}{
		"contents": []map[string]interface{}{{"role": "user", "parts": parts}},
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", c.baseURL, model, key)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", transportError(Gemini, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return "", statusError(Gemini, resp.StatusCode, string(body))
	}

	var parsed struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("failed to decode chat response: %w", err)
	}
	if len(parsed.Candidates) == 0 {
		return "", &ProviderError{Provider: Gemini, Kind: KindUpstream, Message: "empty candidates in response"}
	}
	var answer strings.Builder
	for _, part := range parsed.Candidates[0].Content.Parts {
		answer.WriteString(part.Text)
	}
	return answer.String(), nil
}
