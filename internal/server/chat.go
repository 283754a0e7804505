package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/mohammad-safakhou/confscout/deepdive"
	"github.com/mohammad-safakhou/confscout/models"
	"github.com/mohammad-safakhou/confscout/provider"
)

// ChatHandler serves Deep Dive conversations and provider model discovery.
type ChatHandler struct {
	Orch     *deepdive.Orchestrator
	Registry *provider.Registry
}

func (h *ChatHandler) Register(g *echo.Group, secret []byte) {
	use := func(next echo.HandlerFunc) echo.HandlerFunc { return withIdentity(next, secret) }
	g.POST("/chat", h.chat, use)
	g.GET("/chat/history", h.history, use)
	g.DELETE("/chat/session", h.clear, use)
	g.POST("/openai-models", h.openaiModels)
	g.POST("/gemini-models", h.geminiModels)
}

func (h *ChatHandler) chat(c echo.Context) error {
	var req ChatRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if strings.TrimSpace(req.Question) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "question required")
	}
	if len(req.Papers) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "papers required")
	}

	client, model, err := resolveProvider(req)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	answer, err := h.Orch.Ask(c.Request().Context(), identityOf(c), deepdive.AskRequest{
		Provider:     client,
		Papers:       req.Papers,
		Question:     req.Question,
		Model:        model,
		APIKey:       req.APIKey,
		SystemPrompt: req.SystemPrompt,
	})
	if err != nil {
		// Provider failures are inline results: the transcript already
		// carries the error-marked turn and the caller may retry.
		resp := ChatResponse{Error: err.Error(), Status: string(provider.KindUpstream)}
		if pe, ok := provider.AsProviderError(err); ok {
			resp.Status = string(pe.Kind)
		}
		return c.JSON(http.StatusOK, resp)
	}
	return c.JSON(http.StatusOK, ChatResponse{Answer: answer})
}

func (h *ChatHandler) history(c echo.Context) error {
	client, err := clientParam(c.QueryParam("model"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	turns := h.Orch.History(identityOf(c), client)
	if turns == nil {
		turns = []models.ChatTurn{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"history": turns})
}

func (h *ChatHandler) clear(c echo.Context) error {
	client, err := clientParam(c.QueryParam("model"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.Orch.ClearSession(c.Request().Context(), identityOf(c), client); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusOK)
}

func (h *ChatHandler) openaiModels(c echo.Context) error {
	return h.listModels(c, provider.OpenAI)
}

func (h *ChatHandler) geminiModels(c echo.Context) error {
	return h.listModels(c, provider.Gemini)
}

// listModels surfaces discovery failures in-band: an invalid key comes back
// as {error, models: []} with status 200 so the UI shows an inline
// credential failure.
func (h *ChatHandler) listModels(c echo.Context, client provider.Client) error {
	var req ModelsRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	prov, err := h.Registry.Get(client)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	list, err := prov.ListModels(c.Request().Context(), req.APIKey)
	if err != nil {
		return c.JSON(http.StatusOK, ModelsResponse{Models: []models.ProviderModel{}, Error: err.Error()})
	}
	return c.JSON(http.StatusOK, ModelsResponse{Models: list})
}

// resolveProvider maps the wire model selector to an adapter plus the
// per-provider model override.
func resolveProvider(req ChatRequest) (provider.Client, string, error) {
	switch strings.ToLower(strings.TrimSpace(req.Model)) {
	case "", "openai":
		return provider.OpenAI, req.OpenAIModel, nil
	case "gemini":
		return provider.Gemini, req.GeminiModel, nil
	}
	return "", "", errors.New("model must be openai or gemini")
}

func clientParam(v string) (provider.Client, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", "openai":
		return provider.OpenAI, nil
	case "gemini":
		return provider.Gemini, nil
	}
	return "", errors.New("model must be openai or gemini")
}
