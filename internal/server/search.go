package server

import (
	"errors"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/mohammad-safakhou/confscout/corpus"
	"github.com/mohammad-safakhou/confscout/internal/telemetry"
	"github.com/mohammad-safakhou/confscout/models"
	"github.com/mohammad-safakhou/confscout/search"
)

// SearchHandler serves semantic search and filter discovery.
type SearchHandler struct {
	Search  *search.Service
	Index   *corpus.Index
	Metrics *telemetry.Metrics
	Logger  *log.Logger
}

func (h *SearchHandler) Register(g *echo.Group) {
	g.POST("/search", h.search)
	g.GET("/filters", h.filters)
}

func (h *SearchHandler) search(c echo.Context) error {
	var req SearchRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	results, err := h.Search.Run(c.Request().Context(), search.Request{
		Query: req.Query,
		Filter: models.SearchFilter{
			Affiliation: req.Affiliation,
			Author:      req.Author,
			Session:     req.Session,
			Day:         req.Day,
			AMPM:        req.AMPM,
		},
		Limit:     req.Limit,
		Threshold: req.Threshold,
	})
	if err != nil {
		var invalid *search.InvalidFilterError
		if errors.As(err, &invalid) {
			return echo.NewHTTPError(http.StatusBadRequest, invalid.Error())
		}
		// Index or embedding trouble degrades to an empty result set with
		// an inline notice rather than failing the request.
		if h.Metrics != nil {
			h.Metrics.SearchFails.Inc()
		}
		h.Logger.Printf("search degraded: %v", err)
		return c.JSON(http.StatusOK, SearchResponse{
			Results: []SearchResultItem{},
			Notice:  "search is temporarily unavailable, please retry",
		})
	}

	if h.Metrics != nil {
		h.Metrics.Searches.Inc()
	}
	return c.JSON(http.StatusOK, SearchResponse{Results: toWireResults(results)})
}

// filters always answers 200; with no index it returns the empty default
// shape so the UI renders without options instead of erroring.
func (h *SearchHandler) filters(c echo.Context) error {
	return c.JSON(http.StatusOK, h.Index.FilterOptions())
}

func toWireResults(results []models.SearchResult) []SearchResultItem {
	out := make([]SearchResultItem, 0, len(results))
	for _, r := range results {
		out = append(out, SearchResultItem{
			ID:             r.Item.ID,
			Title:          r.Item.Title,
			Abstract:       r.Item.Abstract,
			Authors:        r.Item.Authors,
			Affiliation:    r.Item.Affiliation,
			Session:        r.Item.Session,
			Day:            r.Item.Day,
			AMPM:           r.Item.AMPM,
			StartTime:      r.Item.StartTime,
			PosterPosition: r.Item.PosterPosition,
			PaperURL:       r.Item.PaperURL,
			OpenReviewURL:  r.Item.OpenReviewURL,
			Distance:       r.Distance,
		})
	}
	return out
}
