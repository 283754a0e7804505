package server

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	appconfig "github.com/mohammad-safakhou/confscout/config"
	"github.com/mohammad-safakhou/confscout/corpus"
	"github.com/mohammad-safakhou/confscout/deepdive"
	"github.com/mohammad-safakhou/confscout/embedding"
	"github.com/mohammad-safakhou/confscout/internal/telemetry"
	"github.com/mohammad-safakhou/confscout/papers"
	"github.com/mohammad-safakhou/confscout/provider"
	"github.com/mohammad-safakhou/confscout/search"
	"github.com/mohammad-safakhou/confscout/session"
	"github.com/mohammad-safakhou/confscout/session/inmemory"
	"github.com/mohammad-safakhou/confscout/session/redisstore"
)

// Run wires the full backend and serves until the listener fails.
func Run(cfg *appconfig.Config, addr string) error {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	// Unified HTTP error handler with structured JSON and logging
	baseLogger := log.New(log.Writer(), "[HTTP] ", log.LstdFlags)
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		baseLogger.Printf("%d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
		if !c.Response().Committed {
			_ = c.JSON(code, map[string]interface{}{"error": msg})
		}
	}
	origins := cfg.Server.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Authorization", "Cookie"},
		AllowCredentials: true,
	}))

	e.GET("/healthz", func(c echo.Context) error { return c.String(200, "ok") })

	var metrics *telemetry.Metrics
	if cfg.Telemetry.Enabled {
		reg := prometheus.NewRegistry()
		metrics = telemetry.New(reg)
		e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))
	}

	// The corpus snapshot is optional at startup: without it search answers
	// with an inline notice and filter discovery serves the default shape.
	index, err := corpus.Load(cfg.Corpus.Path)
	if err != nil {
		log.Printf("corpus snapshot not loaded (%s): %v", cfg.Corpus.Path, err)
		index = nil
	} else {
		log.Printf("corpus loaded: %d items, dimension %d", index.Len(), index.Dimension())
	}

	embedder := embedding.NewClient(cfg.Embedding)
	searcher := search.NewService(index, embedder)

	fetcher := papers.NewFetcher(cfg.Providers.Gemini.UploadTimeout)
	registry := provider.NewRegistry(cfg.Providers, fetcher)

	cache, err := newSessionCache(cfg)
	if err != nil {
		return err
	}
	orch := deepdive.New(registry, cache, nil, metrics)

	api := e.Group("/api")

	sh := &SearchHandler{Search: searcher, Index: index, Metrics: metrics, Logger: baseLogger}
	sh.Register(api)

	ch := &ChatHandler{Orch: orch, Registry: registry}
	ch.Register(api, []byte(cfg.Server.JWTSecret))

	if addr == "" {
		addr = cfg.Server.Address
		if addr == "" {
			addr = ":10002"
		}
	}
	log.Printf("listening on %s", addr)
	return e.Start(addr)
}

// newSessionCache builds the Deep-Dive handle cache per config: redis when
// selected (handles survive restarts up to their TTL), in-memory otherwise
// (lost on restart, re-uploads on the next turn; a cold-start cost only).
func newSessionCache(cfg *appconfig.Config) (session.Cache, error) {
	switch cfg.Session.Backend {
	case "redis":
		r := cfg.Storage.Redis
		if r.Host == "" || r.Port == "" {
			return nil, fmt.Errorf("session.backend redis requires storage.redis.host/port")
		}
		client, err := redisstore.Conn(context.Background(), r.Host, r.Port, r.Password, r.DB, r.Timeout)
		if err != nil {
			return nil, err
		}
		return redisstore.New(client, nil), nil
	default:
		return inmemory.New(nil), nil
	}
}
