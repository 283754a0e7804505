// Package deepdive orchestrates multi-turn conversations over a
// user-curated set of papers: it resolves provider file handles through the
// session cache, invokes the chat provider, and owns each session's
// append-only transcript.
package deepdive

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/mohammad-safakhou/confscout/internal/telemetry"
	"github.com/mohammad-safakhou/confscout/models"
	"github.com/mohammad-safakhou/confscout/provider"
	"github.com/mohammad-safakhou/confscout/session"
)

// AskRequest is one conversation turn submission.
type AskRequest struct {
	Provider     provider.Client
	Papers       []models.PaperRef
	Question     string
	Model        string
	APIKey       string
	SystemPrompt string
}

// Orchestrator coordinates turns for every active session. All of its side
// effects land in the session cache and the per-session transcript; the
// corpus index is never touched from here.
type Orchestrator struct {
	registry *provider.Registry
	cache    session.Cache
	clock    session.Clock
	metrics  *telemetry.Metrics
	logger   *log.Logger

	uploads singleflight.Group

	mu       sync.Mutex
	sessions map[string]*state
}

// state is one session's exclusively-owned conversation. Its mutex
// serializes turns: at most one in-flight provider call per session.
type state struct {
	mu    sync.Mutex
	turns []models.ChatTurn
}

// New builds an orchestrator. A nil clock means time.Now; nil metrics
// disables recording.
func New(registry *provider.Registry, cache session.Cache, clock session.Clock, metrics *telemetry.Metrics) *Orchestrator {
	if clock == nil {
		clock = time.Now
	}
	return &Orchestrator{
		registry: registry,
		cache:    cache,
		clock:    clock,
		metrics:  metrics,
		logger:   log.New(log.Writer(), "[DIVE] ", log.LstdFlags),
		sessions: make(map[string]*state),
	}
}

func sessionKey(identity string, client provider.Client) string {
	return identity + "|" + string(client)
}

func (o *Orchestrator) sessionState(identity string, client provider.Client) *state {
	o.mu.Lock()
	defer o.mu.Unlock()
	key := sessionKey(identity, client)
	st, ok := o.sessions[key]
	if !ok {
		st = &state{}
		o.sessions[key] = st
	}
	return st
}

// Ask runs one conversation turn. The user's question is appended first;
// on provider success the answer is appended, on failure an error-marked
// entry is appended instead and the structured error returned. Either way
// the transcript keeps the full audit trail and the next Ask proceeds
// normally.
func (o *Orchestrator) Ask(ctx context.Context, identity string, req AskRequest) (string, error) {
	prov, err := o.registry.Get(req.Provider)
	if err != nil {
		return "", err
	}

	st := o.sessionState(identity, req.Provider)
	st.mu.Lock()
	defer st.mu.Unlock()

	st.turns = append(st.turns, models.ChatTurn{
		ID:        uuid.NewString(),
		Role:      models.RoleUser,
		Content:   req.Question,
		CreatedAt: o.clock(),
	})

	answer, err := o.runTurn(ctx, identity, prov, req)
	if err != nil {
		st.turns = append(st.turns, models.ChatTurn{
			ID:        uuid.NewString(),
			Role:      models.RoleAssistant,
			Content:   err.Error(),
			IsError:   true,
			CreatedAt: o.clock(),
		})
		if o.metrics != nil {
			o.metrics.ChatTurns.WithLabelValues(string(req.Provider), "error").Inc()
		}
		return "", err
	}

	st.turns = append(st.turns, models.ChatTurn{
		ID:        uuid.NewString(),
		Role:      models.RoleAssistant,
		Content:   answer,
		CreatedAt: o.clock(),
	})
	if o.metrics != nil {
		o.metrics.ChatTurns.WithLabelValues(string(req.Provider), "ok").Inc()
	}
	return answer, nil
}

func (o *Orchestrator) runTurn(ctx context.Context, identity string, prov provider.Provider, req AskRequest) (string, error) {
	chatReq := provider.ChatRequest{
		Papers:       req.Papers,
		Question:     req.Question,
		Model:        req.Model,
		APIKey:       req.APIKey,
		SystemPrompt: req.SystemPrompt,
	}

	if ingester, ok := prov.(provider.DocumentIngester); ok {
		handles, err := o.resolveHandles(ctx, identity, prov.Name(), ingester, req)
		if err != nil {
			return "", err
		}
		chatReq.Handles = handles
	}

	return prov.Chat(ctx, chatReq)
}

// resolveHandles maps every referenced paper to a provider file handle:
// cache hit with an unexpired entry reuses it, anything else uploads once.
// Concurrent turns racing on the same uncached paper share one upload via
// singleflight; followers reuse the first caller's handle.
func (o *Orchestrator) resolveHandles(ctx context.Context, identity string, client provider.Client, ingester provider.DocumentIngester, req AskRequest) ([]provider.FileHandle, error) {
	handles := make([]provider.FileHandle, len(req.Papers))
	for i, paper := range req.Papers {
		key := session.Key{Identity: identity, Provider: client, PaperID: paper.URL}

		handle, ok, err := o.cache.Get(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("session cache get: %w", err)
		}
		if ok {
			if o.metrics != nil {
				o.metrics.CacheHits.Inc()
			}
			handles[i] = handle
			continue
		}
		if o.metrics != nil {
			o.metrics.CacheMisses.Inc()
		}

		v, err, _ := o.uploads.Do(key.String(), func() (interface{}, error) {
			// Another flight may have finished between our miss and here.
			if cached, ok, err := o.cache.Get(ctx, key); err == nil && ok {
				return cached, nil
			}
			uploaded, err := ingester.UploadDocument(ctx, req.APIKey, paper)
			if err != nil {
				return nil, err
			}
			if o.metrics != nil {
				o.metrics.Uploads.Inc()
			}
			o.logger.Printf("uploaded %q for session %s via %s", paper.Title, identity, client)
			if err := o.cache.Put(ctx, key, uploaded); err != nil {
				return nil, fmt.Errorf("session cache put: %w", err)
			}
			return uploaded, nil
		})
		if err != nil {
			return nil, err
		}
		handles[i] = v.(provider.FileHandle)
	}
	return handles, nil
}

// History returns a copy of the session's transcript in submission order.
func (o *Orchestrator) History(identity string, client provider.Client) []models.ChatTurn {
	st := o.sessionState(identity, client)
	st.mu.Lock()
	defer st.mu.Unlock()
	out := make([]models.ChatTurn, len(st.turns))
	copy(out, st.turns)
	return out
}

// ClearSession drops the transcript and every cached handle for one
// (identity, provider) pair.
func (o *Orchestrator) ClearSession(ctx context.Context, identity string, client provider.Client) error {
	st := o.sessionState(identity, client)
	st.mu.Lock()
	st.turns = nil
	st.mu.Unlock()
	return o.cache.ClearSession(ctx, identity, client)
}
