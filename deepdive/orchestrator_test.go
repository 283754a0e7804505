package deepdive_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/mohammad-safakhou/confscout/deepdive"
	"github.com/mohammad-safakhou/confscout/models"
	"github.com/mohammad-safakhou/confscout/provider"
	"github.com/mohammad-safakhou/confscout/session/inmemory"
)

// ingestingProvider fakes a native-document provider and counts uploads.
type ingestingProvider struct {
	mu          sync.Mutex
	uploads     map[string]int
	chats       int
	chatErr     error
	lastHandles []provider.FileHandle
	expiry      time.Duration
	clock       func() time.Time
}

func newIngestingProvider(clock func() time.Time) *ingestingProvider {
	return &ingestingProvider{uploads: map[string]int{}, expiry: time.Hour, clock: clock}
}

func (p *ingestingProvider) Name() provider.Client { return provider.Gemini }

func (p *ingestingProvider) ListModels(context.Context, string) ([]models.ProviderModel, error) {
	return nil, nil
}

func (p *ingestingProvider) Chat(_ context.Context, req provider.ChatRequest) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.chats++
	p.lastHandles = append([]provider.FileHandle(nil), req.Handles...)
	if p.chatErr != nil {
		return "", p.chatErr
	}
	return fmt.Sprintf("answer %d", p.chats), nil
}

func (p *ingestingProvider) UploadDocument(_ context.Context, _ string, paper models.PaperRef) (provider.FileHandle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.uploads[paper.URL]++
	return provider.FileHandle{
		RemoteID:  "files/" + paper.URL,
		URI:       "uri://" + paper.URL,
		MIMEType:  "application/pdf",
		ExpiresAt: p.clock().Add(p.expiry),
	}, nil
}

func (p *ingestingProvider) totalUploads() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, c := range p.uploads {
		n += c
	}
	return n
}

// textProvider fakes a text-context provider with no document ingestion.
type textProvider struct {
	chats      int
	gotHandles bool
}

func (p *textProvider) Name() provider.Client { return provider.OpenAI }

func (p *textProvider) ListModels(context.Context, string) ([]models.ProviderModel, error) {
	return nil, nil
}

func (p *textProvider) Chat(_ context.Context, req provider.ChatRequest) (string, error) {
	p.chats++
	p.gotHandles = len(req.Handles) > 0
	return "text answer", nil
}

func testPapers(n int) []models.PaperRef {
	out := make([]models.PaperRef, n)
	for i := range out {
		out[i] = models.PaperRef{URL: fmt.Sprintf("https://openreview.net/forum?id=%d", i), Title: fmt.Sprintf("Paper %d", i)}
	}
	return out
}

func newOrchestrator(fake *ingestingProvider, clock func() time.Time) *deepdive.Orchestrator {
	registry := provider.NewStaticRegistry(map[provider.Client]provider.Provider{
		provider.Gemini: fake,
	})
	return deepdive.New(registry, inmemory.New(clock), clock, nil)
}

func TestRepeatTurnsUploadOnce(t *testing.T) {
	now := time.Now()
	clock := func() time.Time { return now }
	fake := newIngestingProvider(clock)
	orch := newOrchestrator(fake, clock)
	ctx := context.Background()

	req := deepdive.AskRequest{Provider: provider.Gemini, Papers: testPapers(3), Question: "turn 1"}
	if _, err := orch.Ask(ctx, "u1", req); err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if got := fake.totalUploads(); got != 3 {
		t.Fatalf("first turn should upload each paper once, got %d uploads", got)
	}

	req.Question = "turn 2"
	if _, err := orch.Ask(ctx, "u1", req); err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if got := fake.totalUploads(); got != 3 {
		t.Fatalf("second turn must reuse handles, got %d uploads", got)
	}
	if len(fake.lastHandles) != 3 {
		t.Fatalf("chat should receive one handle per paper, got %d", len(fake.lastHandles))
	}
}

func TestExpiredHandleReuploads(t *testing.T) {
	now := time.Now()
	clock := func() time.Time { return now }
	fake := newIngestingProvider(clock)
	orch := newOrchestrator(fake, clock)
	ctx := context.Background()

	req := deepdive.AskRequest{Provider: provider.Gemini, Papers: testPapers(1), Question: "q"}
	if _, err := orch.Ask(ctx, "u1", req); err != nil {
		t.Fatalf("Ask: %v", err)
	}
	now = now.Add(2 * time.Hour) // past the 1h handle expiry
	if _, err := orch.Ask(ctx, "u1", req); err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if got := fake.totalUploads(); got != 2 {
		t.Fatalf("expired handle must trigger a new upload, got %d", got)
	}
}

func TestConcurrentTurnsShareUpload(t *testing.T) {
	now := time.Now()
	clock := func() time.Time { return now }
	fake := newIngestingProvider(clock)
	orch := newOrchestrator(fake, clock)
	ctx := context.Background()

	req := deepdive.AskRequest{Provider: provider.Gemini, Papers: testPapers(1), Question: "q"}
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := orch.Ask(ctx, "u1", req); err != nil {
				t.Errorf("Ask: %v", err)
			}
		}()
	}
	wg.Wait()
	if got := fake.totalUploads(); got != 1 {
		t.Fatalf("concurrent turns on one uncached paper must share one upload, got %d", got)
	}
	turns := orch.History("u1", provider.Gemini)
	if len(turns) != 16 {
		t.Fatalf("expected 16 transcript entries, got %d", len(turns))
	}
}

func TestTranscriptOrderingAndErrorTurns(t *testing.T) {
	now := time.Now()
	clock := func() time.Time { return now }
	fake := newIngestingProvider(clock)
	orch := newOrchestrator(fake, clock)
	ctx := context.Background()
	req := deepdive.AskRequest{Provider: provider.Gemini, Papers: testPapers(1), Question: "first"}

	if _, err := orch.Ask(ctx, "u1", req); err != nil {
		t.Fatalf("Ask: %v", err)
	}

	fake.chatErr = &provider.ProviderError{Provider: provider.Gemini, Kind: provider.KindRateLimited, Message: "slow down"}
	req.Question = "second"
	if _, err := orch.Ask(ctx, "u1", req); err == nil {
		t.Fatal("expected provider error to propagate")
	}

	fake.chatErr = nil
	req.Question = "third"
	if _, err := orch.Ask(ctx, "u1", req); err != nil {
		t.Fatalf("Ask after failure: %v", err)
	}

	turns := orch.History("u1", provider.Gemini)
	if len(turns) != 6 {
		t.Fatalf("expected 6 turns, got %d", len(turns))
	}
	wantRoles := []models.ChatRole{models.RoleUser, models.RoleAssistant, models.RoleUser, models.RoleAssistant, models.RoleUser, models.RoleAssistant}
	for i, want := range wantRoles {
		if turns[i].Role != want {
			t.Fatalf("turn %d role %s, want %s", i, turns[i].Role, want)
		}
	}
	if turns[2].Content != "second" {
		t.Fatalf("failed question not preserved: %q", turns[2].Content)
	}
	if !turns[3].IsError {
		t.Fatal("failed call must append an error-marked entry")
	}
	if turns[5].IsError || turns[1].IsError {
		t.Fatal("successful answers must not be error-marked")
	}
}

func TestHistoryReturnsCopy(t *testing.T) {
	now := time.Now()
	clock := func() time.Time { return now }
	fake := newIngestingProvider(clock)
	orch := newOrchestrator(fake, clock)
	if _, err := orch.Ask(context.Background(), "u1", deepdive.AskRequest{Provider: provider.Gemini, Papers: testPapers(1), Question: "q"}); err != nil {
		t.Fatalf("Ask: %v", err)
	}
	turns := orch.History("u1", provider.Gemini)
	turns[0].Content = "mutated"
	if orch.History("u1", provider.Gemini)[0].Content == "mutated" {
		t.Fatal("History must return a copy")
	}
}

func TestClearSession(t *testing.T) {
	now := time.Now()
	clock := func() time.Time { return now }
	fake := newIngestingProvider(clock)
	orch := newOrchestrator(fake, clock)
	ctx := context.Background()
	req := deepdive.AskRequest{Provider: provider.Gemini, Papers: testPapers(1), Question: "q"}

	if _, err := orch.Ask(ctx, "u1", req); err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if err := orch.ClearSession(ctx, "u1", provider.Gemini); err != nil {
		t.Fatalf("ClearSession: %v", err)
	}
	if got := orch.History("u1", provider.Gemini); len(got) != 0 {
		t.Fatalf("history not cleared: %d entries", len(got))
	}
	// Cache entries are gone too, so the next turn re-uploads.
	if _, err := orch.Ask(ctx, "u1", req); err != nil {
		t.Fatalf("Ask after clear: %v", err)
	}
	if got := fake.totalUploads(); got != 2 {
		t.Fatalf("expected re-upload after clear, got %d uploads", got)
	}
}

func TestSessionsAreIsolated(t *testing.T) {
	now := time.Now()
	clock := func() time.Time { return now }
	fake := newIngestingProvider(clock)
	orch := newOrchestrator(fake, clock)
	ctx := context.Background()
	req := deepdive.AskRequest{Provider: provider.Gemini, Papers: testPapers(1), Question: "q"}

	if _, err := orch.Ask(ctx, "u1", req); err != nil {
		t.Fatalf("Ask u1: %v", err)
	}
	if _, err := orch.Ask(ctx, "u2", req); err != nil {
		t.Fatalf("Ask u2: %v", err)
	}
	// Handles are per session, so the same paper uploads once per identity.
	if got := fake.totalUploads(); got != 2 {
		t.Fatalf("expected per-session uploads, got %d", got)
	}
	if len(orch.History("u1", provider.Gemini)) != 2 || len(orch.History("u2", provider.Gemini)) != 2 {
		t.Fatal("histories must stay isolated")
	}
}

func TestNonIngestingProviderSkipsUploads(t *testing.T) {
	tp := &textProvider{}
	registry := provider.NewStaticRegistry(map[provider.Client]provider.Provider{
		provider.OpenAI: tp,
	})
	orch := deepdive.New(registry, inmemory.New(nil), nil, nil)
	answer, err := orch.Ask(context.Background(), "u1", deepdive.AskRequest{Provider: provider.OpenAI, Papers: testPapers(2), Question: "q"})
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if answer != "text answer" {
		t.Fatalf("unexpected answer %q", answer)
	}
	if tp.gotHandles {
		t.Fatal("text provider must not receive handles")
	}
}

func TestUnknownProvider(t *testing.T) {
	orch := deepdive.New(provider.NewStaticRegistry(nil), inmemory.New(nil), nil, nil)
	if _, err := orch.Ask(context.Background(), "u1", deepdive.AskRequest{Provider: provider.Client("claude"), Question: "q"}); err == nil {
		t.Fatal("expected unsupported provider error")
	}
	if got := orch.History("u1", provider.Client("claude")); len(got) != 0 {
		t.Fatal("rejected turn must not touch the transcript")
	}
}
