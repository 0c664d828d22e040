package llm

import (
	"context"
	"testing"
	"time"
)

type countingProvider struct {
	calls int
}

func (p *countingProvider) Complete(_ context.Context, _ CompletionRequest) (*CompletionResponse, error) {
	p.calls++
	return &CompletionResponse{Content: "ok"}, nil
}

func (p *countingProvider) Name() string { return "counting" }

func TestNewProviderUnsupported(t *testing.T) {
	if _, err := NewProvider("gemini", "model"); err == nil {
		t.Fatal("expected error for unsupported provider type")
	}
}

func TestNewProviderOllamaNeedsNoKey(t *testing.T) {
	p, err := NewProvider("ollama", "llama3")
	if err != nil {
		t.Fatalf("NewProvider failed: %v", err)
	}
	if p.Name() != "ollama" {
		t.Errorf("unexpected provider name: %q", p.Name())
	}
}

func TestSplitSystem(t *testing.T) {
	system, turns := splitSystem([]Message{
		{Role: RoleSystem, Content: "first"},
		{Role: RoleUser, Content: "hello"},
		{Role: RoleSystem, Content: "second"},
		{Role: RoleAssistant, Content: "hi"},
	})

	if system != "first\n\nsecond" {
		t.Errorf("unexpected system prompt: %q", system)
	}
	if len(turns) != 2 || turns[0].Role != "user" || turns[1].Role != "assistant" {
		t.Errorf("unexpected turns: %+v", turns)
	}
}

func TestRateLimiterPassthrough(t *testing.T) {
	inner := &countingProvider{}
	if p := NewRateLimitedProvider(inner, 0); p != inner {
		t.Error("non-positive rpm must return the provider unwrapped")
	}
}

func TestRateLimiterSpacesCalls(t *testing.T) {
	inner := &countingProvider{}
	limited := NewRateLimitedProvider(inner, 600) // 100ms between calls

	start := time.Now()
	for i := 0; i < 3; i++ {
		if _, err := limited.Complete(context.Background(), CompletionRequest{}); err != nil {
			t.Fatalf("Complete failed: %v", err)
		}
	}
	if elapsed := time.Since(start); elapsed < 150*time.Millisecond {
		t.Errorf("three calls finished in %v, expected spacing of ~100ms each", elapsed)
	}
	if inner.calls != 3 {
		t.Errorf("expected 3 calls, got %d", inner.calls)
	}
}

func TestRateLimiterHonorsContext(t *testing.T) {
	limited := NewRateLimitedProvider(&countingProvider{}, 1) // 60s between calls
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if _, err := limited.Complete(ctx, CompletionRequest{}); err != nil {
		t.Fatalf("first call should pass immediately: %v", err)
	}
	if _, err := limited.Complete(ctx, CompletionRequest{}); err == nil {
		t.Fatal("second call should fail when the context expires before its slot")
	}
}

func TestTokenBudget(t *testing.T) {
	if got := tokenBudget(0); got != defaultMaxTokens {
		t.Errorf("zero budget should default, got %d", got)
	}
	if got := tokenBudget(256); got != 256 {
		t.Errorf("explicit budget should pass through, got %d", got)
	}
}
