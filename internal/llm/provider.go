// Package llm abstracts chat-completion providers behind a single interface
// so the pipeline can run against OpenAI, Anthropic, or a local Ollama
// without caring which is configured.
package llm

import "context"

// Role identifies who authored a conversation message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of a conversation sent to the model.
type Message struct {
	Role    Role
	Content string
}

// CompletionRequest describes one completion call. A zero Model falls back
// to the provider's configured default; a zero MaxTokens falls back to
// defaultMaxTokens. JSONMode asks the backend to emit a single JSON object,
// which the query pipeline relies on for its structured responses.
type CompletionRequest struct {
	Model       string
	Messages    []Message
	MaxTokens   int
	Temperature float64
	JSONMode    bool
}

// CompletionResponse is the provider-normalized result of a completion.
type CompletionResponse struct {
	Content      string
	InputTokens  int
	OutputTokens int
	Model        string
	FinishReason string
}

const defaultMaxTokens = 4096

// Provider is a chat-completion backend.
type Provider interface {
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
	Name() string
}

// pick returns req's value when set, otherwise the provider default.
func pick(reqValue, fallback string) string {
	if reqValue != "" {
		return reqValue
	}
	return fallback
}

func tokenBudget(requested int) int {
	if requested > 0 {
		return requested
	}
	return defaultMaxTokens
}
