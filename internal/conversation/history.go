package conversation

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ziadkadry99/cube-pilot/internal/llm"
)

// DefaultMaxMessages is the default size of the LLM-facing history window.
const DefaultMaxMessages = 6

// Message is one entry in the bounded conversation history.
type Message struct {
	Role      string          `json:"role"` // "user" or "assistant"
	Content   string          `json:"content"`
	Timestamp time.Time       `json:"timestamp"`
	// ResponseData keeps the structured assistant response for later
	// inspection; it is stripped before messages reach the LLM.
	ResponseData json.RawMessage `json:"response_data,omitempty"`
}

// AssistantReply is the minimal view of a structured LLM response needed to
// record it in history.
type AssistantReply struct {
	ResponseType   string
	Interpretation string
	Raw            json.RawMessage
}

// History is the bounded, LLM-facing conversation window. After any add the
// message count never exceeds the configured maximum (FIFO trim).
type History struct {
	maxMessages int
	messages    []Message
}

// NewHistory creates a history keeping at most maxMessages entries.
// A non-positive value falls back to DefaultMaxMessages.
func NewHistory(maxMessages int) *History {
	if maxMessages <= 0 {
		maxMessages = DefaultMaxMessages
	}
	return &History{maxMessages: maxMessages}
}

// AddUser appends a user message and trims the window.
func (h *History) AddUser(text string) {
	h.messages = append(h.messages, Message{
		Role:      "user",
		Content:   text,
		Timestamp: time.Now(),
	})
	h.trim()
}

// AddAssistant appends an assistant message, deriving the display content
// from the structured response type, and trims the window.
func (h *History) AddAssistant(reply AssistantReply) {
	var content string
	switch reply.ResponseType {
	case "cube_query":
		content = "I found data for your query: " + reply.Interpretation
	case "clarification_needed":
		content = "I need clarification: " + reply.Interpretation
	case "error":
		content = "Error occurred: " + reply.Interpretation
	default:
		if reply.Interpretation != "" {
			content = reply.Interpretation
		} else {
			content = "Response processed"
		}
	}

	h.messages = append(h.messages, Message{
		Role:         "assistant",
		Content:      content,
		Timestamp:    time.Now(),
		ResponseData: reply.Raw,
	})
	h.trim()
}

// Messages formats the history for the LLM: the system prompt first, then
// role and content only. Internal bookkeeping is stripped.
func (h *History) Messages(systemPrompt string) []llm.Message {
	out := make([]llm.Message, 0, len(h.messages)+1)
	out = append(out, llm.Message{Role: llm.RoleSystem, Content: systemPrompt})
	for _, m := range h.messages {
		out = append(out, llm.Message{Role: llm.Role(m.Role), Content: m.Content})
	}
	return out
}

// Len returns the current message count.
func (h *History) Len() int { return len(h.messages) }

// Clear removes all history.
func (h *History) Clear() { h.messages = nil }

// Export returns a copy of the full history for persistence.
func (h *History) Export() []Message {
	out := make([]Message, len(h.messages))
	copy(out, h.messages)
	return out
}

// Import replaces the history, keeping only the newest maxMessages entries.
func (h *History) Import(messages []Message) {
	if len(messages) > h.maxMessages {
		messages = messages[len(messages)-h.maxMessages:]
	}
	h.messages = make([]Message, len(messages))
	copy(h.messages, messages)
}

// ContextSummary describes the history for status endpoints.
type ContextSummary struct {
	MessageCount int       `json:"message_count"`
	MaxMessages  int       `json:"max_messages"`
	HasHistory   bool      `json:"has_history"`
	LastMessage  time.Time `json:"last_message_timestamp,omitempty"`
	Summary      string    `json:"conversation_summary"`
}

// Context returns conversation metadata for debugging and status reporting.
func (h *History) Context() ContextSummary {
	summary := ContextSummary{
		MessageCount: len(h.messages),
		MaxMessages:  h.maxMessages,
		HasHistory:   len(h.messages) > 0,
	}
	if len(h.messages) > 0 {
		summary.LastMessage = h.messages[len(h.messages)-1].Timestamp
	}
	summary.Summary = h.summarize()
	return summary
}

// topicKeywords drive the crude topic extraction used in status summaries.
var topicKeywords = []string{"revenue", "event", "ticket", "sales", "order"}

func (h *History) summarize() string {
	if len(h.messages) == 0 {
		return "No conversation history"
	}

	var userCount, assistantCount int
	topicSet := map[string]bool{}
	for _, m := range h.messages {
		switch m.Role {
		case "user":
			userCount++
			content := strings.ToLower(m.Content)
			for _, kw := range topicKeywords {
				if strings.Contains(content, kw) {
					topicSet[kw] = true
				}
			}
		case "assistant":
			assistantCount++
		}
	}

	topics := make([]string, 0, len(topicSet))
	for t := range topicSet {
		topics = append(topics, t)
	}
	sort.Strings(topics)
	topicStr := "general queries"
	if len(topics) > 0 {
		topicStr = strings.Join(topics, ", ")
	}

	var b strings.Builder
	b.WriteString(plural(userCount, "user query", "user queries"))
	b.WriteString(", ")
	b.WriteString(plural(assistantCount, "response", "responses"))
	b.WriteString(" about ")
	b.WriteString(topicStr)
	return b.String()
}

func plural(n int, singular, pluralForm string) string {
	if n == 1 {
		return "1 " + singular
	}
	return strconv.Itoa(n) + " " + pluralForm
}

func (h *History) trim() {
	if len(h.messages) > h.maxMessages {
		h.messages = h.messages[len(h.messages)-h.maxMessages:]
	}
}
