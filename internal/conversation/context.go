package conversation

import "time"

// ContextMessage is one entry in a session's full (uncapped) transcript.
type ContextMessage struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// SessionContext holds the complete per-session state the ambiguity
// assessor works against: the full transcript plus the query context
// accumulated from clarification answers. Unlike History it is never
// size-capped. It is not safe for concurrent use; sessions are sequential.
type SessionContext struct {
	SessionID    string           `json:"session_id"`
	Messages     []ContextMessage `json:"messages"`
	QueryContext map[string]any   `json:"query_context"`
}

// NewSessionContext creates an empty context for a session.
func NewSessionContext(sessionID string) *SessionContext {
	return &SessionContext{
		SessionID:    sessionID,
		QueryContext: map[string]any{},
	}
}

// AddMessage appends a message to the transcript.
func (c *SessionContext) AddMessage(role, content string) {
	c.Messages = append(c.Messages, ContextMessage{
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
	})
}

// LastUserMessage returns the most recent user message, or "" if none.
func (c *SessionContext) LastUserMessage() string {
	for i := len(c.Messages) - 1; i >= 0; i-- {
		if c.Messages[i].Role == "user" {
			return c.Messages[i].Content
		}
	}
	return ""
}

// SetContext records a clarified fact under the given aspect key.
func (c *SessionContext) SetContext(key string, value any) {
	if c.QueryContext == nil {
		c.QueryContext = map[string]any{}
	}
	c.QueryContext[key] = value
}

// ClearContext drops every accumulated clarification. Used on rejection so
// no stale answer leaks into the next assessment.
func (c *SessionContext) ClearContext() {
	c.QueryContext = map[string]any{}
}
