package orchestrator

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ziadkadry99/cube-pilot/internal/queryval"
)

// LLMResponse is the discriminated union the model returns when converting a
// question into a query. response_type selects which fields are meaningful.
type LLMResponse struct {
	ResponseType    string          `json:"response_type"`
	CubeQuery       *queryval.Query `json:"cube_query,omitempty"`
	Interpretation  string          `json:"interpretation,omitempty"`
	Description     string          `json:"description,omitempty"`
	Message         string          `json:"message,omitempty"`
	Questions       []string        `json:"questions,omitempty"`
	Suggestions     []string        `json:"suggestions,omitempty"`
	ConfidenceScore float64         `json:"confidence_score,omitempty"`

	// Raw keeps the original JSON for history bookkeeping.
	Raw json.RawMessage `json:"-"`
}

// Response type discriminators.
const (
	ResponseCubeQuery     = "cube_query"
	ResponseClarification = "clarification_needed"
	ResponseError         = "error"
)

// UpstreamModelError marks output from the model that does not conform to
// the response contract. It is the caller's signal that the failure is on
// the model side, not the user's query.
type UpstreamModelError struct {
	Reason  string
	Content string
}

func (e *UpstreamModelError) Error() string {
	return "model returned a non-conforming response: " + e.Reason
}

// ParseLLMResponse strictly decodes the model's output into the response
// union. Markdown fences around the JSON object are tolerated; anything
// else non-conforming is an UpstreamModelError.
func ParseLLMResponse(content string) (*LLMResponse, error) {
	trimmed := strings.TrimSpace(content)
	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```json")
		trimmed = strings.TrimPrefix(trimmed, "```")
		trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
		trimmed = strings.TrimSpace(trimmed)
	}

	var resp LLMResponse
	if err := json.Unmarshal([]byte(trimmed), &resp); err != nil {
		return nil, &UpstreamModelError{Reason: fmt.Sprintf("invalid JSON: %v", err), Content: content}
	}
	resp.Raw = json.RawMessage(trimmed)

	switch resp.ResponseType {
	case ResponseCubeQuery:
		if resp.CubeQuery == nil {
			return nil, &UpstreamModelError{Reason: "cube_query response without a query", Content: content}
		}
	case ResponseClarification:
		if resp.Message == "" && len(resp.Questions) == 0 {
			return nil, &UpstreamModelError{Reason: "clarification response without message or questions", Content: content}
		}
	case ResponseError:
		if resp.Description == "" {
			resp.Description = "The model could not answer this question with the available schema."
		}
	case "":
		return nil, &UpstreamModelError{Reason: "missing response_type", Content: content}
	default:
		return nil, &UpstreamModelError{Reason: "unknown response_type " + resp.ResponseType, Content: content}
	}

	return &resp, nil
}
