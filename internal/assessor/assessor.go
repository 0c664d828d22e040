package assessor

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/ziadkadry99/cube-pilot/internal/conversation"
	"github.com/ziadkadry99/cube-pilot/internal/llm"
	"github.com/ziadkadry99/cube-pilot/internal/queryval"
	"github.com/ziadkadry99/cube-pilot/internal/schema"
)

// Assessor drives the ambiguity-assessment workflow. Each method performs a
// single state transition: one LLM call with a state-specific prompt, a
// strict parse of the structured output, and a uniform Response envelope.
// Any failure collapses to an error response; the caller resets the session
// to query_assessment on the next turn.
type Assessor struct {
	provider llm.Provider
	model    string
	catalog  *schema.Catalog
	verbose  bool
}

// New creates an assessor over the given provider and catalog.
func New(provider llm.Provider, model string, catalog *schema.Catalog) *Assessor {
	return &Assessor{provider: provider, model: model, catalog: catalog}
}

// SetVerbose enables per-transition logging.
func (a *Assessor) SetVerbose(v bool) {
	a.verbose = v
}

func (a *Assessor) complete(ctx context.Context, prompt string) (string, error) {
	resp, err := a.provider.Complete(ctx, llm.CompletionRequest{
		Model: a.model,
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: baseSystemPrompt},
			{Role: llm.RoleUser, Content: prompt},
		},
		MaxTokens:   2048,
		Temperature: 0.1,
		JSONMode:    true,
	})
	if err != nil {
		return "", fmt.Errorf("completing %s request: %w", a.provider.Name(), err)
	}
	return resp.Content, nil
}

// parseOutput strictly decodes the model's JSON into out. Providers without
// a native JSON mode sometimes wrap the object in a markdown fence, so a
// fenced block is tolerated before the strict decode.
func parseOutput(content string, out any) error {
	trimmed := strings.TrimSpace(content)
	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```json")
		trimmed = strings.TrimPrefix(trimmed, "```")
		trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
		trimmed = strings.TrimSpace(trimmed)
	}
	dec := json.NewDecoder(strings.NewReader(trimmed))
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("parsing model output: %w", err)
	}
	return nil
}

func successResponse(state State, typ ResponseType, data map[string]any) Response {
	return Response{
		Success:      true,
		State:        state,
		ResponseType: typ,
		Data:         data,
		Timestamp:    time.Now(),
	}
}

func errorResponse(err error) Response {
	return Response{
		Success:      false,
		State:        StateError,
		ResponseType: TypeError,
		Error:        err.Error(),
		Timestamp:    time.Now(),
	}
}

// AssessQuery evaluates a user query against the schema and decides whether
// it can proceed to confirmation or needs one clarification first.
func (a *Assessor) AssessQuery(ctx context.Context, userQuery string, sess *conversation.SessionContext) Response {
	content, err := a.complete(ctx, assessmentPrompt(userQuery, a.catalog, sess.QueryContext))
	if err != nil {
		return errorResponse(err)
	}

	var out assessmentOutput
	if err := parseOutput(content, &out); err != nil {
		return errorResponse(err)
	}

	// The flags are authoritative; the model's own state transition is
	// advisory and re-derived here so a single set flag always routes to
	// clarification.
	next := StateQueryConfirmation
	if out.Flags.IsAmbiguous() {
		next = StateClarificationRequest
	}
	if a.verbose {
		log.Printf("assessor: assessment for session %s: flags=%+v next=%s", sess.SessionID, out.Flags, next)
	}

	return successResponse(next, TypeAssessment, map[string]any{
		"ambiguity_flags": out.Flags,
		"reasoning":       out.Reasoning,
		"next_action":     out.NextAction,
	})
}

// RequestClarification formulates one clarification question for the highest
// priority ambiguous aspect. Aspects already answered in the session's query
// context are skipped so the same question is never asked twice in a row.
func (a *Assessor) RequestClarification(ctx context.Context, userQuery string, flags Flags, sess *conversation.SessionContext, hints []string) Response {
	aspect := ""
	for _, candidate := range flags.Aspects() {
		if _, answered := sess.QueryContext[candidate]; !answered {
			aspect = candidate
			break
		}
	}
	if aspect == "" {
		// Every flagged aspect already has an answer the model still finds
		// ambiguous. Surface the first one again rather than loop silently.
		aspects := flags.Aspects()
		if len(aspects) == 0 {
			return errorResponse(fmt.Errorf("clarification requested but no aspect is ambiguous"))
		}
		aspect = aspects[0]
	}

	content, err := a.complete(ctx, clarificationPrompt(aspect, userQuery, a.catalog, sess.QueryContext, hints))
	if err != nil {
		return errorResponse(err)
	}

	var out clarificationOutput
	if err := parseOutput(content, &out); err != nil {
		return errorResponse(err)
	}
	if out.Question == "" {
		return errorResponse(fmt.Errorf("model returned an empty clarification question"))
	}
	if out.AmbiguousAspect == "" {
		out.AmbiguousAspect = aspect
	}

	return successResponse(StateReceiveClarification, TypeClarification, map[string]any{
		"clarification_question": out.Question,
		"ambiguous_aspect":       out.AmbiguousAspect,
		"suggestions":            out.Suggestions,
	})
}

// ReceiveClarification folds the user's clarifying answer into the session's
// query context and routes back to assessment so remaining ambiguities are
// re-checked against the updated context.
func (a *Assessor) ReceiveClarification(ctx context.Context, userResponse, aspect, originalQuery string, sess *conversation.SessionContext) Response {
	content, err := a.complete(ctx, receiveClarificationPrompt(userResponse, aspect, originalQuery, sess.QueryContext))
	if err != nil {
		return errorResponse(err)
	}

	var out receiveClarificationOutput
	if err := parseOutput(content, &out); err != nil {
		return errorResponse(err)
	}
	if len(out.ExtractedInfo) == 0 {
		// Nothing extractable; record the raw answer under the aspect key so
		// the next assessment still sees it.
		sess.SetContext(aspect, userResponse)
	}
	for key, value := range out.ExtractedInfo {
		sess.SetContext(key, value)
	}

	return successResponse(StateQueryAssessment, TypeAssessment, map[string]any{
		"extracted_info": out.ExtractedInfo,
		"reasoning":      out.Reasoning,
	})
}

// ConfirmQuery produces the interpretation summary shown to the user before
// any query is executed, together with the structured parameters behind it.
func (a *Assessor) ConfirmQuery(ctx context.Context, originalQuery string, sess *conversation.SessionContext) Response {
	content, err := a.complete(ctx, confirmationPrompt(originalQuery, a.catalog, sess.QueryContext))
	if err != nil {
		return errorResponse(err)
	}

	var out confirmationOutput
	if err := parseOutput(content, &out); err != nil {
		return errorResponse(err)
	}
	if out.ConfirmationMessage == "" {
		return errorResponse(fmt.Errorf("model returned an empty confirmation message"))
	}
	if out.InterpretedParameters == nil {
		return errorResponse(fmt.Errorf("model returned no interpreted parameters"))
	}

	return successResponse(StateQueryConfirmation, TypeConfirmation, map[string]any{
		"confirmation_message":   out.ConfirmationMessage,
		"interpreted_parameters": out.InterpretedParameters,
		"confirmation_required":  true,
	})
}

// HandleRejection reacts to the user rejecting a confirmation. The session's
// accumulated query context is cleared so no stale clarification shapes the
// next attempt.
func (a *Assessor) HandleRejection(ctx context.Context, originalQuery string, sess *conversation.SessionContext) Response {
	content, err := a.complete(ctx, rejectionPrompt(originalQuery, sess.QueryContext))

	// Context is cleared regardless of whether the model produced a usable
	// rephrasing prompt.
	sess.ClearContext()

	if err != nil {
		return errorResponse(err)
	}

	var out rejectionOutput
	if err := parseOutput(content, &out); err != nil {
		return errorResponse(err)
	}
	if out.RephrasingPrompt == "" {
		out.RephrasingPrompt = "I misunderstood your question. Could you rephrase what you'd like to know?"
	}

	return successResponse(StateQueryAssessment, TypeRejection, map[string]any{
		"rephrasing_prompt": out.RephrasingPrompt,
		"reset_context":     true,
	})
}

// ConstructQuery turns confirmed parameters into the final structured query.
func (a *Assessor) ConstructQuery(ctx context.Context, confirmed *queryval.Query, originalQuery string) Response {
	content, err := a.complete(ctx, constructionPrompt(confirmed, originalQuery, a.catalog))
	if err != nil {
		return errorResponse(err)
	}

	var out constructionOutput
	if err := parseOutput(content, &out); err != nil {
		return errorResponse(err)
	}
	if out.CubeQuery == nil || len(out.CubeQuery.Measures) == 0 {
		return errorResponse(fmt.Errorf("model returned no usable query"))
	}

	return successResponse(StateCompleted, TypeCubeQuery, map[string]any{
		"cube_query":        out.CubeQuery,
		"query_description": out.QueryDescription,
		"reasoning":         out.Reasoning,
	})
}
