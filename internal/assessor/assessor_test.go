package assessor

import (
	"context"
	"errors"
	"testing"

	"github.com/ziadkadry99/cube-pilot/internal/conversation"
	"github.com/ziadkadry99/cube-pilot/internal/llm"
	"github.com/ziadkadry99/cube-pilot/internal/schema"
)

// scriptedProvider returns canned completions in order.
type scriptedProvider struct {
	responses []string
	err       error
	calls     int
}

func (p *scriptedProvider) Complete(_ context.Context, _ llm.CompletionRequest) (*llm.CompletionResponse, error) {
	if p.err != nil {
		return nil, p.err
	}
	if p.calls >= len(p.responses) {
		return nil, errors.New("no scripted response left")
	}
	content := p.responses[p.calls]
	p.calls++
	return &llm.CompletionResponse{Content: content}, nil
}

func (p *scriptedProvider) Name() string { return "scripted" }

func testCatalog(t *testing.T) *schema.Catalog {
	t.Helper()
	return &schema.Catalog{
		ViewName: "Orders",
		Measures: []schema.Field{
			{Name: "total_revenue", Title: "Total Revenue", Description: "Sum of order totals"},
			{Name: "count", Title: "Order Count", Description: "Number of orders"},
		},
		Dimensions: []schema.Field{
			{Name: "status", Title: "Status", Description: "Order status", Type: "string"},
			{Name: "created_at", Title: "Created At", Description: "Order timestamp", Type: "time"},
		},
	}
}

func newTestAssessor(t *testing.T, responses ...string) (*Assessor, *scriptedProvider) {
	t.Helper()
	p := &scriptedProvider{responses: responses}
	return New(p, "test-model", testCatalog(t)), p
}

func TestAssessQueryClear(t *testing.T) {
	a, _ := newTestAssessor(t, `{
		"state": "query_confirmation",
		"ambiguity_flags": {
			"time_specification_unclear": false,
			"grouping_granularity_unclear": false,
			"filter_criteria_unclear": false,
			"measure_ambiguous": false,
			"dimension_ambiguous": false
		},
		"reasoning": "total revenue matches Total Revenue, no time means all time",
		"next_action": "confirm interpretation"
	}`)

	sess := conversation.NewSessionContext("s1")
	resp := a.AssessQuery(context.Background(), "show me total revenue", sess)

	if !resp.Success {
		t.Fatalf("expected success, got error: %s", resp.Error)
	}
	if resp.State != StateQueryConfirmation {
		t.Errorf("expected state %s, got %s", StateQueryConfirmation, resp.State)
	}
	flags, ok := resp.Data["ambiguity_flags"].(Flags)
	if !ok {
		t.Fatalf("expected Flags in data, got %T", resp.Data["ambiguity_flags"])
	}
	if flags.IsAmbiguous() {
		t.Errorf("expected no ambiguity, got %+v", flags)
	}
}

func TestAssessQueryAmbiguousRoutesToClarification(t *testing.T) {
	// The model claims confirmation but sets a flag; flags win.
	a, _ := newTestAssessor(t, `{
		"state": "query_confirmation",
		"ambiguity_flags": {
			"time_specification_unclear": true,
			"grouping_granularity_unclear": false,
			"filter_criteria_unclear": false,
			"measure_ambiguous": false,
			"dimension_ambiguous": false
		},
		"reasoning": "January alone is ambiguous",
		"next_action": "clarify"
	}`)

	sess := conversation.NewSessionContext("s1")
	resp := a.AssessQuery(context.Background(), "revenue in January", sess)

	if !resp.Success {
		t.Fatalf("unexpected error: %s", resp.Error)
	}
	if resp.State != StateClarificationRequest {
		t.Errorf("expected state %s, got %s", StateClarificationRequest, resp.State)
	}
}

func TestAssessQueryBadJSON(t *testing.T) {
	a, _ := newTestAssessor(t, `not json at all`)

	resp := a.AssessQuery(context.Background(), "revenue", conversation.NewSessionContext("s1"))
	if resp.Success {
		t.Fatal("expected failure on malformed output")
	}
	if resp.State != StateError || resp.ResponseType != TypeError {
		t.Errorf("expected error state/type, got %s/%s", resp.State, resp.ResponseType)
	}
}

func TestAssessQueryProviderError(t *testing.T) {
	p := &scriptedProvider{err: errors.New("rate limited")}
	a := New(p, "test-model", testCatalog(t))

	resp := a.AssessQuery(context.Background(), "revenue", conversation.NewSessionContext("s1"))
	if resp.Success {
		t.Fatal("expected failure on provider error")
	}
	if resp.Error == "" {
		t.Error("expected error message to be set")
	}
}

func TestRequestClarificationPicksPriorityAspect(t *testing.T) {
	a, _ := newTestAssessor(t, `{
		"state": "receive_clarification",
		"clarification_question": "Which measure did you mean?",
		"ambiguous_aspect": "measure",
		"suggestions": ["Total Revenue", "Order Count"]
	}`)

	flags := Flags{MeasureAmbiguous: true, TimeUnclear: true}
	sess := conversation.NewSessionContext("s1")
	resp := a.RequestClarification(context.Background(), "show me the numbers", flags, sess, nil)

	if !resp.Success {
		t.Fatalf("unexpected error: %s", resp.Error)
	}
	if resp.State != StateReceiveClarification {
		t.Errorf("expected state %s, got %s", StateReceiveClarification, resp.State)
	}
	if got := resp.Data["ambiguous_aspect"]; got != AspectMeasure {
		t.Errorf("expected measure to be clarified first, got %v", got)
	}
}

func TestRequestClarificationSkipsAnsweredAspects(t *testing.T) {
	a, _ := newTestAssessor(t, `{
		"state": "receive_clarification",
		"clarification_question": "Only the most recent January, or all Januaries?",
		"ambiguous_aspect": "time_specification",
		"suggestions": ["Most recent January", "All Januaries"]
	}`)

	flags := Flags{MeasureAmbiguous: true, TimeUnclear: true}
	sess := conversation.NewSessionContext("s1")
	sess.SetContext(AspectMeasure, "total_revenue")

	resp := a.RequestClarification(context.Background(), "revenue in January", flags, sess, nil)
	if !resp.Success {
		t.Fatalf("unexpected error: %s", resp.Error)
	}
	if got := resp.Data["ambiguous_aspect"]; got != AspectTime {
		t.Errorf("expected time aspect after measure was answered, got %v", got)
	}
}

func TestRequestClarificationNoAspect(t *testing.T) {
	a, _ := newTestAssessor(t)
	resp := a.RequestClarification(context.Background(), "revenue", Flags{}, conversation.NewSessionContext("s1"), nil)
	if resp.Success {
		t.Fatal("expected failure when nothing is ambiguous")
	}
}

func TestReceiveClarificationUpdatesContext(t *testing.T) {
	a, _ := newTestAssessor(t, `{
		"state": "query_assessment",
		"extracted_info": {"time_specification": "most recent January"},
		"reasoning": "user wants only the latest January"
	}`)

	sess := conversation.NewSessionContext("s1")
	resp := a.ReceiveClarification(context.Background(), "just the latest one", AspectTime, "revenue in January", sess)

	if !resp.Success {
		t.Fatalf("unexpected error: %s", resp.Error)
	}
	if resp.State != StateQueryAssessment {
		t.Errorf("expected re-assessment state, got %s", resp.State)
	}
	if got := sess.QueryContext[AspectTime]; got != "most recent January" {
		t.Errorf("expected clarified time in context, got %v", got)
	}
}

func TestReceiveClarificationFallsBackToRawAnswer(t *testing.T) {
	a, _ := newTestAssessor(t, `{
		"state": "query_assessment",
		"extracted_info": {},
		"reasoning": ""
	}`)

	sess := conversation.NewSessionContext("s1")
	resp := a.ReceiveClarification(context.Background(), "the latest one", AspectTime, "revenue in January", sess)

	if !resp.Success {
		t.Fatalf("unexpected error: %s", resp.Error)
	}
	if got := sess.QueryContext[AspectTime]; got != "the latest one" {
		t.Errorf("expected raw answer stored under aspect key, got %v", got)
	}
}

func TestConfirmQuery(t *testing.T) {
	a, _ := newTestAssessor(t, `{
		"state": "query_confirmation",
		"confirmation_message": "Measure: Total Revenue. Grouped by: No grouping (total only). Time period: All time. Filters: No filters. Is this correct?",
		"interpreted_parameters": {"measures": ["Orders.total_revenue"]},
		"confirmation_required": true
	}`)

	sess := conversation.NewSessionContext("s1")
	resp := a.ConfirmQuery(context.Background(), "show me total revenue", sess)

	if !resp.Success {
		t.Fatalf("unexpected error: %s", resp.Error)
	}
	if resp.ResponseType != TypeConfirmation {
		t.Errorf("expected confirmation type, got %s", resp.ResponseType)
	}
	if resp.Data["confirmation_required"] != true {
		t.Error("expected confirmation_required to be true")
	}
}

func TestConfirmQueryMissingParameters(t *testing.T) {
	a, _ := newTestAssessor(t, `{
		"state": "query_confirmation",
		"confirmation_message": "Is this correct?",
		"confirmation_required": true
	}`)

	resp := a.ConfirmQuery(context.Background(), "revenue", conversation.NewSessionContext("s1"))
	if resp.Success {
		t.Fatal("expected failure when interpreted parameters are missing")
	}
}

func TestHandleRejectionClearsContext(t *testing.T) {
	a, _ := newTestAssessor(t, `{
		"state": "query_assessment",
		"rephrasing_prompt": "Sorry about that. What would you like to know?",
		"reset_context": true
	}`)

	sess := conversation.NewSessionContext("s1")
	sess.SetContext(AspectTime, "last month")
	sess.SetContext(AspectMeasure, "total_revenue")

	resp := a.HandleRejection(context.Background(), "revenue last month", sess)
	if !resp.Success {
		t.Fatalf("unexpected error: %s", resp.Error)
	}
	if len(sess.QueryContext) != 0 {
		t.Errorf("expected cleared context, got %v", sess.QueryContext)
	}
	if resp.State != StateQueryAssessment {
		t.Errorf("expected reset to assessment, got %s", resp.State)
	}
}

func TestConstructQuery(t *testing.T) {
	a, _ := newTestAssessor(t, "```json\n"+`{
		"state": "completed",
		"cube_query": {
			"measures": ["Orders.total_revenue"],
			"timeDimensions": [{"dimension": "Orders.created_at", "granularity": "month", "dateRange": "last month"}]
		},
		"query_description": "Total revenue for last month by month",
		"reasoning": "time range was explicit"
	}`+"\n```")

	resp := a.ConstructQuery(context.Background(), nil, "revenue last month")
	if !resp.Success {
		t.Fatalf("unexpected error: %s", resp.Error)
	}
	if resp.State != StateCompleted || resp.ResponseType != TypeCubeQuery {
		t.Errorf("expected completed/cube_query, got %s/%s", resp.State, resp.ResponseType)
	}
}

func TestConstructQueryNoMeasures(t *testing.T) {
	a, _ := newTestAssessor(t, `{
		"state": "completed",
		"cube_query": {"measures": []},
		"query_description": "",
		"reasoning": ""
	}`)

	resp := a.ConstructQuery(context.Background(), nil, "revenue")
	if resp.Success {
		t.Fatal("expected failure when the query has no measures")
	}
}

func TestFlagsAspectsPriorityOrder(t *testing.T) {
	flags := Flags{
		TimeUnclear:        true,
		GroupingUnclear:    true,
		FilterUnclear:      true,
		MeasureAmbiguous:   true,
		DimensionAmbiguous: true,
	}
	want := []string{AspectMeasure, AspectDimension, AspectFilter, AspectTime, AspectGrouping}
	got := flags.Aspects()
	if len(got) != len(want) {
		t.Fatalf("expected %d aspects, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("aspect %d: expected %s, got %s", i, want[i], got[i])
		}
	}
}
