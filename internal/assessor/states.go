// Package assessor implements the state-machine agent that decides whether a
// natural-language query is executable as-is or needs exactly one
// clarification, and that constructs the final structured query once the
// user confirms an interpretation.
package assessor

import (
	"time"

	"github.com/ziadkadry99/cube-pilot/internal/queryval"
)

// State identifies a node in the assessment workflow.
type State string

const (
	StateQueryAssessment      State = "query_assessment"
	StateClarificationRequest State = "clarification_request"
	StateReceiveClarification State = "receive_clarification"
	StateQueryConfirmation    State = "query_confirmation"
	StateRejectionHandler     State = "query_rejection_handler"
	StateAPICallConstruction  State = "api_call_construction"
	StateCompleted            State = "completed"
	StateError                State = "error"
)

// Ambiguity aspect keys, also used as queryContext keys for clarified values.
const (
	AspectMeasure   = "measure"
	AspectDimension = "dimension"
	AspectFilter    = "filter_criteria"
	AspectTime      = "time_specification"
	AspectGrouping  = "grouping_granularity"
)

// Flags marks which aspects of a query are ambiguous. Flags are derived
// fresh on every assessment and never persisted beyond one turn.
type Flags struct {
	TimeUnclear        bool `json:"time_specification_unclear"`
	GroupingUnclear    bool `json:"grouping_granularity_unclear"`
	FilterUnclear      bool `json:"filter_criteria_unclear"`
	MeasureAmbiguous   bool `json:"measure_ambiguous"`
	DimensionAmbiguous bool `json:"dimension_ambiguous"`
}

// IsAmbiguous reports whether any flag is set.
func (f Flags) IsAmbiguous() bool {
	return f.TimeUnclear || f.GroupingUnclear || f.FilterUnclear ||
		f.MeasureAmbiguous || f.DimensionAmbiguous
}

// Aspects returns the ambiguous aspects in clarification priority order:
// measure first, then dimension and filter, then time, then grouping.
func (f Flags) Aspects() []string {
	var aspects []string
	if f.MeasureAmbiguous {
		aspects = append(aspects, AspectMeasure)
	}
	if f.DimensionAmbiguous {
		aspects = append(aspects, AspectDimension)
	}
	if f.FilterUnclear {
		aspects = append(aspects, AspectFilter)
	}
	if f.TimeUnclear {
		aspects = append(aspects, AspectTime)
	}
	if f.GroupingUnclear {
		aspects = append(aspects, AspectGrouping)
	}
	return aspects
}

// ResponseType routes an agent response to its handler.
type ResponseType string

const (
	TypeAssessment    ResponseType = "assessment"
	TypeClarification ResponseType = "clarification"
	TypeConfirmation  ResponseType = "confirmation"
	TypeRejection     ResponseType = "rejection"
	TypeCubeQuery     ResponseType = "cube_query"
	TypeError         ResponseType = "error"
)

// Response is the uniform envelope returned by every state transition.
type Response struct {
	Success      bool           `json:"success"`
	State        State          `json:"state"`
	ResponseType ResponseType   `json:"response_type"`
	Data         map[string]any `json:"data"`
	Error        string         `json:"error,omitempty"`
	Timestamp    time.Time      `json:"timestamp"`
}

// Per-state structured outputs parsed from the LLM.

type assessmentOutput struct {
	State      State  `json:"state"`
	Flags      Flags  `json:"ambiguity_flags"`
	Reasoning  string `json:"reasoning"`
	NextAction string `json:"next_action"`
}

type clarificationOutput struct {
	State           State    `json:"state"`
	Question        string   `json:"clarification_question"`
	AmbiguousAspect string   `json:"ambiguous_aspect"`
	Suggestions     []string `json:"suggestions"`
}

type receiveClarificationOutput struct {
	State         State          `json:"state"`
	ExtractedInfo map[string]any `json:"extracted_info"`
	Reasoning     string         `json:"reasoning"`
}

type confirmationOutput struct {
	State                 State          `json:"state"`
	ConfirmationMessage   string         `json:"confirmation_message"`
	InterpretedParameters *queryval.Query `json:"interpreted_parameters"`
	ConfirmationRequired  bool           `json:"confirmation_required"`
}

type rejectionOutput struct {
	State            State  `json:"state"`
	RephrasingPrompt string `json:"rephrasing_prompt"`
	ResetContext     bool   `json:"reset_context"`
}

type constructionOutput struct {
	State            State           `json:"state"`
	CubeQuery        *queryval.Query `json:"cube_query"`
	QueryDescription string          `json:"query_description"`
	Reasoning        string          `json:"reasoning"`
}
