package assessor

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ziadkadry99/cube-pilot/internal/queryval"
	"github.com/ziadkadry99/cube-pilot/internal/schema"
)

// baseSystemPrompt defines the agent's role across all states. The central
// design rule is "assume rather than ask": only measures are mandatory, and
// a clarification is raised only for genuinely unresolvable information.
const baseSystemPrompt = `You are a Query Ambiguity Assessor agent. Your role is to help users formulate clear,
unambiguous queries for a data analytics system built on Cube.js.

CRITICAL: Be MINIMAL with clarifications. Only ask when truly necessary.

Your primary responsibilities:
1. Parse user queries to extract measures, dimensions, time references, and filters
2. Make intelligent ASSUMPTIONS when information is not explicitly provided:
   - If NO time range mentioned, assume ALL TIME (no time dimension needed)
   - If NO dimensions mentioned, assume NO GROUPING (aggregate all data)
   - If NO filters mentioned, assume NO FILTERING (include all data)
   - ONLY measures are REQUIRED. Everything else is optional.
3. Ask clarifying questions ONLY for:
   - Ambiguous time references (e.g., "January" without context)
   - Invalid or non-existent dimensions or filter values
   - Missing required measures
4. Confirm your interpretation with the user before constructing API calls

Key principles:
- ASSUME rather than ASK. Only clarify true ambiguities.
- Be conversational and helpful, not robotic.
- Focus on ONE ambiguity at a time when clarification is needed.
- Provide contextual examples and suggestions based on the view schema.
- Use fuzzy matching to find similar values when user input doesn't exactly match.
- Always confirm your interpretation before proceeding to API call construction.

You operate in a state-based workflow. Always respond with a single JSON object
in the exact shape requested for the current state.`

func formatMeasures(catalog *schema.Catalog) string {
	var b strings.Builder
	for _, m := range catalog.Measures {
		fmt.Fprintf(&b, "  - %s: %s - %s\n", m.Name, m.Title, m.Description)
	}
	return b.String()
}

func formatDimensions(catalog *schema.Catalog) string {
	var b strings.Builder
	for _, d := range catalog.Dimensions {
		typ := d.Type
		if typ == "" {
			typ = "string"
		}
		fmt.Fprintf(&b, "  - %s (%s): %s - %s\n", d.Name, typ, d.Title, d.Description)
	}
	return b.String()
}

func formatContext(queryContext map[string]any) string {
	if len(queryContext) == 0 {
		return "{}"
	}
	data, err := json.Marshal(queryContext)
	if err != nil {
		return "{}"
	}
	return string(data)
}

func assessmentPrompt(userQuery string, catalog *schema.Catalog, queryContext map[string]any) string {
	contextInfo := ""
	if len(queryContext) > 0 {
		contextInfo = "\n\nPrevious clarifications in this session:\n" + formatContext(queryContext)
	}

	return fmt.Sprintf(`STATE: QUERY_ASSESSMENT

Analyze this user query using a MINIMAL clarification approach:
%q

Available Cube view: %s

Available Measures:
%s
Available Dimensions:
%s%s

CRITICAL: Use your language understanding to SEMANTICALLY MATCH user requests to available measures and dimensions.
DO NOT require exact string matches. For example:
- "total revenue" should match a "revenue" measure
- "by venue" should match a "venue_name" dimension
Only flag an aspect as ambiguous if there is NO reasonable semantic match or if multiple matches are equally valid.

Parse the query for:

1. MEASURES (REQUIRED - flag if missing or unclear):
   - Set measure_ambiguous = true ONLY if no measure is mentioned at all, multiple measures
     could match and it is unclear which one, or the requested measure has NO semantic match.

2. TIME RANGE (OPTIONAL - assume ALL TIME if not mentioned):
   - If NO time reference is mentioned: time_specification_unclear = false. Assume all time.
   - If a time reference IS mentioned: "last month", "this year", "last 7 days" are CLEAR.
     "January" or "Monday" alone are AMBIGUOUS (specific recent period, or aggregate across all?).

3. DIMENSIONS (OPTIONAL - assume NO GROUPING if not mentioned):
   - Set dimension_ambiguous = true ONLY if a mentioned grouping has no semantic match or
     multiple equally plausible matches.

4. FILTERS (OPTIONAL - assume NO FILTERING if not mentioned):
   - Set filter_criteria_unclear = true ONLY if a mentioned filter references an invalid
     dimension or value.

5. DECISION:
   - If ANY flag is true the next state is "clarification_request", otherwise "query_confirmation".

Respond with JSON:
{
  "state": "clarification_request" | "query_confirmation",
  "ambiguity_flags": {
    "time_specification_unclear": bool,
    "grouping_granularity_unclear": bool,
    "filter_criteria_unclear": bool,
    "measure_ambiguous": bool,
    "dimension_ambiguous": bool
  },
  "reasoning": "<explanation>",
  "next_action": "<what happens next>"
}

REMEMBER: Only measures are required. Time, dimensions, and filters are ALL OPTIONAL.`,
		userQuery, catalog.ViewName, formatMeasures(catalog), formatDimensions(catalog), contextInfo)
}

// aspectGuidance maps each ambiguous aspect to clarification instructions.
var aspectGuidance = map[string]string{
	AspectMeasure:   "The requested measure doesn't exist or is unclear. Suggest similar measures from the available list using fuzzy matching.",
	AspectDimension: "The requested dimension doesn't exist. Suggest similar dimensions from the available list using fuzzy matching.",
	AspectFilter:    "The requested filter value doesn't exist or the filter dimension is invalid. Suggest similar values or dimensions.",
	AspectTime: `The time reference is ambiguous. Examples:
- "January" alone: ask whether the user wants only the most recent January, or an aggregate across all Januaries.
- "Monday" alone: ask whether the user wants only last Monday, or all Mondays compared.
Provide two options: specific recent period vs. aggregate across all such periods.`,
	AspectGrouping: "Only ask if the grouping level is truly unclear after parsing the query.",
}

func clarificationPrompt(aspect, userQuery string, catalog *schema.Catalog, queryContext map[string]any, extraSuggestions []string) string {
	guidance, ok := aspectGuidance[aspect]
	if !ok {
		guidance = "Ask for the needed clarification."
	}

	sampleMeasures := sampleTitles(catalog.Measures, 5)
	sampleDimensions := sampleTitles(catalog.Dimensions, 5)

	hints := ""
	if len(extraSuggestions) > 0 {
		hints = "\nSchema fields semantically close to the user's wording: " + strings.Join(extraSuggestions, ", ")
	}

	return fmt.Sprintf(`STATE: CLARIFICATION_REQUEST

User query: %q
Ambiguous aspect to clarify: %s

Guidance: %s

Query context so far: %s

Available measures (sample): %s
Available dimensions (sample): %s%s

Your task:
1. Formulate a friendly, conversational clarification question focusing ONLY on: %s
2. Provide 2-4 specific, actionable suggestions drawn from the schema above. Never ask open-ended questions.
3. Keep the question simple and focused on ONE thing.

Respond with JSON:
{
  "state": "receive_clarification",
  "clarification_question": "<one question>",
  "ambiguous_aspect": %q,
  "suggestions": ["<option>", "<option>"]
}`,
		userQuery, aspect, guidance, formatContext(queryContext),
		sampleMeasures, sampleDimensions, hints, aspect, aspect)
}

func receiveClarificationPrompt(userResponse, aspect, originalQuery string, queryContext map[string]any) string {
	return fmt.Sprintf(`STATE: RECEIVE_CLARIFICATION

Original query: %q
Ambiguous aspect: %s
User's clarifying response: %q

Current query context: %s

Your task:
1. Extract the relevant information from the user's response.
2. Record it under a key naming the clarified aspect (e.g. %q).
3. The next state is always "query_assessment" so remaining ambiguities can be re-checked.

Respond with JSON:
{
  "state": "query_assessment",
  "extracted_info": {"<aspect_key>": "<resolved value>"},
  "reasoning": "<what you understood>"
}`,
		originalQuery, aspect, userResponse, formatContext(queryContext), aspect)
}

func confirmationPrompt(originalQuery string, catalog *schema.Catalog, queryContext map[string]any) string {
	return fmt.Sprintf(`STATE: QUERY_CONFIRMATION

Original query: %q
Accumulated context: %s

Available metadata:
- Measures: %s
- Dimensions: %s
- Time dimensions: %s

Produce a confirmation for the user. The confirmation_message must summarize:
- Measure: name and description
- Grouped by: the dimension, or "No grouping (total only)"
- Time period: the period, or "All time"
- Filters: the filters, or "No filters"
and end with "Is this correct?".

interpreted_parameters is MANDATORY and must use EXACT fully-qualified names from the lists above:
{
  "measures": ["%s.measure_name"],
  "dimensions": [],
  "timeDimensions": [],
  "filters": []
}
Use [] for anything not requested. Omit timeDimensions entries entirely for all-time queries.

Respond with JSON:
{
  "state": "query_confirmation",
  "confirmation_message": "<summary ending in: Is this correct?>",
  "interpreted_parameters": { ... as above ... },
  "confirmation_required": true
}`,
		originalQuery, formatContext(queryContext),
		strings.Join(catalog.MeasureNames(), ", "),
		strings.Join(catalog.DimensionNames(), ", "),
		strings.Join(catalog.TimeDimensionNames(), ", "),
		catalog.ViewName)
}

func constructionPrompt(confirmed *queryval.Query, originalQuery string, catalog *schema.Catalog) string {
	confirmedJSON, _ := json.Marshal(confirmed)

	return fmt.Sprintf(`STATE: API_CALL_CONSTRUCTION

Original query: %q
Confirmed parameters: %s

Available in Cube:
- Measures: %s
- Dimensions: %s
- Time dimensions: %s

Construct the final Cube.js query. The confirmed parameters may still use the
user's own wording; translate every field to the EXACT fully-qualified names
from the lists above ("%s." prefix). Include timeDimensions with granularity
and dateRange only when a time period was requested, filters only when
filtering was requested.

Respond with JSON:
{
  "state": "completed",
  "cube_query": {
    "measures": ["%s.measure_name"],
    "dimensions": [],
    "timeDimensions": [],
    "filters": []
  },
  "query_description": "<human-readable description>",
  "reasoning": "<how the query was constructed>"
}`,
		originalQuery, string(confirmedJSON),
		strings.Join(catalog.MeasureNames(), ", "),
		strings.Join(catalog.DimensionNames(), ", "),
		strings.Join(catalog.TimeDimensionNames(), ", "),
		catalog.ViewName, catalog.ViewName)
}

func rejectionPrompt(originalQuery string, queryContext map[string]any) string {
	return fmt.Sprintf(`STATE: QUERY_REJECTION_HANDLER

The user rejected your interpretation of their query.

Original query: %q
Your previous interpretation: %s

Your task:
1. Acknowledge that you misunderstood.
2. Ask the user to rephrase or clarify their question.
3. The query context will be reset so the next assessment starts fresh.

Respond with JSON:
{
  "state": "query_assessment",
  "rephrasing_prompt": "<friendly message asking them to rephrase>",
  "reset_context": true
}`,
		originalQuery, formatContext(queryContext))
}

func sampleTitles(fields []schema.Field, n int) string {
	var titles []string
	for _, f := range fields {
		title := f.Title
		if title == "" {
			title = f.Name
		}
		titles = append(titles, title)
		if len(titles) == n {
			break
		}
	}
	return strings.Join(titles, ", ")
}
