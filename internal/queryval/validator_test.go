package queryval

import (
	"strings"
	"testing"

	"github.com/ziadkadry99/cube-pilot/internal/schema"
)

func testCatalog() *schema.Catalog {
	return &schema.Catalog{
		ViewName: "Orders",
		Measures: []schema.Field{
			{Name: "total_revenue", Title: "Total Revenue"},
			{Name: "count", Title: "Order Count"},
			{Name: "average_order_value", Title: "Average Order Value"},
		},
		Dimensions: []schema.Field{
			{Name: "status", Title: "Status", Type: "string"},
			{Name: "venue_name", Title: "Venue", Type: "string"},
			{Name: "created_at", Title: "Created At", Type: "time"},
		},
	}
}

func TestValidateValidQuery(t *testing.T) {
	v := NewValidator(0)
	q := &Query{
		Measures:   []string{"Orders.total_revenue"},
		Dimensions: []string{"Orders.venue_name"},
		TimeDimensions: []TimeDimension{
			{Dimension: "Orders.created_at", Granularity: "month", DateRange: DateRange{Relative: "last month"}},
		},
	}

	result := v.Validate(q, testCatalog())
	if !result.Valid {
		t.Fatalf("expected valid, got errors: %v", result.Errors)
	}
	if len(result.Warnings) != 0 {
		t.Errorf("expected no warnings, got %v", result.Warnings)
	}
}

func TestValidateNoMeasures(t *testing.T) {
	v := NewValidator(0)
	result := v.Validate(&Query{Dimensions: []string{"Orders.status"}}, testCatalog())

	if result.Valid {
		t.Fatal("expected invalid for a query with no measures")
	}
	found := false
	for _, e := range result.Errors {
		if strings.Contains(e, "at least one measure is required") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected missing-measure error, got %v", result.Errors)
	}
}

func TestValidateTypoSuggestion(t *testing.T) {
	v := NewValidator(0)
	q := &Query{Measures: []string{"Orders.total_revenu"}}

	result := v.Validate(q, testCatalog())
	if result.Valid {
		t.Fatal("expected invalid for a typo'd measure")
	}
	if got := result.Suggestions["Orders.total_revenu"]; got != "Orders.total_revenue" {
		t.Errorf("expected suggestion Orders.total_revenue, got %q", got)
	}
	if len(result.InvalidMeasures) != 1 || result.InvalidMeasures[0] != "Orders.total_revenu" {
		t.Errorf("unexpected invalid measures: %v", result.InvalidMeasures)
	}
}

func TestValidateDistanceCutoff(t *testing.T) {
	v := NewValidator(3)
	// "revenue" -> "total_revenue" is distance 6, beyond the cutoff.
	result := v.Validate(&Query{Measures: []string{"Orders.revenue"}}, testCatalog())

	if result.Valid {
		t.Fatal("expected invalid")
	}
	if _, ok := result.Suggestions["Orders.revenue"]; ok {
		t.Errorf("expected no suggestion beyond the distance cutoff, got %v", result.Suggestions)
	}
}

func TestValidateNonTimeDimensionAsTime(t *testing.T) {
	v := NewValidator(0)
	q := &Query{
		Measures:       []string{"Orders.count"},
		TimeDimensions: []TimeDimension{{Dimension: "Orders.status"}},
	}

	result := v.Validate(q, testCatalog())
	if result.Valid {
		t.Fatal("expected invalid: status is not a time dimension")
	}
	if len(result.InvalidTimeDimensions) != 1 {
		t.Errorf("expected one invalid time dimension, got %v", result.InvalidTimeDimensions)
	}
}

func TestValidateFilterWarningsOnly(t *testing.T) {
	v := NewValidator(0)
	q := &Query{
		Measures: []string{"Orders.count"},
		Filters:  []Filter{{Member: "Orders.nonexistent", Operator: "equals", Values: []string{"x"}}},
	}

	result := v.Validate(q, testCatalog())
	if !result.Valid {
		t.Fatalf("filter problems must not invalidate the query, got errors: %v", result.Errors)
	}
	if len(result.Warnings) != 1 {
		t.Errorf("expected one warning, got %v", result.Warnings)
	}
}

func TestValidateCaseInsensitiveSuggestion(t *testing.T) {
	v := NewValidator(0)
	result := v.Validate(&Query{Measures: []string{"Orders.Total_Revenue"}}, testCatalog())

	if result.Valid {
		t.Fatal("expected invalid: names are case-sensitive")
	}
	if got := result.Suggestions["Orders.Total_Revenue"]; got != "Orders.total_revenue" {
		t.Errorf("expected case-insensitive match, got %q", got)
	}
}

func TestLevenshtein(t *testing.T) {
	cases := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"abc", "", 3},
		{"", "abc", 3},
		{"kitten", "sitting", 3},
		{"total_revenue", "total_revenu", 1},
		{"same", "same", 0},
	}
	for _, tc := range cases {
		if got := levenshtein(tc.a, tc.b); got != tc.want {
			t.Errorf("levenshtein(%q, %q) = %d, want %d", tc.a, tc.b, got, tc.want)
		}
	}
}

func TestBuildCorrectionPrompt(t *testing.T) {
	v := NewValidator(0)
	catalog := testCatalog()
	result := v.Validate(&Query{Measures: []string{"Orders.total_revenu"}}, catalog)

	prompt := BuildCorrectionPrompt(result, "show me total revenue", catalog)
	if prompt == "" {
		t.Fatal("expected a correction prompt for an invalid result")
	}
	for _, want := range []string{
		"Replace 'Orders.total_revenu' with 'Orders.total_revenue'",
		"Available measures in 'Orders'",
		"show me total revenue",
		`"response_type": "cube_query"`,
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("correction prompt missing %q", want)
		}
	}
}

func TestBuildCorrectionPromptValidResult(t *testing.T) {
	v := NewValidator(0)
	catalog := testCatalog()
	result := v.Validate(&Query{Measures: []string{"Orders.count"}}, catalog)

	if prompt := BuildCorrectionPrompt(result, "count orders", catalog); prompt != "" {
		t.Errorf("expected empty prompt for a valid result, got %q", prompt)
	}
}

func TestDateRangeJSON(t *testing.T) {
	var td TimeDimension
	if err := td.DateRange.UnmarshalJSON([]byte(`"last month"`)); err != nil {
		t.Fatalf("relative unmarshal failed: %v", err)
	}
	if td.DateRange.Relative != "last month" {
		t.Errorf("expected relative range, got %+v", td.DateRange)
	}

	var d DateRange
	if err := d.UnmarshalJSON([]byte(`["2020-01-01", "2020-01-31"]`)); err != nil {
		t.Fatalf("pair unmarshal failed: %v", err)
	}
	if d.From != "2020-01-01" || d.To != "2020-01-31" {
		t.Errorf("unexpected pair range: %+v", d)
	}

	if err := d.UnmarshalJSON([]byte(`["2020-01-01"]`)); err == nil {
		t.Error("expected error for a one-element range")
	}

	var zero DateRange
	if zero.String() != "all time" {
		t.Errorf("zero range should render as all time, got %q", zero.String())
	}
}
