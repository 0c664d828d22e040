package queryval

import (
	"fmt"
	"strings"

	"github.com/ziadkadry99/cube-pilot/internal/schema"
)

// DefaultMaxSuggestionDistance is the edit-distance cutoff for closest-match
// suggestions.
const DefaultMaxSuggestionDistance = 3

// Result is the outcome of validating a query against a catalog. It is
// produced fresh per call and never mutated afterward.
type Result struct {
	Valid                 bool              `json:"valid"`
	Errors                []string          `json:"errors"`
	Warnings              []string          `json:"warnings"`
	InvalidMeasures       []string          `json:"invalid_measures"`
	InvalidDimensions     []string          `json:"invalid_dimensions"`
	InvalidTimeDimensions []string          `json:"invalid_time_dimensions"`
	Suggestions           map[string]string `json:"suggestions"`
}

// Validator checks structured queries against a schema catalog and proposes
// closest-match corrections for unknown field names.
type Validator struct {
	maxDistance int
}

// NewValidator creates a validator with the given suggestion distance cutoff.
// A non-positive cutoff falls back to DefaultMaxSuggestionDistance.
func NewValidator(maxDistance int) *Validator {
	if maxDistance <= 0 {
		maxDistance = DefaultMaxSuggestionDistance
	}
	return &Validator{maxDistance: maxDistance}
}

// Validate checks every measure, dimension, time dimension, and filter member
// of q against the catalog. Unknown measures/dimensions/time dimensions are
// errors; unknown filter members are warnings only, since filters may
// reference either measures or dimensions. Valid is true iff Errors is empty.
func (v *Validator) Validate(q *Query, catalog *schema.Catalog) *Result {
	result := &Result{
		Valid:       true,
		Errors:      []string{},
		Warnings:    []string{},
		Suggestions: map[string]string{},
	}

	if len(q.Measures) == 0 {
		result.Valid = false
		result.Errors = append(result.Errors, "query has no measures; at least one measure is required")
	}

	measureNames := catalog.MeasureNames()
	for _, measure := range q.Measures {
		name := schema.StripPrefix(measure)
		if catalog.HasMeasure(name) {
			continue
		}
		result.Valid = false
		result.Errors = append(result.Errors,
			fmt.Sprintf("Measure '%s' does not exist in cube '%s'", measure, catalog.ViewName))
		result.InvalidMeasures = append(result.InvalidMeasures, measure)

		if suggestion, ok := v.closestMatch(name, measureNames); ok {
			result.Suggestions[measure] = catalog.Qualify(suggestion)
		}
	}

	dimensionNames := catalog.DimensionNames()
	for _, dimension := range q.Dimensions {
		name := schema.StripPrefix(dimension)
		if catalog.HasDimension(name) {
			continue
		}
		result.Valid = false
		result.Errors = append(result.Errors,
			fmt.Sprintf("Dimension '%s' does not exist in cube '%s'", dimension, catalog.ViewName))
		result.InvalidDimensions = append(result.InvalidDimensions, dimension)

		if suggestion, ok := v.closestMatch(name, dimensionNames); ok {
			result.Suggestions[dimension] = catalog.Qualify(suggestion)
		}
	}

	// A non-time dimension used as a time dimension is invalid even when the
	// bare name exists as a regular dimension.
	timeDimensionNames := catalog.TimeDimensionNames()
	for _, td := range q.TimeDimensions {
		name := schema.StripPrefix(td.Dimension)
		if catalog.HasTimeDimension(name) {
			continue
		}
		result.Valid = false
		result.Errors = append(result.Errors,
			fmt.Sprintf("Time dimension '%s' does not exist or is not a time type in cube '%s'", td.Dimension, catalog.ViewName))
		result.InvalidTimeDimensions = append(result.InvalidTimeDimensions, td.Dimension)

		if suggestion, ok := v.closestMatch(name, timeDimensionNames); ok {
			result.Suggestions[td.Dimension] = catalog.Qualify(suggestion)
		}
	}

	for _, filter := range q.Filters {
		name := schema.StripPrefix(filter.Member)
		if !catalog.HasMeasure(name) && !catalog.HasDimension(name) {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("Filter member '%s' does not exist in cube '%s'", filter.Member, catalog.ViewName))
		}
	}

	return result
}

// closestMatch finds the candidate with the smallest case-insensitive edit
// distance within the cutoff. Candidates are iterated in sorted order, so
// ties break deterministically for a fixed catalog.
func (v *Validator) closestMatch(name string, candidates []string) (string, bool) {
	if len(candidates) == 0 {
		return "", false
	}

	lower := strings.ToLower(name)
	best := ""
	bestDistance := v.maxDistance + 1

	for _, candidate := range candidates {
		distance := levenshtein(lower, strings.ToLower(candidate))
		if distance < bestDistance {
			bestDistance = distance
			best = candidate
		}
	}

	if best == "" {
		return "", false
	}
	return best, true
}

// levenshtein computes the edit distance between two strings using the
// classic two-row dynamic program.
func levenshtein(s1, s2 string) int {
	r1 := []rune(s1)
	r2 := []rune(s2)
	if len(r1) < len(r2) {
		r1, r2 = r2, r1
	}
	if len(r2) == 0 {
		return len(r1)
	}

	previous := make([]int, len(r2)+1)
	current := make([]int, len(r2)+1)
	for j := range previous {
		previous[j] = j
	}

	for i, c1 := range r1 {
		current[0] = i + 1
		for j, c2 := range r2 {
			cost := 0
			if c1 != c2 {
				cost = 1
			}
			insertion := previous[j+1] + 1
			deletion := current[j] + 1
			substitution := previous[j] + cost
			current[j+1] = min(insertion, min(deletion, substitution))
		}
		previous, current = current, previous
	}

	return previous[len(r2)]
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
