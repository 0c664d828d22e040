package queryval

import (
	"encoding/json"
	"fmt"
)

// Query is the structured Cube query shape produced by the LLM and executed
// against the Cube API. Every field name is fully qualified as
// "View.field_name".
type Query struct {
	Measures       []string          `json:"measures,omitempty"`
	Dimensions     []string          `json:"dimensions,omitempty"`
	TimeDimensions []TimeDimension   `json:"timeDimensions,omitempty"`
	Filters        []Filter          `json:"filters,omitempty"`
	Order          map[string]string `json:"order,omitempty"`
	Limit          int               `json:"limit,omitempty"`
}

// TimeDimension configures time-based grouping or filtering.
type TimeDimension struct {
	Dimension   string    `json:"dimension"`
	Granularity string    `json:"granularity,omitempty"` // day, week, month, year or empty
	DateRange   DateRange `json:"dateRange,omitempty"`
}

// Filter restricts a query by a measure or dimension value.
type Filter struct {
	Member   string   `json:"member"`
	Operator string   `json:"operator"`
	Values   []string `json:"values"`
}

// DateRange is either a relative range string ("last month") or an explicit
// ["YYYY-MM-DD", "YYYY-MM-DD"] pair, matching the Cube API's union shape.
type DateRange struct {
	Relative string
	From     string
	To       string
}

// IsZero reports whether no range is set.
func (d DateRange) IsZero() bool {
	return d.Relative == "" && d.From == "" && d.To == ""
}

func (d DateRange) MarshalJSON() ([]byte, error) {
	if d.Relative != "" {
		return json.Marshal(d.Relative)
	}
	if d.From != "" || d.To != "" {
		return json.Marshal([2]string{d.From, d.To})
	}
	return []byte("null"), nil
}

func (d *DateRange) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*d = DateRange{}
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*d = DateRange{Relative: s}
		return nil
	}

	var pair []string
	if err := json.Unmarshal(data, &pair); err == nil {
		if len(pair) != 2 {
			return fmt.Errorf("dateRange array must have exactly 2 elements, got %d", len(pair))
		}
		*d = DateRange{From: pair[0], To: pair[1]}
		return nil
	}

	return fmt.Errorf("dateRange must be a string or a [start, end] array")
}

// String renders the range for human-readable summaries.
func (d DateRange) String() string {
	if d.Relative != "" {
		return d.Relative
	}
	if d.From != "" || d.To != "" {
		return d.From + " to " + d.To
	}
	return "all time"
}
