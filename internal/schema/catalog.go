package schema

import (
	"sort"
	"strings"
)

// Field describes a single measure or dimension in a Cube view.
type Field struct {
	Name        string `json:"name" yaml:"name"`
	Title       string `json:"title" yaml:"title"`
	Description string `json:"description" yaml:"description"`
	Type        string `json:"type,omitempty" yaml:"type,omitempty"`
}

// Catalog is a read-only view over the measures and dimensions of a named
// Cube view. It is immutable between refreshes and safe to share across
// sessions.
type Catalog struct {
	ViewName   string  `json:"view_name"`
	Measures   []Field `json:"measures"`
	Dimensions []Field `json:"dimensions"`
}

// MeasureNames returns the sorted list of measure names.
func (c *Catalog) MeasureNames() []string {
	names := make([]string, 0, len(c.Measures))
	for _, m := range c.Measures {
		if m.Name != "" {
			names = append(names, m.Name)
		}
	}
	sort.Strings(names)
	return names
}

// DimensionNames returns the sorted list of dimension names.
func (c *Catalog) DimensionNames() []string {
	names := make([]string, 0, len(c.Dimensions))
	for _, d := range c.Dimensions {
		if d.Name != "" {
			names = append(names, d.Name)
		}
	}
	sort.Strings(names)
	return names
}

// TimeDimensionNames returns the sorted names of dimensions with type "time".
func (c *Catalog) TimeDimensionNames() []string {
	var names []string
	for _, d := range c.Dimensions {
		if d.Type == "time" && d.Name != "" {
			names = append(names, d.Name)
		}
	}
	sort.Strings(names)
	return names
}

// HasMeasure reports whether the catalog contains a measure with the given
// bare (unqualified) name.
func (c *Catalog) HasMeasure(name string) bool {
	for _, m := range c.Measures {
		if m.Name == name {
			return true
		}
	}
	return false
}

// HasDimension reports whether the catalog contains a dimension with the
// given bare name.
func (c *Catalog) HasDimension(name string) bool {
	for _, d := range c.Dimensions {
		if d.Name == name {
			return true
		}
	}
	return false
}

// HasTimeDimension reports whether the catalog contains a time-typed
// dimension with the given bare name. A regular dimension with the same
// name does not count.
func (c *Catalog) HasTimeDimension(name string) bool {
	for _, d := range c.Dimensions {
		if d.Name == name && d.Type == "time" {
			return true
		}
	}
	return false
}

// StripPrefix removes the "View." qualifier from a field name if present.
func StripPrefix(field string) string {
	if idx := strings.Index(field, "."); idx >= 0 {
		return field[idx+1:]
	}
	return field
}

// Qualify prefixes a bare field name with the catalog's view name.
func (c *Catalog) Qualify(name string) string {
	if c.ViewName == "" {
		return name
	}
	return c.ViewName + "." + name
}

// Summary describes the catalog's contents for status endpoints and prompts.
type Summary struct {
	ViewName           string   `json:"view_name"`
	Measures           []string `json:"measures"`
	Dimensions         []string `json:"dimensions"`
	TimeDimensions     []string `json:"time_dimensions"`
	MeasureCount       int      `json:"measure_count"`
	DimensionCount     int      `json:"dimension_count"`
	TimeDimensionCount int      `json:"time_dimension_count"`
}

// Summarize returns a summary of available measures and dimensions.
// Calling it twice without a refresh returns identical results.
func (c *Catalog) Summarize() Summary {
	measures := c.MeasureNames()
	dims := c.DimensionNames()
	timeDims := c.TimeDimensionNames()
	return Summary{
		ViewName:           c.ViewName,
		Measures:           measures,
		Dimensions:         dims,
		TimeDimensions:     timeDims,
		MeasureCount:       len(measures),
		DimensionCount:     len(dims),
		TimeDimensionCount: len(timeDims),
	}
}
