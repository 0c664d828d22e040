package queryval

import (
	"fmt"
	"strings"

	"github.com/ziadkadry99/cube-pilot/internal/schema"
)

// BuildCorrectionPrompt composes the natural-language instruction that steers
// the LLM retry after a failed validation. It lists every error, the
// suggested replacements, the full valid field lists, and the exact JSON
// response contract. It carries no side effects; the bounded retry loop in
// the orchestrator is the only consumer.
func BuildCorrectionPrompt(result *Result, originalQuery string, catalog *schema.Catalog) string {
	if result.Valid {
		return ""
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Your previous cube query contained invalid parameters for the '%s' cube.\n", catalog.ViewName)
	b.WriteString("\nErrors found:\n")
	for _, err := range result.Errors {
		fmt.Fprintf(&b, "  - %s\n", err)
	}

	if len(result.Suggestions) > 0 {
		b.WriteString("\nSuggested corrections:\n")
		// Deterministic order: walk the invalid lists, not the map.
		for _, invalid := range invalidNames(result) {
			if suggestion, ok := result.Suggestions[invalid]; ok {
				fmt.Fprintf(&b, "  - Replace '%s' with '%s'\n", invalid, suggestion)
			}
		}
	}

	view := catalog.ViewName
	fmt.Fprintf(&b, "\nAvailable measures in '%s':\n  %s\n", view, strings.Join(catalog.MeasureNames(), ", "))
	fmt.Fprintf(&b, "\nAvailable dimensions in '%s':\n  %s\n", view, strings.Join(catalog.DimensionNames(), ", "))
	if timeDims := catalog.TimeDimensionNames(); len(timeDims) > 0 {
		fmt.Fprintf(&b, "\nAvailable time dimensions in '%s':\n  %s\n", view, strings.Join(timeDims, ", "))
	}

	fmt.Fprintf(&b, "\nPlease regenerate the cube query for the user's question: %q\n", originalQuery)
	b.WriteString("Use ONLY the measures and dimensions listed above.\n")
	b.WriteString("\nIMPORTANT: Respond with a complete JSON response in this exact format:\n")
	b.WriteString("{\n")
	b.WriteString("  \"response_type\": \"cube_query\",\n")
	b.WriteString("  \"cube_query\": {\n")
	fmt.Fprintf(&b, "    \"measures\": [\"%s.measure_name\"],\n", view)
	fmt.Fprintf(&b, "    \"dimensions\": [\"%s.dimension_name\"],\n", view)
	b.WriteString("    \"timeDimensions\": [{\n")
	fmt.Fprintf(&b, "      \"dimension\": \"%s.time_dimension_name\",\n", view)
	b.WriteString("      \"granularity\": \"day\",\n")
	b.WriteString("      \"dateRange\": [\"2020-01-01\", \"2020-01-31\"]\n")
	b.WriteString("    }]\n")
	b.WriteString("  },\n")
	b.WriteString("  \"description\": \"<description of what the query does>\",\n")
	b.WriteString("  \"confidence_score\": 0.9\n")
	b.WriteString("}\n")
	b.WriteString("\nREMEMBER:\n")
	fmt.Fprintf(&b, "1. ALL field names must be prefixed with '%s.'\n", view)
	b.WriteString("2. For dateRange, use either:\n")
	b.WriteString("   - Array format: [\"YYYY-MM-DD\", \"YYYY-MM-DD\"]\n")
	b.WriteString("   - Valid string: \"Today\", \"Yesterday\", \"This week\", \"This month\", \"This year\", \"Last 7 days\", \"Last 30 days\", \"Last week\", \"Last month\", \"Last year\"\n")
	b.WriteString("   - For \"all time\" queries: OMIT the timeDimensions field entirely\n")
	b.WriteString("3. DO NOT use invalid strings like \"all time\", \"All time\", \"january 2020\", etc.\n")

	return b.String()
}

func invalidNames(result *Result) []string {
	names := make([]string, 0, len(result.InvalidMeasures)+len(result.InvalidDimensions)+len(result.InvalidTimeDimensions))
	names = append(names, result.InvalidMeasures...)
	names = append(names, result.InvalidDimensions...)
	names = append(names, result.InvalidTimeDimensions...)
	return names
}
