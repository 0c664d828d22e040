// Package sysprompt composes and caches the system prompt that teaches the
// LLM the view schema and the structured response contract.
package sysprompt

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ziadkadry99/cube-pilot/internal/schema"
)

const (
	promptCacheFile   = "system_prompt.txt"
	metadataCacheFile = "system_prompt_metadata.json"
)

// Metadata describes a generated system prompt.
type Metadata struct {
	ViewName       string    `json:"view_name"`
	MeasureCount   int       `json:"measure_count"`
	DimensionCount int       `json:"dimension_count"`
	Length         int       `json:"length"`
	GeneratedAt    time.Time `json:"generated_at"`
	CachedAt       time.Time `json:"cached_at,omitempty"`
}

// Build composes the system prompt from the catalog.
func Build(catalog *schema.Catalog) (string, Metadata) {
	var b strings.Builder

	b.WriteString("You are a data analytics assistant that converts natural language questions into Cube.js queries.\n\n")
	fmt.Fprintf(&b, "You work with a single Cube view named '%s'.\n\n", catalog.ViewName)

	b.WriteString("Available measures:\n")
	for _, m := range catalog.Measures {
		fmt.Fprintf(&b, "  - %s.%s: %s — %s\n", catalog.ViewName, m.Name, m.Title, m.Description)
	}

	b.WriteString("\nAvailable dimensions:\n")
	for _, d := range catalog.Dimensions {
		typ := d.Type
		if typ == "" {
			typ = "string"
		}
		fmt.Fprintf(&b, "  - %s.%s (%s): %s — %s\n", catalog.ViewName, d.Name, typ, d.Title, d.Description)
	}

	if timeDims := catalog.TimeDimensionNames(); len(timeDims) > 0 {
		b.WriteString("\nTime dimensions (usable in timeDimensions):\n")
		for _, name := range timeDims {
			fmt.Fprintf(&b, "  - %s.%s\n", catalog.ViewName, name)
		}
	}

	b.WriteString(`
You MUST respond with a single JSON object in one of these three shapes:

1. When you can construct a query:
{
  "response_type": "cube_query",
  "cube_query": {
    "measures": ["` + catalog.ViewName + `.measure_name"],
    "dimensions": ["` + catalog.ViewName + `.dimension_name"],
    "timeDimensions": [{"dimension": "` + catalog.ViewName + `.time_dimension_name", "granularity": "month", "dateRange": "last month"}],
    "filters": [{"member": "` + catalog.ViewName + `.dimension_name", "operator": "equals", "values": ["value"]}]
  },
  "interpretation": "<what you understood>",
  "description": "<what the query does>",
  "confidence_score": 0.9
}

2. When the question is genuinely ambiguous:
{
  "response_type": "clarification_needed",
  "interpretation": "<what you understood so far>",
  "message": "<why clarification is needed>",
  "questions": ["<one focused question>"],
  "suggestions": ["<concrete option>", "<concrete option>"],
  "confidence_score": 0.4
}

3. When the question cannot be answered with this view:
{
  "response_type": "error",
  "interpretation": "<what you understood>",
  "description": "<why it cannot be answered>",
  "confidence_score": 0.0
}

Rules:
- ALL field names must be fully qualified with the '` + catalog.ViewName + `.' prefix.
- Only measures are required. If no time range is mentioned, assume all time and OMIT timeDimensions. If no grouping is mentioned, omit dimensions. If no filters are mentioned, omit filters.
- For dateRange use either ["YYYY-MM-DD", "YYYY-MM-DD"] or one of: "Today", "Yesterday", "This week", "This month", "This year", "Last 7 days", "Last 30 days", "Last week", "Last month", "Last year".
- Never invent measures or dimensions that are not in the lists above.
`)

	prompt := b.String()
	meta := Metadata{
		ViewName:       catalog.ViewName,
		MeasureCount:   len(catalog.Measures),
		DimensionCount: len(catalog.Dimensions),
		Length:         len(prompt),
		GeneratedAt:    time.Now(),
	}
	return prompt, meta
}

// Cache persists system prompts to disk so restarts do not require a
// metadata fetch before the first query.
type Cache struct {
	dir string
}

// NewCache creates a cache rooted at dir. An empty dir disables caching.
func NewCache(dir string) *Cache {
	return &Cache{dir: dir}
}

// Save writes the prompt and its metadata to the cache directory.
func (c *Cache) Save(prompt string, meta Metadata) error {
	if c.dir == "" {
		return nil
	}
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return fmt.Errorf("creating cache dir: %w", err)
	}

	if err := os.WriteFile(filepath.Join(c.dir, promptCacheFile), []byte(prompt), 0o644); err != nil {
		return fmt.Errorf("writing prompt cache: %w", err)
	}

	meta.CachedAt = time.Now()
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("marshalling prompt metadata: %w", err)
	}
	if err := os.WriteFile(filepath.Join(c.dir, metadataCacheFile), data, 0o644); err != nil {
		return fmt.Errorf("writing prompt metadata: %w", err)
	}
	return nil
}

// Load returns the cached prompt and metadata, or an error when no cache
// exists.
func (c *Cache) Load() (string, Metadata, error) {
	if c.dir == "" {
		return "", Metadata{}, fmt.Errorf("prompt cache disabled")
	}

	prompt, err := os.ReadFile(filepath.Join(c.dir, promptCacheFile))
	if err != nil {
		return "", Metadata{}, fmt.Errorf("reading prompt cache: %w", err)
	}

	var meta Metadata
	if data, err := os.ReadFile(filepath.Join(c.dir, metadataCacheFile)); err == nil {
		// Metadata is best-effort; a corrupt file does not invalidate the prompt.
		_ = json.Unmarshal(data, &meta)
	}

	return string(prompt), meta, nil
}

// Exists reports whether a cached prompt is present.
func (c *Cache) Exists() bool {
	if c.dir == "" {
		return false
	}
	_, err := os.Stat(filepath.Join(c.dir, promptCacheFile))
	return err == nil
}
