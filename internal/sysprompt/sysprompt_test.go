package sysprompt

import (
	"strings"
	"testing"

	"github.com/ziadkadry99/cube-pilot/internal/schema"
)

func testCatalog() *schema.Catalog {
	return &schema.Catalog{
		ViewName: "Orders",
		Measures: []schema.Field{
			{Name: "total_revenue", Title: "Total Revenue", Description: "Sum of order totals"},
			{Name: "count", Title: "Order Count", Description: "Number of orders"},
		},
		Dimensions: []schema.Field{
			{Name: "status", Title: "Status", Description: "Order status"},
			{Name: "created_at", Title: "Created At", Description: "Order timestamp", Type: "time"},
		},
	}
}

func TestBuild(t *testing.T) {
	prompt, meta := Build(testCatalog())

	if meta.ViewName != "Orders" || meta.MeasureCount != 2 || meta.DimensionCount != 2 {
		t.Errorf("unexpected metadata: %+v", meta)
	}
	if meta.Length != len(prompt) {
		t.Errorf("metadata length %d does not match prompt length %d", meta.Length, len(prompt))
	}

	for _, want := range []string{
		"Orders.total_revenue",
		"Orders.created_at",
		`"response_type": "cube_query"`,
		`"response_type": "clarification_needed"`,
		`"response_type": "error"`,
		"Only measures are required",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestBuildListsTimeDimensions(t *testing.T) {
	prompt, _ := Build(testCatalog())
	if !strings.Contains(prompt, "Time dimensions (usable in timeDimensions):") {
		t.Error("prompt missing time dimension section")
	}

	catalog := testCatalog()
	catalog.Dimensions = catalog.Dimensions[:1] // drop created_at
	prompt, _ = Build(catalog)
	if strings.Contains(prompt, "Time dimensions (usable in timeDimensions):") {
		t.Error("time dimension section should be omitted when none exist")
	}
}

func TestCacheRoundtrip(t *testing.T) {
	cache := NewCache(t.TempDir())
	if cache.Exists() {
		t.Fatal("fresh cache must not report existing prompt")
	}

	prompt, meta := Build(testCatalog())
	if err := cache.Save(prompt, meta); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if !cache.Exists() {
		t.Fatal("cache must report existing prompt after Save")
	}

	loaded, loadedMeta, err := cache.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded != prompt {
		t.Error("loaded prompt differs from saved prompt")
	}
	if loadedMeta.ViewName != "Orders" || loadedMeta.CachedAt.IsZero() {
		t.Errorf("unexpected loaded metadata: %+v", loadedMeta)
	}
}

func TestCacheDisabled(t *testing.T) {
	cache := NewCache("")
	if err := cache.Save("prompt", Metadata{}); err != nil {
		t.Errorf("disabled cache Save must be a no-op, got %v", err)
	}
	if cache.Exists() {
		t.Error("disabled cache must not report existing prompt")
	}
	if _, _, err := cache.Load(); err == nil {
		t.Error("disabled cache Load must fail")
	}
}
