package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/cube-pilot/internal/config"
	"github.com/ziadkadry99/cube-pilot/internal/progress"
	"github.com/ziadkadry99/cube-pilot/internal/schema"
)

var (
	schemaIndex  bool
	schemaSearch string
)

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Inspect the configured Cube view schema",
	Long: `Fetches the view metadata and prints the available measures, dimensions,
and time dimensions. With --search the fields are embedded and queried by
meaning rather than exact name.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		fetcher, err := createFetcherFromConfig(cfg)
		if err != nil {
			return err
		}
		catalog, source, err := fetcher.FetchCatalog(cmd.Context(), cfg.ViewName)
		if err != nil {
			return err
		}

		if schemaSearch != "" {
			return runSchemaSearch(cmd.Context(), cfg, catalog, schemaSearch)
		}
		if schemaIndex {
			_, err := buildSchemaIndex(cmd.Context(), cfg, catalog)
			return err
		}

		printSchemaSummary(catalog, source)
		return nil
	},
}

func init() {
	schemaCmd.Flags().BoolVar(&schemaIndex, "index", false, "embed schema fields and report index size")
	schemaCmd.Flags().StringVar(&schemaSearch, "search", "", "semantically search schema fields")
	rootCmd.AddCommand(schemaCmd)
}

func printSchemaSummary(catalog *schema.Catalog, source string) {
	summary := catalog.Summarize()
	fmt.Printf("View: %s (source: %s)\n\n", summary.ViewName, source)

	fmt.Printf("Measures (%d):\n", summary.MeasureCount)
	for _, m := range catalog.Measures {
		fmt.Printf("  %-30s %s\n", m.Name, m.Title)
	}

	fmt.Printf("\nDimensions (%d):\n", summary.DimensionCount)
	for _, d := range catalog.Dimensions {
		typ := d.Type
		if typ == "" {
			typ = "string"
		}
		fmt.Printf("  %-30s %-8s %s\n", d.Name, typ, d.Title)
	}

	if summary.TimeDimensionCount > 0 {
		fmt.Printf("\nTime dimensions (%d): %s\n",
			summary.TimeDimensionCount, strings.Join(summary.TimeDimensions, ", "))
	}
}

// buildSchemaIndex embeds every catalog field with progress feedback.
func buildSchemaIndex(ctx context.Context, cfg *config.Config, catalog *schema.Catalog) (*schema.Searcher, error) {
	embedder, err := createEmbedderFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	searcher, err := schema.NewSearcher(catalog, embedder)
	if err != nil {
		return nil, err
	}

	total := len(catalog.Measures) + len(catalog.Dimensions)
	reporter := progress.NewReporter()
	reporter.Start(fmt.Sprintf("Indexing schema (%s)", catalog.ViewName), total)
	err = searcher.Index(ctx, func() {
		reporter.Step("")
	})
	reporter.Finish()
	if err != nil {
		return nil, err
	}

	fmt.Printf("Indexed %d schema fields for view %s\n", searcher.Count(), catalog.ViewName)
	return searcher, nil
}

func runSchemaSearch(ctx context.Context, cfg *config.Config, catalog *schema.Catalog, query string) error {
	searcher, err := buildSchemaIndex(ctx, cfg, catalog)
	if err != nil {
		return err
	}

	results, err := searcher.Search(ctx, query, 5)
	if err != nil {
		return err
	}
	if len(results) == 0 {
		fmt.Println("No matching schema fields found.")
		return nil
	}

	fmt.Printf("Fields matching %q:\n", query)
	for i, r := range results {
		fmt.Printf("%d. [%s] %s (similarity %.2f)\n", i+1, r.Kind, r.Field.Name, r.Similarity)
		if r.Field.Title != "" {
			fmt.Printf("   %s\n", r.Field.Title)
		}
	}
	return nil
}
