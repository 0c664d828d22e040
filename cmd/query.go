package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/ziadkadry99/cube-pilot/internal/orchestrator"
	"github.com/ziadkadry99/cube-pilot/internal/report"
)

var (
	querySession string
	queryCSV     bool
	queryJSON    bool
)

var queryCmd = &cobra.Command{
	Use:   "query [question]",
	Short: "Run a single natural language query",
	Long: `Converts a natural language question into a validated Cube query,
executes it, and prints the result. Use --session to continue an earlier
conversation, --csv to export the rows, or --json for machine-readable output.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		question := strings.Join(args, " ")

		database, store, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer database.Close()

		orch, err := createOrchestratorFromConfig(cfg, store)
		if err != nil {
			return err
		}
		if err := orch.Initialize(cmd.Context()); err != nil {
			return err
		}

		sessionID := querySession
		if sessionID == "" {
			sessionID = uuid.NewString()
		}

		result, err := orch.ProcessQuery(cmd.Context(), sessionID, question)
		if err != nil {
			return err
		}

		if queryJSON {
			return json.NewEncoder(os.Stdout).Encode(result)
		}
		return printResult(cfg.DataDir, result)
	},
}

func init() {
	queryCmd.Flags().StringVar(&querySession, "session", "", "session id to continue a conversation")
	queryCmd.Flags().BoolVar(&queryCSV, "csv", false, "export result rows to a CSV file")
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "print the full result as JSON")
	rootCmd.AddCommand(queryCmd)
}

func printResult(dataDir string, result *orchestrator.ProcessingResult) error {
	switch result.ResponseType {
	case orchestrator.ResultData:
		if result.Description != "" {
			fmt.Println(result.Description)
		}
		printRows(result.Result.Rows)
		fmt.Printf("\n%d row(s), session %s\n", result.Result.RowCount, result.SessionID)

		if queryCSV {
			path := result.CSVPath
			if path == "" {
				p, err := report.WriteCSV(dataDir, result.Result)
				if err != nil {
					return err
				}
				path = p
			}
			fmt.Printf("Exported to %s\n", path)
		}
		return nil

	case orchestrator.ResultClarification:
		fmt.Println(result.Message)
		for _, q := range result.Questions {
			fmt.Printf("  - %s\n", q)
		}
		if len(result.Suggestions) > 0 {
			fmt.Printf("Suggestions: %s\n", strings.Join(result.Suggestions, ", "))
		}
		fmt.Printf("\nAnswer with: cubepilot query --session %s \"<your answer>\"\n", result.SessionID)
		return nil

	default:
		return fmt.Errorf("%s: %s", result.ResponseType, result.Error)
	}
}

// printRows renders rows as an aligned text table with sorted columns.
func printRows(rows []map[string]any) {
	if len(rows) == 0 {
		fmt.Println("(no rows)")
		return
	}

	var columns []string
	for col := range rows[0] {
		columns = append(columns, col)
	}
	sort.Strings(columns)

	widths := make([]int, len(columns))
	cells := make([][]string, len(rows))
	for i, col := range columns {
		widths[i] = len(col)
	}
	for r, row := range rows {
		cells[r] = make([]string, len(columns))
		for i, col := range columns {
			cell := fmt.Sprintf("%v", row[col])
			cells[r][i] = cell
			if len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	for i, col := range columns {
		fmt.Printf("%-*s  ", widths[i], col)
	}
	fmt.Println()
	for i := range columns {
		fmt.Print(strings.Repeat("-", widths[i]), "  ")
	}
	fmt.Println()
	for _, row := range cells {
		for i, cell := range row {
			fmt.Printf("%-*s  ", widths[i], cell)
		}
		fmt.Println()
	}
}
