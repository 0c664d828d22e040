package cmd

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	mcpserver "github.com/ziadkadry99/cube-pilot/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the MCP server for AI agent integration",
	Long:  `Starts a Model Context Protocol (MCP) server on stdio, exposing query and schema tools for AI agents.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

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

		searcher := createSearcher(cfg, orch.Catalog())
		if searcher != nil {
			if err := searcher.Index(cmd.Context(), nil); err != nil {
				log.Printf("cmd: schema index build failed, search disabled: %v", err)
				searcher = nil
			}
		}

		// Set version from the cmd package variable.
		mcpserver.Version = Version

		fmt.Fprintf(os.Stderr, "cubepilot MCP server started on stdio (view=%s)\n", cfg.ViewName)

		srv := mcpserver.NewServer(orch, searcher)
		return srv.Serve()
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
