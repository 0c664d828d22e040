package cmd

import (
	"github.com/spf13/cobra"

	"github.com/ziadkadry99/cube-pilot/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize cubepilot configuration with an interactive wizard",
	Long:  `Runs an interactive wizard to configure the Cube connection and LLM provider, and generates a .cubepilot.yml file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := config.RunWizard(cfgFile)
		return err
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
