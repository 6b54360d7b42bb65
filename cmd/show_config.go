package cmd

import (
	"fmt"

	"github.com/ethpandaops/hilbench/internal/config"
	"github.com/spf13/cobra"
)

var showConfigCmd = &cobra.Command{
	Use:   "show-config",
	Short: "Display current environment configuration",
	Long:  `Shows the current configuration loaded from environment variables and .env file.`,
	RunE: func(_ *cobra.Command, _ []string) error {
		return showConfig()
	},
}

func init() {
	rootCmd.AddCommand(showConfigCmd)
}

func showConfig() error {
	cfg, err := config.FromEnv()
	if err != nil {
		return fmt.Errorf("failed to show config: %w", err)
	}

	fmt.Println(cfg.String())

	return nil
}
