package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"PortfolioChat/internal/config"
)

//nolint:gochecknoglobals // Cobra boilerplate
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the configuration file",
}

//nolint:gochecknoglobals // Cobra boilerplate
var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default configuration file",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := config.InitConfig(configFile)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote default configuration to %s\n", path)
		return nil
	},
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	configCmd.AddCommand(configInitCmd)
	rootCmd.AddCommand(configCmd)
}
