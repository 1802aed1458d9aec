package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "meshmap",
	Short: "Mesh radio coverage map",
	Long:  "meshmap derives direct links, hop-tier coverage regions and signal circles from mesh telemetry snapshots.",
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(renderCmd)
}

var configPath string
