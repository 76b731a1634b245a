package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "metalpulse",
	Short: "Gold/silver ratio fragility monitor",
	Long: `MetalPulse keeps a daily history of gold and silver prices and macro
indicators, scores the fragility of the gold/silver ratio and publishes the
result over HTTP, Kafka and Markdown reports.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config/config.yaml", "config file path")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
