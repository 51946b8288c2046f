package main

import (
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

var noColor bool

var rootCmd = &cobra.Command{
	Use:     "halcyon",
	Short:   "Local wellbeing journal with on-device analysis",
	Version: version,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(journalCmd)
	rootCmd.AddCommand(moodCmd)
	rootCmd.AddCommand(eventCmd)
	rootCmd.AddCommand(communityCmd)
	rootCmd.AddCommand(pointsCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(recallCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(configCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
