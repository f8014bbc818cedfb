package main

import (
	"github.com/spf13/cobra"

	"github.com/vadiminshakov/pricefeed/internal/setup"
)

var setupOutput string

// setupCmd runs the configuration wizard
var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Interactive configuration wizard",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return setup.RunTUI(setupOutput)
	},
}

func init() {
	setupCmd.Flags().StringVarP(&setupOutput, "output", "o", setup.DefaultOutput, "where to write the generated config")
}
