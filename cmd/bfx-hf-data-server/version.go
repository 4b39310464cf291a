package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/GoChartingAdmin/bfx-hf-data-server/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "bfx-hf-data-server %s\n", version.String())
		fmt.Fprintf(out, "  Go version: %s\n", runtime.Version())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
