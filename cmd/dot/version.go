package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/copyleftdev/dotbind/internal/dot"
)

var version = "0.1.0"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "dot version %s\n", version)
		if p, err := dot.HostPlatform(); err == nil {
			fmt.Fprintf(cmd.OutOrStdout(), "library: %s\n", p.LibraryName)
		}
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
