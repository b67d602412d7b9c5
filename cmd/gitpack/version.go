package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"gitpack/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		build := version.Current()
		if OutputFormat(formatFlag) == FormatHuman {
			fmt.Println(build.String())
			return nil
		}
		return render(build)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
