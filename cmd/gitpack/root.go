package main

import (
	"github.com/spf13/cobra"

	"gitpack/internal/version"
)

var (
	// verbosity is the count of -v flags
	verbosity   int
	quiet       bool
	formatFlag  string
	profileFlag string
)

var rootCmd = &cobra.Command{
	Use:   "gitpack",
	Short: "gitpack - git front end for gmkpack sandboxes",
	Long: `gitpack exports git references of the IFS/ARPEGE source tree into gmkpack
sandboxes, builds them, and saves sandbox changes back as contribution branches.

Sandboxes are resolved against the official CYxx tags a reference descends from,
so that only the files touched since that tag are copied over the main pack.`,
	Version:       version.Current().Short(),
	SilenceErrors: true,
	SilenceUsage:  true,
}

func init() {
	rootCmd.SetVersionTemplate("gitpack version {{.Version}}\n")
	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "Increase log verbosity (-v info, -vv debug)")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Silence all logs")
	rootCmd.PersistentFlags().StringVar(&formatFlag, "format", "human", "Output format (human, json, yaml)")
	rootCmd.PersistentFlags().StringVar(&profileFlag, "profile", "", "Build profile from .gitpack/profiles.toml")
}
