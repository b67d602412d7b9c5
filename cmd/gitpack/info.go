package main

import (
	"github.com/spf13/cobra"
)

var infoCmd = &cobra.Command{
	Use:   "info <sandbox>",
	Short: "Show what gitpack knows about a sandbox",
	Long: `Show the creation options, build scripts, files ignored for compilation and
the synchronizations of a sandbox.`,
	Args: cobra.ExactArgs(1),
	RunE: runInfo,
}

func init() {
	rootCmd.AddCommand(infoCmd)
}

func runInfo(cmd *cobra.Command, args []string) error {
	ctx, cancel := newContext()
	defer cancel()
	svc, err := newService(ctx, false)
	if err != nil {
		return err
	}

	info, err := svc.Info(args[0])
	if err != nil {
		return err
	}
	return render(info)
}
