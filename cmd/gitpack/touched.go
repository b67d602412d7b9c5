package main

import (
	"github.com/spf13/cobra"

	"gitpack/internal/workflow"
)

var (
	touchedSince       string
	touchedUncommitted bool
)

var touchedCmd = &cobra.Command{
	Use:   "touched [ref]",
	Short: "List the files a reference touched",
	Long: `List the files touched by a reference (HEAD by default) since a base, the
latest official ancestor unless --since is given, grouped by kind of change.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runTouched,
}

func init() {
	touchedCmd.Flags().StringVar(&touchedSince, "since", "", "Base reference (default: latest official ancestor)")
	touchedCmd.Flags().BoolVar(&touchedUncommitted, "uncommitted", false, "Include work-tree changes (HEAD only)")
	rootCmd.AddCommand(touchedCmd)
}

func runTouched(cmd *cobra.Command, args []string) error {
	ctx, cancel := newContext()
	defer cancel()
	svc, err := newService(ctx, true)
	if err != nil {
		return err
	}

	opts := workflow.TouchedOptions{Since: touchedSince, Uncommitted: touchedUncommitted}
	if len(args) == 1 {
		opts.Ref = args[0]
	}
	result, err := svc.Touched(ctx, opts)
	if err != nil {
		return err
	}
	return render(result)
}
