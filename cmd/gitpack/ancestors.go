package main

import (
	"github.com/spf13/cobra"
)

var ancestorsCmd = &cobra.Command{
	Use:   "ancestors [ref]",
	Short: "List the official tags a reference descends from",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runAncestors,
}

func init() {
	rootCmd.AddCommand(ancestorsCmd)
}

func runAncestors(cmd *cobra.Command, args []string) error {
	ctx, cancel := newContext()
	defer cancel()
	svc, err := newService(ctx, true)
	if err != nil {
		return err
	}

	ref := ""
	if len(args) == 1 {
		ref = args[0]
	}
	ancestry, err := svc.Ancestors(ctx, ref)
	if err != nil {
		return err
	}
	return render(ancestry)
}
