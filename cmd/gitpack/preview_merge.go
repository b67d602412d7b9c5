package main

import (
	"github.com/spf13/cobra"
)

var previewAncestor string

var previewMergeCmd = &cobra.Command{
	Use:   "preview-merge <contrib> <target>",
	Short: "List the files a merge could conflict on",
	Long: `List the files both contrib and target touched since their common ancestor,
grouped by the pair of changes, e.g. "M/D" for a file modified in contrib and
deleted in target.`,
	Args: cobra.ExactArgs(2),
	RunE: runPreviewMerge,
}

func init() {
	previewMergeCmd.Flags().StringVar(&previewAncestor, "ancestor", "", "Common ancestor (default: git merge-base)")
	rootCmd.AddCommand(previewMergeCmd)
}

func runPreviewMerge(cmd *cobra.Command, args []string) error {
	ctx, cancel := newContext()
	defer cancel()
	svc, err := newService(ctx, true)
	if err != nil {
		return err
	}

	preview, err := svc.PreviewMerge(ctx, args[0], args[1], previewAncestor)
	if err != nil {
		return err
	}
	return render(preview)
}
