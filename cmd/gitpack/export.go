package main

import (
	"github.com/spf13/cobra"

	"gitpack/internal/workflow"
)

var (
	exportName     string
	exportMain     bool
	exportFetch    bool
	exportStartRef string
	exportClean    bool
)

var exportCmd = &cobra.Command{
	Use:   "export [ref]",
	Short: "Export a git reference into a sandbox",
	Long: `Export a git reference (HEAD by default) into a gmkpack sandbox.

The reference is resolved to the official tags it descends from. An incremental
sandbox is created over the matching main pack when it does not exist yet, then
the files touched since the latest official ancestor are copied into it and the
deleted ones are recorded to be ignored at compile time.

Examples:
  gitpack export                       # current branch, uncommitted changes included
  gitpack export mary_CY48_fix --fetch
  gitpack export CY48T1 --main         # whole tree into a main sandbox`,
	Args: cobra.MaximumNArgs(1),
	RunE: runExport,
}

func init() {
	exportCmd.Flags().StringVar(&exportName, "name", "", "Sandbox name radical (default: the reference)")
	exportCmd.Flags().BoolVar(&exportMain, "main", false, "Export the whole tree into a main sandbox")
	exportCmd.Flags().BoolVar(&exportFetch, "fetch", false, "Fetch the remote before resolving the reference")
	exportCmd.Flags().StringVar(&exportStartRef, "start-ref", "", "Diff base (default: latest official ancestor)")
	exportCmd.Flags().BoolVar(&exportClean, "clean", false, "Run cleanpack on a reused sandbox first")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	ctx, cancel := newContext()
	defer cancel()
	svc, err := newService(ctx, true)
	if err != nil {
		return err
	}

	opts := workflow.ExportOptions{
		Name:     exportName,
		Main:     exportMain,
		Fetch:    exportFetch,
		StartRef: exportStartRef,
		Clean:    exportClean,
	}
	if len(args) == 1 {
		opts.Ref = args[0]
	}
	result, err := svc.Export(ctx, opts)
	if err != nil {
		return err
	}
	return render(result)
}
