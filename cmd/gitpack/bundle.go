package main

import (
	"github.com/spf13/cobra"

	"gitpack/internal/workflow"
)

var (
	bundleName     string
	bundleMain     bool
	bundleNoUpdate bool
	bundleClean    bool
	bundleFetch    bool
	bundleDir      string
	bundleForce    bool
)

var bundleCmd = &cobra.Command{
	Use:   "bundle",
	Short: "Export bundles and find the released ones",
	Long: `A bundle pins the IAL source tree and the projects it is built with (hub
packages such as eckit or fckit, and extra sources such as oops) to git versions.

The projects are cloned once into bundle.cache_dir and reused afterwards.`,
}

var bundleExportCmd = &cobra.Command{
	Use:   "export <bundle.yml>",
	Short: "Export every project of a bundle into one sandbox",
	Long: `Export the IAL project of a bundle like 'gitpack export' does, then copy every
other project whole into the same sandbox: hub packages under hub/local/src,
sources under src/local. Symbols listed in the .gitpack/linkignore file of a
project are allowed to stay unresolved at link time.

Examples:
  gitpack bundle export bundle.yml
  gitpack bundle export BDL49T0-01.yml --main --no-update`,
	Args: cobra.ExactArgs(1),
	RunE: runBundleExport,
}

var bundleFindCmd = &cobra.Command{
	Use:   "find [ref]",
	Short: "List the released bundles matching a reference",
	Long: `List the bundles of bundle.repository whose IAL version is the reference
itself, else its most recent official ancestor some bundle uses.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runBundleFind,
}

var bundleGetCmd = &cobra.Command{
	Use:   "get [ref]",
	Short: "Write the released bundle matching a reference",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runBundleGet,
}

func init() {
	bundleExportCmd.Flags().StringVar(&bundleName, "name", "", "Sandbox name radical (default: the IAL version)")
	bundleExportCmd.Flags().BoolVar(&bundleMain, "main", false, "Export into a main sandbox")
	bundleExportCmd.Flags().BoolVar(&bundleNoUpdate, "no-update", false, "Use the cached clones as they are")
	bundleExportCmd.Flags().BoolVar(&bundleClean, "clean", false, "Run cleanpack on a reused sandbox first")
	for _, c := range []*cobra.Command{bundleFindCmd, bundleGetCmd} {
		c.Flags().BoolVar(&bundleFetch, "fetch", false, "Fetch the bundle repository first")
	}
	bundleGetCmd.Flags().StringVar(&bundleDir, "dir", ".", "Directory the bundle is written to")
	bundleGetCmd.Flags().BoolVar(&bundleForce, "force", false, "Overwrite an existing bundle file")

	bundleCmd.AddCommand(bundleExportCmd, bundleFindCmd, bundleGetCmd)
	rootCmd.AddCommand(bundleCmd)
}

func runBundleExport(cmd *cobra.Command, args []string) error {
	ctx, cancel := newContext()
	defer cancel()
	svc, err := newService(ctx, false)
	if err != nil {
		return err
	}
	result, err := svc.ExportBundle(ctx, workflow.BundleOptions{
		File:     args[0],
		Name:     bundleName,
		Main:     bundleMain,
		NoUpdate: bundleNoUpdate,
		Clean:    bundleClean,
	})
	if err != nil {
		return err
	}
	return render(result)
}

func runBundleFind(cmd *cobra.Command, args []string) error {
	ctx, cancel := newContext()
	defer cancel()
	svc, err := newService(ctx, true)
	if err != nil {
		return err
	}
	match, err := svc.FindBundles(ctx, refArg(args), bundleFetch)
	if err != nil {
		return err
	}
	return render(match)
}

func runBundleGet(cmd *cobra.Command, args []string) error {
	ctx, cancel := newContext()
	defer cancel()
	svc, err := newService(ctx, true)
	if err != nil {
		return err
	}
	result, err := svc.GetBundle(ctx, refArg(args), bundleDir, bundleForce, bundleFetch)
	if err != nil {
		return err
	}
	return render(result)
}

func refArg(args []string) string {
	if len(args) == 1 {
		return args[0]
	}
	return ""
}
