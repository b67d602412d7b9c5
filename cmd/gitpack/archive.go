package main

import (
	"os"

	"github.com/spf13/cobra"
)

// ArchiveResponseCLI describes an archive written or extracted
type ArchiveResponseCLI struct {
	Sandbox   string   `json:"sandbox"`
	Archive   string   `json:"archive"`
	Extracted bool     `json:"extracted"`
	Files     []string `json:"files"`
}

var archiveOutput string

var archiveCmd = &cobra.Command{
	Use:   "archive <sandbox>",
	Short: "Archive the local sources of a sandbox",
	Long: `Write the local sources of a sandbox to a zstd-compressed tarball, to be
extracted in another sandbox with 'gitpack extract'.`,
	Args: cobra.ExactArgs(1),
	RunE: runArchive,
}

var extractCmd = &cobra.Command{
	Use:   "extract <sandbox> <archive>",
	Short: "Extract an archive into the local sources of a sandbox",
	Args:  cobra.ExactArgs(2),
	RunE:  runExtract,
}

func init() {
	archiveCmd.Flags().StringVarP(&archiveOutput, "output", "o", "", "Archive path (default: <sandbox>.tar.zst)")
	rootCmd.AddCommand(archiveCmd)
	rootCmd.AddCommand(extractCmd)
}

func runArchive(cmd *cobra.Command, args []string) (err error) {
	ctx, cancel := newContext()
	defer cancel()
	svc, err := newService(ctx, false)
	if err != nil {
		return err
	}

	path := archiveOutput
	if path == "" {
		path = args[0] + ".tar.zst"
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	files, err := svc.Archive(args[0], f)
	if err != nil {
		return err
	}
	return render(&ArchiveResponseCLI{Sandbox: args[0], Archive: path, Files: files})
}

func runExtract(cmd *cobra.Command, args []string) error {
	ctx, cancel := newContext()
	defer cancel()
	svc, err := newService(ctx, false)
	if err != nil {
		return err
	}

	f, err := os.Open(args[1])
	if err != nil {
		return err
	}
	defer f.Close()

	files, err := svc.Extract(args[0], f)
	if err != nil {
		return err
	}
	return render(&ArchiveResponseCLI{Sandbox: args[0], Archive: args[1], Extracted: true, Files: files})
}
