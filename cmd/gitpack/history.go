package main

import (
	"github.com/spf13/cobra"

	"gitpack/internal/storage"
)

// HistoryResponseCLI lists recorded build runs
type HistoryResponseCLI struct {
	Runs []*storage.Run `json:"runs"`
}

var (
	historySandbox string
	historyFailed  bool
	historyLimit   int
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recorded build runs",
	Args:  cobra.NoArgs,
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().StringVar(&historySandbox, "sandbox", "", "Only runs of this sandbox")
	historyCmd.Flags().BoolVar(&historyFailed, "failed", false, "Only failed runs")
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "Maximum number of runs (0 for all)")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	ctx, cancel := newContext()
	defer cancel()
	svc, err := newService(ctx, false)
	if err != nil {
		return err
	}

	runs, err := svc.History(storage.ListFilter{
		Sandbox:    historySandbox,
		FailedOnly: historyFailed,
		Limit:      historyLimit,
	})
	if err != nil {
		return err
	}
	return render(&HistoryResponseCLI{Runs: runs})
}
