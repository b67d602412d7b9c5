package main

import (
	"github.com/spf13/cobra"

	"gitpack/internal/workflow"
)

var (
	saveBranch  string
	saveMessage string
	savePush    bool
)

var saveCmd = &cobra.Command{
	Use:   "save <sandbox>",
	Short: "Save the changes of a sandbox as a git branch",
	Long: `Save the files modified in an incremental sandbox as a new branch started at
the sandbox's ancestor tag. Files ignored for compilation are removed from the
branch.

Without --message the branch is left checked out with the changes unstaged.`,
	Args: cobra.ExactArgs(1),
	RunE: runSave,
}

func init() {
	saveCmd.Flags().StringVarP(&saveBranch, "branch", "b", "", "Branch name (default: <user>_<release>_<sandbox>)")
	saveCmd.Flags().StringVarP(&saveMessage, "message", "m", "", "Commit the saved files with this message")
	saveCmd.Flags().BoolVar(&savePush, "push", false, "Push the committed branch")
	rootCmd.AddCommand(saveCmd)
}

func runSave(cmd *cobra.Command, args []string) error {
	ctx, cancel := newContext()
	defer cancel()
	svc, err := newService(ctx, true)
	if err != nil {
		return err
	}

	result, err := svc.SaveAsBranch(ctx, workflow.SaveOptions{
		Sandbox: args[0],
		Branch:  saveBranch,
		Message: saveMessage,
		Push:    savePush,
	})
	if result != nil {
		if renderErr := render(result); renderErr != nil && err == nil {
			err = renderErr
		}
	}
	return err
}
