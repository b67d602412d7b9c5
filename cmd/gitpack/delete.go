package main

import (
	"github.com/spf13/cobra"

	"gitpack/internal/errors"
)

var deleteYes bool

var deleteCmd = &cobra.Command{
	Use:   "delete <sandbox>",
	Short: "Delete a sandbox and its build history",
	Args:  cobra.ExactArgs(1),
	RunE:  runDelete,
}

func init() {
	deleteCmd.Flags().BoolVarP(&deleteYes, "yes", "y", false, "Confirm the deletion")
	rootCmd.AddCommand(deleteCmd)
}

func runDelete(cmd *cobra.Command, args []string) error {
	if !deleteYes {
		return errors.NewPackError(errors.InvalidArgument,
			"Refusing to delete "+args[0]+" without confirmation", nil,
			[]errors.FixAction{{
				Type:        errors.RunCommand,
				Command:     "gitpack delete --yes " + args[0],
				Description: "Confirm the deletion",
			}})
	}

	ctx, cancel := newContext()
	defer cancel()
	svc, err := newService(ctx, false)
	if err != nil {
		return err
	}

	result, err := svc.Delete(args[0])
	if err != nil {
		return err
	}
	return render(result)
}
