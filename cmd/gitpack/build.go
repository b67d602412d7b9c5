package main

import (
	"github.com/spf13/cobra"

	"gitpack/internal/workflow"
)

var buildPolicy string

var buildCmd = &cobra.Command{
	Use:   "build <sandbox> [program...]",
	Short: "Compile a sandbox and link programs",
	Long: `Compile a sandbox, then build each program (default: build.targets).

Build scripts are generated when missing, or always with build.regenerate, then
tuned with the configured threads, optimization level and partition.

Failure policies:
  immediate          stop at the first failure
  collect-and-raise  build everything, fail at the end when a target failed
  tolerant           build everything, only report failures`,
	Args: cobra.MinimumNArgs(1),
	RunE: runBuild,
}

func init() {
	buildCmd.Flags().StringVar(&buildPolicy, "policy", "", "Failure policy (default: build.policy)")
	rootCmd.AddCommand(buildCmd)
}

func runBuild(cmd *cobra.Command, args []string) error {
	ctx, cancel := newContext()
	defer cancel()
	svc, err := newService(ctx, false)
	if err != nil {
		return err
	}

	result, err := svc.Build(ctx, workflow.BuildOptions{
		Sandbox:  args[0],
		Programs: args[1:],
		Policy:   buildPolicy,
	})
	if result != nil {
		if renderErr := render(result); renderErr != nil && err == nil {
			err = renderErr
		}
	}
	return err
}
