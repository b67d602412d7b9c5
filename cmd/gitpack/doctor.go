package main

import (
	"github.com/spf13/cobra"

	"gitpack/internal/errors"
	"gitpack/internal/repostate"
	"gitpack/internal/version"
	"gitpack/internal/workflow"
)

// DoctorResponseCLI reports the external tools gitpack drives
type DoctorResponseCLI struct {
	Version  string                   `json:"version"`
	Home     string                   `json:"home"`
	Clone    *repostate.RepoState     `json:"clone,omitempty"`
	Backends []workflow.BackendStatus `json:"backends"`
	Healthy  bool                     `json:"healthy"`
}

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check that git and gmkpack can be used",
	Args:  cobra.NoArgs,
	RunE:  runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

func runDoctor(cmd *cobra.Command, args []string) error {
	ctx, cancel := newContext()
	defer cancel()
	svc, err := newService(ctx, false)
	if err != nil {
		return err
	}

	resp := &DoctorResponseCLI{
		Version:  version.Current().Short(),
		Home:     svc.Home(),
		Backends: svc.Check(ctx),
		Healthy:  true,
	}
	if resp.Clone, err = svc.CloneState(ctx); err != nil {
		return err
	}
	var missing []string
	for _, b := range resp.Backends {
		if !b.Available {
			resp.Healthy = false
			missing = append(missing, b.ID)
		}
	}
	if err := render(resp); err != nil {
		return err
	}
	if !resp.Healthy {
		return errors.Errorf(errors.CommandFailed, "unavailable: %v", missing)
	}
	return nil
}
