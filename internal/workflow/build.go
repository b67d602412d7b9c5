package workflow

import (
	"context"
	"path/filepath"

	"gitpack/internal/build"
	"gitpack/internal/config"
	"gitpack/internal/sandbox"
	"gitpack/internal/storage"
)

// CompilationTarget is the compile-only first target of every run.
const CompilationTarget = "compilation"

// BuildOptions select a sandbox and the programs to link in it.
type BuildOptions struct {
	Sandbox string
	// Programs default to build.targets
	Programs []string
	// Policy defaults to build.policy
	Policy string
}

// BuildResult is a finished run.
type BuildResult struct {
	Report     *build.Report `json:"report" yaml:"report"`
	ReportFile string        `json:"reportFile,omitempty" yaml:"reportFile,omitempty"`
	Recorded   bool          `json:"recorded" yaml:"recorded"`
}

// PlanTargets lists the targets of a run: the compilation, then one per
// program. In a main sandbox the programs reuse the compiled objects and
// libraries instead of redoing them.
func PlanTargets(opts sandbox.Options, programs []string, cfg config.BuildConfig) []build.Target {
	base := build.ScriptOptions{
		Threads:   cfg.Threads,
		OptLevel:  cfg.OptLevel,
		Partition: cfg.Partition,
	}
	targets := make([]build.Target, 0, len(programs)+1)
	targets = append(targets, build.Target{Name: CompilationTarget, Script: base})
	for _, p := range programs {
		script := base
		if !opts.Incremental {
			script.NoCompilation = true
			script.NoLibsUpdate = true
		}
		targets = append(targets, build.Target{Name: p, Program: p, Script: script})
	}
	return targets
}

// Build runs the compilation and the programs in a sandbox, writes the
// report file when one is configured and records the run in the history.
// The result is returned alongside a build failure.
func (s *Service) Build(ctx context.Context, opts BuildOptions) (*BuildResult, error) {
	policyName := opts.Policy
	if policyName == "" {
		policyName = s.cfg.Build.Policy
	}
	policy, err := build.ParsePolicy(policyName)
	if err != nil {
		return nil, err
	}

	tool, err := s.openSandbox(opts.Sandbox)
	if err != nil {
		return nil, err
	}
	sb := tool.Sandbox()

	programs := opts.Programs
	if len(programs) == 0 {
		programs = s.cfg.Build.Targets
	}
	targets := PlanTargets(sb.Options(), programs, s.cfg.Build)

	report, runErr := build.NewOrchestrator(tool, sb.Name(), s.logger).Run(ctx, targets, build.Options{
		Policy:     policy,
		Regenerate: s.cfg.Build.Regenerate,
		CleanFirst: s.cfg.Build.CleanFirst,
		Silent:     s.cfg.Build.Silent,
	})
	result := &BuildResult{Report: report}

	if path := s.cfg.Build.ReportFile; path != "" {
		if !filepath.IsAbs(path) {
			path = filepath.Join(sb.Root(), path)
		}
		if err := report.WriteFile(s.fs, path); err != nil {
			return result, err
		}
		result.ReportFile = path
	}

	result.Recorded = s.record(report, runErr)
	return result, runErr
}

// record stores report in the history. Failing to do so only warns.
func (s *Service) record(report *build.Report, runErr error) bool {
	history, db, err := s.openHistory()
	if err != nil {
		s.logger.Warn("Build history unavailable", "error", err.Error())
		return false
	}
	if history == nil {
		return false
	}
	defer db.Close()

	run := &storage.Run{
		RunID:      report.RunID,
		Sandbox:    report.Sandbox,
		Policy:     string(report.Policy),
		OK:         runErr == nil && report.OK(),
		StartedAt:  report.StartedAt,
		FinishedAt: report.FinishedAt,
	}
	if runErr != nil {
		run.Error = runErr.Error()
	}
	for _, e := range report.Entries() {
		run.Targets = append(run.Targets, storage.TargetResult{
			Target: e.Target,
			State:  string(e.State),
			OK:     e.OK,
			Output: e.Output,
			Took:   e.Took,
		})
	}
	if err := history.Record(run); err != nil {
		s.logger.Warn("Failed to record build", "runId", run.RunID, "error", err.Error())
		return false
	}
	return true
}
