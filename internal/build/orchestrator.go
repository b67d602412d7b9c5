// Package build drives the per-target generation and compilation of
// build scripts in a sandbox under a chosen failure policy.
package build

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"gitpack/internal/errors"
)

// Policy decides what a failed target does to the run.
type Policy string

const (
	// Immediate aborts on the first failure.
	Immediate Policy = "immediate"
	// CollectAndRaise attempts everything, then fails if anything failed.
	CollectAndRaise Policy = "collect-and-raise"
	// Tolerant attempts everything and only reports.
	Tolerant Policy = "tolerant"
)

// ParsePolicy accepts "immediate", "collect-and-raise", "tolerant" in any
// case, with '_' or '-'.
func ParsePolicy(s string) (Policy, error) {
	p := Policy(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "_", "-"))
	switch p {
	case Immediate, CollectAndRaise, Tolerant:
		return p, nil
	}
	return "", errors.Errorf(errors.InvalidArgument,
		"unknown failure policy %q (want immediate, collect-and-raise or tolerant)", s)
}

// ScriptOptions tune a generated build script.
type ScriptOptions struct {
	Threads   int
	OptLevel  int
	Partition string
	// NoCompilation and NoLibsUpdate skip steps a previous target did
	NoCompilation bool
	NoLibsUpdate  bool
}

// Outcome is the result of running a build script. Output is the log
// location, or a message.
type Outcome struct {
	OK     bool
	Output string
}

// Compiler is the sandbox build tool.
type Compiler interface {
	HasScript(program string) bool
	GenerateBuildScript(ctx context.Context, program string, opts ScriptOptions) error
	RunBuildScript(ctx context.Context, program string, silent bool) (Outcome, error)
	Clean(ctx context.Context) error
}

// Target is one unit of a run. Program is empty for the compile-only
// script.
type Target struct {
	Name    string
	Program string
	Script  ScriptOptions
}

// Options control a run.
type Options struct {
	Policy Policy
	// Regenerate rebuilds scripts even when present
	Regenerate bool
	// CleanFirst cleans the sandbox before the first target only
	CleanFirst bool
	Silent     bool
}

// Orchestrator runs targets against one compiler.
type Orchestrator struct {
	compiler Compiler
	sandbox  string
	logger   *slog.Logger
	now      func() time.Time
}

// NewOrchestrator creates an orchestrator for the named sandbox.
func NewOrchestrator(compiler Compiler, sandbox string, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{compiler: compiler, sandbox: sandbox, logger: logger, now: time.Now}
}

// Run builds targets in order. The report is always returned, partial
// when the run stopped early or failed.
func (o *Orchestrator) Run(ctx context.Context, targets []Target, opts Options) (*Report, error) {
	if opts.Policy == "" {
		opts.Policy = Immediate
	}
	report := &Report{
		RunID:     uuid.NewString(),
		Sandbox:   o.sandbox,
		Policy:    opts.Policy,
		StartedAt: o.now(),
	}
	defer func() { report.FinishedAt = o.now() }()

	o.logger.Info("Build started",
		"runId", report.RunID,
		"sandbox", o.sandbox,
		"targets", len(targets),
		"policy", string(opts.Policy),
	)

	var errs []error
	for i, target := range targets {
		entry, err := o.buildOne(ctx, target, opts, i == 0)
		report.add(entry)
		if err == nil {
			continue
		}

		o.logger.Warn("Target failed",
			"target", target.Name,
			"state", string(entry.State),
			"output", entry.Output,
		)
		switch opts.Policy {
		case Immediate:
			return report, err
		case CollectAndRaise:
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		msg := fmt.Sprintf("build failed for %s", strings.Join(report.Failed(), ", "))
		if ok := report.Succeeded(); len(ok) > 0 {
			msg += fmt.Sprintf(" (ok for %s)", strings.Join(ok, ", "))
		}
		return report, errors.NewPackError(errors.AggregateBuildFailure, msg, multierr.Combine(errs...), nil).
			WithDetails(map[string]interface{}{
				"failed":    report.Failed(),
				"succeeded": report.Succeeded(),
			})
	}
	return report, nil
}

func (o *Orchestrator) buildOne(ctx context.Context, target Target, opts Options, first bool) (entry Entry, err error) {
	start := o.now()
	entry = Entry{Target: target.Name, State: MissingScript}
	defer func() { entry.Took = o.now().Sub(start) }()

	if opts.Regenerate || !o.compiler.HasScript(target.Program) {
		o.logger.Debug("Generating build script", "target", target.Name)
		if err = o.compiler.GenerateBuildScript(ctx, target.Program, target.Script); err != nil {
			entry.Output = fmt.Sprintf("script generation failed: %v", err)
			return entry, errors.NewPackError(errors.ScriptGenerationFailed,
				"Script generation failed for "+target.Name, err, nil)
		}
	}
	entry.State = ScriptGenerated

	if first && opts.CleanFirst {
		if err = o.compiler.Clean(ctx); err != nil {
			entry.State = CompiledFailed
			entry.Output = fmt.Sprintf("clean failed: %v", err)
			return entry, errors.NewPackError(errors.BuildFailure, "Clean before "+target.Name+" failed", err, nil)
		}
	}

	o.logger.Info("Building", "target", target.Name)
	outcome, err := o.compiler.RunBuildScript(ctx, target.Program, opts.Silent)
	entry.Output = outcome.Output
	if err != nil || !outcome.OK {
		entry.State = CompiledFailed
		if err != nil && entry.Output == "" {
			entry.Output = err.Error()
		}
		return entry, errors.NewPackError(errors.BuildFailure, "Build of "+target.Name+" failed", err, nil).
			WithDetails(map[string]interface{}{"target": target.Name, "output": entry.Output})
	}

	entry.OK = true
	entry.State = CompiledOK
	return entry, nil
}
