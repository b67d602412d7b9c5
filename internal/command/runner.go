// Package command runs external tools (git, gmkpack, scanpack...) with an
// explicit working directory and environment.
package command

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"

	"gitpack/internal/errors"
)

// Spec describes one command invocation.
type Spec struct {
	// Dir is the working directory; it is never inherited implicitly.
	Dir  string
	Name string
	Args []string
	// Env holds KEY=VALUE pairs added to the inherited environment.
	Env []string
	// Unset lists variables removed from the inherited environment.
	Unset []string
	// Stdout and Stderr, when set, receive the output instead of the Result.
	Stdout io.Writer
	Stderr io.Writer
	// Timeout of 0 means the command runs to completion.
	Timeout time.Duration
}

// String renders the command line.
func (s Spec) String() string {
	if len(s.Args) == 0 {
		return s.Name
	}
	return s.Name + " " + strings.Join(s.Args, " ")
}

// Result holds captured output and the exit status.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Runner abstracts command execution for testability.
type Runner interface {
	// LookPath checks if a binary exists in PATH.
	LookPath(name string) (string, error)

	// Run executes the command. A non-zero exit is reported as a
	// COMMAND_FAILED error together with the populated Result.
	Run(ctx context.Context, spec Spec) (Result, error)
}

// ExecRunner implements Runner using os/exec.
type ExecRunner struct {
	logger *slog.Logger
}

// NewExecRunner creates a runner logging invocations at debug level.
func NewExecRunner(logger *slog.Logger) *ExecRunner {
	return &ExecRunner{logger: logger}
}

// LookPath checks if a binary exists in PATH.
func (r *ExecRunner) LookPath(name string) (string, error) {
	return exec.LookPath(name)
}

// Run executes spec and waits for it.
func (r *ExecRunner) Run(ctx context.Context, spec Spec) (Result, error) {
	if spec.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, spec.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, spec.Name, spec.Args...)
	cmd.Dir = spec.Dir
	if len(spec.Env) > 0 || len(spec.Unset) > 0 {
		cmd.Env = BuildEnv(os.Environ(), spec.Env, spec.Unset)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	if spec.Stdout != nil {
		cmd.Stdout = spec.Stdout
	}
	cmd.Stderr = &stderr
	if spec.Stderr != nil {
		cmd.Stderr = spec.Stderr
	}

	if r.logger != nil {
		r.logger.Debug("Executing command",
			"command", spec.String(),
			"dir", spec.Dir,
		)
	}

	start := time.Now()
	err := cmd.Run()
	res := Result{Stdout: stdout.String(), Stderr: stderr.String()}
	if cmd.ProcessState != nil {
		res.ExitCode = cmd.ProcessState.ExitCode()
	}

	if r.logger != nil {
		r.logger.Debug("Command finished",
			"command", spec.Name,
			"exitCode", res.ExitCode,
			"duration", time.Since(start),
		)
	}

	if err == nil {
		return res, nil
	}
	if ctx.Err() == context.DeadlineExceeded {
		return res, errors.NewPackError(errors.Timeout, fmt.Sprintf("%s timed out", spec.Name), err, nil).
			WithDetails(map[string]interface{}{"command": spec.String(), "timeout": spec.Timeout.String()})
	}
	return res, Failed(spec, res, err)
}

// Failed builds the COMMAND_FAILED error for spec.
func Failed(spec Spec, res Result, cause error) error {
	return errors.NewPackError(errors.CommandFailed, fmt.Sprintf("%s failed", spec.Name), cause, nil).
		WithDetails(map[string]interface{}{
			"command":  spec.String(),
			"dir":      spec.Dir,
			"exitCode": res.ExitCode,
			"stderr":   strings.TrimSpace(res.Stderr),
		})
}

// ExitCode returns the exit status recorded in a COMMAND_FAILED error, or -1.
func ExitCode(err error) int {
	var pe *errors.PackError
	if !stderrors.As(err, &pe) || pe.Code != errors.CommandFailed {
		return -1
	}
	details, ok := pe.Details.(map[string]interface{})
	if !ok {
		return -1
	}
	if code, ok := details["exitCode"].(int); ok {
		return code
	}
	return -1
}

// BuildEnv overlays set onto base and drops the unset names.
func BuildEnv(base, set, unset []string) []string {
	drop := make(map[string]bool, len(unset)+len(set))
	for _, k := range unset {
		drop[k] = true
	}
	for _, kv := range set {
		if k, _, ok := strings.Cut(kv, "="); ok {
			drop[k] = true
		}
	}

	env := make([]string, 0, len(base)+len(set))
	for _, kv := range base {
		k, _, _ := strings.Cut(kv, "=")
		if !drop[k] {
			env = append(env, kv)
		}
	}
	return append(env, set...)
}

// Lines splits command output into non-empty lines. Leading whitespace is
// significant for some formats (git status --porcelain) and is kept.
func Lines(output string) []string {
	raw := strings.Split(output, "\n")
	lines := make([]string, 0, len(raw))
	for _, line := range raw {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines = append(lines, line)
	}
	return lines
}
