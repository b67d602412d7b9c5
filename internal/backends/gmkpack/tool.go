// Package gmkpack drives the gmkpack sandbox tool: sandbox creation, build
// script generation and tuning, compilation and the scanpack/cleanpack
// helpers.
package gmkpack

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/afero"

	"gitpack/internal/build"
	"gitpack/internal/command"
	"gitpack/internal/config"
	"gitpack/internal/errors"
	"gitpack/internal/sandbox"
	"gitpack/internal/script"
	"gitpack/internal/version"
)

// BackendID is the unique identifier for the gmkpack backend
const BackendID = "gmkpack"

// IgnoredFilesMarker closes the heredoc listing ignored files in a build
// script.
const IgnoredFilesMarker = "end_of_ignored_files"

// logTimeFormat stamps silent build logs
const logTimeFormat = "20060102T150405"

var (
	threadsPattern   = script.MustRegex(`export GMK_THREADS=(\d+)`)
	optLevelPattern  = script.MustRegex(`Ofrt=(\d)`)
	partitionPattern = script.MustRegex(`#SBATCH -p (.+)`)
	icfModePattern   = script.MustRegex(`export ICS_ICFMODE=(.+)`)
	updLibsPattern   = script.MustRegex(`export ICS_UPDLIBS=(.+)`)
)

// toolEnv is applied to every gmkpack-related command.
var (
	toolEnv   = []string{"GMK_RELEASE_CASE_SENSITIVE=1"}
	toolUnset = []string{"GMK_USER_PACKNAME_STYLE", "PACK_EXT", "PACK_PREFIX"}
)

// Tool operates on one existing sandbox.
type Tool struct {
	sb      *sandbox.Sandbox
	runner  command.Runner
	exe     string
	scanExe string
	// cleanExe is cleanpack
	cleanExe string
	// Strict makes unmatched script tuning fail
	Strict bool
	stdout io.Writer
	stderr io.Writer
	logger *slog.Logger
	now    func() time.Time
}

// NewTool creates a tool for sb using the executables named in cfg.
func NewTool(sb *sandbox.Sandbox, runner command.Runner, cfg config.SandboxConfig, logger *slog.Logger) *Tool {
	return &Tool{
		sb:       sb,
		runner:   runner,
		exe:      orDefault(cfg.Tool, "gmkpack"),
		scanExe:  orDefault(cfg.ScanTool, "scanpack"),
		cleanExe: orDefault(cfg.CleanTool, "cleanpack"),
		stdout:   os.Stdout,
		stderr:   os.Stderr,
		logger:   logger,
		now:      time.Now,
	}
}

func orDefault(v, d string) string {
	if v == "" {
		return d
	}
	return v
}

// ID returns the backend identifier
func (t *Tool) ID() string {
	return BackendID
}

// IsAvailable reports whether the gmkpack executable is on PATH
func (t *Tool) IsAvailable(context.Context) bool {
	_, err := t.runner.LookPath(t.exe)
	return err == nil
}

// Installed reports the gmkpack executable. Its version is read from the
// installation directory.
func (t *Tool) Installed(ctx context.Context) version.Tool {
	return version.Locate(ctx, t.runner, BackendID, t.exe)
}

// Sandbox returns the sandbox the tool works on
func (t *Tool) Sandbox() *sandbox.Sandbox {
	return t.sb
}

// HasScript implements build.Compiler.
func (t *Tool) HasScript(program string) bool {
	return t.sb.HasScript(program)
}

// GenerateBuildScript runs gmkpack with the sandbox creation flags for
// program, then tunes the produced script.
func (t *Tool) GenerateBuildScript(ctx context.Context, program string, opts build.ScriptOptions) error {
	if err := t.sb.RemoveScript(program); err != nil {
		return err
	}

	genesis := t.sb.Options().
		WithArg("-p", strings.ToLower(program)).
		WithArg("-h", filepath.Dir(t.sb.Root()))
	spec := command.Spec{
		Dir:   filepath.Dir(t.sb.Root()),
		Name:  t.exe,
		Args:  genesis.Args(),
		Env:   toolEnv,
		Unset: toolUnset,
	}
	t.logger.Info("Generating build script", "sandbox", t.sb.Name(), "program", program)
	if _, err := t.runner.Run(ctx, spec); err != nil {
		return err
	}
	if !t.sb.HasScript(program) {
		return errors.Errorf(errors.ScriptGenerationFailed,
			"%s did not produce %s", t.exe, t.sb.ScriptPath(program))
	}
	return t.Tune(program, opts)
}

// Tune applies opts to the build script of program and makes it read the
// ignored-files record when one exists.
func (t *Tool) Tune(program string, opts build.ScriptOptions) error {
	p := script.NewPatcher(t.sb.Fs(), t.sb.ScriptPath(program), t.logger)
	p.Strict = t.Strict

	type edit struct {
		when    bool
		pattern script.Regex
		repl    string
	}
	edits := []edit{
		{opts.Threads > 0, threadsPattern, "export GMK_THREADS=" + strconv.Itoa(opts.Threads)},
		{opts.OptLevel > 0, optLevelPattern, "Ofrt=" + strconv.Itoa(opts.OptLevel)},
		{opts.Partition != "", partitionPattern, "#SBATCH -p " + opts.Partition},
		{opts.NoCompilation, icfModePattern, "export ICS_ICFMODE=off"},
		{opts.NoLibsUpdate, updLibsPattern, "export ICS_UPDLIBS=off"},
	}
	for _, e := range edits {
		if !e.when {
			continue
		}
		if _, err := p.Modify(e.pattern, e.repl); err != nil {
			return err
		}
	}

	if ok, _ := afero.Exists(t.sb.Fs(), t.sb.IgnoredRecordPath()); ok {
		line := fmt.Sprintf("cat %s >> $GMKWRKDIR/.ignored_files", t.sb.IgnoredRecordPath())
		if _, err := p.Insert(script.Literal(IgnoredFilesMarker), []string{line}, script.After); err != nil {
			return err
		}
	}
	return nil
}

// RunBuildScript runs the build script of program in the sandbox. A
// non-zero exit, or a missing executable for a named program, is a failed
// outcome rather than an error.
func (t *Tool) RunBuildScript(ctx context.Context, program string, silent bool) (build.Outcome, error) {
	path := t.sb.ScriptPath(program)
	if !t.sb.HasScript(program) {
		return build.Outcome{}, errors.Errorf(errors.ScriptGenerationFailed, "no build script at %s", path)
	}

	spec := command.Spec{
		Dir:    t.sb.Root(),
		Name:   path,
		Env:    toolEnv,
		Unset:  toolUnset,
		Stdout: t.stdout,
		Stderr: t.stderr,
	}

	var logPath string
	if silent {
		f, err := t.openLog(program)
		if err != nil {
			return build.Outcome{}, err
		}
		defer f.Close()
		logPath = f.Name()
		spec.Stdout, spec.Stderr = f, f
	}

	_, err := t.runner.Run(ctx, spec)
	if err != nil && command.ExitCode(err) < 0 {
		return build.Outcome{Output: logPath}, err
	}

	ok := err == nil
	if ok && program != "" {
		ok = t.sb.HasExecutable(program)
	}
	outcome := build.Outcome{OK: ok, Output: logPath}
	if !ok && logPath == "" {
		outcome.Output = failureMessage(program)
	}
	t.logger.Debug("Build script finished", "program", program, "ok", ok, "output", outcome.Output)
	return outcome, nil
}

func failureMessage(program string) string {
	if program == "" {
		return "Compilation failed."
	}
	return fmt.Sprintf("Build of %s failed.", program)
}

func (t *Tool) openLog(program string) (afero.File, error) {
	fs := t.sb.Fs()
	if err := fs.MkdirAll(t.sb.LogDir(), 0o755); err != nil {
		return nil, errors.Wrap(errors.InternalError, "Failed to create "+t.sb.LogDir(), err)
	}
	base := strings.ToLower(program)
	if base == "" {
		base = "_"
	}
	path := filepath.Join(t.sb.LogDir(), base+"."+t.now().Format(logTimeFormat))
	f, err := fs.Create(path)
	if err != nil {
		return nil, errors.Wrap(errors.InternalError, "Failed to create build log "+path, err)
	}
	return f, nil
}

// ListChangedFiles runs scanpack in the sandbox sources.
func (t *Tool) ListChangedFiles(ctx context.Context) ([]string, error) {
	res, err := t.runner.Run(ctx, command.Spec{
		Dir:  t.sb.LocalDir(),
		Name: t.scanExe,
	})
	if err != nil {
		return nil, err
	}
	var files []string
	for _, line := range command.Lines(res.Stdout) {
		files = append(files, strings.TrimSpace(line))
	}
	return files, nil
}

// Clean implements build.Compiler with cleanpack -f.
func (t *Tool) Clean(ctx context.Context) error {
	t.logger.Info("Cleaning sandbox", "sandbox", t.sb.Name())
	_, err := t.runner.Run(ctx, command.Spec{
		Dir:  t.sb.Root(),
		Name: t.cleanExe,
		Args: []string{"-f"},
	})
	return err
}
