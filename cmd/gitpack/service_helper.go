package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/spf13/afero"

	"gitpack/internal/backends/git"
	"gitpack/internal/command"
	"gitpack/internal/config"
	"gitpack/internal/repostate"
	"gitpack/internal/slogutil"
	"gitpack/internal/workflow"
)

// getRepoRoot returns the top level of the clone holding the working
// directory, so gitpack can be run from any subdirectory.
func getRepoRoot(ctx context.Context, runner command.Runner) (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return findRepoRoot(ctx, runner, cwd), nil
}

// findRepoRoot asks git for the top level above dir. Outside of a clone it
// returns dir, where sandbox-only commands still find their config.
func findRepoRoot(ctx context.Context, runner command.Runner, dir string) string {
	root, err := repostate.GetRepoRoot(ctx, runner, "git", dir)
	if err != nil || root == "" {
		return dir
	}
	return root
}

// loadConfig reads the configuration of the current clone and applies the
// --profile flag.
func loadConfig(ctx context.Context) (*config.Config, error) {
	repoRoot, err := getRepoRoot(ctx, command.NewExecRunner(slogutil.NewDiscardLogger()))
	if err != nil {
		return nil, err
	}
	cfg, err := config.LoadConfig(repoRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if profileFlag != "" {
		if err := cfg.UseProfile(cfg.RepoRoot, profileFlag); err != nil {
			return nil, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newLogger logs to stderr at the level picked by -v/-q, else the configured one.
func newLogger(cfg *config.Config) *slog.Logger {
	level := slogutil.LevelFromVerbosity(verbosity, quiet, slogutil.LevelFromString(cfg.Logging.Level))
	return slogutil.NewFormatLogger(os.Stderr, cfg.Logging.Format, level)
}

// newService wires the workflows onto the clone in the working directory.
// Commands that only touch sandboxes pass needGit false and keep working
// outside of a clone.
func newService(ctx context.Context, needGit bool) (*workflow.Service, error) {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return nil, err
	}
	logger := newLogger(cfg)
	runner := command.NewExecRunner(logger)

	var repo workflow.Repo
	adapter, err := git.NewGitAdapter(ctx, cfg, runner, logger)
	switch {
	case err == nil:
		repo = adapter
	case needGit:
		return nil, err
	default:
		logger.Debug("Git backend unavailable", "error", err.Error())
	}
	return workflow.NewService(cfg, repo, runner, afero.NewOsFs(), logger), nil
}

// newContext creates a context cancelled on interrupt.
func newContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt)
}

// render prints resp on stdout in the --format format.
func render(resp interface{}) error {
	return renderTo(os.Stdout, resp)
}

func renderTo(w io.Writer, resp interface{}) error {
	output, err := FormatResponse(resp, OutputFormat(formatFlag))
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, output)
	return err
}
