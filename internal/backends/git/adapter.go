package git

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"gitpack/internal/command"
	"gitpack/internal/config"
	"gitpack/internal/errors"
	"gitpack/internal/repostate"
	"gitpack/internal/version"
)

// BackendID is the unique identifier for the Git backend
const BackendID = "git"

// GitAdapter runs git against one clone. Read-only queries honor the
// configured timeout; commands that change the clone never time out.
type GitAdapter struct {
	repoRoot     string
	executable   string
	queryTimeout time.Duration
	runner       command.Runner
	logger       *slog.Logger
}

// NewGitAdapter creates a new Git backend adapter
func NewGitAdapter(ctx context.Context, cfg *config.Config, runner command.Runner, logger *slog.Logger) (*GitAdapter, error) {
	if logger == nil || runner == nil {
		return nil, errors.NewPackError(
			errors.InternalError,
			"Logger and runner are required for GitAdapter",
			nil,
			nil,
		)
	}

	exe := cfg.Git.Executable
	if exe == "" {
		exe = "git"
	}

	adapter := &GitAdapter{
		repoRoot:     cfg.RepoRoot,
		executable:   exe,
		queryTimeout: time.Duration(cfg.Git.TimeoutMs) * time.Millisecond,
		runner:       runner,
		logger:       logger,
	}

	if !adapter.IsAvailable(ctx) {
		return nil, errors.NewPackError(
			errors.InvalidArgument,
			"Not a git repository: "+cfg.RepoRoot,
			nil,
			[]errors.FixAction{
				{
					Type:        errors.RunCommand,
					Command:     "git status",
					Safe:        true,
					Description: "Verify you're in a git repository",
				},
			},
		)
	}

	logger.Debug("Git adapter initialized",
		"repoRoot", cfg.RepoRoot,
		"timeout", adapter.queryTimeout.String(),
	)

	return adapter, nil
}

// ID returns the backend identifier
func (g *GitAdapter) ID() string {
	return BackendID
}

// RepoRoot returns the clone the adapter works on
func (g *GitAdapter) RepoRoot() string {
	return g.repoRoot
}

// IsAvailable checks if git is available and this is a git repository
func (g *GitAdapter) IsAvailable(ctx context.Context) bool {
	return repostate.IsGitRepository(ctx, g.runner, g.executable, g.repoRoot)
}

// Installed reports the git executable and its version.
func (g *GitAdapter) Installed(ctx context.Context) version.Tool {
	return version.Locate(ctx, g.runner, BackendID, g.executable, "--version")
}

// State snapshots the clone's checkout.
func (g *GitAdapter) State(ctx context.Context) (*repostate.RepoState, error) {
	return repostate.ComputeRepoState(ctx, g.runner, g.executable, g.repoRoot)
}

// query runs a read-only git command and returns its raw stdout
func (g *GitAdapter) query(ctx context.Context, args ...string) (string, error) {
	res, err := g.runner.Run(ctx, command.Spec{
		Dir:     g.repoRoot,
		Name:    g.executable,
		Args:    args,
		Timeout: g.queryTimeout,
	})
	if err != nil {
		return "", err
	}
	return res.Stdout, nil
}

// queryLines runs a read-only git command and returns non-empty lines
func (g *GitAdapter) queryLines(ctx context.Context, args ...string) ([]string, error) {
	out, err := g.query(ctx, args...)
	if err != nil {
		return nil, err
	}
	return command.Lines(out), nil
}

// mutate runs a git command that changes the clone
func (g *GitAdapter) mutate(ctx context.Context, args ...string) error {
	g.logger.Info("git "+strings.Join(args, " "), "repoRoot", g.repoRoot)
	res, err := g.runner.Run(ctx, command.Spec{
		Dir:  g.repoRoot,
		Name: g.executable,
		Args: args,
	})
	if out := strings.TrimSpace(res.Stdout); out != "" {
		g.logger.Debug("git output", "output", out)
	}
	return err
}

// HeadCommit returns the commit id HEAD points to
func (g *GitAdapter) HeadCommit(ctx context.Context) (string, error) {
	out, err := g.query(ctx, "rev-parse", "HEAD")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// CurrentBranch returns the checked-out branch, or "" when HEAD is detached
func (g *GitAdapter) CurrentBranch(ctx context.Context) (string, error) {
	out, err := g.query(ctx, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return "", err
	}
	branch := strings.TrimSpace(out)
	if branch == "HEAD" {
		return "", nil
	}
	return branch, nil
}

// StatusPorcelain returns the raw `git status --porcelain` lines. Untracked
// directories are listed file by file, so every entry is a file.
func (g *GitAdapter) StatusPorcelain(ctx context.Context) ([]string, error) {
	return g.queryLines(ctx, "status", "--porcelain", "--untracked-files=all")
}

// IsClean reports whether there is nothing staged, modified or untracked
func (g *GitAdapter) IsClean(ctx context.Context) (bool, error) {
	lines, err := g.StatusPorcelain(ctx)
	if err != nil {
		return false, err
	}
	return len(lines) == 0, nil
}

// NameStatus returns the raw `git diff --name-status from to` lines
func (g *GitAdapter) NameStatus(ctx context.Context, from, to string) ([]string, error) {
	return g.queryLines(ctx, "diff", "--name-status", from, to)
}

// MergeBase returns the best common ancestor of a and b
func (g *GitAdapter) MergeBase(ctx context.Context, a, b string) (string, error) {
	out, err := g.query(ctx, "merge-base", a, b)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}
