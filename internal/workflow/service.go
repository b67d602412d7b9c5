// Package workflow chains the git view, the reference resolver, the change
// classifier, the sandbox tool and the build orchestrator into the
// operations the command line exposes.
package workflow

import (
	"context"
	"log/slog"
	"os"
	"os/user"
	"path/filepath"

	"github.com/spf13/afero"

	"gitpack/internal/backends"
	"gitpack/internal/backends/git"
	"gitpack/internal/backends/gmkpack"
	"gitpack/internal/changes"
	"gitpack/internal/command"
	"gitpack/internal/config"
	"gitpack/internal/paths"
	"gitpack/internal/refs"
	"gitpack/internal/repostate"
	"gitpack/internal/sandbox"
	"gitpack/internal/storage"
	"gitpack/internal/view"
)

const (
	// SyncIgnoreFile lists, in the repo config dir, the paths never copied
	// into a sandbox.
	SyncIgnoreFile = "syncignore"
	// LinkIgnoreFile lists, in the repo config dir, the symbols a sandbox
	// populated in bulk may leave unresolved at link time.
	LinkIgnoreFile = "linkignore"
)

// Repo is the part of the git backend the workflows need.
type Repo interface {
	view.Git
	refs.TagHistory
	changes.DiffSource
	RepoRoot() string
	TrackedFiles(ctx context.Context) ([]string, error)
	Stage(ctx context.Context, paths ...string) error
	Remove(ctx context.Context, paths ...string) error
	Commit(ctx context.Context, message string) error
	Push(ctx context.Context, remote, branch string) error
}

// Service runs workflows against one clone and one sandbox home.
type Service struct {
	cfg    *config.Config
	repo   Repo
	runner command.Runner
	fs     afero.Fs
	home   string
	logger *slog.Logger
	// user names contribution branches
	user func() string
	// openRepo opens another clone, such as a bundle project
	openRepo func(ctx context.Context, root string) (Repo, error)
}

// NewService creates a service. fs holds both the clone and the sandboxes.
func NewService(cfg *config.Config, repo Repo, runner command.Runner, fs afero.Fs, logger *slog.Logger) *Service {
	s := &Service{
		cfg:    cfg,
		repo:   repo,
		runner: runner,
		fs:     fs,
		home:   paths.DefaultPackHome(cfg.Sandbox.Home),
		logger: logger,
		user:   currentUser,
	}
	s.openRepo = s.openClone
	return s
}

// openClone opens the git clone at root with the service's settings.
func (s *Service) openClone(ctx context.Context, root string) (Repo, error) {
	cfg := *s.cfg
	cfg.RepoRoot = root
	adapter, err := git.NewGitAdapter(ctx, &cfg, s.runner, s.logger)
	if err != nil {
		return nil, err
	}
	return adapter, nil
}

func currentUser() string {
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	if u, err := user.Current(); err == nil {
		return u.Username
	}
	return "unknown"
}

// Home is the directory sandboxes live in.
func (s *Service) Home() string {
	return s.home
}

// openSandbox opens name under the home and wraps it in the sandbox tool.
func (s *Service) openSandbox(name string) (*gmkpack.Tool, error) {
	sb, err := sandbox.Open(s.fs, s.home, name)
	if err != nil {
		return nil, err
	}
	tool := gmkpack.NewTool(sb, s.runner, s.cfg.Sandbox, s.logger)
	tool.Strict = s.cfg.Build.StrictScripts
	return tool, nil
}

// resolver walks the clone back to the configured epoch tag.
func (s *Service) resolver() *refs.Resolver {
	return refs.NewResolver(s.repo, s.cfg.EpochTag, s.logger)
}

func (s *Service) classifier() *changes.Classifier {
	return changes.NewClassifier(s.repo, s.logger)
}

// openHistory opens the build history, or returns nil when it is disabled.
// The caller closes the returned database.
func (s *Service) openHistory() (*storage.History, *storage.DB, error) {
	if !s.cfg.History.Enabled {
		return nil, nil, nil
	}
	path := s.cfg.History.Path
	if path == "" {
		var err error
		if path, err = paths.GetHistoryDBPath(); err != nil {
			return nil, nil, err
		}
	}
	db, err := storage.Open(paths.ExpandHome(path), s.logger)
	if err != nil {
		return nil, nil, err
	}
	return storage.NewHistory(db), db, nil
}

// syncFilter loads the repo's syncignore file plus the configured patterns.
func (s *Service) syncFilter() (*sandbox.Filter, error) {
	path := filepath.Join(s.repo.RepoRoot(), paths.RepoConfigDir, SyncIgnoreFile)
	return sandbox.LoadFilterFile(s.fs, path, s.cfg.Sync.Exclude)
}

// linkIgnores reads the symbols listed in the LinkIgnoreFile of the clone
// at root.
func (s *Service) linkIgnores(root string) ([]string, error) {
	return sandbox.ReadList(s.fs, filepath.Join(root, paths.RepoConfigDir, LinkIgnoreFile))
}

// BackendStatus reports whether an external tool can be used and which
// installation was found.
type BackendStatus struct {
	ID        string `json:"id"`
	Available bool   `json:"available"`
	Path      string `json:"path,omitempty"`
	Version   string `json:"version,omitempty"`
}

// Check looks up the external tools the workflows drive.
func (s *Service) Check(ctx context.Context) []BackendStatus {
	tools := []backends.Backend{gmkpack.NewTool(nil, s.runner, s.cfg.Sandbox, s.logger)}
	if b, ok := s.repo.(backends.Backend); ok {
		tools = append([]backends.Backend{b}, tools...)
	}
	statuses := make([]BackendStatus, 0, len(tools))
	for _, b := range tools {
		tool := b.Installed(ctx)
		statuses = append(statuses, BackendStatus{
			ID:        b.ID(),
			Available: b.IsAvailable(ctx),
			Path:      tool.Path,
			Version:   tool.Version,
		})
	}
	return statuses
}

// CloneState snapshots the checkout of the clone, or returns nil when the
// repo cannot tell.
func (s *Service) CloneState(ctx context.Context) (*repostate.RepoState, error) {
	st, ok := s.repo.(interface {
		State(ctx context.Context) (*repostate.RepoState, error)
	})
	if !ok {
		return nil, nil
	}
	return st.State(ctx)
}
