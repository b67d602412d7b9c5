package bundle

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	"gitpack/internal/command"
	"gitpack/internal/errors"
)

// Cache keeps one clone per bundle project under a directory.
type Cache struct {
	fs     afero.Fs
	dir    string
	runner command.Runner
	git    string
	logger *slog.Logger
	// Downloads bounds the projects downloaded at once
	Downloads int
}

// NewCache creates a cache rooted at dir.
func NewCache(fs afero.Fs, dir string, runner command.Runner, gitExe string, logger *slog.Logger) *Cache {
	return &Cache{fs: fs, dir: dir, runner: runner, git: gitExe, logger: logger, Downloads: 1}
}

// Dir returns the cache directory.
func (c *Cache) Dir() string {
	return c.dir
}

// Path is the clone of p.
func (c *Cache) Path(p Project) string {
	return filepath.Join(c.dir, p.Name)
}

// Download clones p unless it is cached already, then checks its version
// out, detached. A branch version follows the remote branch. Without update
// a cached clone is used as it is, local changes included.
func (c *Cache) Download(ctx context.Context, p Project, update bool) (string, error) {
	dir := c.Path(p)
	cached, _ := afero.DirExists(c.fs, filepath.Join(dir, ".git"))
	switch {
	case !cached:
		if err := c.fs.MkdirAll(c.dir, 0o755); err != nil {
			return "", errors.Wrap(errors.InternalError, "Failed to create "+c.dir, err)
		}
		c.logger.Info("Cloning bundle project", "project", p.Name, "git", p.Git)
		if _, err := c.run(ctx, c.dir, "clone", "--quiet", p.Git, dir); err != nil {
			return "", err
		}
	case update:
		c.logger.Info("Updating bundle project", "project", p.Name, "path", dir)
		if _, err := c.run(ctx, dir, "fetch", "--quiet", "--tags", "origin"); err != nil {
			return "", err
		}
	default:
		c.logger.Warn("Using cached project as is", "project", p.Name, "path", dir)
		return dir, nil
	}

	target := p.Version
	if _, err := c.run(ctx, dir, "rev-parse", "--verify", "--quiet", "refs/remotes/origin/"+p.Version); err == nil {
		target = "origin/" + p.Version
	}
	if _, err := c.run(ctx, dir, "checkout", "--quiet", "--detach", target); err != nil {
		return "", errors.Wrap(errors.RefNotFound, "Version "+p.Version+" of "+p.Name+" cannot be checked out", err)
	}
	return dir, nil
}

// DownloadAll downloads every project of b and returns their clones by
// project name.
func (c *Cache) DownloadAll(ctx context.Context, b *Bundle, update bool) (map[string]string, error) {
	var mu sync.Mutex
	dirs := make(map[string]string, len(b.Projects))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(c.Downloads, 1))
	for _, p := range b.Projects {
		p := p
		g.Go(func() error {
			dir, err := c.Download(gctx, p, update)
			if err != nil {
				return err
			}
			mu.Lock()
			dirs[p.Name] = dir
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return dirs, nil
}

// Commit returns the commit checked out in the clone of p.
func (c *Cache) Commit(ctx context.Context, p Project) (string, error) {
	return c.run(ctx, c.Path(p), "rev-parse", "HEAD")
}

func (c *Cache) run(ctx context.Context, dir string, args ...string) (string, error) {
	return runGit(ctx, c.runner, c.git, dir, args...)
}

func runGit(ctx context.Context, runner command.Runner, gitExe, dir string, args ...string) (string, error) {
	res, err := runner.Run(ctx, command.Spec{Dir: dir, Name: gitExe, Args: args})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(res.Stdout), nil
}
