package workflow

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/afero"

	"gitpack/internal/bundle"
	"gitpack/internal/errors"
	"gitpack/internal/paths"
	"gitpack/internal/sandbox"
	"gitpack/internal/view"
)

// BundleOptions select how a bundle is exported.
type BundleOptions struct {
	// File is the bundle file
	File string
	// Name overrides the reference part of the sandbox name; the version
	// of the main project when empty
	Name string
	// Main exports into a standalone sandbox
	Main bool
	// NoUpdate uses cached clones as they are, local changes included
	NoUpdate bool
	// Clean runs cleanpack on a reused sandbox before copying
	Clean bool
}

// ProjectResult describes one bundle project copied into a sandbox.
type ProjectResult struct {
	Name        string `json:"name" yaml:"name"`
	Version     string `json:"version" yaml:"version"`
	Commit      string `json:"commit,omitempty" yaml:"commit,omitempty"`
	Destination string `json:"destination" yaml:"destination"`
	Copied      int    `json:"copied" yaml:"copied"`
}

// BundleResult describes a finished bundle export.
type BundleResult struct {
	Bundle   string          `json:"bundle" yaml:"bundle"`
	Export   *ExportResult   `json:"export" yaml:"export"`
	Projects []ProjectResult `json:"projects" yaml:"projects"`
	// IgnoredSymbols gathers the link ignores of the other projects
	IgnoredSymbols []string `json:"ignoredSymbols,omitempty" yaml:"ignoredSymbols,omitempty"`
}

func (s *Service) bundleCache() *bundle.Cache {
	cache := bundle.NewCache(s.fs, paths.ExpandHome(s.cfg.Bundle.CacheDir), s.runner, s.cfg.Git.Executable, s.logger)
	cache.Downloads = s.cfg.Bundle.Downloads
	return cache
}

// ExportBundle downloads the projects of a bundle, exports the main project
// like Export does, then copies every other project whole into the sandbox:
// hub packages under their hub directory, sources under src/local.
func (s *Service) ExportBundle(ctx context.Context, opts BundleOptions) (*BundleResult, error) {
	b, err := bundle.Load(s.fs, opts.File)
	if err != nil {
		return nil, err
	}
	main, err := b.Main()
	if err != nil {
		return nil, err
	}

	cache := s.bundleCache()
	dirs, err := cache.DownloadAll(ctx, b, !opts.NoUpdate)
	if err != nil {
		return nil, err
	}
	repo, err := s.openRepo(ctx, dirs[main.Name])
	if err != nil {
		return nil, err
	}

	name := opts.Name
	if name == "" {
		name = main.Version
	}
	mainSvc := *s
	mainSvc.repo = repo
	exported, err := mainSvc.Export(ctx, ExportOptions{Ref: view.Head, Name: name, Main: opts.Main, Clean: opts.Clean})
	result := &BundleResult{Bundle: b.Name, Export: exported}
	if err != nil {
		return result, err
	}

	tool, err := s.openSandbox(exported.Sandbox)
	if err != nil {
		return result, err
	}
	sb := tool.Sandbox()
	if !opts.Main && len(b.Others()) > 0 {
		s.logger.Info("Other bundle projects are copied whole", "sandbox", sb.Name())
	}
	for _, p := range b.Others() {
		pr, symbols, err := s.populateProject(ctx, sb, cache, p)
		if err != nil {
			return result, err
		}
		result.Projects = append(result.Projects, *pr)
		result.IgnoredSymbols = append(result.IgnoredSymbols, symbols...)
	}
	if len(result.IgnoredSymbols) > 0 {
		if err := sb.IgnoreSymbols(result.IgnoredSymbols); err != nil {
			return result, err
		}
	}
	return result, nil
}

// populateProject copies the clone of p into sb and records it in the
// origin record. It returns the symbols p lets the link leave unresolved.
func (s *Service) populateProject(ctx context.Context, sb *sandbox.Sandbox, cache *bundle.Cache, p bundle.Project) (*ProjectResult, []string, error) {
	dest, err := p.Destination()
	if err != nil {
		return nil, nil, err
	}
	to := filepath.Join(sb.Root(), filepath.FromSlash(dest), p.Name)
	if !p.IsHub() {
		to = filepath.Join(sb.LocalDir(), filepath.FromSlash(p.LocalSubdir()))
	}

	from := cache.Path(p)
	filter, err := sandbox.LoadFilterFile(s.fs, filepath.Join(from, paths.RepoConfigDir, SyncIgnoreFile), nil)
	if err != nil {
		return nil, nil, err
	}
	copied, err := sandbox.CopyTree(s.fs, from, sb.Fs(), to, filter)
	if err != nil {
		return nil, nil, err
	}
	commit, err := cache.Commit(ctx, p)
	if err != nil {
		return nil, nil, err
	}
	s.logger.Info("Bundle project copied", "sandbox", sb.Name(), "project", p.Name, "version", p.Version, "count", len(copied))

	if err := sb.AppendOrigin(sandbox.OriginEntry{
		Repository: p.Git,
		Ref:        p.Version,
		Commit:     commit,
		SyncedAt:   time.Now().UTC().Truncate(time.Second),
		Copied:     len(copied),
	}); err != nil {
		return nil, nil, err
	}

	symbols, err := s.linkIgnores(from)
	if err != nil {
		return nil, nil, err
	}
	rel, _ := filepath.Rel(sb.Root(), to)
	return &ProjectResult{
		Name:        p.Name,
		Version:     p.Version,
		Commit:      commit,
		Destination: filepath.ToSlash(rel),
		Copied:      len(copied),
	}, symbols, nil
}

// published opens the clone of the repository releasing bundles.
func (s *Service) published() (*bundle.Published, error) {
	dir := s.cfg.Bundle.Repository
	if dir == "" {
		return nil, errors.Errorf(errors.InvalidArgument, "no bundle repository configured: set bundle.repository")
	}
	return bundle.NewPublished(paths.ExpandHome(dir), s.cfg.Bundle.File, s.runner, s.cfg.Git.Executable, s.logger), nil
}

// FindBundles returns the released bundles matching ref: those pinning the
// main project at ref itself, else at its most recent official ancestor
// some bundle uses.
func (s *Service) FindBundles(ctx context.Context, ref string, fetch bool) (*bundle.Match, error) {
	pub, err := s.published()
	if err != nil {
		return nil, err
	}
	if fetch {
		if err := pub.Fetch(ctx); err != nil {
			return nil, err
		}
	}

	if ref == "" {
		ref = view.Head
	}
	var versions []string
	if ref != view.Head {
		versions = append(versions, ref)
	}
	ancestry, err := s.resolver().Resolve(ctx, ref)
	if err != nil {
		return nil, err
	}
	for i := len(ancestry.Official) - 1; i >= 0; i-- {
		versions = append(versions, ancestry.Official[i].Name)
	}
	return pub.Find(ctx, versions)
}

// GetBundleResult is a bundle file copied out of the bundle repository.
type GetBundleResult struct {
	Tag  string `json:"tag" yaml:"tag"`
	Path string `json:"path" yaml:"path"`
}

// GetBundle writes the one bundle matching ref into dir as <tag>.yml.
func (s *Service) GetBundle(ctx context.Context, ref, dir string, overwrite, fetch bool) (*GetBundleResult, error) {
	match, err := s.FindBundles(ctx, ref, fetch)
	if err != nil {
		return nil, err
	}
	if len(match.Tags) != 1 {
		return nil, errors.Errorf(errors.InvalidArgument, "%d bundles match %s: %v", len(match.Tags), match.Version, match.Tags)
	}
	tag := match.Tags[0]

	pub, err := s.published()
	if err != nil {
		return nil, err
	}
	_, data, err := pub.At(ctx, tag)
	if err != nil {
		return nil, err
	}
	path := filepath.Join(dir, tag+".yml")
	if _, err := s.fs.Stat(path); err == nil && !overwrite {
		return nil, errors.Errorf(errors.InvalidArgument, "%s already exists", path)
	} else if err != nil && !os.IsNotExist(err) {
		return nil, errors.Wrap(errors.InternalError, "Failed to stat "+path, err)
	}
	if err := s.fs.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(errors.InternalError, "Failed to create "+dir, err)
	}
	if err := afero.WriteFile(s.fs, path, data, 0o644); err != nil {
		return nil, errors.Wrap(errors.InternalError, "Failed to write "+path, err)
	}
	return &GetBundleResult{Tag: tag, Path: path}, nil
}
