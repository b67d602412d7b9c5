package workflow

import (
	"context"

	"gitpack/internal/backends/gmkpack"
	"gitpack/internal/changes"
	"gitpack/internal/errors"
	"gitpack/internal/refs"
	"gitpack/internal/sandbox"
	"gitpack/internal/view"
)

// ExportOptions select what is exported and where.
type ExportOptions struct {
	// Ref is the git reference to export; HEAD when empty
	Ref string
	// Name overrides the reference part of the sandbox name
	Name string
	// Main exports the whole tree into a standalone sandbox
	Main bool
	// Fetch updates the remote before resolving Ref
	Fetch bool
	// StartRef is the diff base; the latest official ancestor when empty
	StartRef string
	// Clean runs cleanpack on a reused sandbox before copying
	Clean bool
}

// ExportResult describes a finished export.
type ExportResult struct {
	Sandbox  string   `json:"sandbox" yaml:"sandbox"`
	Root     string   `json:"root" yaml:"root"`
	Created  bool     `json:"created" yaml:"created"`
	Ancestor string   `json:"ancestor" yaml:"ancestor"`
	Base     string   `json:"base,omitempty" yaml:"base,omitempty"`
	Commit   string   `json:"commit" yaml:"commit"`
	Copied   []string `json:"copied" yaml:"copied"`
	Excluded []string `json:"excluded,omitempty" yaml:"excluded,omitempty"`
	Ignored  []string `json:"ignored" yaml:"ignored"`
	// IgnoredSymbols may stay unresolved when linking a main sandbox
	IgnoredSymbols []string `json:"ignoredSymbols,omitempty" yaml:"ignoredSymbols,omitempty"`
	Warning        string   `json:"warning,omitempty" yaml:"warning,omitempty"`
}

// Export checks Ref out, creates or reuses the sandbox matching its
// official ancestor and copies the touched files into it. An incremental
// sandbox receives the changes since StartRef, work-tree changes included;
// a main sandbox receives every tracked file, and the symbols the clone
// lets the link leave unresolved.
func (s *Service) Export(ctx context.Context, opts ExportOptions) (result *ExportResult, err error) {
	ref := opts.Ref
	if ref == "" {
		ref = view.Head
	}

	session, err := view.Open(ctx, s.repo, ref, view.Options{Remote: s.cfg.Remote, Fetch: opts.Fetch}, s.logger)
	if err != nil {
		return nil, err
	}
	defer func() {
		if w := session.Close(ctx); w != "" && result != nil {
			result.Warning = w
		}
	}()

	packRef, err := sandboxRef(opts, ref, session)
	if err != nil {
		return nil, err
	}

	ancestry, err := s.resolver().Resolve(ctx, ref)
	if err != nil {
		return nil, err
	}
	ancestor, err := creationAncestor(ancestry)
	if err != nil {
		return nil, err
	}

	createOpts := gmkpack.CreateOptions{
		Ref:      packRef,
		Ancestor: ancestor,
		Label:    s.cfg.Sandbox.CompilerLabel,
		Flag:     s.cfg.Sandbox.CompilerFlag,
		Home:     s.home,
		RootPack: s.cfg.Sandbox.RootPack,
		Main:     opts.Main,
	}
	tool, created, err := s.createOrReuse(ctx, createOpts, ancestry, opts.Clean)
	if err != nil {
		return nil, err
	}
	sb := tool.Sandbox()

	result = &ExportResult{
		Sandbox:  sb.Name(),
		Root:     sb.Root(),
		Created:  created,
		Ancestor: ancestry.Latest().Name,
	}

	src := sandbox.Source{Root: s.repo.RepoRoot(), Ref: ref}
	if src.Commit, err = s.repo.HeadCommit(ctx); err != nil {
		return result, err
	}
	result.Commit = src.Commit

	var set *changes.ChangeSet
	if opts.Main {
		set, err = s.wholeTree(ctx)
	} else {
		result.Base = opts.StartRef
		if result.Base == "" {
			result.Base = ancestry.Latest().Name
		}
		set, err = s.classifier().TouchedSince(ctx, result.Base)
		if err == nil {
			clean, cerr := s.repo.IsClean(ctx)
			src.Uncommitted, err = !clean, cerr
		}
	}
	if err != nil {
		return result, err
	}

	filter, err := s.syncFilter()
	if err != nil {
		return result, err
	}
	synced, err := sandbox.NewSyncer(s.fs, filter, s.logger).Apply(sb, ancestry, set, src)
	if synced != nil {
		result.Copied = synced.Copied
		result.Excluded = synced.Excluded
		result.Ignored = synced.Ignored
	}
	if err != nil || !opts.Main {
		return result, err
	}

	symbols, err := s.linkIgnores(s.repo.RepoRoot())
	if err != nil || len(symbols) == 0 {
		return result, err
	}
	result.IgnoredSymbols = symbols
	return result, sb.IgnoreSymbols(symbols)
}

// sandboxRef is the reference part of an incremental sandbox name.
func sandboxRef(opts ExportOptions, ref string, session *view.Session) (string, error) {
	if opts.Name != "" || opts.Main {
		return opts.Name, nil
	}
	if ref != view.Head {
		return ref, nil
	}
	if session.Branch() == "" {
		return "", errors.Errorf(errors.InvalidArgument,
			"HEAD is detached: name the reference to export or give the sandbox a name")
	}
	return session.Branch(), nil
}

// creationAncestor is the tag a sandbox for ancestry is made from: the main
// release, on the official branch when there is one.
func creationAncestor(ancestry *refs.Ancestry) (refs.Tag, error) {
	main, err := ancestry.MainRelease()
	if err != nil {
		return refs.Tag{}, err
	}
	official, ok := ancestry.OfficialBranch()
	if !ok {
		return main, nil
	}
	official.Release = main.Release
	return official, nil
}

// createOrReuse opens the sandbox createOpts names, after checking it can
// receive ancestry, or creates it.
func (s *Service) createOrReuse(ctx context.Context, createOpts gmkpack.CreateOptions, ancestry *refs.Ancestry, clean bool) (*gmkpack.Tool, bool, error) {
	if !sandbox.Exists(s.fs, s.home, createOpts.Name()) {
		tool, err := gmkpack.Create(ctx, s.fs, s.runner, s.cfg.Sandbox, createOpts, s.logger)
		if err != nil {
			return nil, false, err
		}
		tool.Strict = s.cfg.Build.StrictScripts
		return tool, true, nil
	}

	tool, err := s.openSandbox(createOpts.Name())
	if err != nil {
		return nil, false, err
	}
	if err := sandbox.CheckCompatible(tool.Sandbox().Options(), ancestry); err != nil {
		return nil, false, err
	}
	s.logger.Info("Reusing sandbox", "sandbox", tool.Sandbox().Name())
	if clean {
		if err := tool.Clean(ctx); err != nil {
			return nil, false, err
		}
	}
	return tool, false, nil
}

// wholeTree lists every tracked file as added.
func (s *Service) wholeTree(ctx context.Context) (*changes.ChangeSet, error) {
	files, err := s.repo.TrackedFiles(ctx)
	if err != nil {
		return nil, err
	}
	set := changes.NewChangeSet()
	for _, f := range files {
		set.Add(changes.Added, changes.Entry{Path: f})
	}
	return set, nil
}
