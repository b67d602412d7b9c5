package workflow

import (
	"context"
	"strings"

	"gitpack/internal/errors"
	"gitpack/internal/paths"
	"gitpack/internal/refs"
	"gitpack/internal/sandbox"
	"gitpack/internal/view"
)

// SaveOptions select the sandbox to save and how.
type SaveOptions struct {
	Sandbox string
	// Branch defaults to a name guessed from the user and the sandbox
	Branch string
	// Message commits the saved files when set
	Message string
	// Push publishes the committed branch
	Push bool
}

// SaveResult describes the branch a sandbox was saved as.
type SaveResult struct {
	Branch    string   `json:"branch" yaml:"branch"`
	StartRef  string   `json:"startRef" yaml:"startRef"`
	Copied    []string `json:"copied" yaml:"copied"`
	Removed   []string `json:"removed,omitempty" yaml:"removed,omitempty"`
	Committed bool     `json:"committed" yaml:"committed"`
	Pushed    bool     `json:"pushed" yaml:"pushed"`
	Warning   string   `json:"warning,omitempty" yaml:"warning,omitempty"`
}

// GuessBranchName names the contribution branch of a sandbox:
// <user>_<release>_<name>, where name is the sandbox name without its
// compiler label and flag. A name that already is a contribution branch of
// user on release is kept.
func GuessBranchName(user, release, sandboxName, label, flag string) string {
	name := strings.TrimSuffix(sandboxName, "."+label+"."+flag)
	if b, ok := refs.ParseUserBranch(name); ok && b.User == user && b.Release == release {
		return name
	}
	return refs.UserBranch{User: user, Release: release, Name: name}.String()
}

// SaveAsBranch turns the changes of an incremental sandbox into a new
// branch started at the sandbox's ancestor tag. The branch stays checked
// out when nothing is committed, since the work tree is then dirty.
func (s *Service) SaveAsBranch(ctx context.Context, opts SaveOptions) (result *SaveResult, err error) {
	tool, err := s.openSandbox(opts.Sandbox)
	if err != nil {
		return nil, err
	}
	sb := tool.Sandbox()
	if !sb.Options().Incremental {
		return nil, errors.Errorf(errors.InvalidArgument,
			"%s is a main sandbox: only incremental sandboxes can be saved as a branch", sb.Name())
	}
	if opts.Push && opts.Message == "" {
		return nil, errors.Errorf(errors.InvalidArgument, "pushing needs a commit message")
	}

	branch := opts.Branch
	if branch == "" {
		branch = GuessBranchName(s.user(), sb.Options().Release, sb.Name(), s.cfg.Sandbox.CompilerLabel, s.cfg.Sandbox.CompilerFlag)
	}
	startRef := sb.Options().AncestorTag()

	files, err := tool.ListChangedFiles(ctx)
	if err != nil {
		return nil, err
	}
	ignored, err := sb.ReadIgnored()
	if err != nil {
		return nil, err
	}

	session, err := view.Open(ctx, s.repo, branch, view.Options{
		Remote:    s.cfg.Remote,
		NewBranch: true,
		StartRef:  startRef,
	}, s.logger)
	if err != nil {
		return nil, err
	}
	defer func() {
		if w := session.Close(ctx); w != "" && result != nil {
			result.Warning = w
		}
	}()

	result = &SaveResult{Branch: branch, StartRef: startRef}
	for _, rel := range files {
		from, err := paths.SafeJoin(sb.LocalDir(), rel)
		if err != nil {
			return result, errors.Wrap(errors.InvalidArgument, "Refusing to save "+rel, err)
		}
		to, err := paths.SafeJoin(s.repo.RepoRoot(), rel)
		if err != nil {
			return result, errors.Wrap(errors.InvalidArgument, "Refusing to save "+rel, err)
		}
		if err := sandbox.CopyFile(sb.Fs(), from, s.fs, to); err != nil {
			return result, err
		}
		result.Copied = append(result.Copied, rel)
	}

	if err := s.repo.Remove(ctx, ignored...); err != nil {
		return result, err
	}
	result.Removed = ignored

	s.logger.Info("Sandbox saved",
		"sandbox", sb.Name(),
		"branch", branch,
		"copied", len(result.Copied),
		"removed", len(result.Removed),
	)

	if opts.Message == "" {
		return result, nil
	}
	if err := s.repo.Stage(ctx, result.Copied...); err != nil {
		return result, err
	}
	if err := s.repo.Commit(ctx, opts.Message); err != nil {
		return result, err
	}
	result.Committed = true

	if opts.Push {
		if err := s.repo.Push(ctx, s.cfg.Remote, branch); err != nil {
			return result, err
		}
		result.Pushed = true
	}
	return result, nil
}
