package git

import (
	"context"
	"strings"

	"gitpack/internal/command"
	"gitpack/internal/errors"
)

// ShowRefs lists `<commit> <refname>` pairs for the given show-ref flags.
// show-ref exits 1 when nothing matches, which is not an error here.
func (g *GitAdapter) ShowRefs(ctx context.Context, flags ...string) (map[string]string, error) {
	args := append([]string{"show-ref"}, flags...)
	res, err := g.query(ctx, args...)
	if err != nil {
		if command.ExitCode(err) == 1 {
			return map[string]string{}, nil
		}
		return nil, err
	}

	refs := make(map[string]string)
	for _, line := range strings.Split(res, "\n") {
		commit, name, ok := strings.Cut(strings.TrimSpace(line), " ")
		if !ok {
			continue
		}
		refs[name] = commit
	}
	return refs, nil
}

// Tags maps tag names to the commit they point to (annotated tags peeled).
func (g *GitAdapter) Tags(ctx context.Context) (map[string]string, error) {
	raw, err := g.ShowRefs(ctx, "--tags", "-d")
	if err != nil {
		return nil, err
	}
	tags := make(map[string]string, len(raw))
	for name, commit := range raw {
		name = strings.TrimPrefix(name, "refs/tags/")
		if peeled, ok := strings.CutSuffix(name, "^{}"); ok {
			tags[peeled] = commit
			continue
		}
		if _, ok := tags[name]; !ok {
			tags[name] = commit
		}
	}
	return tags, nil
}

// LocalBranches maps local branch names to their tip.
func (g *GitAdapter) LocalBranches(ctx context.Context) (map[string]string, error) {
	raw, err := g.ShowRefs(ctx, "--heads")
	if err != nil {
		return nil, err
	}
	branches := make(map[string]string, len(raw))
	for name, commit := range raw {
		branches[strings.TrimPrefix(name, "refs/heads/")] = commit
	}
	return branches, nil
}

// RemoteBranches maps branch names of remote to their tip.
func (g *GitAdapter) RemoteBranches(ctx context.Context, remote string) (map[string]string, error) {
	raw, err := g.ShowRefs(ctx)
	if err != nil {
		return nil, err
	}
	prefix := "refs/remotes/" + remote + "/"
	branches := make(map[string]string)
	for name, commit := range raw {
		if b, ok := strings.CutPrefix(name, prefix); ok && b != "HEAD" {
			branches[b] = commit
		}
	}
	return branches, nil
}

// ResolveCommit returns the commit id ref points to.
func (g *GitAdapter) ResolveCommit(ctx context.Context, ref string) (string, error) {
	out, err := g.query(ctx, "rev-parse", "--verify", "--quiet", ref+"^{commit}")
	if err != nil {
		return "", errors.NewPackError(
			errors.RefNotFound,
			"Unknown reference: "+ref,
			err,
			[]errors.FixAction{
				{
					Type:        errors.RunCommand,
					Command:     "git fetch --tags",
					Safe:        true,
					Description: "Fetch remote branches and tags",
				},
			},
		)
	}
	return strings.TrimSpace(out), nil
}

// CommitExists reports whether ref resolves to a commit.
func (g *GitAdapter) CommitExists(ctx context.Context, ref string) bool {
	_, err := g.ResolveCommit(ctx, ref)
	return err == nil
}

// Lookup resolves name as HEAD, a local branch, a tag, a remote branch of
// remote, or a commit id, in that order.
func (g *GitAdapter) Lookup(ctx context.Context, name, remote string) (Reference, error) {
	if name == "HEAD" {
		head, err := g.HeadCommit(ctx)
		if err != nil {
			return Reference{}, err
		}
		return Reference{Name: name, Commit: head, Kind: KindCommit}, nil
	}

	local, err := g.LocalBranches(ctx)
	if err != nil {
		return Reference{}, err
	}
	if commit, ok := local[name]; ok {
		return Reference{Name: name, Commit: commit, Kind: KindBranch}, nil
	}

	tags, err := g.Tags(ctx)
	if err != nil {
		return Reference{}, err
	}
	if commit, ok := tags[name]; ok {
		return Reference{Name: name, Commit: commit, Kind: KindTag}, nil
	}

	if remote != "" {
		remoteBranches, err := g.RemoteBranches(ctx, remote)
		if err != nil {
			return Reference{}, err
		}
		if commit, ok := remoteBranches[name]; ok {
			return Reference{Name: name, Commit: commit, Kind: KindBranch, Remote: remote}, nil
		}
	}

	commit, err := g.ResolveCommit(ctx, name)
	if err != nil {
		return Reference{}, err
	}
	return Reference{Name: name, Commit: commit, Kind: KindCommit}, nil
}
