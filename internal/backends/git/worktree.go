package git

import (
	"context"
)

// Fetch updates remote-tracking branches and tags of remote.
func (g *GitAdapter) Fetch(ctx context.Context, remote string) error {
	return g.mutate(ctx, "fetch", "--tags", remote)
}

// Pull fast-forwards the checked-out branch from remote.
func (g *GitAdapter) Pull(ctx context.Context, remote string) error {
	return g.mutate(ctx, "pull", "--ff-only", remote)
}

// Push publishes branch to remote and sets it as upstream.
func (g *GitAdapter) Push(ctx context.Context, remote, branch string) error {
	return g.mutate(ctx, "push", "-u", remote, branch)
}

// Checkout switches the work tree to ref.
func (g *GitAdapter) Checkout(ctx context.Context, ref string) error {
	return g.mutate(ctx, "checkout", ref)
}

// CheckoutNewBranch creates branch at start and switches to it.
func (g *GitAdapter) CheckoutNewBranch(ctx context.Context, branch, start string) error {
	return g.mutate(ctx, "checkout", "-b", branch, start)
}

// Stage adds paths to the index.
func (g *GitAdapter) Stage(ctx context.Context, paths ...string) error {
	if len(paths) == 0 {
		return nil
	}
	return g.mutate(ctx, append([]string{"add", "--"}, paths...)...)
}

// Remove deletes paths from the index and the work tree.
func (g *GitAdapter) Remove(ctx context.Context, paths ...string) error {
	if len(paths) == 0 {
		return nil
	}
	return g.mutate(ctx, append([]string{"rm", "--quiet", "--"}, paths...)...)
}

// Commit records the index with message.
func (g *GitAdapter) Commit(ctx context.Context, message string) error {
	return g.mutate(ctx, "commit", "-m", message)
}
