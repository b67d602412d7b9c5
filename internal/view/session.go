// Package view holds a git reference checked out for the duration of one
// operation and puts the clone back the way it was afterwards.
package view

import (
	"context"
	"fmt"
	"log/slog"

	"gitpack/internal/backends/git"
	"gitpack/internal/errors"
)

// Head is the ref that means "whatever is checked out".
const Head = "HEAD"

// Git is the part of the git backend a session needs.
type Git interface {
	CurrentBranch(ctx context.Context) (string, error)
	HeadCommit(ctx context.Context) (string, error)
	IsClean(ctx context.Context) (bool, error)
	Lookup(ctx context.Context, name, remote string) (git.Reference, error)
	Fetch(ctx context.Context, remote string) error
	Checkout(ctx context.Context, ref string) error
	CheckoutNewBranch(ctx context.Context, branch, start string) error
}

// Options control how a session is opened.
type Options struct {
	Remote string
	// Fetch updates Remote before looking the ref up
	Fetch bool
	// NewBranch creates ref as a branch starting at StartRef
	NewBranch bool
	StartRef  string
}

// Session is one open view. Only one session may be open per clone.
type Session struct {
	git      Git
	ref      git.Reference
	original string
	// detached is set when original is a commit rather than a branch
	detached bool
	branch   string
	switched bool
	closed   bool
	logger   *slog.Logger
}

// Open checks ref out if needed. Nothing is checked out for HEAD, for the
// branch already checked out, or for a tag or commit at HEAD on a clean
// tree.
func Open(ctx context.Context, g Git, ref string, opts Options, logger *slog.Logger) (*Session, error) {
	if opts.NewBranch && opts.StartRef == "" {
		return nil, errors.Errorf(errors.InvalidArgument, "new branch %s needs a start reference", ref)
	}

	branch, err := g.CurrentBranch(ctx)
	if err != nil {
		return nil, err
	}
	head, err := g.HeadCommit(ctx)
	if err != nil {
		return nil, err
	}
	s := &Session{git: g, original: branch, logger: logger}
	if branch == "" {
		s.original, s.detached = head, true
	}

	if opts.Fetch {
		if err := g.Fetch(ctx, opts.Remote); err != nil {
			return nil, err
		}
	}

	target, err := g.Lookup(ctx, ref, opts.Remote)
	switch {
	case err != nil && !(opts.NewBranch && errors.IsCode(err, errors.RefNotFound)):
		return nil, err
	case err == nil && opts.NewBranch:
		return nil, errors.Errorf(errors.InvalidArgument, "cannot create branch %s: the reference already exists", ref)
	case err != nil:
		target = git.Reference{Name: ref, Kind: git.KindBranch}
	}
	s.ref = target

	need, err := s.needsCheckout(ctx, target, opts.NewBranch, branch, head)
	if err != nil {
		return nil, err
	}
	if need {
		if err := s.checkout(ctx, target, opts); err != nil {
			return nil, err
		}
		s.switched = true
	}

	if s.branch, err = g.CurrentBranch(ctx); err != nil {
		return nil, err
	}
	logger.Debug("View opened",
		"ref", ref,
		"kind", string(target.Kind),
		"original", s.original,
		"checkout", need,
	)
	return s, nil
}

func (s *Session) needsCheckout(ctx context.Context, target git.Reference, newBranch bool, branch, head string) (bool, error) {
	if newBranch {
		return true, nil
	}
	if target.Name == Head {
		return false, nil
	}
	if target.Kind == git.KindBranch {
		return target.Name != branch, nil
	}
	if target.Commit != head {
		return true, nil
	}
	clean, err := s.git.IsClean(ctx)
	if err != nil {
		return false, err
	}
	return !clean, nil
}

func (s *Session) checkout(ctx context.Context, target git.Reference, opts Options) error {
	clean, err := s.git.IsClean(ctx)
	if err != nil {
		return err
	}
	if !clean {
		return errors.NewPackError(
			errors.DirtyTree,
			fmt.Sprintf("Cannot check out %s: the working tree is not clean", target.Name),
			nil,
			errors.GetSuggestedFixes(errors.DirtyTree),
		)
	}

	switch {
	case opts.NewBranch:
		return s.git.CheckoutNewBranch(ctx, target.Name, opts.StartRef)
	case target.Kind == git.KindBranch && target.Remote != "":
		tracked := target.Remote + "/" + target.Name
		s.logger.Info("Tracking remote branch", "branch", target.Name, "from", tracked)
		return s.git.CheckoutNewBranch(ctx, target.Name, tracked)
	default:
		return s.git.Checkout(ctx, target.Name)
	}
}

// Reference is the resolved ref of the session.
func (s *Session) Reference() git.Reference { return s.ref }

// Branch is the branch checked out while the session is open, or "" when
// detached.
func (s *Session) Branch() string { return s.branch }

// Original is the branch, or commit when detached, checked out before Open.
func (s *Session) Original() string { return s.original }

// Switched reports whether Open changed the checkout.
func (s *Session) Switched() bool { return s.switched }

// Close checks the original state back out when it changed. It never
// fails: when the tree is dirty or git errors, the clone is left as is and
// a warning is returned and logged. Closing twice is a no-op.
func (s *Session) Close(ctx context.Context) string {
	if s.closed {
		return ""
	}
	s.closed = true

	warning := s.restore(ctx)
	if warning != "" {
		s.logger.Warn(warning, "original", s.original)
	}
	return warning
}

func (s *Session) restore(ctx context.Context) string {
	branch, err := s.git.CurrentBranch(ctx)
	if err != nil {
		return fmt.Sprintf("Unable to read the current checkout: %v", err)
	}
	switch {
	case !s.detached && branch == s.original:
		return ""
	case s.detached && branch == "":
		// a branch at the original commit does not count: HEAD must be
		// detached again
		head, err := s.git.HeadCommit(ctx)
		if err != nil {
			return fmt.Sprintf("Unable to read the current checkout: %v", err)
		}
		if head == s.original {
			return ""
		}
	}

	clean, err := s.git.IsClean(ctx)
	if err != nil {
		return fmt.Sprintf("Unable to check the working tree: %v", err)
	}
	if !clean {
		return "Working tree is not clean, not going back to " + s.original + ". Commit or reset changes manually."
	}
	if err := s.git.Checkout(ctx, s.original); err != nil {
		return fmt.Sprintf("Unable to go back to %s: %v", s.original, err)
	}
	return ""
}
