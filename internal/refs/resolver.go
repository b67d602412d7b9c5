package refs

import (
	"context"
	"log/slog"

	"gitpack/internal/backends/git"
	"gitpack/internal/errors"
)

// TagHistory is the part of the git backend the resolver needs.
type TagHistory interface {
	DecoratedTags(ctx context.Context, since, ref string) ([]git.TagGroup, error)
	CommitExists(ctx context.Context, ref string) bool
}

// Ancestry lists the official tags a reference descends from, oldest first.
type Ancestry struct {
	Ref      string `json:"ref"`
	Official []Tag  `json:"official"`
}

// Latest is the most specific official ancestor.
func (a *Ancestry) Latest() Tag {
	return a.Official[len(a.Official)-1]
}

// MainRelease is the latest ancestor with no branch.
func (a *Ancestry) MainRelease() (Tag, error) {
	for i := len(a.Official) - 1; i >= 0; i-- {
		if a.Official[i].IsMainRelease() {
			return a.Official[i], nil
		}
	}
	return Tag{}, errors.Errorf(errors.RefNotFound, "no main release among the ancestors of %s", a.Ref)
}

// OfficialBranch returns the latest ancestor when it is a branch tag.
func (a *Ancestry) OfficialBranch() (Tag, bool) {
	latest := a.Latest()
	return latest, !latest.IsMainRelease()
}

// Resolver derives ancestries from tag decorations.
type Resolver struct {
	history TagHistory
	epoch   string
	logger  *slog.Logger
}

// NewResolver creates a resolver walking history back to the epoch tag.
func NewResolver(history TagHistory, epoch string, logger *slog.Logger) *Resolver {
	return &Resolver{history: history, epoch: epoch, logger: logger}
}

// Resolve lists the official tags between the epoch tag and ref. It fails
// with REF_NOT_FOUND when there is none.
func (r *Resolver) Resolve(ctx context.Context, ref string) (*Ancestry, error) {
	since := r.epoch
	if since != "" && !r.history.CommitExists(ctx, since) {
		r.logger.Warn("Epoch tag not found, walking the whole history",
			"epoch", since,
			"ref", ref,
		)
		since = ""
	}

	groups, err := r.history.DecoratedTags(ctx, since, ref)
	if err != nil {
		return nil, err
	}

	ancestry := &Ancestry{Ref: ref}
	for _, g := range groups {
		for _, name := range g.Tags {
			if tag, ok := Parse(name); ok {
				ancestry.Official = append(ancestry.Official, tag)
			}
		}
	}

	if len(ancestry.Official) == 0 {
		return nil, errors.NewPackError(
			errors.RefNotFound,
			"No official tag in the history of "+ref,
			nil,
			errors.GetSuggestedFixes(errors.RefNotFound),
		).WithDetails(map[string]interface{}{"ref": ref, "epoch": since})
	}

	r.logger.Debug("Resolved ancestry",
		"ref", ref,
		"latest", ancestry.Latest().Name,
		"count", len(ancestry.Official),
	)
	return ancestry, nil
}
