package changes

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"gitpack/internal/errors"
)

// DiffSource is the part of the git backend the classifier needs.
type DiffSource interface {
	NameStatus(ctx context.Context, from, to string) ([]string, error)
	StatusPorcelain(ctx context.Context) ([]string, error)
	MergeBase(ctx context.Context, a, b string) (string, error)
}

// Classifier computes change sets from git.
type Classifier struct {
	source DiffSource
	logger *slog.Logger
}

// NewClassifier creates a classifier over source.
func NewClassifier(source DiffSource, logger *slog.Logger) *Classifier {
	return &Classifier{source: source, logger: logger}
}

// Compute classifies the files touched between from and to.
func (c *Classifier) Compute(ctx context.Context, from, to string) (*ChangeSet, error) {
	lines, err := c.source.NameStatus(ctx, from, to)
	if err != nil {
		return nil, err
	}
	set := ParseNameStatus(lines)
	if err := CheckKnown(set); err != nil {
		return nil, err
	}

	c.logger.Debug("Computed changes",
		"from", from,
		"to", to,
		"count", set.Len(),
	)
	return set, nil
}

// ComputeUncommitted classifies the staged, modified and untracked files
// of the work tree.
func (c *Classifier) ComputeUncommitted(ctx context.Context) (*ChangeSet, error) {
	lines, err := c.source.StatusPorcelain(ctx)
	if err != nil {
		return nil, err
	}
	set := ParsePorcelain(lines)
	if err := CheckKnown(set); err != nil {
		return nil, err
	}
	return set, nil
}

// TouchedSince merges the changes from ref to HEAD with the uncommitted
// ones.
func (c *Classifier) TouchedSince(ctx context.Context, ref string) (*ChangeSet, error) {
	committed, err := c.Compute(ctx, ref, "HEAD")
	if err != nil {
		return nil, err
	}
	uncommitted, err := c.ComputeUncommitted(ctx)
	if err != nil {
		return nil, err
	}
	return Merge(committed, uncommitted), nil
}

// CheckKnown fails with UNKNOWN_CHANGE_STATUS when set has entries outside
// KnownStatuses.
func CheckKnown(set *ChangeSet) error {
	unknown := set.Unknown()
	if len(unknown) == 0 {
		return nil
	}

	codes := make([]string, len(unknown))
	var samples []string
	for i, s := range unknown {
		codes[i] = string(s)
		for _, e := range set.Entries(s) {
			samples = append(samples, e.Path)
		}
	}
	return errors.Errorf(errors.UnknownChangeStatus,
		"unknown change status %s", strings.Join(codes, ","),
	).WithDetails(map[string]interface{}{
		"codes": codes,
		"lines": samples,
	})
}

// Conflict is a file touched on both sides of a merge.
type Conflict struct {
	Contrib Entry `json:"contrib"`
	Target  Entry `json:"target"`
}

// MergePreview lists potential conflicts keyed "<contrib>/<target>" by
// status pair, e.g. "M/D".
type MergePreview struct {
	Ancestor  string                `json:"ancestor"`
	Conflicts map[string][]Conflict `json:"conflicts"`
}

// Keys returns the conflict keys, sorted.
func (p *MergePreview) Keys() []string {
	keys := make([]string, 0, len(p.Conflicts))
	for k := range p.Conflicts {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Count is the total number of potential conflicts.
func (p *MergePreview) Count() int {
	n := 0
	for _, c := range p.Conflicts {
		n += len(c)
	}
	return n
}

// PreviewMerge lists files touched both in contrib and in target since
// their common ancestor. An empty ancestor is computed with merge-base.
func (c *Classifier) PreviewMerge(ctx context.Context, contrib, target, ancestor string) (*MergePreview, error) {
	if ancestor == "" {
		var err error
		ancestor, err = c.source.MergeBase(ctx, contrib, target)
		if err != nil {
			return nil, err
		}
		c.logger.Info("Auto-determined common ancestor", "ancestor", ancestor)
	}

	inContrib, err := c.Compute(ctx, ancestor, contrib)
	if err != nil {
		return nil, err
	}
	inTarget, err := c.Compute(ctx, ancestor, target)
	if err != nil {
		return nil, err
	}

	preview := &MergePreview{Ancestor: ancestor, Conflicts: make(map[string][]Conflict)}
	for _, sc := range inContrib.Statuses() {
		for _, st := range inTarget.Statuses() {
			key := fmt.Sprintf("%s/%s", sc, st)
			for _, ec := range inContrib.Entries(sc) {
				for _, et := range inTarget.Entries(st) {
					if overlaps(ec, et) {
						preview.Conflicts[key] = append(preview.Conflicts[key], Conflict{Contrib: ec, Target: et})
					}
				}
			}
		}
	}
	return preview, nil
}

func overlaps(a, b Entry) bool {
	for _, p := range []string{a.Path, a.From} {
		if p != "" && (p == b.Path || p == b.From) {
			return true
		}
	}
	return false
}
