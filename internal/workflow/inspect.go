package workflow

import (
	"context"

	"gitpack/internal/changes"
	"gitpack/internal/refs"
	"gitpack/internal/sandbox"
	"gitpack/internal/storage"
	"gitpack/internal/view"
)

// Ancestors resolves the official tags ref descends from.
func (s *Service) Ancestors(ctx context.Context, ref string) (*refs.Ancestry, error) {
	if ref == "" {
		ref = view.Head
	}
	return s.resolver().Resolve(ctx, ref)
}

// TouchedOptions select the range Touched classifies.
type TouchedOptions struct {
	// Ref defaults to HEAD
	Ref string
	// Since defaults to the latest official ancestor of Ref
	Since string
	// Uncommitted adds the work-tree changes; only meaningful for HEAD
	Uncommitted bool
}

// TouchedResult is a classified range.
type TouchedResult struct {
	Ref     string             `json:"ref" yaml:"ref"`
	Since   string             `json:"since" yaml:"since"`
	Changes *changes.ChangeSet `json:"changes" yaml:"-"`
}

// Touched classifies the files changed between Since and Ref.
func (s *Service) Touched(ctx context.Context, opts TouchedOptions) (*TouchedResult, error) {
	ref := opts.Ref
	if ref == "" {
		ref = view.Head
	}
	since := opts.Since
	if since == "" {
		ancestry, err := s.resolver().Resolve(ctx, ref)
		if err != nil {
			return nil, err
		}
		since = ancestry.Latest().Name
	}

	var set *changes.ChangeSet
	var err error
	if ref == view.Head && opts.Uncommitted {
		set, err = s.classifier().TouchedSince(ctx, since)
	} else {
		set, err = s.classifier().Compute(ctx, since, ref)
	}
	if err != nil {
		return nil, err
	}
	return &TouchedResult{Ref: ref, Since: since, Changes: set}, nil
}

// PreviewMerge lists the files both contrib and target touched since
// ancestor, their merge base when empty.
func (s *Service) PreviewMerge(ctx context.Context, contrib, target, ancestor string) (*changes.MergePreview, error) {
	return s.classifier().PreviewMerge(ctx, contrib, target, ancestor)
}

// History lists recorded build runs, most recent first. It is empty when
// the history is disabled.
func (s *Service) History(filter storage.ListFilter) ([]*storage.Run, error) {
	history, db, err := s.openHistory()
	if err != nil || history == nil {
		return nil, err
	}
	defer db.Close()
	return history.List(filter)
}

// SandboxInfo summarizes a sandbox.
type SandboxInfo struct {
	Name    string                `json:"name" yaml:"name"`
	Root    string                `json:"root" yaml:"root"`
	Options sandbox.Options       `json:"options" yaml:"options"`
	Scripts []string              `json:"scripts" yaml:"scripts"`
	Ignored []string              `json:"ignored" yaml:"ignored"`
	Origin  []sandbox.OriginEntry `json:"origin" yaml:"origin"`
}

// Info reads what gitpack knows about a sandbox.
func (s *Service) Info(name string) (*SandboxInfo, error) {
	sb, err := sandbox.Open(s.fs, s.home, name)
	if err != nil {
		return nil, err
	}
	info := &SandboxInfo{Name: sb.Name(), Root: sb.Root(), Options: sb.Options()}
	if info.Scripts, err = sb.Scripts(); err != nil {
		return nil, err
	}
	if info.Ignored, err = sb.ReadIgnored(); err != nil {
		return nil, err
	}
	origin, err := sb.ReadOrigin()
	if err != nil {
		return nil, err
	}
	info.Origin = origin.Syncs
	return info, nil
}
