package git

import (
	"context"
	"strings"

	"gitpack/internal/errors"
)

// TagGroup is the set of tags decorating one commit. Within a group the
// tags are ordered oldest-first, i.e. the most specific tag comes last.
type TagGroup struct {
	Commit string   `json:"commit"`
	Tags   []string `json:"tags"`
}

// DecoratedTags walks the tag decorations between since and ref and
// returns them in chronological order. An empty since walks the whole
// history of ref.
func (g *GitAdapter) DecoratedTags(ctx context.Context, since, ref string) ([]TagGroup, error) {
	rng := ref
	if since != "" {
		rng = since + "..." + ref
	}

	g.logger.Debug("Walking tag decorations",
		"since", since,
		"ref", ref,
	)

	lines, err := g.queryLines(ctx, "log", "--simplify-by-decoration", "--format=%H%x09%D", rng)
	if err != nil {
		return nil, errors.Wrap(errors.RefNotFound, "Failed to list decorations of "+ref, err)
	}
	return parseDecorations(lines), nil
}

// parseDecorations turns newest-first `%H\t%D` lines into chronological
// tag groups, dropping commits with no tag decoration.
func parseDecorations(lines []string) []TagGroup {
	groups := make([]TagGroup, 0, len(lines))
	for i := len(lines) - 1; i >= 0; i-- {
		commit, decorations, _ := strings.Cut(lines[i], "\t")
		var tags []string
		for _, d := range strings.Split(decorations, ",") {
			d = strings.TrimSpace(d)
			if name, ok := strings.CutPrefix(d, "tag: "); ok && name != "" {
				tags = append(tags, name)
			}
		}
		if len(tags) == 0 {
			continue
		}
		// git lists the most recently created tag first
		for l, r := 0, len(tags)-1; l < r; l, r = l+1, r-1 {
			tags[l], tags[r] = tags[r], tags[l]
		}
		groups = append(groups, TagGroup{Commit: strings.TrimSpace(commit), Tags: tags})
	}
	return groups
}

// TrackedFiles lists every file git tracks in the work tree.
func (g *GitAdapter) TrackedFiles(ctx context.Context) ([]string, error) {
	lines, err := g.queryLines(ctx, "ls-files")
	if err != nil {
		return nil, errors.Wrap(errors.CommandFailed, "Failed to list tracked files", err)
	}
	return lines, nil
}
