package bundle

import (
	"context"
	"log/slog"
	"slices"

	"gitpack/internal/command"
	"gitpack/internal/errors"
)

// Published is a clone of the repository where bundles are released: each
// tag holds one bundle file.
type Published struct {
	dir    string
	file   string
	runner command.Runner
	git    string
	logger *slog.Logger
}

// NewPublished opens the clone at dir, whose tags carry file.
func NewPublished(dir, file string, runner command.Runner, gitExe string, logger *slog.Logger) *Published {
	return &Published{dir: dir, file: file, runner: runner, git: gitExe, logger: logger}
}

// Fetch updates the tags from the remote.
func (p *Published) Fetch(ctx context.Context) error {
	_, err := runGit(ctx, p.runner, p.git, p.dir, "fetch", "--quiet", "--tags", "origin")
	return err
}

// Tags lists the bundle tags.
func (p *Published) Tags(ctx context.Context) ([]string, error) {
	out, err := runGit(ctx, p.runner, p.git, p.dir, "tag", "--list")
	if err != nil {
		return nil, err
	}
	return command.Lines(out), nil
}

// At reads the bundle file released as tag, with its raw content.
func (p *Published) At(ctx context.Context, tag string) (*Bundle, []byte, error) {
	out, err := p.runner.Run(ctx, command.Spec{Dir: p.dir, Name: p.git, Args: []string{"show", tag + ":" + p.file}})
	if err != nil {
		return nil, nil, errors.Wrap(errors.RefNotFound, "No "+p.file+" in "+tag, err)
	}
	b, err := Parse([]byte(out.Stdout))
	if err != nil {
		return nil, nil, err
	}
	return b, []byte(out.Stdout), nil
}

// Match is the set of bundles released for one version of the main project.
type Match struct {
	Version string   `json:"version"`
	Tags    []string `json:"tags"`
}

// Find returns the bundles whose main project is at the first of versions
// some bundle uses. versions go from the most to the least wanted.
func (p *Published) Find(ctx context.Context, versions []string) (*Match, error) {
	tags, err := p.Tags(ctx)
	if err != nil {
		return nil, err
	}
	byVersion := make(map[string][]string)
	for _, tag := range tags {
		b, _, err := p.At(ctx, tag)
		if err != nil {
			p.logger.Debug("Skipping tag without a readable bundle", "tag", tag, "error", err)
			continue
		}
		main, err := b.Main()
		if err != nil {
			continue
		}
		byVersion[main.Version] = append(byVersion[main.Version], tag)
	}
	for _, v := range versions {
		if found := byVersion[v]; len(found) > 0 {
			slices.Sort(found)
			return &Match{Version: v, Tags: found}, nil
		}
	}
	return nil, errors.Errorf(errors.RefNotFound, "no bundle released for any of %v", versions)
}
