package sandbox

import (
	"os"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/afero"

	"gitpack/internal/errors"
)

// Filter excludes source paths from synchronization.
type Filter struct {
	patterns []string
}

// NewFilter validates doublestar patterns such as "**/*.sh" or "scripts/**".
func NewFilter(patterns []string) (*Filter, error) {
	f := &Filter{}
	for _, p := range patterns {
		p = strings.TrimSpace(p)
		if p == "" || strings.HasPrefix(p, "#") {
			continue
		}
		if !doublestar.ValidatePattern(p) {
			return nil, errors.Errorf(errors.InvalidArgument, "invalid exclude pattern %q", p)
		}
		f.patterns = append(f.patterns, p)
	}
	return f, nil
}

// LoadFilterFile reads one pattern per line; '#' starts a comment line.
// A missing file yields an empty filter.
func LoadFilterFile(fs afero.Fs, path string, extra []string) (*Filter, error) {
	patterns := append([]string(nil), extra...)
	data, err := afero.ReadFile(fs, path)
	if err != nil && !os.IsNotExist(err) {
		return nil, errors.Wrap(errors.InternalError, "Failed to read filter "+path, err)
	}
	patterns = append(patterns, strings.Split(string(data), "\n")...)
	return NewFilter(patterns)
}

// Patterns returns the active patterns.
func (f *Filter) Patterns() []string {
	if f == nil {
		return nil
	}
	return append([]string(nil), f.patterns...)
}

// Excluded reports whether path matches any pattern.
func (f *Filter) Excluded(path string) bool {
	if f == nil {
		return false
	}
	for _, p := range f.patterns {
		if ok, _ := doublestar.Match(p, path); ok {
			return true
		}
	}
	return false
}
