// Package script edits generated build scripts line by line.
package script

import (
	"bytes"
	"log/slog"
	"os"
	"regexp"
	"strings"

	"github.com/spf13/afero"

	"gitpack/internal/errors"
)

// Pattern selects script lines.
type Pattern interface {
	Matches(line string) bool
	String() string
}

// Literal matches lines exactly equal to the text.
type Literal string

// Matches implements Pattern.
func (l Literal) Matches(line string) bool {
	return line == string(l)
}

func (l Literal) String() string {
	return string(l)
}

// Regex matches lines where the expression matches at the start, like the
// patterns of the scripts' own tuning tools.
type Regex struct {
	re *regexp.Regexp
}

// NewRegex compiles expr.
func NewRegex(expr string) (Regex, error) {
	re, err := regexp.Compile(expr)
	if err != nil {
		return Regex{}, errors.Wrap(errors.InvalidArgument, "invalid pattern "+expr, err)
	}
	return Regex{re: re}, nil
}

// MustRegex is NewRegex for literals known to be valid.
func MustRegex(expr string) Regex {
	return Regex{re: regexp.MustCompile(expr)}
}

// Matches implements Pattern.
func (r Regex) Matches(line string) bool {
	loc := r.re.FindStringIndex(line)
	return loc != nil && loc[0] == 0
}

// Find returns the submatches of the first line matching, or nil.
func (r Regex) Find(lines []string) []string {
	for _, line := range lines {
		if r.Matches(line) {
			return r.re.FindStringSubmatch(line)
		}
	}
	return nil
}

func (r Regex) String() string {
	return r.re.String()
}

// Position says where Insert puts new lines relative to the match.
type Position int

const (
	After Position = iota
	Before
)

// Patcher reads and rewrites one script.
type Patcher struct {
	fs   afero.Fs
	path string
	// Strict turns an unmatched pattern into an UNMATCHED_PATTERN error.
	Strict bool
	logger *slog.Logger
}

// NewPatcher creates a patcher for the script at path.
func NewPatcher(fs afero.Fs, path string, logger *slog.Logger) *Patcher {
	return &Patcher{fs: fs, path: path, logger: logger}
}

// Path returns the script location.
func (p *Patcher) Path() string {
	return p.path
}

// Lines reads the script.
func (p *Patcher) Lines() ([]string, error) {
	lines, _, err := p.read()
	return lines, err
}

// read returns the lines of the script and whether it ends with a newline.
func (p *Patcher) read() ([]string, bool, error) {
	data, err := afero.ReadFile(p.fs, p.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, errors.NewPackError(errors.ScriptGenerationFailed, "Script not found: "+p.path, err, nil)
		}
		return nil, false, errors.Wrap(errors.InternalError, "Failed to read "+p.path, err)
	}
	return splitLines(data), bytes.HasSuffix(data, []byte("\n")), nil
}

// Modify replaces the first line matching pattern with replacement. It
// reports whether a line matched; when none does, the file is not touched.
func (p *Patcher) Modify(pattern Pattern, replacement string) (bool, error) {
	lines, eol, err := p.read()
	if err != nil {
		return false, err
	}
	i := index(lines, pattern)
	if i < 0 {
		return false, p.unmatched(pattern)
	}
	lines[i] = replacement
	return true, p.write(lines, eol)
}

// Insert adds lines before or after the first line matching pattern,
// keeping their order.
func (p *Patcher) Insert(pattern Pattern, lines []string, pos Position) (bool, error) {
	current, eol, err := p.read()
	if err != nil {
		return false, err
	}
	i := index(current, pattern)
	if i < 0 {
		return false, p.unmatched(pattern)
	}
	if pos == After {
		i++
	}
	patched := make([]string, 0, len(current)+len(lines))
	patched = append(patched, current[:i]...)
	patched = append(patched, lines...)
	patched = append(patched, current[i:]...)
	return true, p.write(patched, eol)
}

func (p *Patcher) unmatched(pattern Pattern) error {
	if p.Strict {
		return errors.Errorf(errors.UnmatchedPattern, "no line of %s matches %q", p.path, pattern.String())
	}
	p.logger.Debug("Pattern not found, script left unchanged",
		"script", p.path,
		"pattern", pattern.String(),
	)
	return nil
}

// write rewrites the whole file in place; it is not atomic. The last line
// gets a newline only when eol is set.
func (p *Patcher) write(lines []string, eol bool) error {
	var buf bytes.Buffer
	for i, line := range lines {
		buf.WriteString(line)
		if i < len(lines)-1 || eol {
			buf.WriteByte('\n')
		}
	}
	if err := afero.WriteFile(p.fs, p.path, buf.Bytes(), 0o755); err != nil {
		return errors.Wrap(errors.InternalError, "Failed to write "+p.path, err)
	}
	return nil
}

func index(lines []string, pattern Pattern) int {
	for i, line := range lines {
		if pattern.Matches(line) {
			return i
		}
	}
	return -1
}

func splitLines(data []byte) []string {
	s := strings.TrimSuffix(string(data), "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}
