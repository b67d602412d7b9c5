// Package version reports the gitpack build and the versions of the
// external tools it drives.
package version

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"runtime"
	"runtime/debug"
	"strings"

	"gitpack/internal/command"
)

// Set with -ldflags "-X gitpack/internal/version.Commit=...". When left
// unknown, Current falls back to the VCS stamp of the go command.
var (
	Version   = "0.4.0"
	Commit    = "unknown"
	BuildDate = "unknown"
)

// Build identifies a gitpack binary.
type Build struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"buildDate"`
	Go        string `json:"go"`
	// Modified is set for binaries built from a dirty checkout
	Modified bool `json:"modified,omitempty"`
}

// readBuildInfo is swapped in tests
var readBuildInfo = debug.ReadBuildInfo

// Current returns the build of the running binary.
func Current() Build {
	b := Build{Version: Version, Commit: Commit, BuildDate: BuildDate, Go: runtime.Version()}
	info, ok := readBuildInfo()
	if !ok {
		return b
	}
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			if b.Commit == "unknown" {
				b.Commit = s.Value
			}
		case "vcs.time":
			if b.BuildDate == "unknown" {
				b.BuildDate = s.Value
			}
		case "vcs.modified":
			b.Modified = s.Value == "true"
		}
	}
	return b
}

// Short renders "0.4.0 (abc1234)", or the bare version when the commit is
// unknown.
func (b Build) Short() string {
	if b.Commit == "unknown" || len(b.Commit) <= 7 {
		return b.Version
	}
	s := b.Version + " (" + b.Commit[:7]
	if b.Modified {
		s += ", modified"
	}
	return s + ")"
}

func (b Build) String() string {
	return fmt.Sprintf("gitpack version %s\nCommit: %s\nBuilt: %s\nGo: %s", b.Version, b.Commit, b.BuildDate, b.Go)
}

// Tool is an installed external program.
type Tool struct {
	Name    string `json:"name"`
	Path    string `json:"path,omitempty"`
	Version string `json:"version,omitempty"`
}

var versionRe = regexp.MustCompile(`\d+(\.\d+)+`)

// Locate finds exe on PATH and reads its version from the first line of
// "exe args...". Without args, the version is read from the install path,
// which is how gmkpack installations are told apart
// (.../gmkpack.6.9.3/util/gmkpack). An unknown version is left empty.
func Locate(ctx context.Context, runner command.Runner, name, exe string, args ...string) Tool {
	t := Tool{Name: name}
	path, err := runner.LookPath(exe)
	if err != nil {
		return t
	}
	t.Path = path
	if len(args) == 0 {
		t.Version = versionInPath(path)
		return t
	}
	res, err := runner.Run(ctx, command.Spec{Dir: filepath.Dir(path), Name: exe, Args: args})
	if err != nil {
		return t
	}
	first, _, _ := strings.Cut(strings.TrimSpace(res.Stdout), "\n")
	t.Version = versionRe.FindString(first)
	return t
}

// versionInPath returns the last version-looking part of a directory name
// in path.
func versionInPath(path string) string {
	for dir := filepath.Dir(path); dir != filepath.Dir(dir); dir = filepath.Dir(dir) {
		if v := versionRe.FindString(filepath.Base(dir)); v != "" {
			return v
		}
	}
	return ""
}
