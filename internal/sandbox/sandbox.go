// Package sandbox manages incremental build sandboxes on disk: their
// creation record, the files materialized from a source tree, and the
// records the build tool reads back.
package sandbox

import (
	"bufio"
	"bytes"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/afero"

	"gitpack/internal/errors"
)

const (
	// GenesisFile holds the creation command line
	GenesisFile = ".genesis"
	// IgnoredRecordFile lists the files the build must ignore
	IgnoredRecordFile = "gitpack.ignore4compile"
	// OriginRecordFile logs where the sandbox contents came from
	OriginRecordFile = ".gitpack.origin.toml"
)

// Sandbox is an existing sandbox directory.
type Sandbox struct {
	fs      afero.Fs
	name    string
	root    string
	options Options
}

// Open loads the sandbox name under home.
func Open(fs afero.Fs, home, name string) (*Sandbox, error) {
	root := filepath.Join(home, name)
	if ok, _ := afero.DirExists(fs, root); !ok {
		return nil, errors.NewPackError(
			errors.SandboxNotFound,
			"Sandbox not found: "+root,
			nil,
			errors.GetSuggestedFixes(errors.SandboxNotFound),
		)
	}

	f, err := fs.Open(filepath.Join(root, GenesisFile))
	if err != nil {
		return nil, errors.Wrap(errors.SandboxNotFound, "Sandbox has no genesis record: "+root, err)
	}
	defer f.Close()

	var line string
	scanner := bufio.NewScanner(f)
	if scanner.Scan() {
		line = strings.TrimSpace(scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(errors.InternalError, "Failed to read genesis of "+root, err)
	}

	opts, err := ParseGenesis(line)
	if err != nil {
		return nil, err
	}
	return &Sandbox{fs: fs, name: name, root: root, options: opts}, nil
}

// Exists reports whether home already holds a directory called name.
func Exists(fs afero.Fs, home, name string) bool {
	ok, _ := afero.DirExists(fs, filepath.Join(home, name))
	return ok
}

// Name returns the sandbox directory name.
func (s *Sandbox) Name() string { return s.name }

// Root returns the sandbox directory.
func (s *Sandbox) Root() string { return s.root }

// Options returns the creation context.
func (s *Sandbox) Options() Options { return s.options }

// Fs returns the filesystem the sandbox lives on.
func (s *Sandbox) Fs() afero.Fs { return s.fs }

// LocalDir is where modified sources go.
func (s *Sandbox) LocalDir() string {
	return filepath.Join(s.root, "src", "local")
}

// BinDir holds the built executables.
func (s *Sandbox) BinDir() string {
	return filepath.Join(s.root, "bin")
}

// LogDir holds silent build outputs.
func (s *Sandbox) LogDir() string {
	return filepath.Join(s.root, "log")
}

// ScriptPath is the build script of program; the empty program is the
// compile-only script.
func (s *Sandbox) ScriptPath(program string) string {
	return filepath.Join(s.root, "ics_"+strings.ToLower(program))
}

// IgnoredRecordPath is the location of the ignored-files record.
func (s *Sandbox) IgnoredRecordPath() string {
	return filepath.Join(s.root, IgnoredRecordFile)
}

// OriginRecordPath is the location of the origin record.
func (s *Sandbox) OriginRecordPath() string {
	return filepath.Join(s.root, OriginRecordFile)
}

// HasScript reports whether the build script of program exists.
func (s *Sandbox) HasScript(program string) bool {
	ok, _ := afero.Exists(s.fs, s.ScriptPath(program))
	return ok
}

// RemoveScript deletes the build script of program if present.
func (s *Sandbox) RemoveScript(program string) error {
	err := s.fs.Remove(s.ScriptPath(program))
	if err != nil && !os.IsNotExist(err) {
		return errors.Wrap(errors.InternalError, "Failed to remove "+s.ScriptPath(program), err)
	}
	return nil
}

// Scripts lists the available build scripts, sorted.
func (s *Sandbox) Scripts() ([]string, error) {
	entries, err := afero.ReadDir(s.fs, s.root)
	if err != nil {
		return nil, errors.Wrap(errors.InternalError, "Failed to list "+s.root, err)
	}
	var scripts []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), "ics_") {
			scripts = append(scripts, e.Name())
		}
	}
	slices.Sort(scripts)
	return scripts, nil
}

// HasExecutable reports whether program was built, in lower or upper case.
func (s *Sandbox) HasExecutable(program string) bool {
	for _, name := range []string{strings.ToLower(program), strings.ToUpper(program)} {
		if ok, _ := afero.Exists(s.fs, filepath.Join(s.BinDir(), name)); ok {
			return true
		}
	}
	return false
}

// ReadIgnored returns the ignored-files record, or nothing when absent.
func (s *Sandbox) ReadIgnored() ([]string, error) {
	data, err := afero.ReadFile(s.fs, s.IgnoredRecordPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrap(errors.InternalError, "Failed to read ignored files", err)
	}
	var paths []string
	for _, line := range strings.Split(string(data), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			paths = append(paths, line)
		}
	}
	return paths, nil
}

// WriteIgnored replaces the ignored-files record.
func (s *Sandbox) WriteIgnored(paths []string) error {
	var buf bytes.Buffer
	for _, p := range paths {
		buf.WriteString(p)
		buf.WriteByte('\n')
	}
	if err := afero.WriteFile(s.fs, s.IgnoredRecordPath(), buf.Bytes(), 0o644); err != nil {
		return errors.Wrap(errors.InternalError, "Failed to write ignored files", err)
	}
	return nil
}

// LocalFiles lists the files under LocalDir relative to it, sorted.
func (s *Sandbox) LocalFiles() ([]string, error) {
	local := s.LocalDir()
	var files []string
	err := afero.Walk(s.fs, local, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(local, path)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil && !os.IsNotExist(err) {
		return nil, errors.Wrap(errors.InternalError, "Failed to list "+local, err)
	}
	slices.Sort(files)
	return files, nil
}

// Delete removes the whole sandbox directory.
func (s *Sandbox) Delete() error {
	if err := s.fs.RemoveAll(s.root); err != nil {
		return errors.Wrap(errors.InternalError, "Failed to delete "+s.root, err)
	}
	return nil
}
