package sandbox

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"gitpack/internal/errors"
)

// UnsatisfiedRefsDir holds one empty file per symbol the linker may leave
// unresolved.
const UnsatisfiedRefsDir = "src/unsxref/verbose"

// CopyTree copies the files under from into to, skipping .git and what
// filter excludes, and returns the copied paths relative to from. The
// directory itself is not filtered.
func CopyTree(srcFs afero.Fs, from string, dstFs afero.Fs, to string, filter *Filter) ([]string, error) {
	var copied []string
	err := afero.Walk(srcFs, from, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(from, path)
		if err != nil || rel == "." {
			return err
		}
		rel = filepath.ToSlash(rel)
		if info.IsDir() {
			if info.Name() == ".git" || filter.Excluded(rel) {
				return filepath.SkipDir
			}
			return nil
		}
		if filter.Excluded(rel) || !info.Mode().IsRegular() {
			return nil
		}
		if err := CopyFile(srcFs, path, dstFs, filepath.Join(to, rel)); err != nil {
			return err
		}
		copied = append(copied, rel)
		return nil
	})
	if err != nil {
		return copied, errors.Wrap(errors.InternalError, "Failed to copy "+from, err)
	}
	return copied, nil
}

// IgnoreSymbols lets the link of every program succeed with symbols left
// unresolved.
func (s *Sandbox) IgnoreSymbols(symbols []string) error {
	dir := filepath.Join(s.root, filepath.FromSlash(UnsatisfiedRefsDir))
	if err := s.fs.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrap(errors.InternalError, "Failed to create "+dir, err)
	}
	for _, sym := range symbols {
		if sym == "" || strings.ContainsAny(sym, `/\`) {
			return errors.Errorf(errors.InvalidArgument, "invalid symbol name %q", sym)
		}
		f, err := s.fs.OpenFile(filepath.Join(dir, sym), os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return errors.Wrap(errors.InternalError, "Failed to ignore symbol "+sym, err)
		}
		f.Close()
	}
	return nil
}

// ReadList reads one entry per line, skipping blanks and '#' comments. A
// missing file is an empty list.
func ReadList(fs afero.Fs, path string) ([]string, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrap(errors.InternalError, "Failed to read "+path, err)
	}
	var entries []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line != "" && !strings.HasPrefix(line, "#") {
			entries = append(entries, line)
		}
	}
	return entries, nil
}
