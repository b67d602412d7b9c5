package workflow

import (
	"io"

	"gitpack/internal/sandbox"
)

// Archive writes the local sources of a sandbox to w as tar.zst and
// returns the archived paths.
func (s *Service) Archive(name string, w io.Writer) ([]string, error) {
	sb, err := sandbox.Open(s.fs, s.home, name)
	if err != nil {
		return nil, err
	}
	files, err := sb.LocalFiles()
	if err != nil {
		return nil, err
	}
	if err := sb.Archive(w, files); err != nil {
		return nil, err
	}
	s.logger.Info("Sandbox archived", "sandbox", name, "files", len(files))
	return files, nil
}

// Extract unpacks an archive made by Archive into a sandbox.
func (s *Service) Extract(name string, r io.Reader) ([]string, error) {
	sb, err := sandbox.Open(s.fs, s.home, name)
	if err != nil {
		return nil, err
	}
	files, err := sb.Extract(r)
	if err != nil {
		return files, err
	}
	s.logger.Info("Archive extracted", "sandbox", name, "files", len(files))
	return files, nil
}

// DeleteResult reports what Delete removed.
type DeleteResult struct {
	Sandbox string `json:"sandbox" yaml:"sandbox"`
	Root    string `json:"root" yaml:"root"`
	// Runs is the number of build runs forgotten
	Runs int64 `json:"runs" yaml:"runs"`
}

// Delete removes a sandbox and its build history.
func (s *Service) Delete(name string) (*DeleteResult, error) {
	sb, err := sandbox.Open(s.fs, s.home, name)
	if err != nil {
		return nil, err
	}
	if err := sb.Delete(); err != nil {
		return nil, err
	}
	result := &DeleteResult{Sandbox: name, Root: sb.Root()}

	history, db, err := s.openHistory()
	if err != nil {
		s.logger.Warn("Build history unavailable", "error", err.Error())
		return result, nil
	}
	if history == nil {
		return result, nil
	}
	defer db.Close()
	if result.Runs, err = history.DeleteSandbox(name); err != nil {
		return result, err
	}
	s.logger.Info("Sandbox deleted", "sandbox", name, "runs", result.Runs)
	return result, nil
}
