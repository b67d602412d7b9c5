package build

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"time"

	"github.com/spf13/afero"

	"gitpack/internal/errors"
)

// State is where a target stands in a run.
type State string

const (
	MissingScript   State = "MISSING_SCRIPT"
	ScriptGenerated State = "SCRIPT_GENERATED"
	CompiledOK      State = "COMPILED_OK"
	CompiledFailed  State = "COMPILED_FAILED"
)

// Entry is the outcome of one target.
type Entry struct {
	Target string        `json:"target"`
	OK     bool          `json:"ok"`
	Output string        `json:"output"`
	State  State         `json:"state"`
	Took   time.Duration `json:"took"`
}

// Report collects target outcomes in run order.
type Report struct {
	RunID      string    `json:"runId"`
	Sandbox    string    `json:"sandbox"`
	Policy     Policy    `json:"policy"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
	entries    []Entry
}

func (r *Report) add(e Entry) {
	r.entries = append(r.entries, e)
}

// Entries returns the outcomes in run order.
func (r *Report) Entries() []Entry {
	return append([]Entry(nil), r.entries...)
}

// Get returns the outcome of target.
func (r *Report) Get(target string) (Entry, bool) {
	for _, e := range r.entries {
		if e.Target == target {
			return e, true
		}
	}
	return Entry{}, false
}

// Failed lists the targets that did not build.
func (r *Report) Failed() []string {
	var names []string
	for _, e := range r.entries {
		if !e.OK {
			names = append(names, e.Target)
		}
	}
	return names
}

// Succeeded lists the targets that built.
func (r *Report) Succeeded() []string {
	var names []string
	for _, e := range r.entries {
		if e.OK {
			names = append(names, e.Target)
		}
	}
	return names
}

// OK reports whether every attempted target built.
func (r *Report) OK() bool {
	return len(r.Failed()) == 0
}

// MarshalJSON renders {target: {"ok": bool, "Output": string}} keeping run
// order.
func (r *Report) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range r.entries {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(e.Target)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(struct {
			OK     bool   `json:"ok"`
			Output string `json:"Output"`
		}{e.OK, e.Output})
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// WriteFile dumps the report as JSON to path.
func (r *Report) WriteFile(fs afero.Fs, path string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return errors.Wrap(errors.InternalError, "Failed to encode build report", err)
	}
	if err := fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(errors.InternalError, "Failed to create "+filepath.Dir(path), err)
	}
	if err := afero.WriteFile(fs, path, append(data, '\n'), 0o644); err != nil {
		return errors.Wrap(errors.InternalError, "Failed to write build report "+path, err)
	}
	return nil
}
