package sandbox

import (
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/afero"

	"gitpack/internal/errors"
)

// OriginEntry describes one synchronization into the sandbox.
type OriginEntry struct {
	Repository  string    `toml:"repository" json:"repository"`
	Ref         string    `toml:"ref" json:"ref"`
	Commit      string    `toml:"commit" json:"commit"`
	Ancestor    string    `toml:"ancestor" json:"ancestor"`
	SyncedAt    time.Time `toml:"synced_at" json:"syncedAt"`
	Copied      int       `toml:"copied" json:"copied"`
	Ignored     int       `toml:"ignored" json:"ignored"`
	Uncommitted bool      `toml:"uncommitted,omitempty" json:"uncommitted,omitempty"`
}

// OriginRecord is the content of the origin record file.
type OriginRecord struct {
	Syncs []OriginEntry `toml:"sync"`
}

// ReadOrigin loads the origin record; a missing file is an empty record.
func (s *Sandbox) ReadOrigin() (*OriginRecord, error) {
	data, err := afero.ReadFile(s.fs, s.OriginRecordPath())
	if err != nil {
		if os.IsNotExist(err) {
			return &OriginRecord{}, nil
		}
		return nil, errors.Wrap(errors.InternalError, "Failed to read origin record", err)
	}
	var rec OriginRecord
	if err := toml.Unmarshal(data, &rec); err != nil {
		return nil, errors.Wrap(errors.InternalError, "Malformed origin record "+s.OriginRecordPath(), err)
	}
	return &rec, nil
}

// AppendOrigin adds entry to the origin record.
func (s *Sandbox) AppendOrigin(entry OriginEntry) error {
	rec, err := s.ReadOrigin()
	if err != nil {
		return err
	}
	rec.Syncs = append(rec.Syncs, entry)

	data, err := toml.Marshal(rec)
	if err != nil {
		return errors.Wrap(errors.InternalError, "Failed to encode origin record", err)
	}
	if err := afero.WriteFile(s.fs, s.OriginRecordPath(), data, 0o644); err != nil {
		return errors.Wrap(errors.InternalError, "Failed to write origin record", err)
	}
	return nil
}
