package sandbox

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/afero"

	"gitpack/internal/changes"
	"gitpack/internal/errors"
	"gitpack/internal/paths"
	"gitpack/internal/refs"
)

// Source identifies the tree changes are copied from.
type Source struct {
	Root   string
	Ref    string
	Commit string
	// Uncommitted is set when work-tree changes were included
	Uncommitted bool
}

// SyncResult reports what Apply did.
type SyncResult struct {
	Copied   []string `json:"copied"`
	Excluded []string `json:"excluded,omitempty"`
	Ignored  []string `json:"ignored"`
}

// Syncer materializes change sets into sandboxes.
type Syncer struct {
	fs     afero.Fs
	filter *Filter
	logger *slog.Logger
	now    func() time.Time
}

// NewSyncer creates a syncer reading sources from fs. A nil filter
// excludes nothing.
func NewSyncer(fs afero.Fs, filter *Filter, logger *slog.Logger) *Syncer {
	return &Syncer{fs: fs, filter: filter, logger: logger, now: time.Now}
}

// Apply copies the touched files of set from src into sb and records the
// vanished ones as ignored. Nothing touches the sandbox unless every status
// is known and the sandbox is compatible with ancestry. A copy failing half
// way leaves the files already copied in place.
func (s *Syncer) Apply(sb *Sandbox, ancestry *refs.Ancestry, set *changes.ChangeSet, src Source) (*SyncResult, error) {
	if err := changes.CheckKnown(set); err != nil {
		return nil, err
	}
	if err := CheckCompatible(sb.Options(), ancestry); err != nil {
		return nil, err
	}

	result := &SyncResult{}
	for _, rel := range set.ToCopy() {
		if s.filter.Excluded(rel) {
			result.Excluded = append(result.Excluded, rel)
			continue
		}
		if err := s.copyFile(src.Root, sb.LocalDir(), rel, sb.Fs()); err != nil {
			return result, err
		}
		result.Copied = append(result.Copied, rel)
	}

	result.Ignored = set.ToIgnore()
	if err := sb.WriteIgnored(result.Ignored); err != nil {
		return result, err
	}

	s.logger.Info("Sandbox synchronized",
		"sandbox", sb.Name(),
		"ref", src.Ref,
		"copied", len(result.Copied),
		"excluded", len(result.Excluded),
		"ignored", len(result.Ignored),
	)

	err := sb.AppendOrigin(OriginEntry{
		Repository:  src.Root,
		Ref:         src.Ref,
		Commit:      src.Commit,
		Ancestor:    ancestry.Latest().Name,
		SyncedAt:    s.now().UTC().Truncate(time.Second),
		Copied:      len(result.Copied),
		Ignored:     len(result.Ignored),
		Uncommitted: src.Uncommitted,
	})
	return result, err
}

func (s *Syncer) copyFile(srcRoot, dstRoot, rel string, dstFs afero.Fs) error {
	from, err := paths.SafeJoin(srcRoot, rel)
	if err != nil {
		return errors.Wrap(errors.InvalidArgument, "Refusing to copy "+rel, err)
	}
	to, err := paths.SafeJoin(dstRoot, rel)
	if err != nil {
		return errors.Wrap(errors.InvalidArgument, "Refusing to copy "+rel, err)
	}
	return CopyFile(s.fs, from, dstFs, to)
}

// CopyFile copies one regular file between filesystems, creating the
// destination's parent directories and keeping the permission bits.
func CopyFile(srcFs afero.Fs, from string, dstFs afero.Fs, to string) error {
	in, err := srcFs.Open(from)
	if err != nil {
		return errors.Wrap(errors.InternalError, "Failed to open "+from, err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return errors.Wrap(errors.InternalError, "Failed to stat "+from, err)
	}

	if err := dstFs.MkdirAll(filepath.Dir(to), 0o755); err != nil {
		return errors.Wrap(errors.InternalError, "Failed to create "+filepath.Dir(to), err)
	}
	out, err := dstFs.OpenFile(to, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return errors.Wrap(errors.InternalError, "Failed to create "+to, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return errors.Wrap(errors.InternalError, "Failed to copy "+from, err)
	}
	if err := out.Close(); err != nil {
		return errors.Wrap(errors.InternalError, "Failed to write "+to, err)
	}
	return nil
}
