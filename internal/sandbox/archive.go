package sandbox

import (
	"archive/tar"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/spf13/afero"

	"gitpack/internal/errors"
	"gitpack/internal/paths"
)

// Archive writes files, relative to LocalDir, as a zstd-compressed tar
// stream.
func (s *Sandbox) Archive(w io.Writer, files []string) error {
	enc, err := zstd.NewWriter(w)
	if err != nil {
		return errors.Wrap(errors.InternalError, "Failed to start compression", err)
	}
	tw := tar.NewWriter(enc)

	for _, rel := range files {
		if err := s.addToTar(tw, rel); err != nil {
			enc.Close()
			return err
		}
	}

	if err := tw.Close(); err != nil {
		enc.Close()
		return errors.Wrap(errors.InternalError, "Failed to finish archive", err)
	}
	if err := enc.Close(); err != nil {
		return errors.Wrap(errors.InternalError, "Failed to finish compression", err)
	}
	return nil
}

func (s *Sandbox) addToTar(tw *tar.Writer, rel string) error {
	path, err := paths.SafeJoin(s.LocalDir(), rel)
	if err != nil {
		return errors.Wrap(errors.InvalidArgument, "Refusing to archive "+rel, err)
	}
	f, err := s.fs.Open(path)
	if err != nil {
		return errors.Wrap(errors.InternalError, "Failed to open "+path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return errors.Wrap(errors.InternalError, "Failed to stat "+path, err)
	}
	hdr := &tar.Header{
		Typeflag: tar.TypeReg,
		Name:     filepath.ToSlash(rel),
		Mode:     int64(info.Mode().Perm()),
		Size:     info.Size(),
		ModTime:  info.ModTime(),
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return errors.Wrap(errors.InternalError, "Failed to archive "+rel, err)
	}
	if _, err := io.Copy(tw, f); err != nil {
		return errors.Wrap(errors.InternalError, "Failed to archive "+rel, err)
	}
	return nil
}

// Extract unpacks an archive made by Archive into LocalDir and returns the
// extracted paths.
func (s *Sandbox) Extract(r io.Reader) ([]string, error) {
	dec, err := zstd.NewReader(r)
	if err != nil {
		return nil, errors.Wrap(errors.InvalidArgument, "Not a zstd stream", err)
	}
	defer dec.Close()

	var extracted []string
	tr := tar.NewReader(dec)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return extracted, errors.Wrap(errors.InvalidArgument, "Corrupt archive", err)
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}

		rel := strings.TrimPrefix(hdr.Name, "./")
		to, err := paths.SafeJoin(s.LocalDir(), rel)
		if err != nil {
			return extracted, errors.Wrap(errors.InvalidArgument, "Refusing to extract "+hdr.Name, err)
		}
		if err := writeFrom(s.fs, to, tr, os.FileMode(hdr.Mode).Perm()); err != nil {
			return extracted, err
		}
		extracted = append(extracted, rel)
	}
	return extracted, nil
}

func writeFrom(fs afero.Fs, to string, r io.Reader, perm os.FileMode) error {
	if err := fs.MkdirAll(filepath.Dir(to), 0o755); err != nil {
		return errors.Wrap(errors.InternalError, "Failed to create "+filepath.Dir(to), err)
	}
	out, err := fs.OpenFile(to, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return errors.Wrap(errors.InternalError, "Failed to create "+to, err)
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		return errors.Wrap(errors.InternalError, "Failed to write "+to, err)
	}
	return out.Close()
}
