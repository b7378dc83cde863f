package fileutil

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// PartSuffix marks in-progress downloads. Files carrying it never count as
// complete outputs.
const PartSuffix = ".part"

// SourceError wraps a failure reading from the source stream, as opposed to
// a failure writing the destination.
type SourceError struct {
	Err error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("read source: %v", e.Err)
}

func (e *SourceError) Unwrap() error { return e.Err }

// IsSourceError reports whether err originated from the source reader.
func IsSourceError(err error) bool {
	var se *SourceError
	return errors.As(err, &se)
}

// WriteFileAtomic writes data to a sibling temp file and renames it into place,
// so readers never observe a partially written file.
func WriteFileAtomic(path string, data []byte, mode os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+"-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Chmod(mode); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

// WriteStreamAtomic streams src to path+PartSuffix and renames it to path only
// after the stream ended cleanly. On any failure the partial file is removed
// and path is left untouched. Source read failures are returned as *SourceError.
func WriteStreamAtomic(path string, src io.Reader, mode os.FileMode) (int64, error) {
	partPath := path + PartSuffix
	out, err := os.OpenFile(partPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return 0, fmt.Errorf("open partial file: %w", err)
	}

	reader := &trackingReader{r: src}
	written, err := io.Copy(out, reader)
	if err != nil {
		_ = out.Close()
		_ = os.Remove(partPath)
		if reader.err != nil {
			return written, &SourceError{Err: reader.err}
		}
		return written, fmt.Errorf("write partial file: %w", err)
	}
	if err := out.Sync(); err != nil {
		_ = out.Close()
		_ = os.Remove(partPath)
		return written, fmt.Errorf("sync partial file: %w", err)
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(partPath)
		return written, fmt.Errorf("close partial file: %w", err)
	}
	if err := os.Rename(partPath, path); err != nil {
		_ = os.Remove(partPath)
		return written, fmt.Errorf("rename partial file: %w", err)
	}
	return written, nil
}

// IsPartial reports whether name is an in-progress download.
func IsPartial(name string) bool {
	return strings.HasSuffix(name, PartSuffix)
}

// RemoveStalePartials deletes leftover partial files in dir. A missing dir is
// not an error.
func RemoveStalePartials(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, err
	}
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() || !IsPartial(entry.Name()) {
			continue
		}
		if err := os.Remove(filepath.Join(dir, entry.Name())); err != nil && !errors.Is(err, os.ErrNotExist) {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

// RemoveDirIfEmpty removes dir when it has no entries. It reports whether the
// directory was removed.
func RemoveDirIfEmpty(dir string) (bool, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	if len(entries) > 0 {
		return false, nil
	}
	if err := os.Remove(dir); err != nil {
		return false, err
	}
	return true, nil
}

// FileExists reports whether path names an existing regular file.
func FileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

type trackingReader struct {
	r   io.Reader
	err error
}

func (t *trackingReader) Read(p []byte) (int, error) {
	n, err := t.r.Read(p)
	if err != nil && !errors.Is(err, io.EOF) {
		t.err = err
	}
	return n, err
}
