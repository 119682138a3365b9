// Package audiostore manages the directory of generated audio files: unique
// naming, whole-file writes, lookups and age-based eviction.
//
// A Store is safe for unsynchronized concurrent use. Names are random and
// never reused, so concurrent writes never target the same file, and a
// deletion that loses a race to another sweep is treated as done.
package audiostore

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a named audio file does not exist, either
// because it was never written or because it has been swept.
var ErrNotFound = errors.New("audio file not found")

// ErrInvalidName is returned for names that are not a plain file name.
var ErrInvalidName = errors.New("invalid audio file name")

// tempPattern names in-flight writes. The ".partial" suffix keeps them out of
// the sweep glob and out of Exists, so a half-written file is never served.
const tempPattern = ".write-*.partial"

// Store is a directory of audio files sharing one managed extension.
type Store struct {
	dir string
	ext string

	removed atomic.Uint64
}

// New creates the directory if needed and returns a Store managing files
// with the given extension (e.g., ".mp3").
func New(dir, ext string) (*Store, error) {
	if !strings.HasPrefix(ext, ".") {
		return nil, fmt.Errorf("audiostore: extension %q must start with a dot", ext)
	}
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("audiostore: creating directory: %w", err)
	}
	return &Store{dir: dir, ext: ext}, nil
}

// Dir returns the managed directory.
func (s *Store) Dir() string {
	return s.dir
}

// Ext returns the managed file extension.
func (s *Store) Ext() string {
	return s.ext
}

// DirExists reports whether the managed directory is currently present.
func (s *Store) DirExists() bool {
	info, err := os.Stat(s.dir)
	return err == nil && info.IsDir()
}

// AllocateName returns a new random file name with the given extension.
// It performs no I/O.
func (s *Store) AllocateName(ext string) string {
	return uuid.NewString() + ext
}

// Path returns the absolute-or-relative path of name inside the directory.
func (s *Store) Path(name string) string {
	return filepath.Join(s.dir, name)
}

// Write stores data under name. The bytes go to a temporary file first and
// are renamed into place, so readers see either nothing or the whole file.
func (s *Store) Write(name string, data []byte) error {
	if err := validName(name); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.dir, tempPattern)
	if err != nil {
		return fmt.Errorf("audiostore: creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("audiostore: writing %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("audiostore: closing %s: %w", name, err)
	}
	if err := os.Chmod(tmpPath, 0640); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("audiostore: setting permissions on %s: %w", name, err)
	}
	if err := os.Rename(tmpPath, s.Path(name)); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("audiostore: renaming %s: %w", name, err)
	}

	return nil
}

// Exists reports whether name refers to a stored regular file.
func (s *Store) Exists(name string) bool {
	if validName(name) != nil {
		return false
	}
	info, err := os.Stat(s.Path(name))
	return err == nil && info.Mode().IsRegular()
}

// Read returns the full contents of name, or ErrNotFound.
func (s *Store) Read(name string) ([]byte, error) {
	if err := validName(name); err != nil {
		return nil, ErrNotFound
	}
	data, err := os.ReadFile(s.Path(name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("audiostore: reading %s: %w", name, err)
	}
	return data, nil
}

// Open opens name for streaming. The caller must close the file.
func (s *Store) Open(name string) (*os.File, fs.FileInfo, error) {
	if err := validName(name); err != nil {
		return nil, nil, ErrNotFound
	}
	f, err := os.Open(s.Path(name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, fmt.Errorf("audiostore: opening %s: %w", name, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("audiostore: stat %s: %w", name, err)
	}
	return f, info, nil
}

// Size returns the size in bytes of a stored file.
func (s *Store) Size(name string) (int64, error) {
	if err := validName(name); err != nil {
		return 0, ErrNotFound
	}
	info, err := os.Stat(s.Path(name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("audiostore: stat %s: %w", name, err)
	}
	return info.Size(), nil
}

// Sweep deletes every managed file whose modification time is more than
// maxAge in the past and returns how many it removed. Failures are logged
// per file and never stop the sweep.
func (s *Store) Sweep(maxAge time.Duration) int {
	paths, err := filepath.Glob(filepath.Join(s.dir, "*"+s.ext))
	if err != nil {
		// Only possible with a malformed pattern.
		slog.Error("audio sweep: bad glob pattern", "dir", s.dir, "error", err)
		return 0
	}

	now := time.Now()
	removed := 0
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				slog.Warn("audio sweep: failed to stat file", "path", p, "error", err)
			}
			continue
		}
		if !info.Mode().IsRegular() || now.Sub(info.ModTime()) <= maxAge {
			continue
		}

		if err := os.Remove(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				slog.Debug("audio sweep: file already removed", "file", filepath.Base(p))
				continue
			}
			slog.Error("audio sweep: failed to remove file", "path", p, "error", err)
			continue
		}
		removed++
		slog.Info("audio sweep: removed expired file", "file", filepath.Base(p), "age", now.Sub(info.ModTime()).Round(time.Second).String())
	}

	if removed > 0 {
		s.removed.Add(uint64(removed))
	}
	return removed
}

// RemovedTotal returns the number of files deleted by sweeps since start.
func (s *Store) RemovedTotal() uint64 {
	return s.removed.Load()
}

// Stats returns the number of managed files and their combined size.
func (s *Store) Stats() (int, int64, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, 0, fmt.Errorf("audiostore: listing directory: %w", err)
	}

	var count int
	var total int64
	for _, e := range entries {
		if !e.Type().IsRegular() || filepath.Ext(e.Name()) != s.ext {
			continue
		}
		info, err := e.Info()
		if err != nil {
			// Swept between ReadDir and Info.
			continue
		}
		count++
		total += info.Size()
	}
	return count, total, nil
}

// validName rejects anything that could escape the directory or address a
// temp file.
func validName(name string) error {
	if name == "" || name == "." || name == ".." ||
		strings.ContainsAny(name, `/\`) ||
		strings.HasPrefix(name, ".") ||
		filepath.Base(name) != name {
		return ErrInvalidName
	}
	return nil
}
