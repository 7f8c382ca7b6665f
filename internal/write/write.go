// Package write provides atomic file replacement for cache directories.
package write

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// tempPrefix marks in-flight temp files. Sweeps treat such files as garbage.
const tempPrefix = ".assetimport-"

const (
	defaultPerm    = 0o644
	defaultDirPerm = 0o755
)

type options struct {
	perm    os.FileMode
	dirPerm os.FileMode
	modTime time.Time
}

// Option configures File.
type Option func(*options)

// WithPerm sets the permission bits of the written file.
func WithPerm(mode os.FileMode) Option {
	return func(o *options) {
		o.perm = mode
	}
}

// WithDirPerm sets the permission bits of created parent directories.
func WithDirPerm(mode os.FileMode) Option {
	return func(o *options) {
		o.dirPerm = mode
	}
}

// WithModTime sets the access and modification times of the written file
// before it becomes visible.
func WithModTime(t time.Time) Option {
	return func(o *options) {
		o.modTime = t
	}
}

// File writes data to a temp file beside path and renames it into place.
// Readers observe either the previous content or the complete new content.
func File(path string, data []byte, opts ...Option) error {
	o := options{perm: defaultPerm, dirPerm: defaultDirPerm}
	for _, opt := range opts {
		opt(&o)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, o.dirPerm); err != nil {
		return fmt.Errorf("create directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, tempPrefix+"*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		_ = os.Remove(tmpPath) //nolint:errcheck // best-effort cleanup
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath) //nolint:errcheck // best-effort cleanup
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, o.perm); err != nil {
		_ = os.Remove(tmpPath) //nolint:errcheck // best-effort cleanup
		return fmt.Errorf("chmod: %w", err)
	}
	if !o.modTime.IsZero() {
		if err := os.Chtimes(tmpPath, o.modTime, o.modTime); err != nil {
			_ = os.Remove(tmpPath) //nolint:errcheck // best-effort cleanup
			return fmt.Errorf("chtimes: %w", err)
		}
	}

	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath) //nolint:errcheck // best-effort cleanup
		return fmt.Errorf("rename to %s: %w", path, err)
	}
	return nil
}

// IsTemp reports whether name is a temp file left by an interrupted File.
func IsTemp(name string) bool {
	return strings.HasPrefix(filepath.Base(name), tempPrefix)
}
