package extract

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/meigma/assetimport/archive"
	"github.com/meigma/assetimport/internal/assettype"
	"github.com/meigma/assetimport/internal/pathutil"
	"github.com/meigma/assetimport/internal/write"
)

// Sentinel errors re-exported from internal/assettype.
var (
	// ErrNotFound is returned when the entry does not exist.
	ErrNotFound = assettype.ErrNotFound

	// ErrInvalidPath is returned for malformed paths and directories.
	ErrInvalidPath = assettype.ErrInvalidPath
)

const (
	defaultDirPerm  = 0o755
	defaultFilePerm = 0o644
	nativeFilePerm  = 0o755
)

// Record describes a materialized entry.
type Record struct {
	// Path is the file's location on disk.
	Path string

	RootID    string
	EntryPath string

	// ModTime is the entry's stored modification time.
	ModTime time.Time

	// Written reports whether this call wrote the file.
	Written bool
}

// Cache manages materialized entries under a root directory.
// It is safe for concurrent use.
type Cache struct {
	root    string
	dirPerm os.FileMode
	logger  *slog.Logger
	group   singleflight.Group
}

// Option configures a Cache.
type Option func(*Cache)

// WithDirPerm sets the permission bits of created directories.
func WithDirPerm(mode os.FileMode) Option {
	return func(c *Cache) {
		c.dirPerm = mode
	}
}

// WithLogger sets the logger for extraction activity.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Cache) {
		c.logger = logger
	}
}

// New creates a Cache rooted at root, creating the directory if needed.
func New(root string, opts ...Option) (*Cache, error) {
	if root == "" {
		return nil, errors.New("extract: root is empty")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	c := &Cache{
		root:    abs,
		dirPerm: defaultDirPerm,
	}
	for _, opt := range opts {
		opt(c)
	}
	if err := os.MkdirAll(abs, c.dirPerm); err != nil {
		return nil, fmt.Errorf("extract: create root: %w", err)
	}
	return c, nil
}

// Root returns the absolute cache root.
func (c *Cache) Root() string {
	return c.root
}

// RootDir returns the directory holding entries of rootID.
func (c *Cache) RootDir(rootID string) string {
	return filepath.Join(c.root, rootID)
}

// Path returns the location of entryPath of rootID. It does not check that
// the entry exists.
func (c *Cache) Path(rootID, entryPath string) string {
	return filepath.Join(c.root, rootID, filepath.FromSlash(entryPath))
}

// Locate maps a path under the cache root back to its root id and entry
// path. ok is false for paths outside the cache.
func (c *Cache) Locate(path string) (rootID, entryPath string, ok bool) {
	rel, err := filepath.Rel(c.root, filepath.Clean(path))
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return "", "", false
	}
	rel = filepath.ToSlash(rel)
	rootID, entryPath, _ = strings.Cut(rel, "/")
	return rootID, entryPath, true
}

// IsExtractable reports whether entries of kind are ever written to disk.
// Source and compiled code is consumed straight from the archive.
func IsExtractable(kind archive.Kind) bool {
	return kind == archive.KindNativeLibrary || kind == archive.KindPlainResource
}

// Materialize writes entryPath of idx under the index's own root id.
func (c *Cache) Materialize(idx *archive.Index, entryPath string) (Record, error) {
	return c.MaterializeAt(idx.ID(), idx, entryPath)
}

// MaterializeAt writes entryPath of idx under rootID. Roots sharing a
// rootID share one directory.
//
// If the file already exists with the entry's stored modification time,
// MaterializeAt returns without I/O. Concurrent calls for the same file
// are deduplicated.
func (c *Cache) MaterializeAt(rootID string, idx *archive.Index, entryPath string) (Record, error) {
	if entryPath == "" || entryPath == "." || !fs.ValidPath(entryPath) {
		return Record{}, &fs.PathError{Op: "materialize", Path: entryPath, Err: ErrInvalidPath}
	}
	e, ok := idx.Find(entryPath)
	if !ok {
		if idx.IsDir(entryPath) {
			return Record{}, &fs.PathError{Op: "materialize", Path: entryPath, Err: ErrInvalidPath}
		}
		return Record{}, &fs.PathError{Op: "materialize", Path: entryPath, Err: ErrNotFound}
	}
	if e.IsDir() {
		return Record{}, &fs.PathError{Op: "materialize", Path: entryPath, Err: ErrInvalidPath}
	}

	rec := Record{
		Path:      c.Path(rootID, entryPath),
		RootID:    rootID,
		EntryPath: entryPath,
		ModTime:   e.ModTime,
	}
	if current(rec.Path, e.ModTime) {
		return rec, nil
	}

	v, err, _ := c.group.Do(rec.Path, func() (any, error) {
		if current(rec.Path, e.ModTime) {
			return false, nil
		}
		return true, c.write(idx, &e, rec.Path)
	})
	if err != nil {
		return Record{}, err
	}
	// Callers sharing a deduplicated write all observe Written.
	rec.Written, _ = v.(bool)
	return rec, nil
}

func current(path string, modTime time.Time) bool {
	info, err := os.Lstat(path)
	if err != nil || !info.Mode().IsRegular() {
		return false
	}
	return info.ModTime().Unix() == modTime.Unix()
}

func (c *Cache) write(idx *archive.Index, e *archive.Entry, path string) error {
	data, err := idx.ReadRaw(*e)
	if err != nil {
		return err
	}
	perm := os.FileMode(defaultFilePerm)
	if e.Kind == archive.KindNativeLibrary {
		perm = nativeFilePerm
	}
	if err := write.File(path, data,
		write.WithPerm(perm),
		write.WithDirPerm(c.dirPerm),
		write.WithModTime(e.ModTime),
	); err != nil {
		return fmt.Errorf("materialize %s: %w", e.Path, err)
	}
	c.log().Info("extracted", "root", idx.ID(), "entry", e.Path, "path", path)
	return nil
}

// MaterializeDir writes every file under dir accepted by filter. A nil
// filter accepts every file.
func (c *Cache) MaterializeDir(rootID string, idx *archive.Index, dir string, filter func(archive.Entry) bool) ([]Record, error) {
	var records []Record
	for e := range idx.EntriesWithPrefix(pathutil.DirPrefix(dir)) {
		if e.IsDir() || (filter != nil && !filter(e)) {
			continue
		}
		rec, err := c.MaterializeAt(rootID, idx, e.Path)
		if err != nil {
			return records, err
		}
		records = append(records, rec)
	}
	return records, nil
}

// Alias creates a symbolic link at alias pointing to target, both entry
// paths under rootID. An existing link with the same target is left alone.
// It returns the alias location.
func (c *Cache) Alias(rootID, alias, target string) (string, error) {
	aliasPath := c.Path(rootID, alias)
	rel, err := filepath.Rel(filepath.Dir(aliasPath), c.Path(rootID, target))
	if err != nil {
		return "", err
	}
	if existing, err := os.Readlink(aliasPath); err == nil && existing == rel {
		return aliasPath, nil
	}

	if err := os.MkdirAll(filepath.Dir(aliasPath), c.dirPerm); err != nil {
		return "", err
	}
	tmp := aliasPath + ".link"
	_ = os.Remove(tmp) //nolint:errcheck // best-effort cleanup
	if err := os.Symlink(rel, tmp); err != nil {
		return "", fmt.Errorf("alias %s: %w", alias, err)
	}
	if err := os.Rename(tmp, aliasPath); err != nil {
		_ = os.Remove(tmp) //nolint:errcheck // best-effort cleanup
		return "", fmt.Errorf("alias %s: %w", alias, err)
	}
	c.log().Debug("created alias", "root", rootID, "alias", alias, "target", target)
	return aliasPath, nil
}

func (c *Cache) log() *slog.Logger {
	if c.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return c.logger
}
