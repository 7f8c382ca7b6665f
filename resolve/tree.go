package resolve

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/meigma/assetimport/archive"
	"github.com/meigma/assetimport/extract"
)

// node is the result of a tree lookup.
type node struct {
	isDir   bool
	kind    archive.Kind
	modTime time.Time
	size    uint64
}

// tree is a read view over one path entry's content. Paths passed to a
// tree are slash-separated and relative to root(); "" is the root itself.
type tree interface {
	root() string
	stat(rel string) (node, bool)
	children(rel string) ([]archive.Child, error)
	read(rel string) ([]byte, error)

	// realPath returns a filesystem path holding the file's content.
	realPath(rel string) (string, error)

	// extractDir materializes files under rel accepted by filter.
	extractDir(rel string, filter func(archive.Entry) bool) error
	alias(alias, target string) error

	protected(rel string) bool

	// marker reports whether rel has an explicit package marker entry.
	marker(rel string) bool

	// prefersCompiled reports whether a compiled file wins over its source.
	prefersCompiled() bool
}

func treePath(t tree, rel string) string {
	if rel == "" {
		return t.root()
	}
	return filepath.Join(t.root(), filepath.FromSlash(rel))
}

type mount struct {
	idx       *archive.Index
	protected bool
}

// location is the union of archive roots sharing one cache id. Its root is
// the cache directory those roots extract into.
type location struct {
	cache   *extract.Cache
	cacheID string
	dir     string

	mu     sync.RWMutex
	mounts []*mount
}

func (l *location) add(m *mount) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.mounts = append(slices.Clone(l.mounts), m)
}

func (l *location) snapshot() []*mount {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.mounts
}

func (l *location) root() string { return l.dir }

func (l *location) prefersCompiled() bool { return true }

// find returns the first mount holding an entry at rel.
func (l *location) find(rel string) (*mount, archive.Entry, bool) {
	for _, m := range l.snapshot() {
		if e, ok := m.idx.Find(rel); ok {
			return m, e, true
		}
	}
	return nil, archive.Entry{}, false
}

func (l *location) stat(rel string) (node, bool) {
	if rel == "" {
		return node{isDir: true}, true
	}
	if _, e, ok := l.find(rel); ok {
		return node{isDir: e.IsDir(), kind: e.Kind, modTime: e.ModTime, size: e.RawSize}, true
	}
	for _, m := range l.snapshot() {
		if m.idx.IsDir(rel) {
			return node{isDir: true}, true
		}
	}
	return node{}, false
}

func (l *location) children(rel string) ([]archive.Child, error) {
	seen := make(map[string]int)
	var out []archive.Child
	for _, m := range l.snapshot() {
		for _, c := range m.idx.ListChildren(rel) {
			if i, ok := seen[c.Name]; ok {
				out[i].IsDir = out[i].IsDir || c.IsDir
				continue
			}
			seen[c.Name] = len(out)
			out = append(out, c)
		}
	}
	slices.SortFunc(out, func(a, b archive.Child) int {
		return strings.Compare(a.Name, b.Name)
	})
	return out, nil
}

func (l *location) read(rel string) ([]byte, error) {
	m, e, ok := l.find(rel)
	if !ok {
		if n, ok := l.stat(rel); ok && n.isDir {
			return nil, &fs.PathError{Op: "read", Path: treePath(l, rel), Err: ErrInvalidPath}
		}
		return nil, &fs.PathError{Op: "read", Path: treePath(l, rel), Err: ErrNotFound}
	}
	return m.idx.ReadRaw(e)
}

func (l *location) realPath(rel string) (string, error) {
	for _, m := range l.snapshot() {
		if !m.idx.Exists(rel) {
			continue
		}
		rec, err := l.cache.MaterializeAt(l.cacheID, m.idx, rel)
		if err != nil {
			return "", err
		}
		return rec.Path, nil
	}
	return "", &fs.PathError{Op: "materialize", Path: treePath(l, rel), Err: ErrNotFound}
}

func (l *location) extractDir(rel string, filter func(archive.Entry) bool) error {
	for _, m := range l.snapshot() {
		if _, err := l.cache.MaterializeDir(l.cacheID, m.idx, rel, filter); err != nil {
			return err
		}
	}
	return nil
}

func (l *location) alias(alias, target string) error {
	_, err := l.cache.Alias(l.cacheID, alias, target)
	return err
}

func (l *location) protected(rel string) bool {
	m, _, ok := l.find(rel)
	return ok && m.protected
}

func (l *location) marker(rel string) bool {
	for _, m := range l.snapshot() {
		if e, ok := m.idx.Find(rel); ok && e.IsDir() {
			return true
		}
	}
	return false
}

// isPackage reports whether dir has a package marker or holds an __init__
// module in any root.
func (l *location) isPackage(dir string) bool {
	if l.marker(dir) {
		return true
	}
	for _, suffix := range []string{archive.SourceSuffix, archive.CompiledSuffix} {
		if _, _, ok := l.find(dir + "/__init__" + suffix); ok {
			return true
		}
	}
	return false
}

// dirTree serves a plain filesystem directory.
type dirTree struct {
	dir string
}

func (d dirTree) root() string { return d.dir }

func (d dirTree) prefersCompiled() bool { return false }

func (d dirTree) stat(rel string) (node, bool) {
	info, err := os.Stat(treePath(d, rel))
	if err != nil {
		return node{}, false
	}
	if info.IsDir() {
		return node{isDir: true, modTime: info.ModTime()}, true
	}
	return node{
		kind:    archive.Classify(rel),
		modTime: info.ModTime(),
		size:    uint64(info.Size()), //nolint:gosec // file sizes are never negative
	}, true
}

func (d dirTree) children(rel string) ([]archive.Child, error) {
	entries, err := os.ReadDir(treePath(d, rel))
	if err != nil {
		return nil, err
	}
	out := make([]archive.Child, 0, len(entries))
	for _, e := range entries {
		out = append(out, archive.Child{Name: e.Name(), IsDir: e.IsDir()})
	}
	return out, nil
}

func (d dirTree) read(rel string) ([]byte, error) {
	data, err := os.ReadFile(treePath(d, rel))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, &fs.PathError{Op: "read", Path: treePath(d, rel), Err: ErrNotFound}
	}
	return data, err
}

func (d dirTree) realPath(rel string) (string, error) {
	p := treePath(d, rel)
	if _, err := os.Stat(p); err != nil {
		return "", &fs.PathError{Op: "stat", Path: p, Err: ErrNotFound}
	}
	return p, nil
}

func (d dirTree) extractDir(string, func(archive.Entry) bool) error { return nil }

func (d dirTree) alias(string, string) error { return nil }

func (d dirTree) protected(string) bool { return false }

func (d dirTree) marker(string) bool { return false }
