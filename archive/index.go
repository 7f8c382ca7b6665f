package archive

import (
	"fmt"
	"io/fs"
	"iter"
	"log/slog"
	"slices"
	"sort"
	"strings"

	"github.com/klauspost/compress/zip"

	"github.com/meigma/assetimport/internal/pathutil"
)

// Index is an immutable view of one archive root.
//
// Entries are sorted by path, so lookups are binary searches and directory
// listings are prefix scans. An Index is safe for concurrent use.
type Index struct {
	id               string
	source           ByteSource
	entries          []Entry
	maxFileSize      uint64
	maxDecoderMemory uint64
	pool             *decoderPool
	logger           *slog.Logger
}

// Child is one direct child of a directory in the archive.
type Child struct {
	// Name is the child's base name.
	Name string

	// IsDir reports whether the child is a directory, either through an
	// explicit marker entry or because deeper entries exist beneath it.
	IsDir bool
}

// Open builds an Index by parsing the archive's central directory.
//
// id names the root; it is the namespace for extraction and snapshots.
// Entries whose names are not valid slash-separated paths are skipped. If
// the archive is not a readable zip file, Open returns an error wrapping
// ErrCorruptArchive.
func Open(id string, src ByteSource, opts ...Option) (*Index, error) {
	idx := newIndex(id, src, opts)

	zr, err := zip.NewReader(src, src.Size())
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorruptArchive, id, err)
	}

	entries := make([]Entry, 0, len(zr.File))
	for _, f := range zr.File {
		kind := Classify(f.Name)
		name := strings.TrimSuffix(f.Name, "/")
		if name == "" || !fs.ValidPath(name) {
			idx.log().Debug("skipping archive entry", "root", id, "name", f.Name)
			continue
		}
		offset, err := f.DataOffset()
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %s: %v", ErrCorruptArchive, id, f.Name, err)
		}
		entries = append(entries, Entry{
			Path:           name,
			Kind:           kind,
			Offset:         uint64(offset), //nolint:gosec // DataOffset is never negative
			RawSize:        f.UncompressedSize64,
			CompressedSize: f.CompressedSize64,
			ModTime:        storedTime(f.Modified),
			Method:         Method(f.Method),
			CRC32:          f.CRC32,
		})
	}
	idx.setEntries(entries)

	idx.log().Debug("indexed archive", "root", id, "entries", len(idx.entries))
	return idx, nil
}

func newIndex(id string, src ByteSource, opts []Option) *Index {
	idx := &Index{
		id:               id,
		source:           src,
		maxFileSize:      DefaultMaxFileSize,
		maxDecoderMemory: DefaultMaxDecoderMemory,
	}
	for _, opt := range opts {
		opt(idx)
	}
	idx.pool = newDecoderPool(idx.maxDecoderMemory)
	return idx
}

// setEntries sorts entries by path and drops duplicates, keeping the first
// occurrence in central-directory order.
func (idx *Index) setEntries(entries []Entry) {
	slices.SortStableFunc(entries, func(a, b Entry) int {
		return strings.Compare(a.Path, b.Path)
	})
	idx.entries = slices.CompactFunc(entries, func(a, b Entry) bool {
		return a.Path == b.Path
	})
}

// ID returns the root identifier.
func (idx *Index) ID() string {
	return idx.id
}

// SourceID returns the identifier of the underlying archive bytes.
func (idx *Index) SourceID() string {
	return idx.source.SourceID()
}

// Source returns the underlying byte source.
func (idx *Index) Source() ByteSource {
	return idx.source
}

// Len returns the number of entries.
func (idx *Index) Len() int {
	return len(idx.entries)
}

// Find returns the entry at path. Explicit directory markers are found by
// their path without the trailing slash.
func (idx *Index) Find(path string) (Entry, bool) {
	i := sort.Search(len(idx.entries), func(i int) bool {
		return idx.entries[i].Path >= path
	})
	if i < len(idx.entries) && idx.entries[i].Path == path {
		return idx.entries[i], true
	}
	return Entry{}, false
}

// IsDir reports whether path is a directory, either through an explicit
// marker entry or because entries exist beneath it. The root ("" or ".") is
// always a directory.
func (idx *Index) IsDir(path string) bool {
	prefix := pathutil.DirPrefix(path)
	if prefix == "" {
		return true
	}
	if e, ok := idx.Find(path); ok {
		return e.IsDir()
	}
	for range idx.EntriesWithPrefix(prefix) {
		return true
	}
	return false
}

// Exists reports whether path names a file or directory.
func (idx *Index) Exists(path string) bool {
	if _, ok := idx.Find(path); ok {
		return true
	}
	return idx.IsDir(path)
}

// Entries returns an iterator over all entries in path order.
func (idx *Index) Entries() iter.Seq[Entry] {
	return func(yield func(Entry) bool) {
		for _, e := range idx.entries {
			if !yield(e) {
				return
			}
		}
	}
}

// EntriesWithPrefix returns an iterator over entries whose path starts with
// prefix, in path order.
func (idx *Index) EntriesWithPrefix(prefix string) iter.Seq[Entry] {
	return func(yield func(Entry) bool) {
		start := sort.Search(len(idx.entries), func(i int) bool {
			return idx.entries[i].Path >= prefix
		})
		for _, e := range idx.entries[start:] {
			if !strings.HasPrefix(e.Path, prefix) {
				return
			}
			if !yield(e) {
				return
			}
		}
	}
}

// ListChildren returns the direct children of dir, sorted by name.
// Intermediate directories without marker entries are synthesized. A dir
// that does not exist yields an empty list.
func (idx *Index) ListChildren(dir string) []Child {
	prefix := pathutil.DirPrefix(dir)
	seen := make(map[string]int)
	var children []Child
	for e := range idx.EntriesWithPrefix(prefix) {
		name, isSub := pathutil.Child(e.Path, prefix)
		if name == "" {
			continue
		}
		isDir := isSub || e.IsDir()
		if i, ok := seen[name]; ok {
			children[i].IsDir = children[i].IsDir || isDir
			continue
		}
		seen[name] = len(children)
		children = append(children, Child{Name: name, IsDir: isDir})
	}
	slices.SortFunc(children, func(a, b Child) int {
		return strings.Compare(a.Name, b.Name)
	})
	return children
}

func (idx *Index) log() *slog.Logger {
	if idx.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return idx.logger
}
