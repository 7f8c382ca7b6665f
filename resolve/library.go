package resolve

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/meigma/assetimport/archive"
	"github.com/meigma/assetimport/internal/pathutil"
)

// FindLibrary resolves a native library name to a file path. It tries, in
// order:
//
//   - an absolute path: inside a mounted location the file is extracted (or
//     refreshed if changed); elsewhere it must exist
//   - a library shipped in a mounted archive, which is extracted
//   - the system library directories
//
// A bare name such as "crypto" also matches "libcrypto.so".
func (r *Resolver) FindLibrary(name string) (string, error) {
	if filepath.IsAbs(name) {
		if loc, rel, ok := r.locate(name); ok {
			return loc.realPath(rel)
		}
		if info, err := os.Stat(name); err == nil && !info.IsDir() {
			return name, nil
		}
		return "", fmt.Errorf("%w: library %q", ErrNotFound, name)
	}

	candidates := libraryCandidates(name)

	r.mu.RLock()
	locs := r.locations
	r.mu.RUnlock()
	for _, loc := range locs {
		for _, m := range loc.snapshot() {
			rel, ok := findLibraryEntry(m.idx, candidates)
			if !ok {
				continue
			}
			rec, err := r.cache.MaterializeAt(loc.cacheID, m.idx, rel)
			if err != nil {
				return "", err
			}
			r.log().Debug("found archive library", "name", name, "path", rec.Path)
			return rec.Path, nil
		}
	}

	for _, dir := range r.sysLibDirs {
		for _, c := range candidates {
			p := filepath.Join(dir, c)
			info, err := os.Stat(p)
			if err == nil && !info.IsDir() {
				return p, nil
			}
			if err != nil && !errors.Is(err, os.ErrNotExist) {
				r.log().Debug("cannot stat system library", "path", p, "error", err)
			}
		}
	}
	return "", fmt.Errorf("%w: library %q", ErrNotFound, name)
}

func libraryCandidates(name string) []string {
	if strings.Contains(name, "/") || archive.IsNativeName(name) {
		return []string{name}
	}
	return []string{"lib" + name + archive.NativeSuffix, name + archive.NativeSuffix}
}

// findLibraryEntry returns the first native entry whose path ends with one
// of the candidates, preferring earlier candidates.
func findLibraryEntry(idx *archive.Index, candidates []string) (string, bool) {
	for _, c := range candidates {
		if strings.Contains(c, "/") {
			if e, ok := idx.Find(c); ok && !e.IsDir() {
				return e.Path, true
			}
			continue
		}
		for e := range idx.Entries() {
			if e.Kind == archive.KindNativeLibrary && pathutil.Base(e.Path) == c {
				return e.Path, true
			}
		}
	}
	return "", false
}
