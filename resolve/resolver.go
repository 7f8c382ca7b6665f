package resolve

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/meigma/assetimport/archive"
	"github.com/meigma/assetimport/codecache"
	"github.com/meigma/assetimport/extract"
	"github.com/meigma/assetimport/internal/pathutil"
)

// Resolver holds the module namespace. It is safe for concurrent use.
type Resolver struct {
	cache    *extract.Cache
	compiled *codecache.Cache
	logger   *slog.Logger

	builtins    map[string]struct{}
	sysLibDirs  []string
	extractPkgs map[string]struct{}

	mu        sync.RWMutex
	locations []*location
	path      []string
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithLogger sets the logger for resolution and extraction activity.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) {
		r.logger = logger
	}
}

// WithBuiltins declares modules provided by the runtime itself. They are
// found before any path entry and cannot be renamed.
func WithBuiltins(names ...string) Option {
	return func(r *Resolver) {
		for _, n := range names {
			r.builtins[n] = struct{}{}
		}
	}
}

// WithSystemLibraryDirs sets the directories FindLibrary searches after
// the mounted archives.
func WithSystemLibraryDirs(dirs ...string) Option {
	return func(r *Resolver) {
		r.sysLibDirs = append(r.sysLibDirs, dirs...)
	}
}

// WithExtractPackages names packages whose files are all extracted when
// they are imported, except compiled code. Use it for packages that read
// their own source from disk.
func WithExtractPackages(names ...string) Option {
	return func(r *Resolver) {
		for _, n := range names {
			r.extractPkgs[n] = struct{}{}
		}
	}
}

// New creates a Resolver extracting into cache and compiling through
// compiled.
func New(cache *extract.Cache, compiled *codecache.Cache, opts ...Option) *Resolver {
	r := &Resolver{
		cache:       cache,
		compiled:    compiled,
		builtins:    make(map[string]struct{}),
		extractPkgs: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type mountConfig struct {
	protected bool
	cacheID   string
}

// MountOption configures a mounted root.
type MountOption func(*mountConfig)

// Protected marks the root as part of the core distribution. Its modules
// cannot be loaded under another name.
func Protected() MountOption {
	return func(c *mountConfig) {
		c.protected = true
	}
}

// WithCacheID sets the cache directory the root extracts into. Roots with
// the same cache id share one path entry and are searched as one, in mount
// order. It defaults to the index id.
func WithCacheID(id string) MountOption {
	return func(c *mountConfig) {
		c.cacheID = id
	}
}

// Mount adds an archive root to the end of the namespace and extracts its
// data files that lie outside any package.
func (r *Resolver) Mount(idx *archive.Index, opts ...MountOption) error {
	cfg := mountConfig{cacheID: idx.ID()}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.cacheID == "" || strings.ContainsAny(cfg.cacheID, `/\`) || cfg.cacheID == "." || cfg.cacheID == ".." {
		return fmt.Errorf("resolve: invalid cache id %q", cfg.cacheID)
	}

	r.mu.Lock()
	var loc *location
	for _, l := range r.locations {
		if l.cacheID == cfg.cacheID {
			loc = l
			break
		}
	}
	if loc == nil {
		loc = &location{cache: r.cache, cacheID: cfg.cacheID, dir: r.cache.RootDir(cfg.cacheID)}
		r.locations = append(r.locations, loc)
		r.path = append(r.path, loc.dir)
	}
	loc.add(&mount{idx: idx, protected: cfg.protected})
	r.mu.Unlock()

	r.log().Debug("mounted root", "root", idx.ID(), "cache_id", cfg.cacheID, "entries", idx.Len(), "protected", cfg.protected)
	return r.extractData(loc, idx)
}

// extractData materializes plain resources at the root of idx and in
// top-level directories that are neither packages nor metadata. Native
// libraries wait for FindLibrary or ResourcePath.
func (r *Resolver) extractData(loc *location, idx *archive.Index) error {
	filter := extractFilter(false)
	for _, c := range idx.ListChildren("") {
		if !c.IsDir {
			e, ok := idx.Find(c.Name)
			if !ok || !filter(e) {
				continue
			}
			if _, err := r.cache.MaterializeAt(loc.cacheID, idx, c.Name); err != nil {
				return fmt.Errorf("extract %s from %s: %w", c.Name, idx.ID(), err)
			}
			continue
		}
		if isMetadataDir(c.Name) || loc.isPackage(c.Name) {
			continue
		}
		if _, err := r.cache.MaterializeDir(loc.cacheID, idx, c.Name, filter); err != nil {
			return fmt.Errorf("extract %s from %s: %w", c.Name, idx.ID(), err)
		}
	}
	return nil
}

// Path returns a copy of the namespace's path entries in search order.
func (r *Resolver) Path() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.path)
}

// AddDirectory appends dir to the namespace. Adding an entry twice has no
// effect.
func (r *Resolver) AddDirectory(dir string) {
	r.InsertDirectory(-1, dir)
}

// InsertDirectory inserts dir at position i; i < 0 or beyond the end
// appends.
func (r *Resolver) InsertDirectory(i int, dir string) {
	dir = filepath.Clean(dir)
	r.mu.Lock()
	defer r.mu.Unlock()
	if slices.Contains(r.path, dir) {
		return
	}
	if i < 0 || i > len(r.path) {
		i = len(r.path)
	}
	r.path = slices.Insert(r.path, i, dir)
}

// RemoveDirectory removes dir from the namespace and reports whether it
// was present.
func (r *Resolver) RemoveDirectory(dir string) bool {
	dir = filepath.Clean(dir)
	r.mu.Lock()
	defer r.mu.Unlock()
	i := slices.Index(r.path, dir)
	if i < 0 {
		return false
	}
	r.path = slices.Delete(r.path, i, i+1)
	return true
}

// locate maps a path inside a mounted location to that location and the
// relative path.
func (r *Resolver) locate(p string) (*location, string, bool) {
	cacheID, rel, ok := r.cache.Locate(p)
	if !ok {
		return nil, "", false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, l := range r.locations {
		if l.cacheID == cacheID {
			return l, rel, true
		}
	}
	return nil, "", false
}

// finderFor returns the finder for a path entry, or nil if the entry is
// neither inside a mounted location nor an existing directory.
func (r *Resolver) finderFor(entry string) *finder {
	if loc, rel, ok := r.locate(entry); ok {
		return &finder{r: r, t: loc, prefix: rel, entry: entry}
	}
	info, err := os.Stat(entry)
	if err != nil || !info.IsDir() {
		return nil
	}
	return &finder{r: r, t: dirTree{dir: filepath.Clean(entry)}, entry: entry}
}

// Resolve finds the spec of a dotted name. Top-level names are searched in
// the namespace; submodules only in their parent package's search
// locations.
func (r *Resolver) Resolve(name string) (*Spec, error) {
	if !validName(name) {
		return nil, notFound(name)
	}
	parent, _ := pathutil.SplitModule(name)
	if parent == "" {
		return r.FindSpec(name, nil)
	}
	ps, err := r.Resolve(parent)
	if err != nil {
		return nil, err
	}
	if !ps.IsPackage {
		return nil, fmt.Errorf("%w: %q is not a package", ErrNotFound, parent)
	}
	return r.FindSpec(name, ps.SearchLocations)
}

// FindSpec finds name in the given path entries, or in the namespace and
// builtins when path is nil.
func (r *Resolver) FindSpec(name string, path []string) (*Spec, error) {
	if !validName(name) {
		return nil, notFound(name)
	}
	if path == nil {
		if _, ok := r.builtins[name]; ok {
			return builtinSpec(name), nil
		}
		path = r.Path()
	}
	for _, entry := range path {
		f := r.finderFor(entry)
		if f == nil {
			continue
		}
		spec, err := f.FindSpec(name)
		if err != nil {
			if !errors.Is(err, ErrNotFound) {
				r.log().Debug("path entry lookup failed", "entry", entry, "module", name, "error", err)
			}
			continue
		}
		if spec.IsPackage {
			spec.SearchLocations = r.searchLocations(name, path)
		}
		r.log().Debug("resolved module", "module", name, "origin", spec.Origin, "kind", spec.Kind.String())
		return spec, nil
	}
	return nil, notFound(name)
}

// validName reports whether name is a dotted name without empty
// components.
func validName(name string) bool {
	return name != "" && !slices.Contains(strings.Split(name, "."), "")
}

// searchLocations returns one location per entry of path that has a
// directory named after name's last component.
func (r *Resolver) searchLocations(name string, path []string) []string {
	_, last := pathutil.SplitModule(name)
	var locs []string
	for _, entry := range path {
		f := r.finderFor(entry)
		if f == nil || !f.hasDir(last) {
			continue
		}
		locs = append(locs, filepath.Join(entry, last))
	}
	return locs
}

// extractPackage extracts a package's files after it is imported:
// everything but compiled code for packages named by WithExtractPackages,
// and plain resources for other top-level packages.
func (r *Resolver) extractPackage(m *Module) error {
	_, all := r.extractPkgs[m.Name]
	if !all && pathutil.TopLevel(m.Name) != m.Name {
		return nil
	}
	filter := extractFilter(all)
	for _, dir := range m.Path {
		loc, rel, ok := r.locate(dir)
		if !ok {
			continue
		}
		if err := loc.extractDir(rel, filter); err != nil {
			return fmt.Errorf("extract package %s: %w", m.Name, err)
		}
	}
	return nil
}

// DistributionSources returns the metadata sources of every path entry, in
// namespace order.
func (r *Resolver) DistributionSources() []DistributionSource {
	var out []DistributionSource
	for _, entry := range r.Path() {
		if f := r.finderFor(entry); f != nil {
			out = append(out, f)
		}
	}
	return out
}

func (r *Resolver) log() *slog.Logger {
	if r.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return r.logger
}
