package resolve

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/meigma/assetimport/archive"
	"github.com/meigma/assetimport/codecache"
	"github.com/meigma/assetimport/extract"
	"github.com/meigma/assetimport/internal/pathutil"
)

// loader loads one module file from a tree. It implements Loader and
// ResourceProvider.
type loader struct {
	r    *Resolver
	t    tree
	name string

	// rel is the code file: the module itself, or __init__ for packages.
	// Marker-only packages have their directory here.
	rel string

	// sourceRel is the source file, if the module ships one.
	sourceRel string

	kind      Kind
	isPkg     bool
	protected bool
}

var (
	_ Loader           = (*loader)(nil)
	_ ResourceProvider = (*loader)(nil)
)

// checkName rejects loading a protected module under another name. Only
// the last components are compared, since legacy lookups find modules by
// bare name.
func (l *loader) checkName(name string) error {
	_, want := pathutil.SplitModule(l.name)
	_, got := pathutil.SplitModule(name)
	if want == got || !l.protected {
		return nil
	}
	return &RenameError{Name: l.name, Alias: name}
}

// IsPackage reports whether the module is a package.
func (l *loader) IsPackage(name string) (bool, error) {
	if err := l.checkName(name); err != nil {
		return false, err
	}
	return l.isPkg, nil
}

// GetCode returns compiled code. Source is compiled through the code cache;
// shipped compiled files are used directly unless they were produced by
// another compiler and source is available.
func (l *loader) GetCode(name string) ([]byte, error) {
	if err := l.checkName(name); err != nil {
		return nil, err
	}
	switch l.kind {
	case SourceModule:
		return l.compileSource(l.rel)
	case CompiledModule:
		data, err := l.t.read(l.rel)
		if err != nil {
			return nil, err
		}
		art, err := l.r.compiled.LoadPrecompiled(data, treePath(l.t, l.rel))
		if err != nil {
			if l.sourceRel != "" && (errors.Is(err, codecache.ErrBadMagic) || errors.Is(err, codecache.ErrShortHeader)) {
				l.r.log().Debug("ignoring unusable compiled file", "module", name, "error", err)
				return l.compileSource(l.sourceRel)
			}
			return nil, err
		}
		return art.Code, nil
	default:
		return nil, nil //nolint:nilnil // native modules and marker-only packages have no code object
	}
}

func (l *loader) compileSource(rel string) ([]byte, error) {
	n, _ := l.t.stat(rel)
	art, err := l.r.compiled.GetOrCompile(codecache.Source{
		Path:    treePath(l.t, rel),
		ModTime: n.modTime,
		Size:    n.size,
		Read:    func() ([]byte, error) { return l.t.read(rel) },
	})
	if err != nil {
		return nil, err
	}
	return art.Code, nil
}

// GetSource returns the module's source text, or ok == false for modules
// shipped compiled-only.
func (l *loader) GetSource(name string) (string, bool, error) {
	if err := l.checkName(name); err != nil {
		return "", false, err
	}
	if l.sourceRel == "" {
		return "", false, nil
	}
	data, err := l.t.read(l.sourceRel)
	if err != nil {
		return "", false, err
	}
	return string(data), true, nil
}

// GetFilename returns the module's reported file.
func (l *loader) GetFilename(name string) (string, error) {
	if err := l.checkName(name); err != nil {
		return "", err
	}
	if l.sourceRel != "" {
		return treePath(l.t, l.sourceRel), nil
	}
	return treePath(l.t, l.rel), nil
}

// Exec attaches code to m. Native modules are materialized first, and
// packages trigger resource extraction.
func (l *loader) Exec(m *Module) error {
	if err := l.checkName(m.Name); err != nil {
		return err
	}
	if l.kind == NativeModule {
		path, err := l.t.realPath(l.rel)
		if err != nil {
			return err
		}
		if alias := abiAlias(l.rel); alias != "" {
			if err := l.t.alias(alias, l.rel); err != nil {
				l.r.log().Warn("failed to alias native module", "module", m.Name, "alias", alias, "error", err)
			}
		}
		m.File = path
		return nil
	}

	code, err := l.GetCode(m.Name)
	if err != nil {
		return err
	}
	m.Code = code
	if l.isPkg {
		return l.r.extractPackage(m)
	}
	return nil
}

// abiAlias returns "<dir>/<name>.so" for an ABI-tagged native file such as
// "<dir>/<name>.cpython-38.so", or "" if rel carries no tag.
func abiAlias(rel string) string {
	base := pathutil.Base(rel)
	name := nativeModuleName(base)
	if name == "" || base == name+archive.NativeSuffix {
		return ""
	}
	return pathutil.Join(pathutil.Dir(rel), name+archive.NativeSuffix)
}

// dir returns the tree directory holding the module.
func (l *loader) dir() string {
	if l.kind == PackageDirectory {
		return l.rel
	}
	return pathutil.Dir(l.rel)
}

// resourceRel maps a resource path to a tree path. Relative paths are
// resolved against the module's directory.
func (l *loader) resourceRel(op, p string) (string, error) {
	abs := p
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(treePath(l.t, l.dir()), filepath.FromSlash(p))
	}
	rel, err := filepath.Rel(l.t.root(), filepath.Clean(abs))
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", &fs.PathError{Op: op, Path: p, Err: fmt.Errorf("%w: outside %s", ErrInvalidPath, l.t.root())}
	}
	if rel == "." {
		return "", nil
	}
	return filepath.ToSlash(rel), nil
}

// GetData reads a resource without extracting it.
func (l *loader) GetData(p string) ([]byte, error) {
	rel, err := l.resourceRel("get_data", p)
	if err != nil {
		return nil, err
	}
	n, ok := l.t.stat(rel)
	if !ok {
		return nil, &fs.PathError{Op: "get_data", Path: p, Err: ErrNotFound}
	}
	if n.isDir {
		return nil, &fs.PathError{Op: "get_data", Path: p, Err: ErrInvalidPath}
	}
	return l.t.read(rel)
}

// ResourcePath returns a real path for a resource. Data files and native
// libraries are extracted; code files get their logical path.
func (l *loader) ResourcePath(p string) (string, error) {
	rel, err := l.resourceRel("resource_path", p)
	if err != nil {
		return "", err
	}
	n, ok := l.t.stat(rel)
	if !ok {
		return "", &fs.PathError{Op: "resource_path", Path: p, Err: ErrNotFound}
	}
	if n.isDir {
		return "", &fs.PathError{Op: "resource_path", Path: p, Err: ErrInvalidPath}
	}
	if !extract.IsExtractable(n.kind) {
		return treePath(l.t, rel), nil
	}
	return l.t.realPath(rel)
}

// ListResources returns the names in a resource directory.
func (l *loader) ListResources(dir string) ([]string, error) {
	rel, err := l.resourceRel("listdir", dir)
	if err != nil {
		return nil, err
	}
	if n, ok := l.t.stat(rel); !ok || !n.isDir {
		return nil, &fs.PathError{Op: "listdir", Path: dir, Err: ErrNotFound}
	}
	children, err := l.t.children(rel)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(children))
	for i, c := range children {
		names[i] = c.Name
	}
	return names, nil
}

// ResourceExists reports whether a resource file or directory exists.
func (l *loader) ResourceExists(p string) bool {
	rel, err := l.resourceRel("exists", p)
	if err != nil {
		return false
	}
	_, ok := l.t.stat(rel)
	return ok
}

// ResourceIsDir reports whether a resource path is a directory.
func (l *loader) ResourceIsDir(p string) bool {
	rel, err := l.resourceRel("isdir", p)
	if err != nil {
		return false
	}
	n, ok := l.t.stat(rel)
	return ok && n.isDir
}

// raw returns the bytes of the module's code file.
func (l *loader) raw() ([]byte, error) {
	return l.t.read(l.rel)
}

// extractFilter selects what a package import extracts. Unless all is set
// only plain resources qualify: native libraries are materialized when they
// are loaded.
func extractFilter(all bool) func(archive.Entry) bool {
	if all {
		return func(e archive.Entry) bool {
			return e.Kind != archive.KindCompiledArtifact
		}
	}
	return func(e archive.Entry) bool {
		return e.Kind == archive.KindPlainResource
	}
}
