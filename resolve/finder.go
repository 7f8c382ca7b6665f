package resolve

import (
	"slices"
	"strings"

	"github.com/meigma/assetimport/archive"
	"github.com/meigma/assetimport/internal/pathutil"
)

const initStem = "__init__"

// finder implements PathEntryFinder and DistributionSource for one path
// entry: a directory prefix within a tree.
type finder struct {
	r      *Resolver
	t      tree
	prefix string
	entry  string
}

var (
	_ PathEntryFinder    = (*finder)(nil)
	_ DistributionSource = (*finder)(nil)
)

// FindSpec looks for a package directory, then a native module, then a
// compiled or source module named after fullname's last component. A
// directory is a package if it holds an __init__ module or has a marker
// entry; a marker-only package has no code.
func (f *finder) FindSpec(fullname string) (*Spec, error) {
	_, name := pathutil.SplitModule(fullname)
	if name == "" || strings.ContainsAny(name, "/\\") {
		return nil, notFound(fullname)
	}
	dir := pathutil.Join(f.prefix, name)

	if n, ok := f.t.stat(dir); ok && n.isDir {
		if rel, kind, ok := f.moduleFile(pathutil.Join(dir, initStem)); ok {
			return f.newSpec(fullname, rel, kind, true), nil
		}
		if f.t.marker(dir) {
			return f.newSpec(fullname, dir, PackageDirectory, true), nil
		}
	}
	if rel, ok := f.nativeFile(name); ok {
		return f.newSpec(fullname, rel, NativeModule, false), nil
	}
	if rel, kind, ok := f.moduleFile(dir); ok {
		return f.newSpec(fullname, rel, kind, false), nil
	}
	return nil, notFound(fullname)
}

// moduleFile returns the code file for stem. In archives a compiled file
// wins over its source.
func (f *finder) moduleFile(stem string) (string, Kind, bool) {
	order := []Kind{SourceModule, CompiledModule}
	if f.t.prefersCompiled() {
		order = []Kind{CompiledModule, SourceModule}
	}
	for _, kind := range order {
		rel := stem + suffixFor(kind)
		if n, ok := f.t.stat(rel); ok && !n.isDir {
			return rel, kind, true
		}
	}
	return "", 0, false
}

func suffixFor(kind Kind) string {
	if kind == CompiledModule {
		return archive.CompiledSuffix
	}
	return archive.SourceSuffix
}

// nativeFile finds "<name>.so" or an ABI-tagged "<name>.<tag>.so".
func (f *finder) nativeFile(name string) (string, bool) {
	children, err := f.t.children(f.prefix)
	if err != nil {
		return "", false
	}
	for _, c := range children {
		if !c.IsDir && nativeModuleName(c.Name) == name {
			return pathutil.Join(f.prefix, c.Name), true
		}
	}
	return "", false
}

// nativeModuleName returns the module name of a native module file, or ""
// if file is not one.
func nativeModuleName(file string) string {
	if !strings.HasSuffix(file, archive.NativeSuffix) {
		return ""
	}
	stem, _, _ := strings.Cut(file, ".")
	return stem
}

func (f *finder) newSpec(fullname, rel string, kind Kind, isPkg bool) *Spec {
	l := &loader{
		r:         f.r,
		t:         f.t,
		name:      fullname,
		rel:       rel,
		kind:      kind,
		isPkg:     isPkg,
		protected: f.t.protected(rel),
	}
	if kind == SourceModule {
		l.sourceRel = rel
	} else if kind == CompiledModule {
		src := strings.TrimSuffix(rel, archive.CompiledSuffix) + archive.SourceSuffix
		if n, ok := f.t.stat(src); ok && !n.isDir {
			l.sourceRel = src
		}
	}

	spec := &Spec{
		Name:      fullname,
		Origin:    treePath(f.t, rel),
		Kind:      kind,
		IsPackage: isPkg,
		Loader:    l,
		Finder:    f,
	}
	spec.File = spec.Origin
	if l.sourceRel != "" {
		spec.File = treePath(f.t, l.sourceRel)
	}
	if isPkg {
		spec.Kind = PackageDirectory
	}
	return spec
}

// hasDir reports whether the entry has a directory called name.
func (f *finder) hasDir(name string) bool {
	n, ok := f.t.stat(pathutil.Join(f.prefix, name))
	return ok && n.isDir
}

// IterModules lists importable modules and packages directly in the entry.
func (f *finder) IterModules(prefix string) []ModuleInfo {
	children, err := f.t.children(f.prefix)
	if err != nil {
		f.r.log().Debug("cannot list path entry", "entry", f.entry, "error", err)
		return nil
	}
	seen := make(map[string]bool)
	for _, c := range children {
		var name string
		isPkg := false
		switch {
		case c.IsDir:
			dir := pathutil.Join(f.prefix, c.Name)
			if _, _, ok := f.moduleFile(pathutil.Join(dir, initStem)); !ok && !f.t.marker(dir) {
				continue
			}
			name, isPkg = c.Name, true
		case strings.HasSuffix(c.Name, archive.SourceSuffix):
			name = strings.TrimSuffix(c.Name, archive.SourceSuffix)
		case strings.HasSuffix(c.Name, archive.CompiledSuffix):
			name = strings.TrimSuffix(c.Name, archive.CompiledSuffix)
		default:
			name = nativeModuleName(c.Name)
		}
		if name == "" || name == initStem || strings.Contains(name, ".") {
			continue
		}
		seen[name] = seen[name] || isPkg
	}

	out := make([]ModuleInfo, 0, len(seen))
	for name, isPkg := range seen {
		out = append(out, ModuleInfo{Name: prefix + name, IsPackage: isPkg})
	}
	slices.SortFunc(out, func(a, b ModuleInfo) int {
		return strings.Compare(a.Name, b.Name)
	})
	return out
}

// Distributions lists metadata directories directly in the entry.
func (f *finder) Distributions() ([]DistributionRef, error) {
	children, err := f.t.children(f.prefix)
	if err != nil {
		return nil, err
	}
	var refs []DistributionRef
	for _, c := range children {
		if !c.IsDir || !isMetadataDir(c.Name) {
			continue
		}
		dir := pathutil.Join(f.prefix, c.Name)
		refs = append(refs, DistributionRef{
			Dir:      c.Name,
			Location: f.entry,
			Read: func(name string) ([]byte, error) {
				return f.t.read(pathutil.Join(dir, name))
			},
		})
	}
	return refs, nil
}

func isMetadataDir(name string) bool {
	return strings.HasSuffix(name, ".dist-info") || strings.HasSuffix(name, ".egg-info")
}
