package resolve

import (
	"io"
	"slices"
	"sync"

	"github.com/meigma/assetimport/internal/pathutil"
)

// Kind identifies how a module is loaded.
type Kind uint8

const (
	// SourceModule is compiled from source text on load.
	SourceModule Kind = iota + 1
	// CompiledModule is loaded from precompiled code.
	CompiledModule
	// NativeModule is a shared library loaded from a real file.
	NativeModule
	// PackageDirectory is a package; its code is its __init__ module, if
	// it has one.
	PackageDirectory
	// BuiltinModule is provided by the runtime itself.
	BuiltinModule
)

// String returns the human-readable name of the kind.
func (k Kind) String() string {
	switch k {
	case SourceModule:
		return "source"
	case CompiledModule:
		return "compiled"
	case NativeModule:
		return "native"
	case PackageDirectory:
		return "package"
	case BuiltinModule:
		return "builtin"
	default:
		return "unknown"
	}
}

// PathEntryFinder locates modules within one path entry.
type PathEntryFinder interface {
	// FindSpec returns the spec for fullname, looking only at its last
	// component. It returns an error wrapping ErrNotFound when absent.
	FindSpec(fullname string) (*Spec, error)

	// IterModules lists the modules directly inside the entry, each name
	// prefixed with prefix.
	IterModules(prefix string) []ModuleInfo
}

// Loader supplies and executes the code of one module.
type Loader interface {
	IsPackage(name string) (bool, error)

	// GetCode returns the compiled code, or nil for modules without code
	// objects such as native modules.
	GetCode(name string) ([]byte, error)

	// GetSource returns the source text. ok is false when the module ships
	// without source.
	GetSource(name string) (source string, ok bool, err error)

	GetFilename(name string) (string, error)

	// Exec prepares m for execution: it attaches code, materializes files
	// that must exist on disk and triggers resource extraction.
	Exec(m *Module) error
}

// ResourceProvider reads data files. Paths are absolute, or relative to
// the directory of the module the provider was found for.
type ResourceProvider interface {
	// GetData reads a file without extracting it.
	GetData(path string) ([]byte, error)

	// ResourcePath returns a real filesystem path for a file, extracting it
	// if needed.
	ResourcePath(path string) (string, error)

	ListResources(dir string) ([]string, error)
	ResourceExists(path string) bool
	ResourceIsDir(path string) bool
}

// DistributionSource enumerates installed distribution metadata directories.
type DistributionSource interface {
	Distributions() ([]DistributionRef, error)
}

// DistributionRef points at one *.dist-info or *.egg-info directory.
type DistributionRef struct {
	// Dir is the metadata directory name, e.g. "six-1.16.0.dist-info".
	Dir string

	// Location is the path entry the directory was found in.
	Location string

	// Read returns the content of a file inside the directory.
	Read func(name string) ([]byte, error)
}

// ModuleInfo describes a module found by IterModules.
type ModuleInfo struct {
	Name      string
	IsPackage bool
}

// Spec describes a found module.
type Spec struct {
	Name string

	// Origin is the file the module's code is loaded from, as a logical path
	// in the namespace. Marker-only packages report their directory and
	// builtins report "built-in".
	Origin string

	// File is the module's reported file: the source path when source is
	// available, else Origin.
	File string

	Kind      Kind
	IsPackage bool

	// SearchLocations is the package's __path__: one location per path entry
	// that has a directory of the package's name.
	SearchLocations []string

	Loader Loader
	Finder PathEntryFinder
}

// Module is a loaded module.
type Module struct {
	Name    string
	File    string
	Package string
	Path    []string
	Spec    *Spec
	Loader  Loader
	Code    []byte

	mu    sync.Mutex
	attrs map[string]any
}

func newModule(name string, spec *Spec) *Module {
	m := &Module{
		Name:   name,
		File:   spec.File,
		Spec:   spec,
		Loader: spec.Loader,
		attrs:  make(map[string]any),
	}
	if spec.IsPackage {
		m.Package = name
		m.Path = slices.Clone(spec.SearchLocations)
	} else {
		m.Package, _ = pathutil.SplitModule(name)
	}
	return m
}

// Attr returns the attribute key.
func (m *Module) Attr(key string) (any, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.attrs[key]
	return v, ok
}

// SetAttr sets the attribute key.
func (m *Module) SetAttr(key string, v any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attrs[key] = v
}

// HasAttr reports whether the attribute key is set.
func (m *Module) HasAttr(key string) bool {
	_, ok := m.Attr(key)
	return ok
}

// DelAttr removes the attribute key.
func (m *Module) DelAttr(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.attrs, key)
}

// Attrs returns the sorted attribute names.
func (m *Module) Attrs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.attrs))
	for k := range m.attrs {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Handle is the result of the legacy FindModule call: a found module
// tagged with its kind, ready to pass to LoadModule.
type Handle struct {
	Kind Kind

	// Pathname is the module file, or the package directory. Empty for
	// builtins.
	Pathname string

	// Suffix is the file suffix that matched, e.g. ".py" or
	// ".cpython-38.so". Empty for packages and builtins.
	Suffix string

	// Mode is "r" for source, "rb" for compiled and native modules, and
	// empty otherwise.
	Mode string

	// Reader streams the module file's bytes. It is nil for packages and
	// builtins, which have no file to read.
	Reader io.Reader

	spec *Spec
}

// Name returns the name the module was found under.
func (h *Handle) Name() string {
	if h.spec == nil {
		return ""
	}
	return h.spec.Name
}
