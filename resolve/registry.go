package resolve

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/meigma/assetimport/internal/pathutil"
)

// ExecFunc runs a prepared module in the host runtime.
type ExecFunc func(m *Module) error

// Registry maps names to loaded modules.
type Registry struct {
	r      *Resolver
	exec   ExecFunc
	logger *slog.Logger

	mu      sync.Mutex
	modules map[string]*Module
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithExec sets the function that runs modules after their loader has
// prepared them.
func WithExec(fn ExecFunc) RegistryOption {
	return func(g *Registry) {
		g.exec = fn
	}
}

// WithRegistryLogger sets the logger for import activity.
func WithRegistryLogger(logger *slog.Logger) RegistryOption {
	return func(g *Registry) {
		g.logger = logger
	}
}

// NewRegistry creates an empty registry importing through r.
func NewRegistry(r *Resolver, opts ...RegistryOption) *Registry {
	g := &Registry{
		r:       r,
		modules: make(map[string]*Module),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Get returns the loaded module name.
func (g *Registry) Get(name string) (*Module, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	m, ok := g.modules[name]
	return m, ok
}

// Names returns the sorted names of loaded modules.
func (g *Registry) Names() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	names := make([]string, 0, len(g.modules))
	for n := range g.modules {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// Import loads name and its parent packages, returning the loaded module.
// A submodule is searched only in its parent's path and becomes an
// attribute of the parent.
func (g *Registry) Import(name string) (*Module, error) {
	if !validName(name) {
		return nil, notFound(name)
	}
	if m, ok := g.Get(name); ok {
		return m, nil
	}

	parentName, last := pathutil.SplitModule(name)
	var parent *Module
	var path []string
	if parentName != "" {
		var err error
		if parent, err = g.Import(parentName); err != nil {
			return nil, err
		}
		if parent.Path == nil {
			return nil, fmt.Errorf("%w: no module named %q; %q is not a package", ErrNotFound, name, parentName)
		}
		path = parent.Path
	}

	spec, err := g.r.FindSpec(name, path)
	if err != nil {
		return nil, err
	}
	m := newModule(name, spec)

	// Registered before execution so that circular imports see it.
	g.mu.Lock()
	if existing, ok := g.modules[name]; ok {
		g.mu.Unlock()
		return existing, nil
	}
	g.modules[name] = m
	g.mu.Unlock()

	if err := g.load(m); err != nil {
		g.mu.Lock()
		delete(g.modules, name)
		g.mu.Unlock()
		return nil, err
	}
	if parent != nil {
		parent.SetAttr(last, m)
	}
	g.log().Debug("imported module", "module", name, "file", m.File)
	return m, nil
}

func (g *Registry) load(m *Module) error {
	if err := m.Loader.Exec(m); err != nil {
		return err
	}
	if g.exec != nil {
		return g.exec(m)
	}
	return nil
}

// Reload finds m's spec again and re-executes it in the same module object.
func (g *Registry) Reload(m *Module) (*Module, error) {
	var path []string
	if parentName, _ := pathutil.SplitModule(m.Name); parentName != "" {
		parent, ok := g.Get(parentName)
		if !ok {
			return nil, fmt.Errorf("%w: parent %q of %q is not loaded", ErrNotFound, parentName, m.Name)
		}
		path = parent.Path
	}
	spec, err := g.r.FindSpec(m.Name, path)
	if err != nil {
		return nil, err
	}

	fresh := newModule(m.Name, spec)
	m.Spec, m.Loader, m.File = fresh.Spec, fresh.Loader, fresh.File
	m.Package, m.Path = fresh.Package, fresh.Path
	if err := g.load(m); err != nil {
		return nil, err
	}
	return m, nil
}

// Reset forgets name and all of its submodules, so the next Import loads
// them afresh. It returns the removed names.
func (g *Registry) Reset(name string) []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	var removed []string
	for n := range g.modules {
		if n == name || strings.HasPrefix(n, name+".") {
			delete(g.modules, n)
			removed = append(removed, n)
		}
	}
	slices.Sort(removed)
	return removed
}

// rawReader is implemented by loaders whose module is a single file.
type rawReader interface {
	raw() ([]byte, error)
}

// FindModule looks up a bare module name in path, or in the namespace and
// builtins when path is nil. It is the first half of the legacy load
// protocol.
func (g *Registry) FindModule(name string, path []string) (*Handle, error) {
	if strings.Contains(name, ".") {
		return nil, fmt.Errorf("%w: %q is not a bare module name", ErrNotFound, name)
	}
	spec, err := g.r.FindSpec(name, path)
	if err != nil {
		return nil, err
	}

	h := &Handle{Kind: spec.Kind, spec: spec}
	switch spec.Kind {
	case BuiltinModule:
		return h, nil
	case PackageDirectory:
		h.Pathname = spec.Origin
		if strings.HasPrefix(filepath.Base(spec.Origin), initStem+".") {
			h.Pathname = filepath.Dir(spec.Origin)
		}
		return h, nil
	case SourceModule:
		h.Pathname, h.Suffix, h.Mode = spec.Origin, filepath.Ext(spec.Origin), "r"
	case CompiledModule:
		h.Pathname, h.Suffix, h.Mode = spec.Origin, filepath.Ext(spec.Origin), "rb"
	case NativeModule:
		base := filepath.Base(spec.Origin)
		h.Pathname, h.Suffix, h.Mode = spec.Origin, base[strings.Index(base, "."):], "rb"
	}

	rr, ok := spec.Loader.(rawReader)
	if !ok {
		return h, nil
	}
	data, err := rr.raw()
	if err != nil {
		return nil, err
	}
	h.Reader = bytes.NewReader(data)
	return h, nil
}

// LoadModule loads a module found by FindModule under name, which may
// differ from the name it was found under. Protected modules and builtins
// reject a different name with *RenameError. A renamed module is
// registered under its new name only and is not attached to any parent.
func (g *Registry) LoadModule(name string, h *Handle) (*Module, error) {
	if h == nil || h.spec == nil {
		return nil, errors.New("resolve: invalid handle")
	}
	spec := *h.spec
	spec.Name = name
	m := newModule(name, &spec)
	if err := g.load(m); err != nil {
		return nil, err
	}

	g.mu.Lock()
	g.modules[name] = m
	g.mu.Unlock()

	_, found := pathutil.SplitModule(h.spec.Name)
	parentName, last := pathutil.SplitModule(name)
	if last == found && parentName != "" {
		if parent, ok := g.Get(parentName); ok {
			parent.SetAttr(last, m)
		}
	}
	g.log().Debug("loaded module", "module", name, "found_as", h.spec.Name)
	return m, nil
}

func (g *Registry) log() *slog.Logger {
	if g.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return g.logger
}
