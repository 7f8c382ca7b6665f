package assetimport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/meigma/assetimport/archive"
	"github.com/meigma/assetimport/codecache"
	"github.com/meigma/assetimport/extract"
	"github.com/meigma/assetimport/metadata"
	"github.com/meigma/assetimport/resolve"
	"github.com/meigma/assetimport/stage"
)

// Runtime is a configured module namespace over a set of archive roots.
type Runtime struct {
	logger           *slog.Logger
	exec             resolve.ExecFunc
	archiveOpts      []archive.Option
	stageConcurrency int

	cache    *extract.Cache
	compiled *codecache.Cache
	resolver *resolve.Resolver
	registry *resolve.Registry
	metadata *metadata.Provider
	stager   *stage.Stager

	indexes   map[string]*archive.Index
	sources   []*archive.FileSource
	mountErrs []error
}

// New builds a Runtime from cfg and mounts its roots in order. A root that
// cannot be opened or indexed is logged and recorded in MountErrors; the
// remaining roots are still mounted.
func New(cfg Config, compiler codecache.Compiler, opts ...Option) (*Runtime, error) {
	if cfg.CacheDir == "" {
		return nil, errors.New("assetimport: cache directory is required")
	}
	if compiler == nil {
		return nil, errors.New("assetimport: compiler is required")
	}
	if err := cfg.CheckDirs(); err != nil {
		return nil, fmt.Errorf("assetimport: %w", err)
	}
	rt := &Runtime{indexes: make(map[string]*archive.Index)}
	for _, opt := range opts {
		if err := opt(rt); err != nil {
			return nil, err
		}
	}

	cache, err := extract.New(cfg.CacheDir, extract.WithLogger(rt.log()))
	if err != nil {
		return nil, fmt.Errorf("assetimport: %w", err)
	}
	rt.cache = cache
	rt.compiled = codecache.New(compiler, codecache.WithLogger(rt.log()))
	rt.resolver = resolve.New(cache, rt.compiled,
		resolve.WithLogger(rt.log()),
		resolve.WithBuiltins(cfg.Builtins...),
		resolve.WithSystemLibraryDirs(cfg.SystemLibraryDirs...),
		resolve.WithExtractPackages(cfg.ExtractPackages...),
	)
	rt.registry = resolve.NewRegistry(rt.resolver,
		resolve.WithExec(rt.exec),
		resolve.WithRegistryLogger(rt.log()),
	)
	rt.metadata = metadata.New(rt.resolver, metadata.WithLogger(rt.log()))

	for _, rc := range cfg.Roots {
		if err := rt.mount(cfg, rc); err != nil {
			rt.log().Warn("skipping root", "root", rc.ID, "path", rc.Path, "error", err)
			rt.mountErrs = append(rt.mountErrs, &MountError{Root: rc.ID, Path: rc.Path, Err: err})
		}
	}

	if cfg.BootstrapDir != "" {
		if err := rt.configureBootstrap(cfg); err != nil {
			rt.Close() //nolint:errcheck // best-effort cleanup
			return nil, err
		}
	}
	return rt, nil
}

func (rt *Runtime) mount(cfg Config, rc RootConfig) error {
	if rc.ID == "" {
		return errors.New("root id is required")
	}
	if _, ok := rt.indexes[rc.ID]; ok {
		return fmt.Errorf("duplicate root id %q", rc.ID)
	}
	src, err := archive.OpenFile(rc.Path)
	if err != nil {
		return err
	}

	opts := append(slices.Clone(rt.archiveOpts), archive.WithLogger(rt.log()))
	var idx *archive.Index
	if cfg.SnapshotDir != "" {
		idx, err = archive.OpenCached(rc.ID, src, cfg.SnapshotDir, opts...)
	} else {
		idx, err = archive.Open(rc.ID, src, opts...)
	}
	if err != nil {
		src.Close() //nolint:errcheck // best-effort cleanup
		return err
	}

	var mountOpts []resolve.MountOption
	if rc.CacheID != "" {
		mountOpts = append(mountOpts, resolve.WithCacheID(rc.CacheID))
	}
	if rc.Protected {
		mountOpts = append(mountOpts, resolve.Protected())
	}
	// The root is mounted even if extracting its data fails, so it stays
	// in the namespace; the failure is still reported.
	rt.sources = append(rt.sources, src)
	rt.indexes[rc.ID] = idx
	return rt.resolver.Mount(idx, mountOpts...)
}

func (rt *Runtime) configureBootstrap(cfg Config) error {
	bcache, err := extract.New(cfg.BootstrapDir, extract.WithLogger(rt.log()))
	if err != nil {
		return fmt.Errorf("assetimport: %w", err)
	}
	stageOpts := []stage.Option{stage.WithLogger(rt.log())}
	if rt.stageConcurrency > 0 {
		stageOpts = append(stageOpts, stage.WithConcurrency(rt.stageConcurrency))
	}
	rt.stager = stage.New(bcache, stageOpts...)
	for _, b := range cfg.Bootstrap {
		idx, ok := rt.indexes[b.Root]
		if !ok {
			return fmt.Errorf("assetimport: bootstrap root %q is not mounted", b.Root)
		}
		rt.stager.Require(idx, b.Paths...)
	}
	return nil
}

// Start stages the bootstrap files. It is a no-op without a bootstrap
// directory.
func (rt *Runtime) Start(ctx context.Context) (stage.Report, error) {
	if rt.stager == nil {
		return stage.Report{}, nil
	}
	report, err := rt.stager.Stage(ctx)
	if err != nil {
		return report, fmt.Errorf("assetimport: stage bootstrap: %w", err)
	}
	rt.log().Info("staged bootstrap files",
		"written", len(report.Written), "unchanged", len(report.Unchanged), "removed", len(report.Removed))
	return report, nil
}

// MountErrors returns a *MountError for each root that was skipped.
func (rt *Runtime) MountErrors() []error {
	return slices.Clone(rt.mountErrs)
}

// Index returns the index of a mounted root.
func (rt *Runtime) Index(id string) (*archive.Index, bool) {
	idx, ok := rt.indexes[id]
	return idx, ok
}

// Cache returns the extraction cache.
func (rt *Runtime) Cache() *extract.Cache {
	return rt.cache
}

// Resolver returns the module namespace.
func (rt *Runtime) Resolver() *resolve.Resolver {
	return rt.resolver
}

// Registry returns the loaded-module registry.
func (rt *Runtime) Registry() *resolve.Registry {
	return rt.registry
}

// Metadata returns the distribution metadata provider.
func (rt *Runtime) Metadata() *metadata.Provider {
	return rt.metadata
}

// Import loads a module and its parents.
func (rt *Runtime) Import(name string) (*resolve.Module, error) {
	return rt.registry.Import(name)
}

// Source returns the source text of a module, or ErrSourceUnavailable if
// it ships compiled-only.
func (rt *Runtime) Source(name string) (string, error) {
	spec, err := rt.resolver.Resolve(name)
	if err != nil {
		return "", err
	}
	src, ok, err := spec.Loader.GetSource(name)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrSourceUnavailable, name)
	}
	return src, nil
}

// GetData reads resource name relative to package pkg without extracting
// it.
func (rt *Runtime) GetData(pkg, name string) ([]byte, error) {
	rp, err := rt.resources(pkg)
	if err != nil {
		return nil, err
	}
	return rp.GetData(name)
}

// ResourcePath returns a filesystem path for resource name relative to
// package pkg, extracting data files as needed.
func (rt *Runtime) ResourcePath(pkg, name string) (string, error) {
	rp, err := rt.resources(pkg)
	if err != nil {
		return "", err
	}
	return rp.ResourcePath(name)
}

func (rt *Runtime) resources(pkg string) (resolve.ResourceProvider, error) {
	spec, err := rt.resolver.Resolve(pkg)
	if err != nil {
		return nil, err
	}
	rp, ok := spec.Loader.(resolve.ResourceProvider)
	if !ok {
		return nil, fmt.Errorf("%w: %s has no resources", ErrNotFound, pkg)
	}
	return rp, nil
}

// Close releases the archive files. Indexes must not be read afterwards.
func (rt *Runtime) Close() error {
	var errs []error
	for _, src := range rt.sources {
		errs = append(errs, src.Close())
	}
	rt.sources = nil
	return errors.Join(errs...)
}

func (rt *Runtime) log() *slog.Logger {
	if rt.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return rt.logger
}
