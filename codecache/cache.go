package codecache

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/meigma/assetimport/internal/write"
)

// Compiler turns source text into a code payload.
type Compiler interface {
	// Magic identifies the compiler version; cache files with another magic
	// are stale.
	Magic() [4]byte

	// Tag names the interpreter in cache file names (e.g. "cpython-38").
	Tag() string

	// Compile compiles source. filename is used in error messages.
	Compile(source []byte, filename string) ([]byte, error)
}

// Source describes the source text a cache file is derived from.
type Source struct {
	// Path is the logical source path. Cache file paths derive from it.
	Path string

	ModTime time.Time
	Size    uint64

	// Read returns the source text. It is only called on a cache miss.
	Read func() ([]byte, error)
}

// Artifact is compiled code ready for execution.
type Artifact struct {
	Header Header

	// Code is the payload following the header.
	Code []byte

	// Path is the cache file path, or the archive path of a precompiled
	// artifact.
	Path string

	// Cached reports whether Code came from an existing file.
	Cached bool
}

// Cache compiles source on demand and keeps the result on disk.
type Cache struct {
	compiler Compiler
	location LocationPolicy
	perm     os.FileMode
	logger   *slog.Logger
	group    singleflight.Group
}

// Option configures a Cache.
type Option func(*Cache)

// WithLocation overrides where cache files are written. The default is
// PycacheLocation with the compiler's tag.
func WithLocation(p LocationPolicy) Option {
	return func(c *Cache) {
		c.location = p
	}
}

// WithPerm sets the permission bits of written cache files.
func WithPerm(mode os.FileMode) Option {
	return func(c *Cache) {
		c.perm = mode
	}
}

// WithLogger sets the logger for cache hits, misses and write failures.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Cache) {
		c.logger = logger
	}
}

// New creates a Cache for compiler.
func New(compiler Compiler, opts ...Option) *Cache {
	c := &Cache{
		compiler: compiler,
		perm:     0o644,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.location == nil {
		c.location = PycacheLocation{Tag: compiler.Tag()}
	}
	return c
}

// Compiler returns the compiler used on cache misses.
func (c *Cache) Compiler() Compiler {
	return c.compiler
}

// CachePath returns the cache file path for a source path.
func (c *Cache) CachePath(sourcePath string) string {
	return c.location.CachePath(sourcePath)
}

// GetOrCompile returns compiled code for src.
//
// If the cache file's header matches src, its payload is returned without
// compiling or writing. Otherwise src is compiled and the result written
// atomically. A failed write is logged and the compiled code is still
// returned. Compile failures are returned as *CompileError.
func (c *Cache) GetOrCompile(src Source) (Artifact, error) {
	path := c.location.CachePath(src.Path)
	want := HeaderFor(c.compiler, src)

	if art, ok := c.lookup(path, want); ok {
		c.log().Debug("code cache hit", "source", src.Path, "path", path)
		return art, nil
	}

	v, err, _ := c.group.Do(path, func() (any, error) {
		if art, ok := c.lookup(path, want); ok {
			return art, nil
		}
		return c.compile(src, path, want)
	})
	if err != nil {
		return Artifact{}, err
	}
	art, ok := v.(Artifact)
	if !ok {
		return Artifact{}, fmt.Errorf("codecache: unexpected result type %T", v)
	}
	return art, nil
}

func (c *Cache) lookup(path string, want Header) (Artifact, bool) {
	data, err := os.ReadFile(path) //nolint:gosec // path is derived from the source path
	if err != nil {
		return Artifact{}, false
	}
	h, err := ParseHeader(data)
	if err != nil || !h.Validates(want) {
		return Artifact{}, false
	}
	return Artifact{Header: h, Code: data[HeaderSize:], Path: path, Cached: true}, true
}

func (c *Cache) compile(src Source, path string, h Header) (Artifact, error) {
	c.log().Debug("code cache miss", "source", src.Path, "path", path)

	source, err := src.Read()
	if err != nil {
		return Artifact{}, fmt.Errorf("read source %s: %w", src.Path, err)
	}
	code, err := c.compiler.Compile(source, src.Path)
	if err != nil {
		return Artifact{}, newCompileError(src.Path, err)
	}

	data := h.appendTo(make([]byte, 0, HeaderSize+len(code)))
	data = append(data, code...)
	if err := write.File(path, data, write.WithPerm(c.perm)); err != nil {
		c.log().Warn("failed to write code cache", "path", path, "error", err)
	}
	return Artifact{Header: h, Code: code, Path: path}, nil
}

// LoadPrecompiled returns the code in a compiled artifact shipped without
// source. Only the magic number is checked.
func (c *Cache) LoadPrecompiled(data []byte, path string) (Artifact, error) {
	h, err := ParseHeader(data)
	if err != nil {
		return Artifact{}, fmt.Errorf("load %s: %w", path, err)
	}
	if magic := c.compiler.Magic(); !bytes.Equal(h.Magic[:], magic[:]) {
		return Artifact{}, fmt.Errorf("load %s: %w", path, ErrBadMagic)
	}
	return Artifact{Header: h, Code: data[HeaderSize:], Path: path}, nil
}

func (c *Cache) log() *slog.Logger {
	if c.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return c.logger
}
