package assetimport

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Config describes a runtime: where caches live, which archives are
// mounted, and which files are staged at startup.
type Config struct {
	// CacheDir is the extraction cache root. Required.
	CacheDir string `mapstructure:"cache_dir" yaml:"cache_dir"`

	// BootstrapDir receives the staged bootstrap files. Staging is skipped
	// when it is empty.
	BootstrapDir string `mapstructure:"bootstrap_dir" yaml:"bootstrap_dir,omitempty"`

	// SnapshotDir stores index snapshots so unchanged archives are not
	// re-parsed. Snapshots are disabled when it is empty.
	SnapshotDir string `mapstructure:"snapshot_dir" yaml:"snapshot_dir,omitempty"`

	// Roots are mounted in order; earlier roots win.
	Roots []RootConfig `mapstructure:"roots" yaml:"roots"`

	Bootstrap []BootstrapConfig `mapstructure:"bootstrap" yaml:"bootstrap,omitempty"`

	// ExtractPackages names top-level packages that are fully extracted
	// when imported.
	ExtractPackages []string `mapstructure:"extract_packages" yaml:"extract_packages,omitempty"`

	// Builtins names modules provided by the runtime itself.
	Builtins []string `mapstructure:"builtins" yaml:"builtins,omitempty"`

	// SystemLibraryDirs are searched for native libraries after the
	// archives.
	SystemLibraryDirs []string `mapstructure:"system_library_dirs" yaml:"system_library_dirs,omitempty"`
}

// RootConfig is one archive root.
type RootConfig struct {
	// ID names the root. It must be unique.
	ID string `mapstructure:"id" yaml:"id"`

	// Path is the archive file.
	Path string `mapstructure:"path" yaml:"path"`

	// CacheID is the cache directory the root extracts into. Roots sharing
	// a cache id form one path entry. Defaults to ID.
	CacheID string `mapstructure:"cache_id" yaml:"cache_id,omitempty"`

	// Protected marks core-distribution roots whose modules cannot be
	// renamed.
	Protected bool `mapstructure:"protected" yaml:"protected,omitempty"`
}

// BootstrapConfig lists entries of one root that must exist on disk
// before startup.
type BootstrapConfig struct {
	Root  string   `mapstructure:"root" yaml:"root"`
	Paths []string `mapstructure:"paths" yaml:"paths"`
}

// CheckDirs returns an error if the bootstrap directory overlaps the cache
// or snapshot directory. Staging deletes everything in the bootstrap
// directory that is not a bootstrap file.
func (c Config) CheckDirs() error {
	if c.BootstrapDir == "" {
		return nil
	}
	for _, d := range []struct{ key, dir string }{
		{"cache_dir", c.CacheDir},
		{"snapshot_dir", c.SnapshotDir},
	} {
		if d.dir != "" && overlaps(c.BootstrapDir, d.dir) {
			return fmt.Errorf("bootstrap_dir %s overlaps %s %s", c.BootstrapDir, d.key, d.dir)
		}
	}
	return nil
}

// overlaps reports whether a and b are the same directory or one contains
// the other.
func overlaps(a, b string) bool {
	a, b = filepath.Clean(a), filepath.Clean(b)
	return a == b || within(a, b) || within(b, a)
}

func within(dir, parent string) bool {
	rel, err := filepath.Rel(parent, dir)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
