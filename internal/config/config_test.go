package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/assetimport"
)

const sample = `
cache_dir: cache
bootstrap_dir: /abs/bootstrap
roots:
  - id: stdlib
    path: stdlib.zip
    protected: true
  - id: requirements-common
    path: /opt/requirements-common.zip
    cache_id: requirements
bootstrap:
  - root: stdlib
    paths: [lib/libpython.so]
extract_packages: [certifi]
builtins: [sys, _io]
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "assetimport.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, sample)
	cfg, used, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, path, used)

	dir := filepath.Dir(path)
	assert.Equal(t, filepath.Join(dir, "cache"), cfg.CacheDir)
	assert.Equal(t, "/abs/bootstrap", cfg.BootstrapDir)
	assert.Equal(t, []assetimport.RootConfig{
		{ID: "stdlib", Path: filepath.Join(dir, "stdlib.zip"), Protected: true},
		{ID: "requirements-common", Path: "/opt/requirements-common.zip", CacheID: "requirements"},
	}, cfg.Roots)
	assert.Equal(t, []assetimport.BootstrapConfig{{Root: "stdlib", Paths: []string{"lib/libpython.so"}}}, cfg.Bootstrap)
	assert.Equal(t, []string{"certifi"}, cfg.ExtractPackages)
	assert.Equal(t, []string{"sys", "_io"}, cfg.Builtins)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("ASSETIMPORT_CACHE_DIR", "/env/cache")

	cfg, _, err := Load(writeConfig(t, sample))
	require.NoError(t, err)
	assert.Equal(t, "/env/cache", cfg.CacheDir)
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	_, _, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cfg  assetimport.Config
	}{
		{"no cache dir", assetimport.Config{}},
		{"root without id", assetimport.Config{CacheDir: "c", Roots: []assetimport.RootConfig{{Path: "a.zip"}}}},
		{"root without path", assetimport.Config{CacheDir: "c", Roots: []assetimport.RootConfig{{ID: "a"}}}},
		{"duplicate id", assetimport.Config{CacheDir: "c", Roots: []assetimport.RootConfig{{ID: "a", Path: "a"}, {ID: "a", Path: "b"}}}},
		{"unknown bootstrap root", assetimport.Config{CacheDir: "c", BootstrapDir: "b", Bootstrap: []assetimport.BootstrapConfig{{Root: "x"}}}},
		{"bootstrap without dir", assetimport.Config{
			CacheDir:  "c",
			Roots:     []assetimport.RootConfig{{ID: "a", Path: "a"}},
			Bootstrap: []assetimport.BootstrapConfig{{Root: "a"}},
		}},
		{"bootstrap dir is cache dir", assetimport.Config{CacheDir: "/d/cache", BootstrapDir: "/d/cache/"}},
		{"bootstrap dir contains cache dir", assetimport.Config{CacheDir: "/d/cache", BootstrapDir: "/d"}},
		{"bootstrap dir inside cache dir", assetimport.Config{CacheDir: "/d/cache", BootstrapDir: "/d/cache/boot"}},
		{"bootstrap dir contains snapshot dir", assetimport.Config{
			CacheDir:     "/d/cache",
			BootstrapDir: "/d/boot",
			SnapshotDir:  "/d/boot/snapshots",
		}},
	}
	for _, tt := range tests {
		assert.Error(t, Validate(tt.cfg), tt.name)
	}
	assert.NoError(t, Validate(assetimport.Config{CacheDir: "c"}))
	assert.NoError(t, Validate(assetimport.Config{
		CacheDir:     "/d/cache",
		BootstrapDir: "/d/cache-boot",
		SnapshotDir:  "/d/snapshots",
	}))
}
