package assetimport

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/assetimport/archive"
	"github.com/meigma/assetimport/internal/testutil"
	"github.com/meigma/assetimport/resolve"
)

type fixture struct {
	dir      string
	cfg      Config
	compiler *testutil.FakeCompiler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	stdlib := testutil.WriteZip(t, dir, "stdlib.zip",
		testutil.File("json/__init__.py", "json"),
		testutil.File("json/decoder.pyc", "\x55\x0d\x0d\x0a"+"\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00"+"decoder"),
	)
	app := testutil.WriteZip(t, dir, "app.zip",
		testutil.File("app/__init__.py", "app"),
		testutil.File("app/main.py", "main"),
		testutil.File("app/templates/index.html", "<html>"),
		testutil.File("app-1.0.dist-info/METADATA", "Name: app\nVersion: 1.0\n"),
	)
	native := testutil.WriteZip(t, dir, "bootstrap.zip",
		testutil.File("lib/libpython.so", "ELF"),
		testutil.File("lib/unused.so", "ELF2"),
	)
	return &fixture{
		dir:      dir,
		compiler: &testutil.FakeCompiler{},
		cfg: Config{
			CacheDir:     filepath.Join(dir, "cache"),
			BootstrapDir: filepath.Join(dir, "bootstrap"),
			SnapshotDir:  filepath.Join(dir, "snapshots"),
			Roots: []RootConfig{
				{ID: "stdlib", Path: stdlib, Protected: true},
				{ID: "app", Path: app},
				{ID: "bootstrap-native", Path: native},
			},
			Bootstrap: []BootstrapConfig{{Root: "bootstrap-native", Paths: []string{"lib/libpython.so"}}},
			Builtins:  []string{"sys"},
		},
	}
}

func TestRuntime(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	rt, err := New(f.cfg, f.compiler)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rt.Close() })
	assert.Empty(t, rt.MountErrors())

	report, err := rt.Start(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(f.cfg.BootstrapDir, "bootstrap-native", "lib", "libpython.so")}, report.Written)

	m, err := rt.Import("app.main")
	require.NoError(t, err)
	assert.Equal(t, "compiled:main", string(m.Code))
	assert.Equal(t, filepath.Join(rt.Cache().RootDir("app"), "app", "main.py"), m.File)

	dec, err := rt.Import("json.decoder")
	require.NoError(t, err)
	assert.Equal(t, "decoder", string(dec.Code))
	_, err = rt.Source("json.decoder")
	assert.ErrorIs(t, err, ErrSourceUnavailable)
	src, err := rt.Source("app.main")
	require.NoError(t, err)
	assert.Equal(t, "main", src)

	data, err := rt.GetData("app", "templates/index.html")
	require.NoError(t, err)
	assert.Equal(t, "<html>", string(data))
	p, err := rt.ResourcePath("app", "templates/index.html")
	require.NoError(t, err)
	assert.FileExists(t, p)

	d, err := rt.Metadata().Get("app")
	require.NoError(t, err)
	assert.Equal(t, "1.0", d.Version)

	h, err := rt.Registry().FindModule("json", nil)
	require.NoError(t, err)
	_, err = rt.Registry().LoadModule("json2", h)
	assert.ErrorIs(t, err, ErrRenameUnsupported)

	_, err = rt.Import("nothing")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = os.Stat(archive.SnapshotPath(f.cfg.SnapshotDir, "app"))
	assert.NoError(t, err, "snapshot written")
}

func TestRuntimeSecondRunUsesSnapshots(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	rt, err := New(f.cfg, f.compiler)
	require.NoError(t, err)
	_, err = rt.Start(context.Background())
	require.NoError(t, err)
	require.NoError(t, rt.Close())

	rt, err = New(f.cfg, f.compiler)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rt.Close() })
	report, err := rt.Start(context.Background())
	require.NoError(t, err)
	assert.Empty(t, report.Written)
	assert.Len(t, report.Unchanged, 1)

	idx, ok := rt.Index("app")
	require.True(t, ok)
	assert.Equal(t, 4, idx.Len())
}

func TestRuntimeSkipsBrokenRoot(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	corrupt := filepath.Join(f.dir, "corrupt.zip")
	require.NoError(t, os.WriteFile(corrupt, []byte("not a zip"), 0o644))
	f.cfg.Roots = append([]RootConfig{
		{ID: "corrupt", Path: corrupt},
		{ID: "missing", Path: filepath.Join(f.dir, "missing.zip")},
	}, f.cfg.Roots...)
	f.cfg.SnapshotDir = ""

	rt, err := New(f.cfg, f.compiler)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rt.Close() })

	errs := rt.MountErrors()
	require.Len(t, errs, 2)
	assert.ErrorIs(t, errs[0], ErrCorruptArchive)
	var me *MountError
	require.True(t, errors.As(errs[1], &me))
	assert.Equal(t, "missing", me.Root)

	_, err = rt.Import("app")
	assert.NoError(t, err, "other roots still mounted")
}

func TestRuntimeOptions(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	var ran []string
	rt, err := New(f.cfg, f.compiler,
		WithExec(func(m *resolve.Module) error {
			ran = append(ran, m.Name)
			return nil
		}),
		WithStageConcurrency(2),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rt.Close() })

	_, err = rt.Import("app.main")
	require.NoError(t, err)
	assert.Equal(t, []string{"app", "app.main"}, ran)

	_, err = New(f.cfg, f.compiler, WithStageConcurrency(0))
	assert.Error(t, err)
}

func TestRuntimeConfigErrors(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	_, err := New(Config{}, f.compiler)
	assert.Error(t, err)
	_, err = New(f.cfg, nil)
	assert.Error(t, err)

	overlapping := f.cfg
	overlapping.BootstrapDir = filepath.Join(f.cfg.CacheDir, "bootstrap")
	_, err = New(overlapping, f.compiler)
	assert.ErrorContains(t, err, "overlaps cache_dir")

	f.cfg.Bootstrap = []BootstrapConfig{{Root: "nope", Paths: []string{"x"}}}
	_, err = New(f.cfg, f.compiler)
	assert.Error(t, err)
}
