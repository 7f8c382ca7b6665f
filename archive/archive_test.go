package archive

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/assetimport/internal/testutil"
)

func fixture(t *testing.T) []byte {
	t.Helper()
	return testutil.BuildZip(t,
		testutil.Dir("pkg/"),
		testutil.File("pkg/__init__.py", "x = 1\n"),
		testutil.File("pkg/mod.py", "y = 2\n"),
		testutil.File("pkg/sub/c.txt", "data"),
		testutil.File("pkg/sub.txt", "flat"),
		testutil.ZipEntry{Name: "pkg/stored.bin", Data: []byte("raw bytes"), Method: testutil.Store},
		testutil.ZipEntry{Name: "pkg/zstd.txt", Data: []byte("zstd content zstd content"), Method: testutil.Zstd},
		testutil.File("native/libfoo.so.1", "ELF"),
		testutil.File("top.pyc", "compiled"),
	)
}

func openFixture(t *testing.T) *Index {
	t.Helper()
	idx, err := Open("root1", NewBytesSource(fixture(t)))
	require.NoError(t, err)
	return idx
}

func TestOpen(t *testing.T) {
	t.Parallel()

	idx := openFixture(t)
	assert.Equal(t, "root1", idx.ID())
	assert.Equal(t, 9, idx.Len())

	e, ok := idx.Find("pkg/mod.py")
	require.True(t, ok)
	assert.Equal(t, KindSourceFile, e.Kind)
	assert.Equal(t, MethodDeflate, e.Method)
	assert.Equal(t, uint64(6), e.RawSize)
	assert.True(t, e.ModTime.Equal(testutil.DefaultModTime))

	e, ok = idx.Find("pkg")
	require.True(t, ok)
	assert.True(t, e.IsDir())

	_, ok = idx.Find("pkg/missing.py")
	assert.False(t, ok)
}

func TestOpenCorrupt(t *testing.T) {
	t.Parallel()

	_, err := Open("bad", NewBytesSource([]byte("not a zip archive at all")))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCorruptArchive)
}

func TestClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		want Kind
	}{
		{"a/b.py", KindSourceFile},
		{"a/b.pyc", KindCompiledArtifact},
		{"a/_x.cpython-38-aarch64-linux-android.so", KindNativeLibrary},
		{"lib/libcrypto.so.1.1", KindNativeLibrary},
		{"a/", KindPackageMarker},
		{"a/b.txt", KindPlainResource},
		{"a/b.so.txt", KindPlainResource},
		{"a/b.pyi", KindPlainResource},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Classify(tt.name), "Classify(%q)", tt.name)
	}
}

func TestListChildren(t *testing.T) {
	t.Parallel()

	idx := openFixture(t)

	got := idx.ListChildren("pkg")
	want := []Child{
		{Name: "__init__.py"},
		{Name: "mod.py"},
		{Name: "stored.bin"},
		{Name: "sub", IsDir: true},
		{Name: "sub.txt"},
		{Name: "zstd.txt"},
	}
	assert.Equal(t, want, got)

	root := idx.ListChildren("")
	assert.Equal(t, []Child{
		{Name: "native", IsDir: true},
		{Name: "pkg", IsDir: true},
		{Name: "top.pyc"},
	}, root)

	assert.Empty(t, idx.ListChildren("nope"))
}

func TestIsDir(t *testing.T) {
	t.Parallel()

	idx := openFixture(t)
	assert.True(t, idx.IsDir(""))
	assert.True(t, idx.IsDir("pkg"))
	assert.True(t, idx.IsDir("pkg/sub"), "implicit directory")
	assert.False(t, idx.IsDir("pkg/mod.py"))
	assert.False(t, idx.IsDir("missing"))
	assert.True(t, idx.Exists("pkg/mod.py"))
	assert.False(t, idx.Exists("pkg/mod"))
}

func TestReadRaw(t *testing.T) {
	t.Parallel()

	idx := openFixture(t)
	for path, want := range map[string]string{
		"pkg/mod.py":     "y = 2\n",
		"pkg/stored.bin": "raw bytes",
		"pkg/zstd.txt":   "zstd content zstd content",
	} {
		data, err := idx.ReadFile(path)
		require.NoError(t, err, path)
		assert.Equal(t, want, string(data), path)
	}

	_, err := idx.ReadFile("pkg/none")
	assert.ErrorIs(t, err, ErrNotFound)

	e, _ := idx.Find("pkg")
	_, err = idx.ReadRaw(e)
	assert.ErrorIs(t, err, ErrInvalidPath)
}

func TestReadRawChecksum(t *testing.T) {
	t.Parallel()

	idx := openFixture(t)
	e, ok := idx.Find("pkg/stored.bin")
	require.True(t, ok)

	e.CRC32 ^= 0xFFFF
	_, err := idx.ReadRaw(e)
	assert.ErrorIs(t, err, ErrChecksum)
}

func TestReadRawLimits(t *testing.T) {
	t.Parallel()

	idx, err := Open("r", NewBytesSource(fixture(t)), WithMaxFileSize(4))
	require.NoError(t, err)
	_, err = idx.ReadFile("pkg/mod.py")
	assert.ErrorIs(t, err, ErrSizeOverflow)

	e, _ := idx.Find("pkg/stored.bin")
	e.Offset = uint64(idx.Source().Size())
	_, err = openFixture(t).ReadRaw(e)
	assert.ErrorIs(t, err, ErrSizeOverflow)

	e, _ = idx.Find("pkg/stored.bin")
	e.Method = 12
	e.RawSize, e.CompressedSize = 1, 1
	_, err = openFixture(t).ReadRaw(e)
	assert.ErrorIs(t, err, ErrUnsupportedMethod)
}

func TestEntriesWithPrefix(t *testing.T) {
	t.Parallel()

	idx := openFixture(t)
	var paths []string
	for e := range idx.EntriesWithPrefix("pkg/sub") {
		paths = append(paths, e.Path)
	}
	assert.Equal(t, []string{"pkg/sub.txt", "pkg/sub/c.txt"}, paths)
}

func TestDuplicateEntriesKeepFirst(t *testing.T) {
	t.Parallel()

	data := testutil.BuildZip(t,
		testutil.File("a.txt", "first"),
		testutil.File("a.txt", "second"),
	)
	idx, err := Open("dup", NewBytesSource(data))
	require.NoError(t, err)
	assert.Equal(t, 1, idx.Len())

	content, err := idx.ReadFile("a.txt")
	require.NoError(t, err)
	assert.Equal(t, "first", string(content))
}

func TestSnapshotRoundTrip(t *testing.T) {
	t.Parallel()

	src := NewBytesSource(fixture(t))
	idx, err := Open("root1", src)
	require.NoError(t, err)

	loaded, err := LoadSnapshot(idx.MarshalSnapshot(), src)
	require.NoError(t, err)
	assert.Equal(t, idx.ID(), loaded.ID())
	assert.Equal(t, idx.entries, loaded.entries)

	data, err := loaded.ReadFile("pkg/zstd.txt")
	require.NoError(t, err)
	assert.Equal(t, "zstd content zstd content", string(data))
}

func TestLoadSnapshotRejects(t *testing.T) {
	t.Parallel()

	data := fixture(t)
	idx, err := Open("root1", NewBytesSource(data))
	require.NoError(t, err)
	snap := idx.MarshalSnapshot()

	other := testutil.NewMockByteSource(data)
	other.SetSourceID("sha256:other")
	_, err = LoadSnapshot(snap, other)
	assert.ErrorIs(t, err, ErrStaleSnapshot)

	corrupt := append([]byte(nil), snap...)
	corrupt[len(corrupt)-1] ^= 0xFF
	_, err = LoadSnapshot(corrupt, NewBytesSource(data))
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrStaleSnapshot))

	_, err = LoadSnapshot([]byte("xx"), NewBytesSource(data))
	assert.Error(t, err)
}

func TestOpenCached(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	data := fixture(t)

	idx, err := OpenCached("root1", NewBytesSource(data), dir)
	require.NoError(t, err)
	_, err = os.Stat(SnapshotPath(dir, "root1"))
	require.NoError(t, err, "snapshot written")

	again, err := OpenCached("root1", NewBytesSource(data), dir)
	require.NoError(t, err)
	assert.Equal(t, idx.entries, again.entries)

	require.NoError(t, os.WriteFile(SnapshotPath(dir, "root1"), []byte("garbage"), 0o644))
	rebuilt, err := OpenCached("root1", NewBytesSource(data), dir)
	require.NoError(t, err)
	assert.Equal(t, idx.Len(), rebuilt.Len())

	snap, err := os.ReadFile(SnapshotPath(dir, "root1"))
	require.NoError(t, err)
	_, err = LoadSnapshot(snap, NewBytesSource(data))
	assert.NoError(t, err, "snapshot rewritten after corruption")
}

func TestOpenFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := testutil.WriteZip(t, dir, "a.zip", testutil.File("x.py", "pass\n"))

	src, err := OpenFile(path)
	require.NoError(t, err)
	defer src.Close()
	id := src.SourceID()
	assert.NotEmpty(t, id)

	idx, err := Open("a", src)
	require.NoError(t, err)
	data, err := idx.ReadFile("x.py")
	require.NoError(t, err)
	assert.Equal(t, "pass\n", string(data))

	later := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(path, later, later))
	src2, err := OpenFile(filepath.Join(dir, "a.zip"))
	require.NoError(t, err)
	defer src2.Close()
	assert.NotEqual(t, id, src2.SourceID())
}
