package extract

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/assetimport/archive"
	"github.com/meigma/assetimport/internal/testutil"
)

func openIndex(t *testing.T) *archive.Index {
	t.Helper()
	data := testutil.BuildZip(t,
		testutil.Dir("pkg/"),
		testutil.File("pkg/__init__.py", ""),
		testutil.File("pkg/data/a.txt", "alpha"),
		testutil.File("pkg/data/b.txt", "beta"),
		testutil.File("pkg/_native.cpython-38.so", "ELF"),
		testutil.File("pkg/mod.pyc", "code"),
	)
	idx, err := archive.Open("root1", archive.NewBytesSource(data))
	require.NoError(t, err)
	return idx
}

func newCache(t *testing.T) *Cache {
	t.Helper()
	c, err := New(t.TempDir())
	require.NoError(t, err)
	return c
}

func TestPath(t *testing.T) {
	t.Parallel()

	c := newCache(t)
	want := filepath.Join(c.Root(), "root1", "pkg", "data", "a.txt")
	assert.Equal(t, want, c.Path("root1", "pkg/data/a.txt"))

	rootID, entry, ok := c.Locate(want)
	require.True(t, ok)
	assert.Equal(t, "root1", rootID)
	assert.Equal(t, "pkg/data/a.txt", entry)

	_, _, ok = c.Locate("/elsewhere/file")
	assert.False(t, ok)
}

func TestMaterialize(t *testing.T) {
	t.Parallel()

	c := newCache(t)
	idx := openIndex(t)

	rec, err := c.Materialize(idx, "pkg/data/a.txt")
	require.NoError(t, err)
	assert.True(t, rec.Written)

	data, err := os.ReadFile(rec.Path)
	require.NoError(t, err)
	assert.Equal(t, "alpha", string(data))

	info, err := os.Stat(rec.Path)
	require.NoError(t, err)
	assert.Equal(t, testutil.DefaultModTime.Unix(), info.ModTime().Unix())
}

func TestMaterializeUnchangedDoesNoIO(t *testing.T) {
	t.Parallel()

	c := newCache(t)
	idx := openIndex(t)

	rec, err := c.Materialize(idx, "pkg/data/a.txt")
	require.NoError(t, err)
	before, err := os.Stat(rec.Path)
	require.NoError(t, err)

	again, err := c.Materialize(idx, "pkg/data/a.txt")
	require.NoError(t, err)
	assert.False(t, again.Written)

	after, err := os.Stat(rec.Path)
	require.NoError(t, err)
	assert.True(t, os.SameFile(before, after), "same inode")
}

func TestMaterializeTouchedFile(t *testing.T) {
	t.Parallel()

	c := newCache(t)
	idx := openIndex(t)

	rec, err := c.Materialize(idx, "pkg/data/a.txt")
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(rec.Path, []byte("user edit"), 0o644))
	now := time.Now()
	require.NoError(t, os.Chtimes(rec.Path, now, now))

	again, err := c.Materialize(idx, "pkg/data/a.txt")
	require.NoError(t, err)
	assert.True(t, again.Written)

	data, err := os.ReadFile(rec.Path)
	require.NoError(t, err)
	assert.Equal(t, "alpha", string(data))
	info, err := os.Stat(rec.Path)
	require.NoError(t, err)
	assert.Equal(t, testutil.DefaultModTime.Unix(), info.ModTime().Unix())
}

func TestMaterializeErrors(t *testing.T) {
	t.Parallel()

	c := newCache(t)
	idx := openIndex(t)

	_, err := c.Materialize(idx, "pkg/missing.txt")
	assert.ErrorIs(t, err, ErrNotFound)

	for _, p := range []string{"pkg", "pkg/data", "../x", "/abs", ""} {
		_, err := c.Materialize(idx, p)
		assert.ErrorIs(t, err, ErrInvalidPath, p)
	}
}

func TestMaterializeConcurrent(t *testing.T) {
	t.Parallel()

	c := newCache(t)
	idx := openIndex(t)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Materialize(idx, "pkg/data/b.txt")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	entries, err := os.ReadDir(filepath.Dir(c.Path("root1", "pkg/data/b.txt")))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestMaterializeDir(t *testing.T) {
	t.Parallel()

	c := newCache(t)
	idx := openIndex(t)

	recs, err := c.MaterializeDir("shared", idx, "pkg", func(e archive.Entry) bool {
		return IsExtractable(e.Kind)
	})
	require.NoError(t, err)

	var got []string
	for _, r := range recs {
		got = append(got, r.EntryPath)
		assert.Equal(t, "shared", r.RootID)
	}
	assert.Equal(t, []string{"pkg/_native.cpython-38.so", "pkg/data/a.txt", "pkg/data/b.txt"}, got)

	_, err = os.Stat(c.Path("shared", "pkg/__init__.py"))
	assert.True(t, os.IsNotExist(err), "source is not extracted")
}

func TestAlias(t *testing.T) {
	t.Parallel()

	c := newCache(t)
	idx := openIndex(t)

	_, err := c.Materialize(idx, "pkg/_native.cpython-38.so")
	require.NoError(t, err)

	alias, err := c.Alias("root1", "pkg/_native.so", "pkg/_native.cpython-38.so")
	require.NoError(t, err)
	data, err := os.ReadFile(alias)
	require.NoError(t, err)
	assert.Equal(t, "ELF", string(data))

	before, err := os.Lstat(alias)
	require.NoError(t, err)
	_, err = c.Alias("root1", "pkg/_native.so", "pkg/_native.cpython-38.so")
	require.NoError(t, err)
	after, err := os.Lstat(alias)
	require.NoError(t, err)
	assert.True(t, os.SameFile(before, after), "existing alias untouched")
}

func TestIsExtractable(t *testing.T) {
	t.Parallel()

	assert.True(t, IsExtractable(archive.KindNativeLibrary))
	assert.True(t, IsExtractable(archive.KindPlainResource))
	assert.False(t, IsExtractable(archive.KindSourceFile))
	assert.False(t, IsExtractable(archive.KindCompiledArtifact))
	assert.False(t, IsExtractable(archive.KindPackageMarker))
}
