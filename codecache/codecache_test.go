package codecache

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

var mtime = time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)

func source(path, text string, reads *int) Source {
	return Source{
		Path:    path,
		ModTime: mtime,
		Size:    uint64(len(text)),
		Read: func() ([]byte, error) {
			if reads != nil {
				*reads++
			}
			return []byte(text), nil
		},
	}
}

func TestHeaderRoundTrip(t *testing.T) {
	t.Parallel()

	h := Header{Magic: [4]byte{1, 2, 3, 4}, Flags: 0, SourceMtime: 0xDEADBEEF, SourceSize: 42}
	data, err := h.MarshalBinary()
	require.NoError(t, err)
	require.Len(t, data, HeaderSize)
	assert.Equal(t, []byte{0xEF, 0xBE, 0xAD, 0xDE}, data[8:12], "little-endian mtime")

	got, err := ParseHeader(data)
	require.NoError(t, err)
	assert.Equal(t, h, got)

	_, err = ParseHeader(data[:10])
	assert.ErrorIs(t, err, ErrShortHeader)
}

func TestHeaderForTruncates(t *testing.T) {
	t.Parallel()

	c := &testutil.FakeCompiler{}
	src := Source{ModTime: time.Unix(1<<32+5, 0), Size: 1<<32 + 7}
	h := HeaderFor(c, src)
	assert.Equal(t, uint32(5), h.SourceMtime)
	assert.Equal(t, uint32(7), h.SourceSize)
	assert.Equal(t, testutil.FakeMagic, h.Magic)
}

func TestPycacheLocation(t *testing.T) {
	t.Parallel()

	p := PycacheLocation{Tag: "cpython-38"}
	assert.Equal(t,
		filepath.Join("/r", "pkg", "__pycache__", "mod.cpython-38.pyc"),
		p.CachePath(filepath.Join("/r", "pkg", "mod.py")))
}

func TestGetOrCompile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	compiler := &testutil.FakeCompiler{}
	c := New(compiler)
	srcPath := filepath.Join(dir, "pkg", "mod.py")

	reads := 0
	art, err := c.GetOrCompile(source(srcPath, "x = 1\n", &reads))
	require.NoError(t, err)
	assert.False(t, art.Cached)
	assert.Equal(t, "compiled:x = 1\n", string(art.Code))
	assert.Equal(t, 1, compiler.Calls())

	info, err := os.Stat(art.Path)
	require.NoError(t, err)

	again, err := c.GetOrCompile(source(srcPath, "x = 1\n", &reads))
	require.NoError(t, err)
	assert.True(t, again.Cached)
	assert.Equal(t, art.Code, again.Code)
	assert.Equal(t, 1, compiler.Calls(), "no recompilation")
	assert.Equal(t, 1, reads, "source not read on hit")

	info2, err := os.Stat(art.Path)
	require.NoError(t, err)
	assert.True(t, os.SameFile(info, info2), "cache file not rewritten")
}

func TestGetOrCompileTrustsHeader(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	compiler := &testutil.FakeCompiler{}
	c := New(compiler)
	srcPath := filepath.Join(dir, "mod.py")

	art, err := c.GetOrCompile(source(srcPath, "aaaa", nil))
	require.NoError(t, err)

	// Same size and mtime but different content: the header still matches.
	got, err := c.GetOrCompile(source(srcPath, "bbbb", nil))
	require.NoError(t, err)
	assert.True(t, got.Cached)
	assert.Equal(t, "compiled:aaaa", string(got.Code))

	// Payload corruption is not detected either.
	data, err := os.ReadFile(art.Path)
	require.NoError(t, err)
	data = append(data[:HeaderSize], []byte("garbage")...)
	require.NoError(t, os.WriteFile(art.Path, data, 0o644))
	got, err = c.GetOrCompile(source(srcPath, "aaaa", nil))
	require.NoError(t, err)
	assert.Equal(t, "garbage", string(got.Code))
	assert.Equal(t, 1, compiler.Calls())
}

func TestGetOrCompileIgnoresFlags(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	compiler := &testutil.FakeCompiler{}
	c := New(compiler)
	srcPath := filepath.Join(dir, "hello.py")

	art, err := c.GetOrCompile(source(srcPath, "x = 1\n", nil))
	require.NoError(t, err)

	h := HeaderFor(compiler, source(srcPath, "x = 1\n", nil))
	h.Flags = 1
	data, err := h.MarshalBinary()
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(art.Path, append(data, "replaced"...), 0o644))

	got, err := c.GetOrCompile(source(srcPath, "x = 1\n", nil))
	require.NoError(t, err)
	assert.True(t, got.Cached)
	assert.Equal(t, "replaced", string(got.Code))
	assert.Equal(t, uint32(1), got.Header.Flags)
	assert.Equal(t, 1, compiler.Calls())
}

func TestHeaderValidates(t *testing.T) {
	t.Parallel()

	want := Header{Magic: testutil.FakeMagic, SourceMtime: 10, SourceSize: 20}
	assert.True(t, want.Validates(want))
	assert.True(t, Header{Magic: want.Magic, Flags: 3, SourceMtime: 10, SourceSize: 20}.Validates(want))
	assert.False(t, Header{Magic: [4]byte{1, 2, 3, 4}, SourceMtime: 10, SourceSize: 20}.Validates(want))
	assert.False(t, Header{Magic: want.Magic, SourceMtime: 11, SourceSize: 20}.Validates(want))
	assert.False(t, Header{Magic: want.Magic, SourceMtime: 10, SourceSize: 21}.Validates(want))
}

func TestGetOrCompileStale(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	compiler := &testutil.FakeCompiler{}
	c := New(compiler)
	srcPath := filepath.Join(dir, "mod.py")

	_, err := c.GetOrCompile(source(srcPath, "one", nil))
	require.NoError(t, err)

	src := source(srcPath, "three", nil)
	art, err := c.GetOrCompile(src)
	require.NoError(t, err)
	assert.False(t, art.Cached)
	assert.Equal(t, "compiled:three", string(art.Code))
	assert.Equal(t, 2, compiler.Calls())

	data, err := os.ReadFile(art.Path)
	require.NoError(t, err)
	h, err := ParseHeader(data)
	require.NoError(t, err)
	assert.Equal(t, HeaderFor(compiler, src), h)
}

func TestGetOrCompileError(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	c := New(&testutil.FakeCompiler{})
	srcPath := filepath.Join(dir, "bad.py")

	_, err := c.GetOrCompile(source(srcPath, "x = 1\n"+testutil.SyntaxErrorMarker, nil))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCompile)

	var ce *CompileError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, srcPath, ce.Filename)
	assert.Equal(t, 2, ce.Line)

	_, statErr := os.Stat(c.CachePath(srcPath))
	assert.True(t, os.IsNotExist(statErr), "no cache file on failure")
}

func TestGetOrCompileUnwritable(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocked")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))

	c := New(&testutil.FakeCompiler{})
	// __pycache__ cannot be created under a regular file.
	art, err := c.GetOrCompile(source(filepath.Join(blocker, "mod.py"), "x", nil))
	require.NoError(t, err)
	assert.Equal(t, "compiled:x", string(art.Code))
}

func TestLoadPrecompiled(t *testing.T) {
	t.Parallel()

	c := New(&testutil.FakeCompiler{})
	h := Header{Magic: testutil.FakeMagic, SourceMtime: 1, SourceSize: 2}
	data, err := h.MarshalBinary()
	require.NoError(t, err)
	data = append(data, "code"...)

	art, err := c.LoadPrecompiled(data, "pkg/mod.pyc")
	require.NoError(t, err)
	assert.Equal(t, "code", string(art.Code))
	assert.Equal(t, h, art.Header)

	data[0] ^= 0xFF
	_, err = c.LoadPrecompiled(data, "pkg/mod.pyc")
	assert.ErrorIs(t, err, ErrBadMagic)
}
