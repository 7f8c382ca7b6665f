package metadata

import (
	"errors"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/assetimport/archive"
	"github.com/meigma/assetimport/codecache"
	"github.com/meigma/assetimport/extract"
	"github.com/meigma/assetimport/internal/testutil"
	"github.com/meigma/assetimport/resolve"
)

type fakeEntry struct {
	refs []resolve.DistributionRef
	err  error
}

func (f fakeEntry) Distributions() ([]resolve.DistributionRef, error) {
	return f.refs, f.err
}

type fakeSource []resolve.DistributionSource

func (f fakeSource) DistributionSources() []resolve.DistributionSource {
	return f
}

func manifest(files map[string]string) func(string) ([]byte, error) {
	return func(name string) ([]byte, error) {
		data, ok := files[name]
		if !ok {
			return nil, &fs.PathError{Op: "read", Path: name, Err: fs.ErrNotExist}
		}
		return []byte(data), nil
	}
}

func TestParse(t *testing.T) {
	t.Parallel()

	d, err := Parse([]byte("Metadata-Version: 2.1\nName: Foo_Bar\nVersion: 1.2\nAuthor: Someone\n" +
		"Requires-Dist: six\nRequires-Dist: attrs (>=19)\n\nLong description.\n"))
	require.NoError(t, err)
	assert.Equal(t, "Foo_Bar", d.Name)
	assert.Equal(t, "1.2", d.Version)
	assert.Equal(t, "Someone", d.Author)
	assert.Equal(t, []string{"six", "attrs (>=19)"}, d.Requires)
	assert.Equal(t, []string{"2.1"}, d.Fields["Metadata-Version"])

	d, err = Parse([]byte("Name: bare"))
	require.NoError(t, err)
	assert.Equal(t, "bare", d.Name)

	_, err = Parse([]byte("Version: 1\n"))
	assert.Error(t, err)
}

func TestNormalize(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "foo-bar", Normalize("Foo_Bar"))
	assert.Equal(t, "foo-bar", Normalize("foo.-_bar"))
	assert.Equal(t, "six", Normalize("SIX"))
}

func TestListSkipsBrokenEntries(t *testing.T) {
	t.Parallel()

	src := fakeSource{
		fakeEntry{err: errors.New("permission denied")},
		fakeEntry{refs: []resolve.DistributionRef{
			{Dir: "broken-1.0.dist-info", Location: "/a", Read: manifest(nil)},
			{Dir: "six-1.0.dist-info", Location: "/a", Read: manifest(map[string]string{"METADATA": "Name: six\nVersion: 1.0\n"})},
			{Dir: "old-0.1.egg-info", Location: "/a", Read: manifest(map[string]string{"PKG-INFO": "Name: old\nVersion: 0.1\n"})},
		}},
		fakeEntry{refs: []resolve.DistributionRef{
			{Dir: "six-2.0.dist-info", Location: "/b", Read: manifest(map[string]string{"METADATA": "Name: six\nVersion: 2.0\n"})},
		}},
	}

	p := New(src)
	dists, err := p.List()
	require.NoError(t, err)
	require.Len(t, dists, 3)
	assert.Equal(t, "six", dists[0].Name)
	assert.Equal(t, "old", dists[1].Name)
	assert.Equal(t, "old-0.1.egg-info", dists[1].Dir)
	assert.Equal(t, "/b", dists[2].Location)

	d, err := p.Get("SIX")
	require.NoError(t, err)
	assert.Equal(t, "1.0", d.Version, "first path entry wins")

	_, err = p.Get("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestReadsArchiveWithoutExtracting(t *testing.T) {
	t.Parallel()

	cache, err := extract.New(t.TempDir())
	require.NoError(t, err)
	r := resolve.New(cache, codecache.New(&testutil.FakeCompiler{}))

	data := testutil.BuildZip(t,
		testutil.File("attrs-21.2.0.dist-info/METADATA", "Name: attrs\nVersion: 21.2.0\nRequires-Dist: six\n"),
		testutil.File("attrs/__init__.py", ""),
	)
	idx, err := archive.Open("requirements", archive.NewBytesSource(data))
	require.NoError(t, err)
	require.NoError(t, r.Mount(idx))

	d, err := New(r).Get("attrs")
	require.NoError(t, err)
	assert.Equal(t, "21.2.0", d.Version)
	assert.Equal(t, []string{"six"}, d.Requires)
	assert.Equal(t, cache.RootDir("requirements"), d.Location)
	assert.NoDirExists(t, cache.Path("requirements", "attrs-21.2.0.dist-info"))
}
