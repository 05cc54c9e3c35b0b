package vfs_test

import (
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/arcvfs/internal/testutil"
	"github.com/meigma/arcvfs/vfs"
)

// tree builds:
//
//	root/a.mod
//	root/docs/b.txt
//	root/docs/deep/c.xm
func tree(ids *vfs.IDs) *testutil.MemDir {
	root := testutil.NewRoot(ids, "root")
	root.AddFile("a.mod", []byte("alpha"))
	docs := root.AddDir("docs")
	docs.AddFile("b.txt", []byte("bravo"))
	docs.AddDir("deep").AddFile("c.xm", []byte("charlie"))
	return root
}

func TestIDsAreStable(t *testing.T) {
	t.Parallel()

	ids := vfs.NewIDs()
	a := ids.Intern(vfs.NoID, "music")
	b := ids.Intern(a, "song.mod")
	assert.NotEqual(t, vfs.NoID, a)
	assert.Equal(t, a, ids.Intern(vfs.NoID, "music"))
	assert.Equal(t, b, ids.Intern(a, "song.mod"))
	assert.NotEqual(t, b, ids.Intern(vfs.NoID, "song.mod"), "same name under another parent")
	assert.Equal(t, "song.mod", ids.Name(b))
	assert.Empty(t, ids.Name(999))
	assert.Equal(t, 3, ids.Len())
}

func TestList(t *testing.T) {
	t.Parallel()

	root := tree(vfs.NewIDs())
	files, dirs, err := vfs.List(root)
	require.NoError(t, err)
	require.Len(t, files, 1)
	require.Len(t, dirs, 1)
	assert.Equal(t, "a.mod", files[0].Name())
	assert.Equal(t, "docs", dirs[0].Name())
	assert.Equal(t, 1, dirs[0].(*testutil.MemDir).Refs)

	vfs.Release(files)
	vfs.Release(dirs)
	assert.Zero(t, dirs[0].(*testutil.MemDir).Refs)
	assert.Zero(t, root.Refs, "the iterator released its directory")
}

func TestListFlat(t *testing.T) {
	t.Parallel()

	root := tree(vfs.NewIDs())
	files, err := vfs.ListFlat(root)
	require.NoError(t, err)
	defer vfs.Release(files)
	var names []string
	for _, f := range files {
		names = append(names, f.Name())
	}
	assert.Equal(t, []string{"a.mod", "b.txt", "c.xm"}, names)
}

func TestWalk(t *testing.T) {
	t.Parallel()

	root := tree(vfs.NewIDs())
	got := map[string]string{}
	err := vfs.Walk(root, func(p string, f vfs.File) error {
		data, err := vfs.ReadFile(f)
		if err != nil {
			return err
		}
		got[p] = string(data)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"a.mod":          "alpha",
		"docs/b.txt":     "bravo",
		"docs/deep/c.xm": "charlie",
	}, got)

	stop := errors.New("stop")
	var visited int
	err = vfs.Walk(root, func(string, vfs.File) error {
		visited++
		return stop
	})
	require.ErrorIs(t, err, stop)
	assert.Equal(t, 1, visited)
}

func TestLookup(t *testing.T) {
	t.Parallel()

	root := tree(vfs.NewIDs())
	n, err := vfs.Lookup(root, "docs")
	require.NoError(t, err)
	docs, ok := n.(vfs.Dir)
	require.True(t, ok)
	assert.Equal(t, 1, docs.(*testutil.MemDir).Refs)
	docs.Unref()

	n, err = vfs.Lookup(root, "a.mod")
	require.NoError(t, err)
	_, ok = n.(vfs.File)
	assert.True(t, ok)
	n.Unref()

	_, err = vfs.Lookup(root, "missing")
	require.ErrorIs(t, err, vfs.ErrNotExist)
	assert.Zero(t, root.Refs)
}

func TestReaderSeek(t *testing.T) {
	t.Parallel()

	root := testutil.NewRoot(vfs.NewIDs(), "root")
	f := root.AddFile("song.mod", []byte("0123456789"))
	h, err := f.Open()
	require.NoError(t, err)
	defer h.Unref()
	r := vfs.NewReader(h)

	pos, err := r.Seek(-4, io.SeekEnd)
	require.NoError(t, err)
	assert.Equal(t, int64(6), pos)
	rest, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "6789", string(rest))

	pos, err = r.Seek(2, io.SeekStart)
	require.NoError(t, err)
	assert.Equal(t, int64(2), pos)
	pos, err = r.Seek(3, io.SeekCurrent)
	require.NoError(t, err)
	assert.Equal(t, int64(5), pos)

	tail, err := vfs.ReadAll(h)
	require.NoError(t, err)
	assert.Equal(t, "56789", string(tail))

	_, err = r.Seek(-1, io.SeekStart)
	require.Error(t, err)
	_, err = r.Seek(0, 7)
	require.Error(t, err)
}

func TestIOError(t *testing.T) {
	t.Parallel()

	cause := errors.New("cable unplugged")
	err := vfs.IOError(cause)
	require.ErrorIs(t, err, vfs.ErrIO)
	require.ErrorIs(t, err, cause)
	assert.Same(t, err, vfs.IOError(err), "wrapping twice is a no-op")
	require.NoError(t, vfs.IOError(nil))
	require.ErrorIs(t, vfs.ErrLimit, vfs.ErrMalformed)
}
