package bzip2fs

import (
	"encoding/binary"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/arcvfs/archive"
	"github.com/meigma/arcvfs/cache"
	"github.com/meigma/arcvfs/internal/testutil"
	"github.com/meigma/arcvfs/vfs"
)

func TestDetectAndRead(t *testing.T) {
	t.Parallel()

	env := archive.NewEnv()
	root := testutil.NewRoot(env.IDs(), "music")
	content := testutil.Pattern(30000, 7)
	f := root.AddFile("tune.xm.bz2", testutil.Bzip2(t, content))

	d, err := New().Detect(env, f, ".bz2")
	require.NoError(t, err)
	defer d.Unref()

	assert.Equal(t, []string{"tune.xm"}, testutil.Names(t, d))
	assert.Equal(t, content, testutil.ReadPath(t, d, "tune.xm"))
}

func TestSeekEquivalence(t *testing.T) {
	t.Parallel()

	env := archive.NewEnv()
	root := testutil.NewRoot(env.IDs(), "music")
	content := testutil.Pattern(200000, 5)
	f := root.AddFile("long.it.bz2", testutil.Bzip2(t, content))

	d, err := New().Detect(env, f, ".bz2")
	require.NoError(t, err)
	defer d.Unref()
	member := testutil.FindFile(t, d, "long.it")
	defer member.Unref()

	h, err := member.Open()
	require.NoError(t, err)
	defer h.Unref()

	// Forward chunks with gaps between them.
	buf := make([]byte, 777)
	for _, off := range []uint64{0, 5000, 60000, 123456, 199000} {
		require.NoError(t, h.SeekSet(off))
		_, err := io.ReadFull(h, buf)
		require.NoError(t, err)
		assert.Equal(t, content[off:off+uint64(len(buf))], buf, "offset %d", off)
	}

	// A rewind after a partial read replays the stream from the start.
	require.NoError(t, h.SeekSet(0))
	head := make([]byte, 10)
	_, err = io.ReadFull(h, head)
	require.NoError(t, err)
	require.NoError(t, h.SeekSet(0))
	got, err := vfs.ReadAll(h)
	require.NoError(t, err)
	assert.Len(t, got, len(content))
	assert.Equal(t, content, got)

	size, err := member.Size()
	require.NoError(t, err)
	assert.Equal(t, uint64(len(content)), size)
}

func TestSizeLearnedAndCached(t *testing.T) {
	t.Parallel()

	store := cache.New()
	content := testutil.Pattern(12345, 8)
	packed := testutil.Bzip2(t, content)

	env := archive.NewEnv(archive.WithCache(store))
	root := testutil.NewRoot(env.IDs(), "music")
	f := root.AddFile("a.bz2", packed)

	d, err := New().Detect(env, f, ".bz2")
	require.NoError(t, err)
	member := testutil.FindFile(t, d, "a")
	assert.False(t, member.SizeReady())

	size, err := member.Size()
	require.NoError(t, err)
	assert.Equal(t, uint64(len(content)), size)
	assert.True(t, member.SizeReady())
	member.Unref()
	d.Unref()

	blob, err := store.Get("a.bz2", uint64(len(packed)), SIG)
	require.NoError(t, err)
	assert.Equal(t, uint64(len(content)), binary.BigEndian.Uint64(blob))

	// A new session with the same cache knows the size without decoding.
	env2 := archive.NewEnv(archive.WithCache(store))
	root2 := testutil.NewRoot(env2.IDs(), "music")
	f2 := root2.AddFile("a.bz2", packed)
	d2, err := New().Detect(env2, f2, ".bz2")
	require.NoError(t, err)
	defer d2.Unref()
	member2 := testutil.FindFile(t, d2, "a")
	defer member2.Unref()
	assert.True(t, member2.SizeReady())
	assert.Equal(t, 1, f2.Reads, "only detection read the container")
}

func TestBadCacheBlobIsMiss(t *testing.T) {
	t.Parallel()

	store := cache.New()
	packed := testutil.Bzip2(t, []byte("abc"))
	require.NoError(t, store.Add("a.bz2", uint64(len(packed)), SIG, []byte{1, 2, 3}))

	env := archive.NewEnv(archive.WithCache(store))
	root := testutil.NewRoot(env.IDs(), "music")
	f := root.AddFile("a.bz2", packed)
	d, err := New().Detect(env, f, ".bz2")
	require.NoError(t, err)
	defer d.Unref()

	member := testutil.FindFile(t, d, "a")
	defer member.Unref()
	assert.False(t, member.SizeReady())
	data, err := vfs.ReadFile(member)
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), data)
}

func TestNotMine(t *testing.T) {
	t.Parallel()

	env := archive.NewEnv()
	root := testutil.NewRoot(env.IDs(), "music")
	f := root.AddFile("a.bz2", []byte("BZh0"))
	_, err := New().Detect(env, f, ".bz2")
	require.ErrorIs(t, err, archive.ErrNotMine)
}
