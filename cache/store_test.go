package cache

import (
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/arcvfs/vfs"
)

func TestStoreAddGet(t *testing.T) {
	t.Parallel()

	s := New()
	require.NoError(t, s.Add("foo1", 10, "sz", []byte("test")))

	got, err := s.Get("foo1", 10, "sz")
	require.NoError(t, err)
	assert.Equal(t, []byte("test"), got)

	_, err = s.Get("foo1", 11, "sz")
	require.ErrorIs(t, err, ErrNotFound)
	_, err = s.Get("foo1", 10, "other")
	require.ErrorIs(t, err, ErrNotFound)
	_, err = s.Get("foo2", 10, "sz")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestStoreGetReturnsCopy(t *testing.T) {
	t.Parallel()

	s := New()
	require.NoError(t, s.Add("a", 1, "X", []byte("abc")))

	got, err := s.Get("a", 1, "X")
	require.NoError(t, err)
	got[0] = 'z'

	again, err := s.Get("a", 1, "X")
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), again)
}

func TestStoreAddIdempotent(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "meta.dat")
	s, err := Open(path)
	require.NoError(t, err)

	require.NoError(t, s.Add("song.mod.gz", 1234, "GZIP", []byte{0, 0, 0, 0, 0, 0, 0x10, 0}))
	require.True(t, s.Dirty())
	require.NoError(t, s.Commit())
	require.False(t, s.Dirty())

	require.NoError(t, s.Add("song.mod.gz", 1234, "GZIP", []byte{0, 0, 0, 0, 0, 0, 0x10, 0}))
	assert.False(t, s.Dirty(), "identical blob must not dirty the store")
	assert.Equal(t, 1, s.Len())
}

func TestStoreReplace(t *testing.T) {
	t.Parallel()

	s := New()
	require.NoError(t, s.Add("a", 5, "X", []byte("one")))
	require.NoError(t, s.Add("b", 5, "X", []byte("other")))
	require.NoError(t, s.Add("a", 5, "X", []byte("two")))

	assert.Equal(t, 2, s.Len())
	got, err := s.Get("a", 5, "X")
	require.NoError(t, err)
	assert.Equal(t, []byte("two"), got)
}

func TestStoreRemove(t *testing.T) {
	t.Parallel()

	s := New()
	require.NoError(t, s.Add("a", 5, "X", []byte("one")))
	require.NoError(t, s.Commit())

	require.ErrorIs(t, s.Remove("a", 6, "X"), ErrNotFound)
	assert.False(t, s.Dirty())

	require.NoError(t, s.Remove("a", 5, "X"))
	assert.True(t, s.Dirty())
	assert.Equal(t, 0, s.Len())
	_, err := s.Get("a", 5, "X")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestStoreSortedRandomInserts(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewPCG(1, 2))
	s := New()
	for i := range 32 {
		size := rng.Uint64N(8)
		require.NoError(t, s.Add(fmt.Sprintf("file%02d", i), size, "T", []byte{byte(i)}))
	}
	require.Equal(t, 32, s.Len())

	var sizes []uint64
	for e := range s.All() {
		sizes = append(sizes, e.Size)
	}
	assert.True(t, slices.IsSorted(sizes), "entries not sorted: %v", sizes)

	for i := range 32 {
		name := fmt.Sprintf("file%02d", i)
		var found bool
		for e := range s.All() {
			if e.Name == name {
				found = true
				assert.Equal(t, []byte{byte(i)}, e.Blob)
			}
		}
		assert.True(t, found, "missing %s", name)
	}
}

func TestStoreRoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "sub", "meta.dat")
	s, err := Open(path, WithFileMode(0o644))
	require.NoError(t, err)
	require.Equal(t, path, s.Path())

	require.NoError(t, s.Add("b.zip", 300, "ZIP", []byte("index")))
	require.NoError(t, s.Add("a.tar", 100, "TAR", nil))
	require.NoError(t, s.Add("a.tar", 100, "GZIP", []byte{1, 2, 3}))
	require.NoError(t, s.Commit())

	first, err := os.ReadFile(path)
	require.NoError(t, err)
	require.True(t, len(first) > headerLen)
	assert.Equal(t, Signature, string(first[:len(Signature)]))

	loaded, err := Open(path)
	require.NoError(t, err)
	assert.Equal(t, 3, loaded.Len())
	assert.False(t, loaded.Dirty())
	assert.Equal(t, slices.Collect(s.All()), slices.Collect(loaded.All()))

	// Force a rewrite and compare bytes.
	require.NoError(t, loaded.Add("zz", 1, "Q", []byte("x")))
	require.NoError(t, loaded.Remove("zz", 1, "Q"))
	require.NoError(t, loaded.Commit())
	second, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestOpenMissingFile(t *testing.T) {
	t.Parallel()

	s, err := Open(filepath.Join(t.TempDir(), "absent.dat"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if s.Len() != 0 {
		t.Fatalf("Len() = %d, want 0", s.Len())
	}
}

func TestOpenDiscardsBadFiles(t *testing.T) {
	t.Parallel()

	good := encode([]Entry{
		{Name: "a", Size: 1, SIG: "X", Blob: []byte("hello")},
		{Name: "b", Size: 2, SIG: "X", Blob: []byte("world")},
	})
	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"bad signature", append([]byte("NotTheRightMagic"), good[len(Signature):]...)},
		{"torn tail", good[:len(good)-3]},
		{"count too large", append(append([]byte(Signature), 0xff, 0xff, 0xff, 0xff), good[headerLen:]...)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			path := filepath.Join(t.TempDir(), "meta.dat")
			require.NoError(t, os.WriteFile(path, tt.data, 0o600))

			s, err := Open(path)
			require.NoError(t, err)
			assert.Equal(t, 0, s.Len())
			assert.False(t, s.Dirty())
		})
	}
}

func TestAddLimits(t *testing.T) {
	t.Parallel()

	s := New()
	long := string(make([]byte, MaxNameLen+1))
	require.ErrorIs(t, s.Add(long, 1, "X", nil), ErrTooLarge)
	require.ErrorIs(t, s.Add("a", 1, string(make([]byte, MaxSIGLen+1)), nil), vfs.ErrLimit)
	require.ErrorIs(t, s.Add("a", 1, "X", make([]byte, MaxBlobLen+1)), vfs.ErrMalformed)
	require.ErrorIs(t, s.Add("a\x00b", 1, "X", nil), vfs.ErrMalformed)
	assert.Equal(t, 0, s.Len())
}

func TestDecodeOversizedBlob(t *testing.T) {
	t.Parallel()

	data := []byte(Signature)
	data = append(data, 0, 0, 0, 1)
	data = append(data, 'a', 0, 'X', 0)
	data = append(data, 0, 0, 0, 0, 0, 0, 0, 1)
	data = append(data, 0x7f, 0xff, 0xff, 0xff)
	data = append(data, make([]byte, 16)...)

	_, err := decode(data)
	require.ErrorIs(t, err, vfs.ErrLimit)
}
