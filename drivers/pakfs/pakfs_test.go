package pakfs

import (
	"encoding/binary"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/arcvfs/archive"
	"github.com/meigma/arcvfs/internal/testutil"
	"github.com/meigma/arcvfs/vfs"
)

func detect(t *testing.T, name string, data []byte) (vfs.Dir, error) {
	t.Helper()
	env := archive.NewEnv()
	root := testutil.NewRoot(env.IDs(), "games")
	f := root.AddFile(name, data)
	d, err := New().Detect(env, f, archive.Ext(name))
	if err == nil {
		t.Cleanup(d.Unref)
	}
	return d, err
}

func TestQuake(t *testing.T) {
	t.Parallel()

	data := testutil.QuakePak(
		testutil.Member{Name: "sound/misc/menu1.wav", Data: []byte("wav")},
		testutil.Member{Name: "progs/player.mdl", Data: testutil.Pattern(900, 4)},
		testutil.Member{Name: "default.cfg", Data: []byte("bind")},
	)
	d, err := detect(t, "PAK0.PAK", data)
	require.NoError(t, err)

	assert.Equal(t, []string{"sound/", "progs/", "default.cfg"}, testutil.Names(t, d))
	assert.Equal(t, []byte("wav"), testutil.ReadPath(t, d, "sound/misc/menu1.wav"))
	assert.Equal(t, testutil.Pattern(900, 4), testutil.ReadPath(t, d, "progs/player.mdl"))
	assert.Equal(t, []byte("bind"), testutil.ReadPath(t, d, "default.cfg"))
}

func TestQuakeNeedsNoExtension(t *testing.T) {
	t.Parallel()

	data := testutil.QuakePak(testutil.Member{Name: "a", Data: []byte("1")})
	_, err := detect(t, "data.bin", data)
	require.NoError(t, err)
}

func TestWestwood(t *testing.T) {
	t.Parallel()

	score := testutil.Pattern(2048, 5)
	data := testutil.WestwoodPak(
		testutil.Member{Name: "INTRO.AUD", Data: []byte("intro")},
		testutil.Member{Name: "EMPTY.BIN"},
		testutil.Member{Name: "SCORE.ADL", Data: score},
	)
	d, err := detect(t, "SCORES.PAK", data)
	require.NoError(t, err)

	assert.Equal(t, []string{"INTRO.AUD", "EMPTY.BIN", "SCORE.ADL"}, testutil.Names(t, d))
	assert.Equal(t, []byte("intro"), testutil.ReadPath(t, d, "INTRO.AUD"))
	assert.Empty(t, testutil.ReadPath(t, d, "EMPTY.BIN"))
	assert.Equal(t, score, testutil.ReadPath(t, d, "SCORE.ADL"))
}

func TestWestwoodZeroTerminator(t *testing.T) {
	t.Parallel()

	// [off]["A\0"][off]["B\0"][0] followed by the data.
	var data []byte
	hdr := 4 + 2 + 4 + 2 + 4
	data = binary.LittleEndian.AppendUint32(data, uint32(hdr))
	data = append(data, 'A', 0)
	data = binary.LittleEndian.AppendUint32(data, uint32(hdr+3))
	data = append(data, 'B', 0)
	data = binary.LittleEndian.AppendUint32(data, 0)
	data = append(data, "aaabb"...)

	d, err := detect(t, "x.pak", data)
	require.NoError(t, err)
	assert.Equal(t, []byte("aaa"), testutil.ReadPath(t, d, "A"))
	assert.Equal(t, []byte("bb"), testutil.ReadPath(t, d, "B"))
}

func TestWestwoodNeedsExtension(t *testing.T) {
	t.Parallel()

	data := testutil.WestwoodPak(testutil.Member{Name: "A", Data: []byte("1")})
	_, err := detect(t, "x.dat", data)
	require.ErrorIs(t, err, archive.ErrNotMine)
}

func TestCP437Names(t *testing.T) {
	t.Parallel()

	data := testutil.WestwoodPak(testutil.Member{Name: "M\x9aSIK.AUD", Data: []byte("1")})
	d, err := detect(t, "x.pak", data)
	require.NoError(t, err)
	assert.Equal(t, []string{"MÜSIK.AUD"}, testutil.Names(t, d))
}

func TestStructure(t *testing.T) {
	t.Parallel()

	var members []testutil.Member
	for dir := range 4 {
		for file := range 5 {
			members = append(members, testutil.Member{
				Name: fmt.Sprintf("d%d/f%d", dir, file),
				Data: []byte{byte(dir), byte(file)},
			})
		}
	}
	d, err := detect(t, "big.pak", testutil.QuakePak(members...))
	require.NoError(t, err)

	seen := make(map[string]int)
	require.NoError(t, vfs.Walk(d, func(p string, f vfs.File) error {
		seen[p]++
		return nil
	}))
	assert.Len(t, seen, 20)
	for p, n := range seen {
		assert.Equal(t, 1, n, p)
	}
	_, dirs, err := vfs.List(d)
	require.NoError(t, err)
	defer vfs.Release(dirs)
	assert.Len(t, dirs, 4)
}

func TestMalformed(t *testing.T) {
	t.Parallel()

	data := testutil.QuakePak(testutil.Member{Name: "a", Data: []byte("12345")})
	// Stretch the record's length past the end of the file.
	binary.LittleEndian.PutUint32(data[len(data)-4:], 1000)
	d, err := detect(t, "x.pak", data)
	require.NoError(t, err)
	assert.Empty(t, testutil.Names(t, d))
}

func TestNotMine(t *testing.T) {
	t.Parallel()

	tests := map[string][]byte{
		"empty":       nil,
		"bad table":   append([]byte("PACK"), 0xff, 0xff, 0xff, 0x7f, 0, 0, 0, 0),
		"ww past end": {0xff, 0xff, 0, 0, 'A', 0},
		"ww no name":  {8, 0, 0, 0, 0, 0, 0, 0},
	}
	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			_, err := detect(t, "x.pak", data)
			require.ErrorIs(t, err, archive.ErrNotMine)
		})
	}
}
