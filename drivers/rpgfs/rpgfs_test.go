package rpgfs

import (
	"fmt"
	"strings"
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

func TestPDP32(t *testing.T) {
	t.Parallel()

	assert.Equal(t, uint32(0x12345678), PDP32([]byte{0x34, 0x12, 0x78, 0x56}))
	assert.Equal(t, []byte{0x34, 0x12, 0x78, 0x56}, testutil.AppendPDP32(nil, 0x12345678))
}

func TestLumps(t *testing.T) {
	t.Parallel()

	big := testutil.Pattern(70000, 6)
	d, err := detect(t, "GAME.RPG", testutil.RPG(
		testutil.Member{Name: "archinym.lmp", Data: []byte("game\n")},
		testutil.Member{Name: "game.gen", Data: big},
		testutil.Member{Name: "song0.bam"},
		testutil.Member{Name: "name/with/slash", Data: []byte("x")},
	))
	require.NoError(t, err)

	assert.Equal(t, []string{"archinym.lmp", "game.gen", "song0.bam", "name/with/slash"}, testutil.Names(t, d))
	assert.Equal(t, big, testutil.ReadPath(t, d, "game.gen"))
	assert.Equal(t, []byte("game\n"), testutil.ReadPath(t, d, "archinym.lmp"))
}

func TestTrailingGarbage(t *testing.T) {
	t.Parallel()

	data := testutil.RPG(testutil.Member{Name: "a", Data: []byte("1")})
	data = append(data, "b\x00\x00\x10"...)
	d, err := detect(t, "x.rpg", data)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, testutil.Names(t, d))
}

func TestStructure(t *testing.T) {
	t.Parallel()

	var members []testutil.Member
	for i := range 40 {
		members = append(members, testutil.Member{Name: fmt.Sprintf("lump%02d", i), Data: []byte{byte(i)}})
	}
	d, err := detect(t, "x.rpg", testutil.RPG(members...))
	require.NoError(t, err)

	files, dirs, err := vfs.List(d)
	require.NoError(t, err)
	defer vfs.Release(files)
	defer vfs.Release(dirs)
	assert.Len(t, files, 40)
	assert.Empty(t, dirs)
}

func TestNotMine(t *testing.T) {
	t.Parallel()

	good := testutil.RPG(testutil.Member{Name: "a", Data: []byte("1")})
	tests := []struct {
		name string
		file string
		data []byte
	}{
		{"extension", "x.dat", good},
		{"empty", "x.rpg", nil},
		{"first lump overruns", "x.rpg", testutil.RPG(testutil.Member{Name: "a", Data: []byte("1")})[:6]},
		{"empty name", "x.rpg", append([]byte{0}, testutil.AppendPDP32(nil, 0)...)},
		{"long name", "x.rpg", testutil.RPG(testutil.Member{Name: strings.Repeat("n", 256)})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := detect(t, tt.file, tt.data)
			require.ErrorIs(t, err, archive.ErrNotMine)
		})
	}
}

func TestParseRecordErrors(t *testing.T) {
	t.Parallel()

	_, _, err := parseRecord([]byte(strings.Repeat("n", 300)), 300)
	require.ErrorIs(t, err, vfs.ErrLimit)

	_, _, err = parseRecord([]byte("a\x00\x00\x00\x09\x00"), 6)
	require.ErrorIs(t, err, vfs.ErrMalformed)

	name, n, err := parseRecord([]byte("ab\x00\x00\x00\x02\x00zz"), 9)
	require.NoError(t, err)
	assert.Equal(t, "ab", name)
	assert.Equal(t, uint64(2), n)
}
