package unlzw

import (
	"bytes"
	"io"
	"os"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/arcvfs/codec"
)

func readFixture(t *testing.T, name string) []byte {
	t.Helper()
	data, err := os.ReadFile("testdata/" + name)
	require.NoError(t, err)
	return data
}

func TestDecodeFixtures(t *testing.T) {
	t.Parallel()

	want := readFixture(t, "sample.txt")
	for _, name := range []string{"sample16.Z", "sample12.Z", "sample9.Z"} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			z := readFixture(t, name)

			got, err := io.ReadAll(codec.Pump(New(), bytes.NewReader(z)))
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}

func TestDecodeByteAtATime(t *testing.T) {
	t.Parallel()

	want := readFixture(t, "sample.txt")
	z := readFixture(t, "sample12.Z")

	d := New()
	var got []byte
	for _, b := range z {
		require.True(t, d.FeedByte(b))
		got = append(got, d.Digest()...)
	}
	d.Finish()
	require.NoError(t, d.Err())
	got = append(got, d.Digest()...)
	assert.True(t, d.Done())
	assert.Equal(t, want, got)

	// One-byte reads from the source take the same path through Pump.
	got, err := io.ReadAll(codec.Pump(New(), iotest.OneByteReader(bytes.NewReader(z))))
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestNineBitClearRestartsWidth(t *testing.T) {
	t.Parallel()

	want := readFixture(t, "sample.txt")
	z := readFixture(t, "sample9.Z")

	d := New()
	var got []byte
	var clears, widenedAfterClear int
	prevFree := d.freeEnt
	for _, b := range z {
		require.True(t, d.FeedByte(b))
		got = append(got, d.Digest()...)
		if d.freeEnt < prevFree {
			clears++
		}
		if clears > 0 && d.nBits > minBits {
			widenedAfterClear++
		}
		prevFree = d.freeEnt
	}
	d.Finish()
	require.NoError(t, d.Err())
	got = append(got, d.Digest()...)

	require.Positive(t, clears, "fixture must contain a CLEAR code")
	assert.Positive(t, widenedAfterClear, "codes widen again after a CLEAR")
	assert.Equal(t, want, got)
}

func TestFeedStopsWhenOutputFull(t *testing.T) {
	t.Parallel()

	want := readFixture(t, "sample.txt")
	z := readFixture(t, "sample16.Z")

	d := New()
	var got []byte
	in := z
	for len(in) > 0 {
		n := d.Feed(in)
		in = in[n:]
		out := d.Digest()
		require.LessOrEqual(t, len(out), outLimit+tableSize)
		got = append(got, out...)
		require.NoError(t, d.Err())
	}
	assert.Equal(t, want, got)
}

func TestReset(t *testing.T) {
	t.Parallel()

	want := readFixture(t, "sample.txt")
	r := codec.Pump(New(), bytes.NewReader(readFixture(t, "sample9.Z")))
	buf := make([]byte, 1000)
	_, err := io.ReadFull(r, buf)
	require.NoError(t, err)

	require.NoError(t, r.Reset(bytes.NewReader(readFixture(t, "sample16.Z"))))
	got, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestCorruptInput(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		data []byte
	}{
		{"bad magic", []byte{0x1f, 0x8b, 0x90, 'a', 0}},
		{"bad width", []byte{0x1f, 0x9d, 0x88, 'a', 0}},
		{"truncated header", []byte{0x1f}},
		// 9-bit codes: 'a' then 300, which is past the end of the table.
		{"code past table", []byte{0x1f, 0x9d, 0x90, 0x61, 0x58, 0x02}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := io.ReadAll(codec.Pump(New(), bytes.NewReader(tt.data)))
			require.ErrorIs(t, err, codec.ErrCorrupt)
		})
	}
}

func TestEmptyPayload(t *testing.T) {
	t.Parallel()

	got, err := io.ReadAll(codec.Pump(New(), bytes.NewReader([]byte{0x1f, 0x9d, 0x90})))
	require.NoError(t, err)
	assert.Empty(t, got)
}
