package inflate64

import (
	"bytes"
	"io"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/klauspost/compress/flate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/arcvfs/codec"
)

// words returns text whose repeats are far shorter than 258 bytes, so a
// deflate encoder never emits length code 285 for it.
func words(n int) []byte {
	vocab := strings.Fields("tracker pattern sample order row channel note volume " +
		"effect tempo speed loop fade panning vibrato arpeggio")
	var b bytes.Buffer
	x := uint32(7)
	for b.Len() < n {
		x = x*1103515245 + 12345
		b.WriteString(vocab[(x>>16)%uint32(len(vocab))])
		b.WriteByte(' ')
	}
	return b.Bytes()[:n]
}

func deflate(t *testing.T, data []byte, level int) []byte {
	t.Helper()
	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, level)
	require.NoError(t, err)
	_, err = w.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

// bitWriter packs a deflate bit stream by hand.
type bitWriter struct {
	out  []byte
	acc  uint64
	nacc uint
}

func (w *bitWriter) bits(v uint64, n uint) {
	w.acc |= v << w.nacc
	w.nacc += n
	for w.nacc >= 8 {
		w.out = append(w.out, byte(w.acc))
		w.acc >>= 8
		w.nacc -= 8
	}
}

// code writes a Huffman code most significant bit first.
func (w *bitWriter) code(c uint32, n uint) {
	for i := n; i > 0; i-- {
		w.bits(uint64(c>>(i-1)&1), 1)
	}
}

func (w *bitWriter) finish() []byte {
	if w.nacc > 0 {
		w.out = append(w.out, byte(w.acc))
		w.acc, w.nacc = 0, 0
	}
	return w.out
}

// fixedLiteral writes a literal below 144 with the fixed code.
func (w *bitWriter) fixedLiteral(b byte) { w.code(0x30+uint32(b), 8) }

// longMatchStream is a fixed-code block that needs both Deflate64
// extensions: a 39996-byte match through length code 285 and a copy from
// 40000 bytes back through distance code 30.
func longMatchStream() ([]byte, []byte) {
	var w bitWriter
	w.bits(1, 1)
	w.bits(1, 2)
	for _, b := range []byte("xyza") {
		w.fixedLiteral(b)
	}
	w.code(0xc0+285-280, 8)
	w.bits(39996-3, 16)
	w.code(0, 5)

	w.code(257-256, 7)
	w.code(30, 5)
	w.bits(40000-32769, 14)
	w.code(0, 7)

	want := append([]byte("xyz"), bytes.Repeat([]byte("a"), 39997)...)
	want = append(want, "xyz"...)
	return w.finish(), want
}

func TestLongMatchAndFarDistance(t *testing.T) {
	t.Parallel()

	packed, want := longMatchStream()
	got, err := io.ReadAll(NewReader(bytes.NewReader(packed)))
	require.NoError(t, err)
	assert.Equal(t, len(want), len(got))
	assert.Equal(t, want, got)
}

func TestDeflateBlocks(t *testing.T) {
	t.Parallel()

	text := words(150000)
	for name, level := range map[string]int{
		"stored":  flate.NoCompression,
		"huffman": flate.HuffmanOnly,
		"fast":    flate.BestSpeed,
		"best":    flate.BestCompression,
	} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			packed := deflate(t, text, level)
			got, err := io.ReadAll(NewReader(iotest.OneByteReader(bytes.NewReader(packed))))
			require.NoError(t, err)
			assert.Equal(t, text, got)
		})
	}
}

func TestSmallReads(t *testing.T) {
	t.Parallel()

	packed, want := longMatchStream()
	r := NewReader(bytes.NewReader(packed))
	var got []byte
	buf := make([]byte, 7)
	for {
		n, err := r.Read(buf)
		got = append(got, buf[:n]...)
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
	}
	assert.Equal(t, want, got)
}

func TestReset(t *testing.T) {
	t.Parallel()

	text := words(20000)
	packed := deflate(t, text, flate.BestCompression)
	r := NewReader(bytes.NewReader(packed))
	buf := make([]byte, 5000)
	_, err := io.ReadFull(r, buf)
	require.NoError(t, err)

	require.NoError(t, r.Reset(bytes.NewReader(packed)))
	got, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, text, got)
}

func TestCorrupt(t *testing.T) {
	t.Parallel()

	var far bitWriter
	far.bits(1, 1)
	far.bits(1, 2)
	far.fixedLiteral('a')
	far.code(257-256, 7)
	far.code(1, 5)
	far.code(0, 7)

	var reserved bitWriter
	reserved.bits(1, 1)
	reserved.bits(3, 2)

	packed, _ := longMatchStream()
	stored := deflate(t, []byte("stored block"), flate.NoCompression)
	badLen := bytes.Clone(stored)
	badLen[3] ^= 0xff

	for name, in := range map[string][]byte{
		"distance":  far.finish(),
		"reserved":  reserved.finish(),
		"truncated": packed[:len(packed)/2],
		"stored":    badLen,
		"empty":     nil,
	} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			_, err := io.ReadAll(NewReader(bytes.NewReader(in)))
			require.ErrorIs(t, err, codec.ErrCorrupt)
		})
	}
}

func TestSourceErrorPassesThrough(t *testing.T) {
	t.Parallel()

	r := NewReader(iotest.ErrReader(io.ErrClosedPipe))
	_, err := io.ReadAll(r)
	require.ErrorIs(t, err, io.ErrClosedPipe)
	assert.NotErrorIs(t, err, codec.ErrCorrupt)
}
