package codec

import (
	"bytes"
	"errors"
	"io"
	"testing"
	"testing/iotest"

	"github.com/dsnet/compress/bzip2"
	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// upper is an Engine that upper-cases ASCII and holds at most limit bytes
// of undigested output.
type upper struct {
	out      []byte
	rd       int
	limit    int
	finished bool
}

func (u *upper) Feed(in []byte) int {
	if u.rd == len(u.out) {
		u.out = u.out[:0]
		u.rd = 0
	}
	n := min(len(in), u.limit-len(u.out))
	for _, c := range in[:n] {
		if 'a' <= c && c <= 'z' {
			c -= 'a' - 'A'
		}
		u.out = append(u.out, c)
	}
	return n
}

func (u *upper) Digest() []byte {
	b := u.out[u.rd:]
	u.rd = len(u.out)
	return b
}

func (u *upper) Finish()    { u.finished = true }
func (u *upper) Done() bool { return false }
func (u *upper) Err() error { return nil }
func (u *upper) Reset()     { u.out, u.rd, u.finished = u.out[:0], 0, false }

func TestPump(t *testing.T) {
	t.Parallel()

	src := bytes.Repeat([]byte("tracker module "), 1000)
	want := bytes.ToUpper(src)

	got, err := io.ReadAll(Pump(&upper{limit: 7}, bytes.NewReader(src)))
	require.NoError(t, err)
	assert.Equal(t, want, got)

	got, err = io.ReadAll(iotest.OneByteReader(Pump(&upper{limit: 64}, iotest.HalfReader(bytes.NewReader(src)))))
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestPumpSourceError(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	r := Pump(&upper{limit: 64}, iotest.ErrReader(boom))
	_, err := r.Read(make([]byte, 8))
	require.ErrorIs(t, err, boom)
	_, err = r.Read(make([]byte, 8))
	require.ErrorIs(t, err, boom, "source errors are sticky")

	require.NoError(t, r.Reset(bytes.NewReader([]byte("ok"))))
	got, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, []byte("OK"), got)
}

func TestPumpEmptyReads(t *testing.T) {
	t.Parallel()

	r := Pump(&upper{limit: 64}, emptyReader{})
	_, err := r.Read(make([]byte, 8))
	require.ErrorIs(t, err, io.ErrNoProgress)
}

type emptyReader struct{}

func (emptyReader) Read([]byte) (int, error) { return 0, nil }

func deflate(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, flate.BestCompression)
	require.NoError(t, err)
	_, err = w.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestFlate(t *testing.T) {
	t.Parallel()

	data := bytes.Repeat([]byte("pattern order tempo "), 4000)
	packed := deflate(t, data)

	r := NewFlate(bytes.NewReader(packed))
	got, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, data, got)

	require.NoError(t, r.Reset(bytes.NewReader(packed)))
	got, err = io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestFlateCorrupt(t *testing.T) {
	t.Parallel()

	// BFINAL=1 with the reserved block type 3.
	r := NewFlate(bytes.NewReader([]byte{0x07, 0x00, 0x00}))
	_, err := io.ReadAll(r)
	require.ErrorIs(t, err, ErrCorrupt)

	packed := deflate(t, bytes.Repeat([]byte("abc"), 1000))
	r = NewFlate(bytes.NewReader(packed[:len(packed)/2]))
	_, err = io.ReadAll(r)
	require.ErrorIs(t, err, ErrCorrupt, "truncated stream")
}

func TestBzip2(t *testing.T) {
	t.Parallel()

	data := bytes.Repeat([]byte("channel instrument sample "), 3000)
	var buf bytes.Buffer
	w, err := bzip2.NewWriter(&buf, &bzip2.WriterConfig{})
	require.NoError(t, err)
	_, err = w.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	r, err := NewBzip2(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	got, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, data, got)

	require.NoError(t, r.Reset(bytes.NewReader(buf.Bytes())))
	got, err = io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, data, got)

	require.NoError(t, r.Reset(bytes.NewReader([]byte("BZh9 not really bzip2 data"))))
	_, err = io.ReadAll(r)
	require.Error(t, err)
}

func TestBzip2ResetMidBlock(t *testing.T) {
	t.Parallel()

	data := bytes.Repeat([]byte("pattern order row "), 12000)
	var buf bytes.Buffer
	w, err := bzip2.NewWriter(&buf, &bzip2.WriterConfig{})
	require.NoError(t, err)
	_, err = w.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	r, err := NewBzip2(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	head := make([]byte, 10)
	_, err = io.ReadFull(r, head)
	require.NoError(t, err)
	assert.Equal(t, data[:10], head)

	require.NoError(t, r.Reset(bytes.NewReader(buf.Bytes())))
	got, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Len(t, got, len(data))
	assert.Equal(t, data, got)
}

func TestGzip(t *testing.T) {
	t.Parallel()

	data := bytes.Repeat([]byte("speed tempo "), 5000)
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	_, err := w.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	packed := buf.Bytes()

	r, err := NewGzip(bytes.NewReader(packed))
	require.NoError(t, err)
	got, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, data, got)

	bad := bytes.Clone(packed)
	bad[len(bad)-8] ^= 0xff // CRC-32 trailer
	require.NoError(t, r.Reset(bytes.NewReader(bad)))
	_, err = io.ReadAll(r)
	require.ErrorIs(t, err, ErrCorrupt)

	_, err = NewGzip(bytes.NewReader([]byte("not gzip at all")))
	require.ErrorIs(t, err, ErrCorrupt)
}
