// Package shrink decodes ZIP compression method 1 (Shrink).
//
// Shrink is a dynamic LZW variant with 9 to 13 bit codes. Code 256 escapes
// a control command: 1 widens the code size by one bit, 2 performs a
// partial clear that frees every leaf of the dictionary. New entries take
// the lowest free code, so freed codes are reused.
package shrink

import (
	"fmt"

	"github.com/meigma/arcvfs/codec"
)

const (
	hashSize = 8192
	free     = hashSize // parent marker for unused codes
	root     = 256      // parent of the literal codes

	minBits = 9
	maxBits = 13

	outLimit = 64 << 10
)

// Decoder is a push-style Shrink decoder implementing codec.Engine.
type Decoder struct {
	parent   [hashSize]uint16
	value    [hashSize]byte
	hasChild [hashSize]bool
	stack    [hashSize + 1]byte

	out []byte
	rd  int

	size     uint64
	produced uint64

	width    uint
	nextFree uint16
	oldcode  int32
	finalval byte
	escape   bool

	acc  uint32
	nacc uint

	finished bool
	err      error
}

var _ codec.Engine = (*Decoder)(nil)

// New returns a decoder for a member of the given uncompressed size.
// Output stops once size bytes have been produced.
func New(size uint64) *Decoder {
	d := &Decoder{
		out:  make([]byte, 0, outLimit+hashSize+1),
		size: size,
	}
	d.Reset()
	return d
}

// Reset prepares the decoder for a new stream of the same size.
func (d *Decoder) Reset() {
	for i := range d.parent {
		d.parent[i] = free
	}
	for i := range 256 {
		d.parent[i] = root
		d.value[i] = byte(i)
	}
	d.out = d.out[:0]
	d.rd = 0
	d.produced = 0
	d.width = minBits
	d.nextFree = root + 1
	d.oldcode = -1
	d.finalval = 0
	d.escape = false
	d.acc = 0
	d.nacc = 0
	d.finished = false
	d.err = nil
}

// Err returns the terminal decoding error.
func (d *Decoder) Err() error { return d.err }

// Done reports whether no more output will be produced.
func (d *Decoder) Done() bool {
	if d.err != nil {
		return true
	}
	return d.rd == len(d.out) && (d.finished || d.produced >= d.size)
}

// Finish marks the end of input.
func (d *Decoder) Finish() { d.finished = true }

// Digest returns the output produced since the last call.
func (d *Decoder) Digest() []byte {
	b := d.out[d.rd:]
	d.rd = len(d.out)
	return b
}

// Feed consumes bytes until the input is exhausted, the output buffer is
// full, or the declared size has been produced.
func (d *Decoder) Feed(in []byte) int {
	for i, b := range in {
		if !d.FeedByte(b) {
			return i
		}
	}
	return len(in)
}

// FeedByte consumes one byte, returning false if it cannot be accepted.
func (d *Decoder) FeedByte(b byte) bool {
	if d.err != nil || d.finished || d.produced >= d.size {
		return false
	}
	if d.rd == len(d.out) {
		d.out = d.out[:0]
		d.rd = 0
	}
	if len(d.out) >= outLimit {
		return false
	}

	d.acc |= uint32(b) << d.nacc
	d.nacc += 8
	for d.nacc >= d.width && d.produced < d.size && d.err == nil {
		code := uint16(d.acc & (1<<d.width - 1)) //nolint:gosec // at most 13 bits
		d.acc >>= d.width
		d.nacc -= d.width
		d.step(code)
	}
	return true
}

func (d *Decoder) step(code uint16) {
	if d.escape {
		d.escape = false
		switch code {
		case 1:
			d.width++
			if d.width > maxBits {
				d.fail("code width above %d bits", maxBits)
			}
		case 2:
			d.partialClear()
		default:
			d.fail("unknown control code %d", code)
		}
		return
	}

	if d.oldcode < 0 {
		if code > 255 {
			d.fail("first code %d is not a literal", code)
			return
		}
		d.put([]byte{byte(code)})
		d.oldcode = int32(code)
		d.finalval = byte(code)
		return
	}

	if code == root {
		d.escape = true
		return
	}

	cur := code
	sp := len(d.stack)
	if d.parent[code] == free {
		sp--
		d.stack[sp] = d.finalval
		code = uint16(d.oldcode) //nolint:gosec // previous code
	}
	for code != root {
		if sp == 0 || code >= hashSize || d.parent[code] == free {
			d.fail("broken code chain")
			return
		}
		sp--
		d.stack[sp] = d.value[code]
		code = d.parent[code]
	}
	d.finalval = d.stack[sp]
	d.put(d.stack[sp:])

	if d.nextFree < hashSize {
		d.parent[d.nextFree] = uint16(d.oldcode) //nolint:gosec // previous code
		d.value[d.nextFree] = d.finalval
		d.nextFree = d.lowestFree(d.nextFree + 1)
	}
	d.oldcode = int32(cur)
}

// put appends decoded bytes, clipped to the declared size.
func (d *Decoder) put(b []byte) {
	if left := d.size - d.produced; uint64(len(b)) > left {
		b = b[:left]
	}
	d.out = append(d.out, b...)
	d.produced += uint64(len(b))
}

// partialClear frees every code above 256 that is not the parent of
// another code.
func (d *Decoder) partialClear() {
	clear(d.hasChild[:])
	for c := root + 1; c < hashSize; c++ {
		if p := d.parent[c]; p != free && p > root {
			d.hasChild[p] = true
		}
	}
	for c := root + 1; c < hashSize; c++ {
		if !d.hasChild[c] {
			d.parent[c] = free
		}
	}
	d.nextFree = d.lowestFree(root + 1)
}

func (d *Decoder) lowestFree(start uint16) uint16 {
	c := start
	for c < hashSize && d.parent[c] != free {
		c++
	}
	return c
}

func (d *Decoder) fail(format string, args ...any) {
	d.err = fmt.Errorf("%w: shrink: "+format, append([]any{codec.ErrCorrupt}, args...)...)
}
