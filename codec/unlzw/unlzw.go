// Package unlzw decodes the LZW streams written by compress(1).
//
// A stream starts with the magic bytes 1F 9D and a flags byte carrying the
// maximum code width (9..16) and the block-mode bit. Codes are packed
// LSB-first; the code width grows by one whenever the dictionary fills the
// current width, and in block mode code 256 clears the dictionary. Each
// width change or clear discards the remainder of the current group of
// eight codes, exactly as compress(1) pads its output.
package unlzw

import (
	"fmt"

	"github.com/meigma/arcvfs/codec"
)

const (
	magic0 = 0x1f
	magic1 = 0x9d

	flagBlockMode = 0x80
	flagMaxBits   = 0x1f

	minBits = 9
	maxBits = 16

	clearCode = 256

	// outLimit is the soft cap on undigested output.
	outLimit = 64 << 10

	tableSize = 1 << maxBits
)

// Decoder is a push-style .Z decoder implementing codec.Engine.
type Decoder struct {
	prefix [tableSize]uint16
	suffix [tableSize]byte
	stack  [tableSize + 1]byte

	out []byte
	rd  int

	header    int
	blockMode bool
	maxbits   uint
	maxmax    uint32

	nBits   uint
	maxcode uint32
	freeEnt uint32
	oldcode int32
	finchar byte

	acc   uint32
	nacc  uint
	skip  uint
	count uint

	finished bool
	err      error
}

var _ codec.Engine = (*Decoder)(nil)

// New returns a decoder ready to accept a .Z stream, header included.
func New() *Decoder {
	d := &Decoder{out: make([]byte, 0, outLimit+tableSize+1)}
	d.Reset()
	return d
}

// Reset prepares the decoder for a new stream.
func (d *Decoder) Reset() {
	for i := range 256 {
		d.suffix[i] = byte(i)
	}
	d.out = d.out[:0]
	d.rd = 0
	d.header = 0
	d.blockMode = false
	d.maxbits = 0
	d.maxmax = 0
	d.nBits = minBits
	d.maxcode = 1<<minBits - 1
	d.freeEnt = 256
	d.oldcode = -1
	d.finchar = 0
	d.acc = 0
	d.nacc = 0
	d.skip = 0
	d.count = 0
	d.finished = false
	d.err = nil
}

// Err returns the terminal decoding error.
func (d *Decoder) Err() error { return d.err }

// Done reports whether input has ended and all output has been digested.
func (d *Decoder) Done() bool {
	return d.err != nil || (d.finished && d.rd == len(d.out))
}

// Finish marks the end of input. A stream shorter than its header is
// corrupt; trailing partial codes are ignored.
func (d *Decoder) Finish() {
	if d.finished {
		return
	}
	d.finished = true
	if d.err == nil && d.header < 3 {
		d.err = fmt.Errorf("%w: lzw: truncated header", codec.ErrCorrupt)
	}
}

// Digest returns the output produced since the last call.
func (d *Decoder) Digest() []byte {
	b := d.out[d.rd:]
	d.rd = len(d.out)
	return b
}

// Feed consumes bytes until the input is exhausted or the output buffer
// reaches its limit.
func (d *Decoder) Feed(in []byte) int {
	for i, b := range in {
		if !d.FeedByte(b) {
			return i
		}
	}
	return len(in)
}

// FeedByte consumes one byte. It returns false, consuming nothing, when the
// output buffer is full, the input has finished or decoding has failed.
func (d *Decoder) FeedByte(b byte) bool {
	if d.err != nil || d.finished {
		return false
	}
	if d.rd == len(d.out) {
		d.out = d.out[:0]
		d.rd = 0
	}
	if len(d.out) >= outLimit {
		return false
	}

	if d.header < 3 {
		d.headerByte(b)
		return true
	}

	if d.skip >= 8 {
		d.skip -= 8
		return true
	}
	d.acc |= uint32(b) << d.nacc
	d.nacc += 8
	if d.skip > 0 {
		d.acc >>= d.skip
		d.nacc -= d.skip
		d.skip = 0
	}

	for {
		if d.freeEnt > d.maxcode {
			d.align()
			d.nBits++
			d.setMaxcode()
			if d.skip > 0 {
				return true
			}
			continue
		}
		if d.nacc < d.nBits {
			return true
		}
		code := d.acc & (1<<d.nBits - 1)
		d.acc >>= d.nBits
		d.nacc -= d.nBits
		d.count++

		if d.oldcode < 0 {
			if code >= 256 {
				d.fail("first code %d is not a literal", code)
				return true
			}
			d.out = append(d.out, byte(code))
			d.oldcode = int32(code)
			d.finchar = byte(code)
			continue
		}

		if code == clearCode && d.blockMode {
			d.freeEnt = 256
			d.align()
			d.nBits = minBits
			d.maxcode = 1<<minBits - 1
			if d.skip > 0 {
				return true
			}
			continue
		}

		if !d.emit(code) {
			return true
		}
	}
}

func (d *Decoder) headerByte(b byte) {
	switch d.header {
	case 0:
		if b != magic0 {
			d.fail("bad magic")
		}
	case 1:
		if b != magic1 {
			d.fail("bad magic")
		}
	case 2:
		d.maxbits = uint(b & flagMaxBits)
		d.blockMode = b&flagBlockMode != 0
		if d.maxbits < minBits || d.maxbits > maxBits {
			d.fail("unsupported code width %d", d.maxbits)
		}
		d.maxmax = 1 << d.maxbits
		if d.blockMode {
			d.freeEnt = 257
		}
	}
	d.header++
}

// align drops the unread remainder of the current eight-code group.
func (d *Decoder) align() {
	if rem := d.count % 8; rem != 0 {
		s := (8 - rem) * d.nBits
		n := min(s, d.nacc)
		d.acc >>= n
		d.nacc -= n
		d.skip = s - n
	}
	d.count = 0
}

func (d *Decoder) setMaxcode() {
	if d.nBits == d.maxbits {
		d.maxcode = d.maxmax
	} else {
		d.maxcode = 1<<d.nBits - 1
	}
}

// emit expands code onto the output and extends the dictionary.
func (d *Decoder) emit(code uint32) bool {
	incode := code
	sp := len(d.stack)
	if code >= d.freeEnt {
		if code > d.freeEnt {
			d.fail("code %d beyond table end %d", code, d.freeEnt)
			return false
		}
		sp--
		d.stack[sp] = d.finchar
		code = uint32(d.oldcode)
	}
	for code >= 256 {
		if sp == 1 {
			d.fail("code chain too long")
			return false
		}
		sp--
		d.stack[sp] = d.suffix[code]
		code = uint32(d.prefix[code])
	}
	d.finchar = d.suffix[code]
	sp--
	d.stack[sp] = d.finchar
	d.out = append(d.out, d.stack[sp:]...)

	if d.freeEnt < d.maxmax {
		d.prefix[d.freeEnt] = uint16(d.oldcode) //nolint:gosec // codes never exceed 16 bits
		d.suffix[d.freeEnt] = d.finchar
		d.freeEnt++
	}
	d.oldcode = int32(incode) //nolint:gosec // codes never exceed 16 bits
	return true
}

func (d *Decoder) fail(format string, args ...any) {
	d.err = fmt.Errorf("%w: lzw: "+format, append([]any{codec.ErrCorrupt}, args...)...)
}
