// Package explode decodes ZIP compression method 6 (Implode).
//
// An imploded member starts with run-length encoded code lengths for two or
// three Shannon-Fano trees: an optional 256-symbol literal tree, then the
// 64-symbol length and distance trees. The rest is a stream of literals and
// back references into a 4 KiB or 8 KiB window, selected by the general
// purpose flags of the member.
package explode

import (
	"fmt"

	"github.com/meigma/arcvfs/codec"
)

const (
	// Literal tree present (general purpose flag bit 2).
	FlagLiterals = 1 << 2
	// 8 KiB window (general purpose flag bit 1).
	FlagWindow8K = 1 << 1

	windowSize = 8192
	windowMask = windowSize - 1

	inLimit  = 16 << 10
	outLimit = 64 << 10

	maxMatch = 2 + 63 + 255 + 1
)

// Options selects the implode variant.
type Options struct {
	Literals bool
	Window8K bool
}

// OptionsFromFlags derives Options from a ZIP general purpose bit field.
func OptionsFromFlags(flags uint16) Options {
	return Options{
		Literals: flags&FlagLiterals != 0,
		Window8K: flags&FlagWindow8K != 0,
	}
}

// Decoder is a push-style Implode decoder implementing codec.Engine.
// Input is buffered internally so a token that straddles two Feed calls
// can be rolled back and decoded once its remaining bits arrive.
type Decoder struct {
	opts     Options
	size     uint64
	produced uint64

	lit, length, dist huffman
	treesRead         bool

	buf  []byte
	pos  int
	acc  uint32
	nacc uint

	window [windowSize]byte
	wpos   uint32

	out []byte
	rd  int

	finished bool
	err      error
}

var _ codec.Engine = (*Decoder)(nil)

// New returns a decoder for a member of the given uncompressed size.
func New(size uint64, opts Options) *Decoder {
	d := &Decoder{
		opts: opts,
		size: size,
		buf:  make([]byte, 0, inLimit),
		out:  make([]byte, 0, outLimit+maxMatch),
	}
	d.Reset()
	return d
}

// Reset prepares the decoder for a new stream.
func (d *Decoder) Reset() {
	d.produced = 0
	d.treesRead = false
	d.buf = d.buf[:0]
	d.pos = 0
	d.acc = 0
	d.nacc = 0
	clear(d.window[:])
	d.wpos = 0
	d.out = d.out[:0]
	d.rd = 0
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
	return d.rd == len(d.out) && d.produced >= d.size
}

// Finish marks the end of input. Buffered input is still decoded by later
// Feed(nil) calls; running out of bits before size bytes have been
// produced is an error.
func (d *Decoder) Finish() { d.finished = true }

// Digest returns the output produced since the last call.
func (d *Decoder) Digest() []byte {
	b := d.out[d.rd:]
	d.rd = len(d.out)
	return b
}

// Feed buffers as much of in as fits and decodes until the output buffer
// is full or the buffered bits run out.
func (d *Decoder) Feed(in []byte) int {
	if d.err != nil || d.produced >= d.size {
		return 0
	}
	if d.rd == len(d.out) {
		d.out = d.out[:0]
		d.rd = 0
	}
	if d.pos > 0 {
		n := copy(d.buf, d.buf[d.pos:])
		d.buf = d.buf[:n]
		d.pos = 0
	}

	n := 0
	if !d.finished {
		n = min(len(in), inLimit-len(d.buf))
		d.buf = append(d.buf, in[:n]...)
	}
	d.decode()
	return n
}

type mark struct {
	pos  int
	acc  uint32
	nacc uint
}

func (d *Decoder) save() mark { return mark{d.pos, d.acc, d.nacc} }

func (d *Decoder) restore(m mark) { d.pos, d.acc, d.nacc = m.pos, m.acc, m.nacc }

func (d *Decoder) need(n uint) bool {
	for d.nacc < n {
		if d.pos >= len(d.buf) {
			return false
		}
		d.acc |= uint32(d.buf[d.pos]) << d.nacc
		d.pos++
		d.nacc += 8
	}
	return true
}

func (d *Decoder) bits(n uint) uint32 {
	v := d.acc & (1<<n - 1)
	d.acc >>= n
	d.nacc -= n
	return v
}

func (d *Decoder) decode() {
	if !d.treesRead {
		m := d.save()
		if !d.readTrees() {
			if d.err != nil {
				return
			}
			d.restore(m)
			if d.finished {
				d.fail("truncated tree data")
			}
			return
		}
		d.treesRead = true
	}

	for d.produced < d.size && len(d.out) < outLimit {
		m := d.save()
		if !d.token() {
			if d.err != nil {
				return
			}
			d.restore(m)
			if d.finished {
				d.fail("truncated stream at %d of %d bytes", d.produced, d.size)
			}
			return
		}
	}
}

func (d *Decoder) readTrees() bool {
	if d.opts.Literals {
		if !d.readTree(&d.lit, 256) {
			return false
		}
	}
	return d.readTree(&d.length, 64) && d.readTree(&d.dist, 64)
}

// readTree decodes one run-length encoded set of code lengths. The first
// byte holds the number of run bytes minus one; each run byte packs the
// repeat count minus one in its high nibble and the code length minus one
// in its low nibble.
func (d *Decoder) readTree(h *huffman, n int) bool {
	if d.pos >= len(d.buf) {
		return false
	}
	runs := int(d.buf[d.pos]) + 1
	if d.pos+1+runs > len(d.buf) {
		return false
	}
	lengths := make([]uint8, 0, n)
	for _, b := range d.buf[d.pos+1 : d.pos+1+runs] {
		count := int(b>>4) + 1
		if len(lengths)+count > n {
			d.fail("tree runs exceed %d codes", n)
			return false
		}
		for range count {
			lengths = append(lengths, b&0x0f+1)
		}
	}
	if len(lengths) != n {
		d.fail("tree has %d of %d codes", len(lengths), n)
		return false
	}
	if err := h.build(lengths); err != nil {
		d.err = err
		return false
	}
	d.pos += 1 + runs
	return true
}

// token decodes one literal or one back reference.
func (d *Decoder) token() bool {
	if !d.need(1) {
		return false
	}
	if d.bits(1) == 1 {
		var c uint16
		if d.opts.Literals {
			sym, ok := d.lit.decode(d)
			if !ok {
				return false
			}
			c = sym
		} else {
			if !d.need(8) {
				return false
			}
			c = uint16(d.bits(8)) //nolint:gosec // 8 bits
		}
		d.put(byte(c))
		return true
	}

	dbits := uint(6)
	if d.opts.Window8K {
		dbits = 7
	}
	if !d.need(dbits) {
		return false
	}
	low := d.bits(dbits)
	high, ok := d.dist.decode(d)
	if !ok {
		return false
	}
	dist := (uint32(high)<<dbits | low) + 1

	sym, ok := d.length.decode(d)
	if !ok {
		return false
	}
	length := uint32(sym)
	if length == 63 {
		if !d.need(8) {
			return false
		}
		length += d.bits(8)
	}
	if d.opts.Literals {
		length += 3
	} else {
		length += 2
	}

	for range length {
		if d.produced >= d.size {
			break
		}
		var c byte
		if uint64(dist) <= d.produced {
			c = d.window[(d.wpos-dist)&windowMask]
		}
		d.put(c)
	}
	return true
}

func (d *Decoder) put(c byte) {
	d.window[d.wpos&windowMask] = c
	d.wpos++
	d.out = append(d.out, c)
	d.produced++
}

func (d *Decoder) fail(format string, args ...any) {
	d.err = fmt.Errorf("%w: explode: "+format, append([]any{codec.ErrCorrupt}, args...)...)
}
