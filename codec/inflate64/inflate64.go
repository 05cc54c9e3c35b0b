// Package inflate64 decodes ZIP compression method 9 (Deflate64).
//
// Deflate64 is deflate with a 64 KiB window: distance codes 30 and 31 are
// in use, and length code 285 carries 16 extra bits on a base of 3 instead
// of meaning 258. Block framing and the code length alphabet are those of
// plain deflate.
package inflate64

import (
	"bufio"
	"errors"
	"fmt"
	"io"

	"github.com/meigma/arcvfs/codec"
)

const (
	windowSize = 1 << 16
	windowMask = windowSize - 1

	maxCodeLen = 15
	numLit     = 288
	numDist    = 32
)

var (
	lengthBase = [29]uint16{
		3, 4, 5, 6, 7, 8, 9, 10, 11, 13, 15, 17, 19, 23, 27, 31,
		35, 43, 51, 59, 67, 83, 99, 115, 131, 163, 195, 227, 3,
	}
	lengthExtra = [29]uint8{
		0, 0, 0, 0, 0, 0, 0, 0, 1, 1, 1, 1, 2, 2, 2, 2,
		3, 3, 3, 3, 4, 4, 4, 4, 5, 5, 5, 5, 16,
	}
	distBase = [numDist]uint32{
		1, 2, 3, 4, 5, 7, 9, 13, 17, 25, 33, 49, 65, 97, 129, 193,
		257, 385, 513, 769, 1025, 1537, 2049, 3073, 4097, 6145,
		8193, 12289, 16385, 24577, 32769, 49153,
	}
	distExtra = [numDist]uint8{
		0, 0, 0, 0, 1, 1, 2, 2, 3, 3, 4, 4, 5, 5, 6, 6,
		7, 7, 8, 8, 9, 9, 10, 10, 11, 11, 12, 12, 13, 13, 14, 14,
	}
	// Order of the code length code lengths in a dynamic block header.
	clenOrder = [19]uint8{16, 17, 18, 0, 8, 7, 9, 6, 10, 5, 11, 4, 12, 3, 13, 2, 14, 1, 15}
)

type blockState uint8

const (
	stateHeader blockState = iota
	stateStored
	stateHuffman
	stateDone
)

// Reader decodes a raw Deflate64 stream. It implements codec.Reader.
type Reader struct {
	src   io.ByteReader
	bits  uint64
	nbits uint

	state   blockState
	final   bool
	stored  int
	copyLen int
	dist    int

	window  [windowSize]byte
	wpos    int
	written uint64

	lit, distCode huffman
	lengths       [numLit + numDist]uint8

	err error
}

// NewReader returns a Reader decoding src.
func NewReader(src io.Reader) *Reader {
	r := new(Reader)
	_ = r.Reset(src)
	return r
}

// Reset discards all decoder state and starts decoding src.
func (r *Reader) Reset(src io.Reader) error {
	br, ok := src.(io.ByteReader)
	if !ok {
		br = bufio.NewReader(src)
	}
	r.src = br
	r.bits, r.nbits = 0, 0
	r.state, r.final = stateHeader, false
	r.stored, r.copyLen, r.dist = 0, 0, 0
	r.wpos, r.written = 0, 0
	r.err = nil
	return nil
}

// Read decodes into p. Bytes decoded before a failure are returned first;
// the error follows on the next call.
func (r *Reader) Read(p []byte) (int, error) {
	if r.err != nil {
		return 0, r.err
	}
	n := 0
	for n < len(p) && r.err == nil {
		switch {
		case r.copyLen > 0:
			for r.copyLen > 0 && n < len(p) {
				b := r.window[(r.wpos-r.dist)&windowMask]
				r.put(b)
				p[n] = b
				n++
				r.copyLen--
			}
		case r.state == stateStored:
			if r.stored == 0 {
				r.state = r.next()
				continue
			}
			v, err := r.getBits(8)
			if err != nil {
				r.setErr(err)
				break
			}
			r.put(byte(v))
			p[n] = byte(v)
			n++
			r.stored--
		case r.state == stateHuffman:
			if lit, ok := r.symbol(); ok {
				r.put(lit)
				p[n] = lit
				n++
			}
		case r.state == stateHeader:
			r.header()
		default:
			r.err = io.EOF
		}
	}
	if n > 0 {
		return n, nil
	}
	return 0, r.err
}

// next is the state after a block ends.
func (r *Reader) next() blockState {
	if r.final {
		return stateDone
	}
	return stateHeader
}

func (r *Reader) put(b byte) {
	r.window[r.wpos&windowMask] = b
	r.wpos++
	r.written++
}

func (r *Reader) setErr(err error) {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		err = fmt.Errorf("%w: deflate64: unexpected end of stream", codec.ErrCorrupt)
	}
	r.err = err
}

func (r *Reader) fail(msg string) {
	r.err = fmt.Errorf("%w: deflate64: %s", codec.ErrCorrupt, msg)
}

func (r *Reader) need(n uint) error {
	for r.nbits < n {
		b, err := r.src.ReadByte()
		if err != nil {
			return err
		}
		r.bits |= uint64(b) << r.nbits
		r.nbits += 8
	}
	return nil
}

func (r *Reader) getBits(n uint) (uint32, error) {
	if err := r.need(n); err != nil {
		return 0, err
	}
	v := uint32(r.bits & (1<<n - 1)) //nolint:gosec // n <= 16
	r.bits >>= n
	r.nbits -= n
	return v, nil
}

// header reads a block header and sets up the block.
func (r *Reader) header() {
	v, err := r.getBits(3)
	if err != nil {
		r.setErr(err)
		return
	}
	r.final = v&1 != 0
	switch v >> 1 {
	case 0:
		r.bits >>= r.nbits % 8
		r.nbits -= r.nbits % 8
		n, err := r.getBits(16)
		if err != nil {
			r.setErr(err)
			return
		}
		nn, err := r.getBits(16)
		if err != nil {
			r.setErr(err)
			return
		}
		if n != ^nn&0xffff {
			r.fail("stored block length mismatch")
			return
		}
		r.stored = int(n)
		r.state = stateStored
	case 1:
		r.fixed()
	case 2:
		r.dynamic()
	default:
		r.fail("reserved block type")
	}
}

func (r *Reader) fixed() {
	l := r.lengths[:numLit+numDist]
	for i := range numLit {
		switch {
		case i < 144:
			l[i] = 8
		case i < 256:
			l[i] = 9
		case i < 280:
			l[i] = 7
		default:
			l[i] = 8
		}
	}
	for i := numLit; i < len(l); i++ {
		l[i] = 5
	}
	r.buildTables(numLit, numDist)
}

func (r *Reader) dynamic() {
	v, err := r.getBits(14)
	if err != nil {
		r.setErr(err)
		return
	}
	nlit := int(v&0x1f) + 257
	ndist := int(v>>5&0x1f) + 1
	nclen := int(v>>10) + 4

	var clen [19]uint8
	for i := range nclen {
		c, err := r.getBits(3)
		if err != nil {
			r.setErr(err)
			return
		}
		clen[clenOrder[i]] = uint8(c) //nolint:gosec // 3 bits
	}
	var code huffman
	if err := code.build(clen[:]); err != nil {
		r.fail(err.Error())
		return
	}

	l := r.lengths[:nlit+ndist]
	for i := 0; i < len(l); {
		sym, err := code.decode(r)
		if err != nil {
			r.setErr(err)
			return
		}
		if sym < 16 {
			l[i] = uint8(sym) //nolint:gosec // sym < 16
			i++
			continue
		}
		var fill uint8
		var rep uint32
		switch sym {
		case 16:
			if i == 0 {
				r.fail("repeat with no previous length")
				return
			}
			fill = l[i-1]
			rep, err = r.getBits(2)
			rep += 3
		case 17:
			rep, err = r.getBits(3)
			rep += 3
		default:
			rep, err = r.getBits(7)
			rep += 11
		}
		if err != nil {
			r.setErr(err)
			return
		}
		if i+int(rep) > len(l) {
			r.fail("code lengths overflow")
			return
		}
		for range rep {
			l[i] = fill
			i++
		}
	}
	if l[256] == 0 {
		r.fail("missing end of block code")
		return
	}
	r.buildTables(nlit, ndist)
}

// buildTables builds the literal/length table from the first nlit entries
// of r.lengths and the distance table from the ndist entries after them.
func (r *Reader) buildTables(nlit, ndist int) {
	if err := r.lit.build(r.lengths[:nlit]); err != nil {
		r.fail(err.Error())
		return
	}
	if err := r.distCode.build(r.lengths[nlit : nlit+ndist]); err != nil {
		r.fail(err.Error())
		return
	}
	r.state = stateHuffman
}

// symbol decodes one literal/length symbol. A literal is returned with
// ok=true; a match sets copyLen and dist; an end of block code moves to
// the next block.
func (r *Reader) symbol() (byte, bool) {
	sym, err := r.lit.decode(r)
	if err != nil {
		r.setErr(err)
		return 0, false
	}
	switch {
	case sym < 256:
		return byte(sym), true
	case sym == 256:
		r.state = r.next()
		return 0, false
	case sym > 285:
		r.fail("invalid length code")
		return 0, false
	}
	sym -= 257
	extra, err := r.getBits(uint(lengthExtra[sym]))
	if err != nil {
		r.setErr(err)
		return 0, false
	}
	length := int(lengthBase[sym]) + int(extra)

	dsym, err := r.distCode.decode(r)
	if err != nil {
		r.setErr(err)
		return 0, false
	}
	if dsym >= numDist {
		r.fail("invalid distance code")
		return 0, false
	}
	dextra, err := r.getBits(uint(distExtra[dsym]))
	if err != nil {
		r.setErr(err)
		return 0, false
	}
	dist := int(distBase[dsym]) + int(dextra)
	if uint64(dist) > r.written {
		r.fail("distance too far back")
		return 0, false
	}
	r.copyLen, r.dist = length, dist
	return 0, false
}

var errBadCode = errors.New("invalid code")

// huffman is a canonical decoding table: count[l] codes of length l, with
// their symbols listed in code order.
type huffman struct {
	count  [maxCodeLen + 1]uint16
	symbol []uint16
}

// build constructs the table from per-symbol code lengths. Incomplete
// codes are accepted; over-subscribed ones are not.
func (h *huffman) build(lengths []uint8) error {
	clear(h.count[:])
	for _, l := range lengths {
		h.count[l]++
	}
	left := 1
	for l := 1; l <= maxCodeLen; l++ {
		left <<= 1
		left -= int(h.count[l])
		if left < 0 {
			return errors.New("over-subscribed code")
		}
	}

	var offs [maxCodeLen + 2]uint16
	for l := 1; l <= maxCodeLen; l++ {
		offs[l+1] = offs[l] + h.count[l]
	}
	n := len(lengths) - int(h.count[0])
	if cap(h.symbol) < n {
		h.symbol = make([]uint16, n)
	}
	h.symbol = h.symbol[:n]
	for sym, l := range lengths {
		if l == 0 {
			continue
		}
		h.symbol[offs[l]] = uint16(sym) //nolint:gosec // at most 320 symbols
		offs[l]++
	}
	return nil
}

// decode reads one symbol, one bit at a time. Codes are packed starting
// with their most significant bit.
func (h *huffman) decode(r *Reader) (int, error) {
	code, first, index := 0, 0, 0
	for l := 1; l <= maxCodeLen; l++ {
		b, err := r.getBits(1)
		if err != nil {
			return 0, err
		}
		code |= int(b)
		count := int(h.count[l])
		if code-count < first {
			return int(h.symbol[index+code-first]), nil
		}
		index += count
		first += count
		first <<= 1
		code <<= 1
	}
	return 0, fmt.Errorf("%w: deflate64: %w", codec.ErrCorrupt, errBadCode)
}
