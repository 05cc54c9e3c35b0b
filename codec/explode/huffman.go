package explode

import (
	"fmt"

	"github.com/meigma/arcvfs/codec"
)

const maxCodeLen = 16

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
			return fmt.Errorf("%w: explode: over-subscribed code", codec.ErrCorrupt)
		}
	}

	var offs [maxCodeLen + 2]uint16
	for l := 1; l <= maxCodeLen; l++ {
		offs[l+1] = offs[l] + h.count[l]
	}
	if cap(h.symbol) < len(lengths) {
		h.symbol = make([]uint16, len(lengths))
	}
	h.symbol = h.symbol[:len(lengths)]
	for sym, l := range lengths {
		h.symbol[offs[l]] = uint16(sym) //nolint:gosec // at most 256 symbols
		offs[l]++
	}
	return nil
}

// decode reads one symbol. Implode stores its codes bit-inverted, so every
// input bit is complemented before it joins the code. It returns ok=false
// when the input runs out; a bad code sets the decoder error.
func (h *huffman) decode(d *Decoder) (uint16, bool) {
	code, first, index := 0, 0, 0
	for l := 1; l <= maxCodeLen; l++ {
		if !d.need(1) {
			return 0, false
		}
		code |= int(d.bits(1) ^ 1)
		count := int(h.count[l])
		if code-count < first {
			return h.symbol[index+code-first], true
		}
		index += count
		first += count
		first <<= 1
		code <<= 1
	}
	d.fail("invalid code")
	return 0, false
}
