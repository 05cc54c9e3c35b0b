package archive

import (
	"errors"
	"fmt"
	"io"

	"github.com/meigma/arcvfs/vfs"
)

// discardChunk is the forward-seek granularity; the yield hook runs after
// every chunk.
const discardChunk = 64 << 10

// handle is the vfs.FileHandle of an archive member.
type handle struct {
	inst  *Instance
	index uint32
	m     Member
	refs  int

	pos     uint64
	eof     bool
	err     error
	discard []byte
}

var _ vfs.FileHandle = (*handle)(nil)

func (h *handle) Ref() { h.refs++ }

func (h *handle) Unref() {
	if h.refs <= 0 {
		return
	}
	h.refs--
	if h.refs > 0 {
		return
	}
	if c, ok := h.m.(io.Closer); ok {
		_ = c.Close()
	}
	h.m = nil
	h.inst.Unref()
}

func (h *handle) entry() *Entry { return &h.inst.tree.Files[h.index] }

func (h *handle) Read(p []byte) (int, error) {
	if h.err != nil {
		return 0, h.err
	}
	if len(p) == 0 {
		return 0, nil
	}
	if h.eof {
		return 0, io.EOF
	}
	e := h.entry()
	bounded := e.SizeKnown && !h.inst.provisional
	if bounded {
		if h.pos >= e.Size {
			h.eof = true
			return 0, io.EOF
		}
		if left := e.Size - h.pos; uint64(len(p)) > left {
			p = p[:left]
		}
	}

	n, err := h.m.Read(p)
	h.pos += uint64(n) //nolint:gosec // n is non-negative
	switch {
	case err == nil:
	case errors.Is(err, io.EOF):
		if bounded && h.pos < e.Size {
			h.err = fmt.Errorf("%w: member ends at %d of %d bytes", vfs.ErrMalformed, h.pos, e.Size)
			break
		}
		h.eof = true
		h.inst.learnSize(h.index, h.pos)
	default:
		h.err = classify(err)
	}

	if n > 0 {
		return n, nil
	}
	if h.err != nil {
		return 0, h.err
	}
	if h.eof {
		return 0, io.EOF
	}
	return 0, nil
}

// SeekSet repositions the cursor. Moving backwards, or leaving an error
// state, rewinds the member and decodes forward again.
func (h *handle) SeekSet(pos uint64) error {
	reset := h.err != nil || pos < h.pos
	h.err = nil
	h.eof = false
	if reset {
		if err := h.m.Rewind(); err != nil {
			h.err = classify(err)
			return h.err
		}
		h.pos = 0
	}
	if pos == h.pos {
		return nil
	}

	if s, ok := h.m.(Seeker); ok {
		if err := s.Seek(pos); err != nil {
			h.err = classify(err)
			return h.err
		}
		h.pos = pos
		return nil
	}

	if h.discard == nil {
		h.discard = make([]byte, discardChunk)
	}
	for h.pos < pos {
		n := min(uint64(len(h.discard)), pos-h.pos)
		_, err := h.Read(h.discard[:n])
		if errors.Is(err, io.EOF) {
			h.pos = pos
			return nil
		}
		if err != nil {
			return err
		}
		h.inst.env.Yield()
	}
	return nil
}

func (h *handle) Pos() uint64 { return h.pos }

func (h *handle) EOF() bool {
	if h.eof {
		return true
	}
	e := h.entry()
	return e.SizeKnown && !h.inst.provisional && h.pos >= e.Size
}

func (h *handle) Err() error { return h.err }

func (h *handle) Size() (uint64, error) { return h.inst.fileSize(h.index) }

func (h *handle) SizeReady() bool { return h.entry().SizeKnown }
