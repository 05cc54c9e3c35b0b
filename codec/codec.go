// Package codec defines the streaming decoder contract shared by the
// archive drivers and adapts it to io.Reader.
//
// The bespoke legacy decoders (unlzw, shrink, explode) are push engines:
// the caller offers compressed bytes with Feed and collects decoded bytes
// with Digest. Pump turns any Engine plus a byte source into a Reader.
// Deflate and bzip2 are served by library decoders that are already pull
// based and are wrapped to the same Reader contract. Deflate64 has no
// library decoder; inflate64 implements Reader directly.
package codec

import (
	"errors"
	"io"
)

// ErrCorrupt reports compressed data that cannot be decoded.
var ErrCorrupt = errors.New("codec: corrupt input")

// Engine is a push-style streaming decoder.
type Engine interface {
	// Feed offers compressed bytes and returns how many were consumed.
	// It consumes less than offered when the output buffer is full; the
	// caller must Digest before feeding again. After Finish, Feed(nil)
	// continues decoding buffered input.
	Feed(in []byte) int

	// Digest returns the bytes decoded since the previous Digest. The
	// slice is valid until the next Feed or Reset.
	Digest() []byte

	// Finish signals that no more input follows.
	Finish()

	// Done reports that the engine will produce no more output.
	Done() bool

	// Err returns the terminal error, if any.
	Err() error

	// Reset returns the engine to its initial state.
	Reset()
}

// Reader is a resettable decompressing reader.
type Reader interface {
	io.Reader

	// Reset discards all decoder state and starts decoding src.
	Reset(src io.Reader) error
}

// maxEmptyReads bounds consecutive zero-byte reads from a source.
const maxEmptyReads = 100

const pumpBufSize = 32 << 10

type pump struct {
	e        Engine
	src      io.Reader
	buf      []byte
	r, w     int
	pending  []byte
	srcEOF   bool
	finished bool
	err      error
}

// Pump returns a Reader that feeds bytes read from src into e.
//
// Read returns io.EOF once the source is exhausted and the engine has
// nothing more to emit. Errors from src are returned unchanged and are
// sticky until Reset.
func Pump(e Engine, src io.Reader) Reader {
	return &pump{
		e:   e,
		src: src,
		buf: make([]byte, pumpBufSize),
	}
}

func (p *pump) Reset(src io.Reader) error {
	p.e.Reset()
	p.src = src
	p.r, p.w = 0, 0
	p.pending = nil
	p.srcEOF = false
	p.finished = false
	p.err = nil
	return nil
}

func (p *pump) Read(b []byte) (int, error) {
	if len(b) == 0 {
		return 0, nil
	}
	empty := 0
	for {
		if len(p.pending) > 0 {
			n := copy(b, p.pending)
			p.pending = p.pending[n:]
			return n, nil
		}
		if p.err != nil {
			return 0, p.err
		}
		if err := p.e.Err(); err != nil {
			p.err = err
			return 0, err
		}
		if p.e.Done() {
			return 0, io.EOF
		}

		if p.r == p.w {
			if p.srcEOF {
				if !p.finished {
					p.e.Finish()
					p.finished = true
				}
				p.e.Feed(nil)
				p.pending = p.e.Digest()
				if len(p.pending) == 0 && p.e.Err() == nil {
					return 0, io.EOF
				}
				continue
			}
			n, err := p.src.Read(p.buf)
			p.r, p.w = 0, n
			if err != nil {
				if !errors.Is(err, io.EOF) {
					p.err = err
					if n == 0 {
						return 0, err
					}
				}
				p.srcEOF = true
			}
			if n == 0 && !p.srcEOF {
				empty++
				if empty >= maxEmptyReads {
					p.err = io.ErrNoProgress
					return 0, p.err
				}
			}
			continue
		}

		used := p.e.Feed(p.buf[p.r:p.w])
		p.r += used
		p.pending = p.e.Digest()
		if used == 0 && len(p.pending) == 0 && p.e.Err() == nil && !p.e.Done() {
			p.err = io.ErrNoProgress
			return 0, p.err
		}
	}
}
