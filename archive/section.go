package archive

import (
	"io"

	"github.com/meigma/arcvfs/vfs"
)

// Unbounded is a Section length that extends to the end of the container.
const Unbounded = ^uint64(0)

// Section reads a byte range of a shared handle. Every read positions the
// handle first when another reader moved it, so several sections can
// share one container handle.
type Section struct {
	h   vfs.FileHandle
	off uint64
	n   uint64
	pos uint64
}

var (
	_ Member = (*Section)(nil)
	_ Seeker = (*Section)(nil)
)

// NewSection returns a reader over n bytes of h starting at off. The
// handle is borrowed.
func NewSection(h vfs.FileHandle, off, n uint64) *Section {
	return &Section{h: h, off: off, n: n}
}

// Read implements io.Reader. It returns io.EOF at the end of the range or
// of the underlying handle, whichever comes first.
func (s *Section) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if s.n != Unbounded {
		if s.pos >= s.n {
			return 0, io.EOF
		}
		if left := s.n - s.pos; uint64(len(p)) > left {
			p = p[:left]
		}
	}
	want := s.off + s.pos
	if s.h.Pos() != want || s.h.Err() != nil {
		if err := s.h.SeekSet(want); err != nil {
			return 0, err
		}
	}
	n, err := s.h.Read(p)
	s.pos += uint64(n) //nolint:gosec // n is non-negative
	return n, err
}

// Rewind moves back to the start of the range and repositions the handle
// immediately.
func (s *Section) Rewind() error {
	s.pos = 0
	return s.h.SeekSet(s.off)
}

// Seek moves to pos within the range. The handle is positioned lazily.
func (s *Section) Seek(pos uint64) error {
	s.pos = pos
	return nil
}

// Pos returns the position within the range.
func (s *Section) Pos() uint64 { return s.pos }

// ReadFull reads exactly len(p) bytes, reporting a short range as
// vfs.ErrMalformed.
func (s *Section) ReadFull(p []byte) error {
	if _, err := io.ReadFull(s, p); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF { //nolint:errorlint // io.ReadFull returns these unwrapped
			return truncated(err)
		}
		return err
	}
	return nil
}

// ReadAt reads exactly len(p) bytes at absolute container offset off
// through h.
func ReadAt(h vfs.FileHandle, p []byte, off uint64) error {
	return NewSection(h, off, uint64(len(p))).ReadFull(p)
}
