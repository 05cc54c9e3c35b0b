package vfs

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
)

// Reader adapts a FileHandle to io.ReadSeeker. It does not take a
// reference; the handle must outlive the Reader.
type Reader struct {
	h FileHandle
}

// NewReader wraps h.
func NewReader(h FileHandle) *Reader {
	return &Reader{h: h}
}

// Read implements io.Reader.
func (r *Reader) Read(p []byte) (int, error) {
	return r.h.Read(p)
}

// Seek implements io.Seeker. io.SeekEnd asks the handle for its size,
// which may decode the whole stream.
func (r *Reader) Seek(offset int64, whence int) (int64, error) {
	var base uint64
	switch whence {
	case io.SeekStart:
	case io.SeekCurrent:
		base = r.h.Pos()
	case io.SeekEnd:
		size, err := r.h.Size()
		if err != nil {
			return 0, err
		}
		base = size
	default:
		return 0, fmt.Errorf("vfs: seek: invalid whence %d", whence)
	}
	if base > math.MaxInt64 {
		return 0, ErrNoMemory
	}
	abs := int64(base) + offset
	if abs < 0 {
		return 0, errors.New("vfs: seek: negative position")
	}
	if err := r.h.SeekSet(uint64(abs)); err != nil {
		return 0, err
	}
	return abs, nil
}

// ReadAll reads from the current position of h to the end.
func ReadAll(h FileHandle) ([]byte, error) {
	var buf bytes.Buffer
	if h.SizeReady() {
		if size, err := h.Size(); err == nil && size > h.Pos() && size-h.Pos() < math.MaxInt32 {
			buf.Grow(int(size - h.Pos()))
		}
	}
	_, err := buf.ReadFrom(h)
	if err != nil {
		return buf.Bytes(), err
	}
	return buf.Bytes(), nil
}

// ReadFile opens f, reads it completely and releases the handle.
func ReadFile(f File) ([]byte, error) {
	h, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer h.Unref()
	return ReadAll(h)
}
