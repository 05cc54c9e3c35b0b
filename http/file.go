package http

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"

	"github.com/meigma/arcvfs/vfs"
)

// File is a remote file exposed as a top-level vfs.File. It has no
// parent, so split archives whose volumes live next to it cannot be
// resolved.
type File struct {
	src  *Source
	name string
	id   uint32
	refs int
}

var (
	_ vfs.File       = (*File)(nil)
	_ vfs.FileHandle = (*handle)(nil)
)

// Open probes rawURL and returns it as a vfs.File. The ID is derived from
// the URL, and the display name is the last path element.
func Open(ids *vfs.IDs, rawURL string, opts ...Option) (*File, error) {
	src, err := NewSource(rawURL, opts...)
	if err != nil {
		return nil, vfs.IOError(err)
	}
	return &File{
		src:  src,
		name: displayName(rawURL),
		id:   ids.Intern(vfs.NoID, rawURL),
		refs: 1,
	}, nil
}

func displayName(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Path == "" || u.Path == "/" {
		return rawURL
	}
	name := path.Base(u.Path)
	if unescaped, err := url.PathUnescape(name); err == nil {
		return unescaped
	}
	return name
}

// Source returns the underlying range reader.
func (f *File) Source() *Source { return f.src }

func (f *File) Ref()            { f.refs++ }
func (f *File) Unref()          { f.refs-- }
func (f *File) ID() uint32      { return f.id }
func (f *File) Name() string    { return f.name }
func (f *File) Parent() vfs.Dir { return nil }
func (f *File) SizeReady() bool { return true }

func (f *File) Size() (uint64, error) {
	return uint64(f.src.Size()), nil //nolint:gosec // probed sizes are non-negative
}

func (f *File) Open() (vfs.FileHandle, error) {
	f.Ref()
	return &handle{
		file: f,
		size: uint64(f.src.Size()), //nolint:gosec // probed sizes are non-negative
		buf:  make([]byte, 0, f.src.blockSize),
		refs: 1,
	}, nil
}

// handle reads the remote in blocks and serves reads from the last block
// fetched.
type handle struct {
	file *File
	size uint64
	pos  uint64

	// buf holds the bytes at [start, start+len(buf)).
	buf   []byte
	start uint64

	err  error
	refs int
}

func (h *handle) Read(p []byte) (int, error) {
	if h.err != nil {
		return 0, h.err
	}
	if len(p) == 0 {
		return 0, nil
	}
	if h.pos >= h.size {
		return 0, io.EOF
	}
	if h.pos < h.start || h.pos >= h.start+uint64(len(h.buf)) {
		if err := h.fill(); err != nil {
			h.err = err
			return 0, err
		}
	}
	n := copy(p, h.buf[h.pos-h.start:])
	h.pos += uint64(n) //nolint:gosec // n is non-negative
	return n, nil
}

func (h *handle) fill() error {
	want := uint64(cap(h.buf))
	if left := h.size - h.pos; left < want {
		want = left
	}
	buf := h.buf[:want]
	n, err := h.file.src.ReadAt(buf, int64(h.pos)) //nolint:gosec // pos < size
	if err != nil && !(errors.Is(err, io.EOF) && n > 0) {
		h.buf = h.buf[:0]
		return vfs.IOError(fmt.Errorf("http: %s: %w", h.file.src.URL(), err))
	}
	h.buf = buf[:n]
	h.start = h.pos
	return nil
}

func (h *handle) Ref() { h.refs++ }

func (h *handle) Unref() {
	if h.refs <= 0 {
		return
	}
	h.refs--
	if h.refs == 0 {
		h.file.Unref()
	}
}

func (h *handle) SeekSet(pos uint64) error {
	h.pos = pos
	h.err = nil
	return nil
}

func (h *handle) Pos() uint64           { return h.pos }
func (h *handle) EOF() bool             { return h.pos >= h.size }
func (h *handle) Err() error            { return h.err }
func (h *handle) Size() (uint64, error) { return h.size, nil }
func (h *handle) SizeReady() bool       { return true }
