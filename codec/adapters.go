package codec

import (
	"errors"
	"fmt"
	"io"

	"github.com/dsnet/compress/bzip2"
	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
)

type flateReader struct {
	rc  io.ReadCloser
	err error
}

// NewFlate returns a Reader decoding a raw deflate stream from src.
// Malformed or truncated streams fail with ErrCorrupt.
func NewFlate(src io.Reader) Reader {
	return &flateReader{rc: flate.NewReader(src)}
}

func (f *flateReader) Read(b []byte) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	n, err := f.rc.Read(b)
	if err != nil && !errors.Is(err, io.EOF) {
		f.err = classify("deflate", err)
		if n > 0 {
			return n, nil
		}
		return 0, f.err
	}
	return n, err
}

func (f *flateReader) Reset(src io.Reader) error {
	f.err = nil
	return f.rc.(flate.Resetter).Reset(src, nil)
}

type bzip2Reader struct {
	zr  *bzip2.Reader
	err error
}

// NewBzip2 returns a Reader decoding a bzip2 stream from src.
func NewBzip2(src io.Reader) (Reader, error) {
	zr, err := bzip2.NewReader(src, nil)
	if err != nil {
		return nil, fmt.Errorf("codec: bzip2: %w", err)
	}
	return &bzip2Reader{zr: zr}, nil
}

func (z *bzip2Reader) Read(b []byte) (int, error) {
	if z.err != nil {
		return 0, z.err
	}
	n, err := z.zr.Read(b)
	if err != nil && !errors.Is(err, io.EOF) {
		z.err = classify("bzip2", err)
		if n > 0 {
			return n, nil
		}
		return 0, z.err
	}
	return n, err
}

// Reset starts over on src with a fresh decoder. The dsnet Reset keeps
// the remainder of the block decoded last.
func (z *bzip2Reader) Reset(src io.Reader) error {
	zr, err := bzip2.NewReader(src, nil)
	if err != nil {
		z.err = fmt.Errorf("codec: bzip2: %w", err)
		return z.err
	}
	z.zr = zr
	z.err = nil
	return nil
}

type gzipReader struct {
	zr  *gzip.Reader
	err error
}

// NewGzip returns a Reader decoding a gzip stream, including concatenated
// members, from src. The header is parsed immediately.
func NewGzip(src io.Reader) (Reader, error) {
	zr, err := gzip.NewReader(src)
	if err != nil {
		return nil, classify("gzip", err)
	}
	return &gzipReader{zr: zr}, nil
}

func (z *gzipReader) Read(b []byte) (int, error) {
	if z.err != nil {
		return 0, z.err
	}
	n, err := z.zr.Read(b)
	if err != nil && !errors.Is(err, io.EOF) {
		z.err = classify("gzip", err)
		if n > 0 {
			return n, nil
		}
		return 0, z.err
	}
	return n, err
}

func (z *gzipReader) Reset(src io.Reader) error {
	z.err = nil
	if err := z.zr.Reset(src); err != nil {
		z.err = classify("gzip", err)
		return z.err
	}
	return nil
}

// corruption is implemented by the error values of the dsnet decoders.
type corruption interface {
	IsCorrupted() bool
}

// classify maps decoder failures onto ErrCorrupt and passes source
// errors through.
func classify(name string, err error) error {
	var ce flate.CorruptInputError
	var cc corruption
	switch {
	case errors.As(err, &ce), errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, gzip.ErrHeader), errors.Is(err, gzip.ErrChecksum):
		return fmt.Errorf("%w: %s: %w", ErrCorrupt, name, err)
	case errors.As(err, &cc) && cc.IsCorrupted():
		return fmt.Errorf("%w: %s: %w", ErrCorrupt, name, err)
	default:
		return err
	}
}
