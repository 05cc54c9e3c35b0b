// Package gzipfs mounts gzip files as a directory holding the single
// decompressed member.
package gzipfs

import (
	"encoding/binary"
	"path"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"

	"github.com/meigma/arcvfs/archive"
	"github.com/meigma/arcvfs/codec"
	"github.com/meigma/arcvfs/vfs"
)

// SIG tags gzip entries in the metadata cache.
const SIG = "GZIP"

const (
	flagExtra   = 1 << 2
	flagName    = 1 << 3
	headerLen   = 10
	trailerLen  = 8
	maxNameLen  = 1024
	probeLen    = headerLen + 2 + 4096
	maxExpand   = 1032
	isizeLimit  = 1 << 32
	methodFlate = 8
)

// Driver is the gzip archive driver.
type Driver struct{}

var _ archive.Driver = Driver{}

// New returns the gzip driver.
func New() Driver { return Driver{} }

func (Driver) Name() string { return "gzip" }

func (Driver) SIG() string { return SIG }

func (Driver) Extensions() []string { return []string{".gz", ".tgz"} }

// Detect mounts f when it starts with a gzip header.
func (Driver) Detect(env *archive.Env, f vfs.File, _ string) (vfs.Dir, error) {
	if d, ok := archive.Reuse(env, f, SIG); ok {
		return d, nil
	}
	h, head, err := archive.Probe(f, probeLen)
	if err != nil {
		return nil, err
	}
	if len(head) < headerLen || head[0] != 0x1f || head[1] != 0x8b || head[2] != methodFlate {
		h.Unref()
		return nil, archive.ErrNotMine
	}

	size, err := f.Size()
	if err != nil {
		h.Unref()
		return nil, err
	}

	cfg := archive.StreamConfig{
		SIG:       SIG,
		Handle:    h,
		Name:      memberName(head, f.Name()),
		NewReader: codec.NewGzip,
	}
	if TrustISize(size) && size >= headerLen+trailerLen {
		var isize [4]byte
		if err := archive.ReadAt(h, isize[:], size-4); err == nil {
			cfg.Size = uint64(binary.LittleEndian.Uint32(isize[:]))
			cfg.SizeKnown = true
		}
	}
	return archive.MountStream(env, f, cfg)
}

// TrustISize reports whether the 32-bit ISIZE trailer of a gzip file of
// the given size can be trusted: deflate expands at most 1032 times, so a
// small enough container cannot hold a member whose size wrapped.
func TrustISize(containerSize uint64) bool {
	return containerSize <= (isizeLimit-1)/maxExpand
}

// memberName returns the FNAME header field when present, else the
// container name without its extension.
func memberName(head []byte, container string) string {
	flags := head[3]
	p := headerLen
	if flags&flagExtra != 0 {
		if len(head) < p+2 {
			return archive.StripExt(container)
		}
		p += 2 + int(binary.LittleEndian.Uint16(head[p:]))
	}
	if flags&flagName == 0 || p >= len(head) {
		return archive.StripExt(container)
	}
	end := p
	for end < len(head) && head[end] != 0 && end-p < maxNameLen {
		end++
	}
	if end >= len(head) || head[end] != 0 {
		return archive.StripExt(container)
	}
	name := head[p:end]
	if !utf8.Valid(name) {
		if dec, err := charmap.ISO8859_1.NewDecoder().Bytes(name); err == nil {
			name = dec
		}
	}
	base := path.Base(string(name))
	if base == "." || base == "/" || base == "" {
		return archive.StripExt(container)
	}
	return base
}
