// Package pakfs mounts Quake and Westwood PAK files.
//
// Quake files start with "PACK" and a table of fixed 64-byte records.
// Westwood files have no magic: they open with a chain of offset and
// name records whose first offset is the start of the data. Because
// nearly anything parses as a Westwood chain, that variant is only tried
// for files named *.pak.
package pakfs

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/meigma/arcvfs/archive"
	"github.com/meigma/arcvfs/internal/sizing"
	"github.com/meigma/arcvfs/vfs"
)

// SIG tags PAK entries in the metadata cache.
const SIG = "PAK"

const (
	quakeHeaderLen = 12
	quakeRecordLen = 64
	quakeNameLen   = 56

	// maxNameLen caps Westwood names.
	maxNameLen = 255

	// maxDirLen caps the directory table of either variant.
	maxDirLen = 16 << 20
)

// Variant identifies the PAK flavour of a mounted file.
type Variant int

const (
	Quake Variant = iota + 1
	Westwood
)

func (v Variant) String() string {
	switch v {
	case Quake:
		return "quake"
	case Westwood:
		return "westwood"
	default:
		return "unknown"
	}
}

// Driver is the PAK archive driver.
type Driver struct{}

var _ archive.Driver = Driver{}

// New returns the PAK driver.
func New() Driver { return Driver{} }

func (Driver) Name() string { return "pak" }

func (Driver) SIG() string { return SIG }

func (Driver) Extensions() []string { return []string{".pak"} }

// Detect mounts f as a Quake PAK when it carries the magic, or as a
// Westwood PAK when ext is ".pak" and the first record is plausible.
func (Driver) Detect(env *archive.Env, f vfs.File, ext string) (vfs.Dir, error) {
	if d, ok := archive.Reuse(env, f, SIG); ok {
		return d, nil
	}
	size, err := f.Size()
	if err != nil {
		return nil, err
	}
	h, head, err := archive.Probe(f, 4+maxNameLen+1)
	if err != nil {
		return nil, err
	}

	var variant Variant
	switch {
	case isQuake(head, size):
		variant = Quake
	case ext == ".pak" && isWestwood(head, size):
		variant = Westwood
	default:
		h.Unref()
		return nil, archive.ErrNotMine
	}

	env.Logger().Debug("pak variant detected", "container", f.Name(), "variant", variant)
	return archive.Mount(env, f, archive.Config{
		SIG:     SIG,
		Backend: &backend{variant: variant},
		Handle:  h,
		Names:   archive.NamesCP437,
	})
}

func isQuake(head []byte, size uint64) bool {
	if len(head) < quakeHeaderLen || string(head[:4]) != "PACK" {
		return false
	}
	off := uint64(binary.LittleEndian.Uint32(head[4:]))
	n := uint64(binary.LittleEndian.Uint32(head[8:]))
	return n%quakeRecordLen == 0 && off >= quakeHeaderLen && off+n <= size
}

func isWestwood(head []byte, size uint64) bool {
	if len(head) < 6 {
		return false
	}
	first := uint64(binary.LittleEndian.Uint32(head))
	if first < 6 || first > size {
		return false
	}
	end := bytes.IndexByte(head[4:], 0)
	return end > 0 && uint64(4+end) < first
}

// backend reads the whole directory table in one scan step.
type backend struct {
	variant Variant
}

func (b *backend) Scan(inst *archive.Instance) (bool, error) {
	h, err := inst.Handle()
	if err != nil {
		return false, err
	}
	t := inst.Tree()
	switch b.variant {
	case Quake:
		err = scanQuake(h, t, inst.ContainerSize())
	case Westwood:
		err = scanWestwood(h, t, inst.ContainerSize())
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func scanQuake(h vfs.FileHandle, t *archive.Tree, size uint64) error {
	var hdr [quakeHeaderLen]byte
	if err := archive.ReadAt(h, hdr[:], 0); err != nil {
		return fmt.Errorf("pak: header: %w", err)
	}
	off := uint64(binary.LittleEndian.Uint32(hdr[4:]))
	n := uint64(binary.LittleEndian.Uint32(hdr[8:]))
	dir, err := sizing.Buffer(n, maxDirLen)
	if err != nil {
		return fmt.Errorf("pak: directory of %d bytes: %w", n, err)
	}
	if err := archive.ReadAt(h, dir, off); err != nil {
		return fmt.Errorf("pak: directory: %w", err)
	}
	for rec := dir; len(rec) >= quakeRecordLen; rec = rec[quakeRecordLen:] {
		name := rec[:quakeNameLen]
		if i := bytes.IndexByte(name, 0); i >= 0 {
			name = name[:i]
		}
		pos := uint64(binary.LittleEndian.Uint32(rec[quakeNameLen:]))
		n := uint64(binary.LittleEndian.Uint32(rec[quakeNameLen+4:]))
		if pos+n > size {
			return fmt.Errorf("pak: %q runs past the end: %w", name, vfs.ErrMalformed)
		}
		t.Insert(string(name), archive.Entry{Offset: pos, CompSize: n, Size: n, SizeKnown: true})
	}
	return nil
}

func scanWestwood(h vfs.FileHandle, t *archive.Tree, size uint64) error {
	var word [4]byte
	if err := archive.ReadAt(h, word[:], 0); err != nil {
		return fmt.Errorf("pak: header: %w", err)
	}
	first := uint64(binary.LittleEndian.Uint32(word[:]))
	dir, err := sizing.Buffer(first, maxDirLen)
	if err != nil {
		return fmt.Errorf("pak: directory of %d bytes: %w", first, err)
	}
	if err := archive.ReadAt(h, dir, 0); err != nil {
		return fmt.Errorf("pak: directory: %w", err)
	}

	type record struct {
		name string
		off  uint64
	}
	var recs []record
	rest := dir
	for {
		if len(rest) < 4 {
			// The table may end exactly at the first data byte.
			break
		}
		off := uint64(binary.LittleEndian.Uint32(rest))
		rest = rest[4:]
		if off == 0 || off == size {
			break
		}
		if off > size || (len(recs) > 0 && off < recs[len(recs)-1].off) {
			return fmt.Errorf("pak: offset %d out of order: %w", off, vfs.ErrMalformed)
		}
		end := bytes.IndexByte(rest, 0)
		if end < 0 || end > maxNameLen {
			return fmt.Errorf("pak: record %d: name: %w", len(recs), vfs.ErrLimit)
		}
		recs = append(recs, record{name: string(rest[:end]), off: off})
		rest = rest[end+1:]
	}
	for i, r := range recs {
		next := size
		if i+1 < len(recs) {
			next = recs[i+1].off
		}
		n := next - r.off
		t.Insert(r.name, archive.Entry{Offset: r.off, CompSize: n, Size: n, SizeKnown: true})
	}
	return nil
}

func (b *backend) Open(inst *archive.Instance, i uint32) (archive.Member, error) {
	e := inst.Tree().Files[i]
	return inst.Section(e.Offset, e.Size)
}

func (b *backend) Close() {}
