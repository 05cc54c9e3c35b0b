// Package rpgfs mounts OHRRPGCE .rpg lump files: a flat run of
// [name\0][size][data] records with no header.
package rpgfs

import (
	"bytes"
	"fmt"

	"github.com/meigma/arcvfs/archive"
	"github.com/meigma/arcvfs/vfs"
)

// SIG tags RPG entries in the metadata cache.
const SIG = "RPG"

// maxNameLen caps lump names.
const maxNameLen = 255

// recordHead is the longest name, its terminator and the size word.
const recordHead = maxNameLen + 1 + 4

// Driver is the RPG archive driver.
type Driver struct{}

var _ archive.Driver = Driver{}

// New returns the RPG driver.
func New() Driver { return Driver{} }

func (Driver) Name() string { return "rpg" }

func (Driver) SIG() string { return SIG }

func (Driver) Extensions() []string { return []string{".rpg"} }

// Detect mounts f when it is named *.rpg and its first lump fits in the
// file.
func (Driver) Detect(env *archive.Env, f vfs.File, ext string) (vfs.Dir, error) {
	if ext != ".rpg" {
		return nil, archive.ErrNotMine
	}
	if d, ok := archive.Reuse(env, f, SIG); ok {
		return d, nil
	}
	size, err := f.Size()
	if err != nil {
		return nil, err
	}
	h, head, err := archive.Probe(f, recordHead)
	if err != nil {
		return nil, err
	}
	if _, _, err := parseRecord(head, size); err != nil {
		h.Unref()
		env.Logger().Debug("not an rpg file", "container", f.Name(), "error", err)
		return nil, archive.ErrNotMine
	}
	return archive.Mount(env, f, archive.Config{
		SIG:     SIG,
		Backend: &backend{},
		Handle:  h,
		Names:   archive.NamesCP437,
	})
}

// PDP32 decodes a 32-bit value stored high word first, each word
// little-endian.
func PDP32(b []byte) uint32 {
	return uint32(b[1])<<24 | uint32(b[0])<<16 | uint32(b[3])<<8 | uint32(b[2])
}

// parseRecord decodes the record at the start of head, which begins
// remain bytes before the end of the file. It returns the name and the
// length of the record header.
func parseRecord(head []byte, remain uint64) (string, uint64, error) {
	end := bytes.IndexByte(head[:min(len(head), maxNameLen+1)], 0)
	switch {
	case end < 0 && len(head) > maxNameLen:
		return "", 0, fmt.Errorf("rpg: lump name: %w", vfs.ErrLimit)
	case end < 0, len(head) < end+5:
		return "", 0, fmt.Errorf("rpg: truncated lump header: %w", vfs.ErrMalformed)
	case end == 0:
		return "", 0, fmt.Errorf("rpg: empty lump name: %w", vfs.ErrMalformed)
	}
	n := uint64(PDP32(head[end+1:]))
	hdr := uint64(end) + 5
	if n > remain-hdr {
		return "", 0, fmt.Errorf("rpg: lump %q of %d bytes runs past the end: %w", head[:end], n, vfs.ErrMalformed)
	}
	return string(head[:end]), n, nil
}

// backend reads one lump header per scan step.
type backend struct {
	off uint64
	buf [recordHead]byte
}

func (b *backend) Scan(inst *archive.Instance) (bool, error) {
	size := inst.ContainerSize()
	if b.off >= size {
		return true, nil
	}
	h, err := inst.Handle()
	if err != nil {
		return false, err
	}
	head := b.buf[:min(uint64(len(b.buf)), size-b.off)]
	if err := archive.ReadAt(h, head, b.off); err != nil {
		return false, fmt.Errorf("rpg: lump at %d: %w", b.off, err)
	}
	name, n, err := parseRecord(head, size-b.off)
	if err != nil {
		if len(inst.Tree().Files) == 0 {
			return false, err
		}
		inst.Logger().Warn("ignoring trailing data", "offset", b.off, "error", err)
		return true, nil
	}
	data := b.off + uint64(len(name)) + 5
	inst.Tree().AddFile(archive.Entry{
		Raw:       name,
		Offset:    data,
		CompSize:  n,
		Size:      n,
		SizeKnown: true,
	})
	b.off = data + n
	return false, nil
}

func (b *backend) Open(inst *archive.Instance, i uint32) (archive.Member, error) {
	e := inst.Tree().Files[i]
	return inst.Section(e.Offset, e.Size)
}

func (b *backend) Close() {}
