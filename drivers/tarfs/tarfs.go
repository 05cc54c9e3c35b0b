// Package tarfs mounts tar archives. The index is built one header per
// iteration step, so listings of large tarballs stream in as they are
// read.
package tarfs

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/meigma/arcvfs/archive"
	"github.com/meigma/arcvfs/vfs"
)

// SIG tags tar entries in the metadata cache.
const SIG = "TAR"

const (
	blockSize = 512

	// maxExtHeader caps GNU long names and pax records.
	maxExtHeader = 1 << 20

	checksumOff = 148
	ustarMagic  = "ustar\x00"
)

// Header type flags.
const (
	typeReg       = '0'
	typeRegA      = '\x00'
	typeDir       = '5'
	typeCont      = '7'
	typeGNULong   = 'L'
	typeGNULink   = 'K'
	typePAX       = 'x'
	typePAXGlobal = 'g'
)

// Driver is the tar archive driver.
type Driver struct{}

var _ archive.Driver = Driver{}

// New returns the tar driver.
func New() Driver { return Driver{} }

func (Driver) Name() string { return "tar" }

func (Driver) SIG() string { return SIG }

func (Driver) Extensions() []string { return []string{".tar"} }

// Detect mounts f when its first block is a tar header with a valid
// checksum.
func (Driver) Detect(env *archive.Env, f vfs.File, _ string) (vfs.Dir, error) {
	if d, ok := archive.Reuse(env, f, SIG); ok {
		return d, nil
	}
	h, head, err := archive.Probe(f, blockSize)
	if err != nil {
		return nil, err
	}
	if len(head) < blockSize || !validChecksum(head) {
		h.Unref()
		return nil, archive.ErrNotMine
	}
	return archive.Mount(env, f, archive.Config{
		SIG:     SIG,
		Backend: &backend{},
		Handle:  h,
		Names:   archive.NamesUTF8OrCP437,
	})
}

// backend walks the archive header by header.
type backend struct {
	off      uint64
	zeros    int
	longName string
	paxPath  string
	block    [blockSize]byte
}

func (b *backend) Scan(inst *archive.Instance) (bool, error) {
	h, err := inst.Handle()
	if err != nil {
		return false, err
	}
	if b.off+blockSize > inst.ContainerSize() {
		return true, nil
	}
	if err := archive.ReadAt(h, b.block[:], b.off); err != nil {
		return false, fmt.Errorf("tar: header at %d: %w", b.off, err)
	}
	hdr := b.block[:]
	dataOff := b.off + blockSize

	if isZero(hdr) {
		b.zeros++
		b.off = dataOff
		return b.zeros == 2, nil
	}
	b.zeros = 0
	if !validChecksum(hdr) {
		return false, fmt.Errorf("tar: header at %d: bad checksum: %w", b.off, vfs.ErrMalformed)
	}
	size, err := parseNumeric(hdr[124:136])
	if err != nil {
		return false, fmt.Errorf("tar: header at %d: size: %w", b.off, err)
	}
	if size > inst.ContainerSize()-dataOff {
		return false, fmt.Errorf("tar: member at %d runs past the end: %w", b.off, vfs.ErrMalformed)
	}
	b.off = dataOff + (size+blockSize-1)/blockSize*blockSize

	switch flag := hdr[156]; flag {
	case typeGNULong:
		data, err := readExt(h, dataOff, size)
		if err != nil {
			return false, err
		}
		b.longName = cstring(data)
	case typeGNULink, typePAXGlobal:
	case typePAX:
		data, err := readExt(h, dataOff, size)
		if err != nil {
			return false, err
		}
		if p, ok := paxPath(data); ok {
			b.paxPath = p
		}
	case typeReg, typeRegA, typeCont, typeDir:
		name, utf8 := b.memberName(hdr)
		if flag == typeDir && !strings.HasSuffix(name, "/") {
			name += "/"
		}
		inst.Tree().Insert(name, archive.Entry{
			UTF8:      utf8,
			Offset:    dataOff,
			CompSize:  size,
			Size:      size,
			SizeKnown: true,
		})
	default:
		b.longName, b.paxPath = "", ""
	}
	return false, nil
}

// memberName returns the path of the current header, consuming any
// pending extended name.
func (b *backend) memberName(hdr []byte) (string, bool) {
	defer func() { b.longName, b.paxPath = "", "" }()
	if b.paxPath != "" {
		return b.paxPath, true
	}
	if b.longName != "" {
		return b.longName, false
	}
	name := cstring(hdr[0:100])
	if string(hdr[257:263]) == ustarMagic {
		if prefix := cstring(hdr[345:500]); prefix != "" {
			name = prefix + "/" + name
		}
	}
	return name, false
}

func (b *backend) Open(inst *archive.Instance, i uint32) (archive.Member, error) {
	e := inst.Tree().Files[i]
	return inst.Section(e.Offset, e.Size)
}

func (b *backend) Close() {}

func readExt(h vfs.FileHandle, off, size uint64) ([]byte, error) {
	if size > maxExtHeader {
		return nil, fmt.Errorf("tar: extended header of %d bytes: %w", size, vfs.ErrLimit)
	}
	data := make([]byte, size)
	if err := archive.ReadAt(h, data, off); err != nil {
		return nil, fmt.Errorf("tar: extended header at %d: %w", off, err)
	}
	return data, nil
}

// paxPath extracts the path record from a pax extended header.
func paxPath(data []byte) (string, bool) {
	var path string
	var found bool
	for len(data) > 0 {
		sp := bytes.IndexByte(data, ' ')
		if sp <= 0 {
			break
		}
		n, err := strconv.Atoi(string(data[:sp]))
		if err != nil || n <= sp || n > len(data) {
			break
		}
		rec := data[sp+1 : n]
		data = data[n:]
		rec = bytes.TrimSuffix(rec, []byte("\n"))
		key, value, ok := bytes.Cut(rec, []byte("="))
		if ok && string(key) == "path" {
			path, found = string(value), true
		}
	}
	return path, found
}

// validChecksum accepts both the unsigned and the historic signed sum of
// the header with the checksum field read as spaces.
func validChecksum(hdr []byte) bool {
	want, err := parseNumeric(hdr[checksumOff : checksumOff+8])
	if err != nil {
		return false
	}
	var unsigned uint64
	var signed int64
	for i, c := range hdr[:blockSize] {
		if i >= checksumOff && i < checksumOff+8 {
			c = ' '
		}
		unsigned += uint64(c)
		signed += int64(int8(c))
	}
	return want == unsigned || int64(want) == signed //nolint:gosec // checksum fits in 17 bits
}

var errBadNumber = fmt.Errorf("tar: invalid numeric field: %w", vfs.ErrMalformed)

// parseNumeric decodes an octal field, or a GNU base-256 field when the
// top bit of the first byte is set.
func parseNumeric(field []byte) (uint64, error) {
	if len(field) > 0 && field[0]&0x80 != 0 {
		if field[0]&0x40 != 0 {
			return 0, fmt.Errorf("%w: negative", errBadNumber)
		}
		var v uint64
		for i, c := range field {
			if i == 0 {
				c &= 0x7f
			}
			if v>>56 != 0 {
				return 0, fmt.Errorf("%w: %w", errBadNumber, vfs.ErrLimit)
			}
			v = v<<8 | uint64(c)
		}
		return v, nil
	}
	s := strings.Trim(string(field), " \x00")
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseUint(s, 8, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", errBadNumber, s)
	}
	return v, nil
}

func cstring(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}

func isZero(b []byte) bool {
	for _, c := range b {
		if c != 0 {
			return false
		}
	}
	return true
}
