package zipfs

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"

	"github.com/meigma/arcvfs/archive"
	"github.com/meigma/arcvfs/vfs"
)

// directory locates the central directory.
type directory struct {
	lastDisk uint32
	cdDisk   uint32
	cdOffset uint64
	cdSize   uint64
	entries  uint64
	zip64    bool
}

// findDirectory searches the last 64 KiB + 22 bytes of the final volume
// for the end of central directory record, following the ZIP64 locator
// when a field is saturated.
func findDirectory(h vfs.FileHandle, size uint64) (directory, error) {
	if size < eocdLen {
		return directory{}, errNoDirectory
	}
	tailLen := min(size, maxCommentLen+eocdLen)
	tail := make([]byte, tailLen)
	if err := archive.ReadAt(h, tail, size-tailLen); err != nil {
		return directory{}, fmt.Errorf("zip: reading tail: %w", err)
	}
	at := -1
	for i := len(tail) - eocdLen; i >= 0; i-- {
		if binary.LittleEndian.Uint32(tail[i:]) == sigEOCD {
			at = i
			break
		}
	}
	if at < 0 {
		return directory{}, errNoDirectory
	}
	eocdPos := size - tailLen + uint64(at)
	rec := tail[at : at+eocdLen]

	d := directory{
		lastDisk: uint32(binary.LittleEndian.Uint16(rec[4:])),
		cdDisk:   uint32(binary.LittleEndian.Uint16(rec[6:])),
		entries:  uint64(binary.LittleEndian.Uint16(rec[10:])),
		cdSize:   uint64(binary.LittleEndian.Uint32(rec[12:])),
		cdOffset: uint64(binary.LittleEndian.Uint32(rec[16:])),
	}
	if d.lastDisk == 0xffff || d.cdDisk == 0xffff || d.entries == 0xffff ||
		d.cdSize == 0xffffffff || d.cdOffset == 0xffffffff {
		if err := d.readZip64(h, eocdPos); err != nil {
			return directory{}, err
		}
	}
	if d.lastDisk+1 > maxVolumes {
		return directory{}, fmt.Errorf("zip: %d volumes: %w", d.lastDisk+1, vfs.ErrLimit)
	}
	if d.cdDisk > d.lastDisk {
		return directory{}, fmt.Errorf("zip: central directory on disk %d of %d: %w", d.cdDisk, d.lastDisk, vfs.ErrMalformed)
	}
	if d.lastDisk == 0 && d.cdOffset+d.cdSize > eocdPos {
		return directory{}, fmt.Errorf("zip: central directory overlaps its end record: %w", vfs.ErrMalformed)
	}
	return d, nil
}

func (d *directory) readZip64(h vfs.FileHandle, eocdPos uint64) error {
	if eocdPos < zip64LocatorLen {
		return fmt.Errorf("zip: saturated end record without zip64 locator: %w", vfs.ErrMalformed)
	}
	var loc [zip64LocatorLen]byte
	if err := archive.ReadAt(h, loc[:], eocdPos-zip64LocatorLen); err != nil {
		return fmt.Errorf("zip: zip64 locator: %w", err)
	}
	if binary.LittleEndian.Uint32(loc[:]) != sigZip64Locator {
		return fmt.Errorf("zip: saturated end record without zip64 locator: %w", vfs.ErrMalformed)
	}
	recOff := binary.LittleEndian.Uint64(loc[8:])
	disks := binary.LittleEndian.Uint32(loc[16:])
	if disks == 0 || disks > maxVolumes {
		return fmt.Errorf("zip: %d volumes: %w", disks, vfs.ErrLimit)
	}

	var rec [zip64EOCDLen]byte
	if err := archive.ReadAt(h, rec[:], recOff); err != nil {
		return fmt.Errorf("zip: zip64 end record: %w", err)
	}
	if binary.LittleEndian.Uint32(rec[:]) != sigZip64EOCD {
		return fmt.Errorf("zip: bad zip64 end record signature: %w", vfs.ErrMalformed)
	}
	d.zip64 = true
	d.lastDisk = binary.LittleEndian.Uint32(rec[16:])
	d.cdDisk = binary.LittleEndian.Uint32(rec[20:])
	d.entries = binary.LittleEndian.Uint64(rec[32:])
	d.cdSize = binary.LittleEndian.Uint64(rec[40:])
	d.cdOffset = binary.LittleEndian.Uint64(rec[48:])
	if d.lastDisk != disks-1 {
		return fmt.Errorf("zip: zip64 records disagree on the volume count: %w", vfs.ErrMalformed)
	}
	return nil
}

// header is one parsed central directory record.
type header struct {
	name     string
	utf8     bool
	flags    uint16
	method   uint16
	compSize uint64
	size     uint64
	disk     uint32
	offset   uint64
}

// Extra field tags.
const (
	extraZip64       = 0x0001
	extraUnicodePath = 0x7075
)

// parseHeader decodes the central directory record at the start of b and
// returns it with the record length.
func parseHeader(b []byte) (header, int, error) {
	if len(b) < centralLen {
		return header{}, 0, fmt.Errorf("zip: truncated central directory: %w", vfs.ErrMalformed)
	}
	if binary.LittleEndian.Uint32(b) != sigCentral {
		return header{}, 0, fmt.Errorf("zip: bad central directory signature: %w", vfs.ErrMalformed)
	}
	nameLen := int(binary.LittleEndian.Uint16(b[28:]))
	extraLen := int(binary.LittleEndian.Uint16(b[30:]))
	commentLen := int(binary.LittleEndian.Uint16(b[32:]))
	n := centralLen + nameLen + extraLen + commentLen
	if len(b) < n {
		return header{}, 0, fmt.Errorf("zip: truncated central directory: %w", vfs.ErrMalformed)
	}

	hdr := header{
		flags:    binary.LittleEndian.Uint16(b[8:]),
		method:   binary.LittleEndian.Uint16(b[10:]),
		compSize: uint64(binary.LittleEndian.Uint32(b[20:])),
		size:     uint64(binary.LittleEndian.Uint32(b[24:])),
		disk:     uint32(binary.LittleEndian.Uint16(b[34:])),
		offset:   uint64(binary.LittleEndian.Uint32(b[42:])),
	}
	rawName := b[centralLen : centralLen+nameLen]
	hdr.name = string(rawName)
	hdr.utf8 = hdr.flags&flagUTF8 != 0

	extra := b[centralLen+nameLen : centralLen+nameLen+extraLen]
	for len(extra) >= 4 {
		tag := binary.LittleEndian.Uint16(extra)
		size := int(binary.LittleEndian.Uint16(extra[2:]))
		if len(extra) < 4+size {
			break
		}
		field := extra[4 : 4+size]
		extra = extra[4+size:]
		switch tag {
		case extraZip64:
			if err := hdr.applyZip64(field); err != nil {
				return header{}, 0, err
			}
		case extraUnicodePath:
			// Version 1, CRC-32 of the stored name, then the UTF-8 name.
			if len(field) > 5 && field[0] == 1 &&
				binary.LittleEndian.Uint32(field[1:]) == crc32.ChecksumIEEE(rawName) {
				hdr.name = string(field[5:])
				hdr.utf8 = true
			}
		}
	}
	return hdr, n, nil
}

// applyZip64 replaces the saturated fields, which appear in the extra
// field in a fixed order.
func (h *header) applyZip64(field []byte) error {
	next := func(n int) ([]byte, error) {
		if len(field) < n {
			return nil, fmt.Errorf("zip: %s: short zip64 extra field: %w", h.name, vfs.ErrMalformed)
		}
		v := field[:n]
		field = field[n:]
		return v, nil
	}
	for _, f := range []struct {
		saturated bool
		load      func([]byte)
		width     int
	}{
		{h.size == 0xffffffff, func(v []byte) { h.size = binary.LittleEndian.Uint64(v) }, 8},
		{h.compSize == 0xffffffff, func(v []byte) { h.compSize = binary.LittleEndian.Uint64(v) }, 8},
		{h.offset == 0xffffffff, func(v []byte) { h.offset = binary.LittleEndian.Uint64(v) }, 8},
		{h.disk == 0xffff, func(v []byte) { h.disk = binary.LittleEndian.Uint32(v) }, 4},
	} {
		if !f.saturated {
			continue
		}
		v, err := next(f.width)
		if err != nil {
			return err
		}
		f.load(v)
	}
	return nil
}
