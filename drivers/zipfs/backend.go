package zipfs

import (
	"encoding/binary"
	"fmt"

	"github.com/meigma/arcvfs/archive"
	"github.com/meigma/arcvfs/codec"
	"github.com/meigma/arcvfs/codec/explode"
	"github.com/meigma/arcvfs/codec/inflate64"
	"github.com/meigma/arcvfs/codec/shrink"
	"github.com/meigma/arcvfs/internal/sizing"
	"github.com/meigma/arcvfs/vfs"
)

// scanBatch is the number of central directory records parsed per scan
// step.
const scanBatch = 64

// backend indexes the central directory and opens members. The tree's
// Aux word holds the last disk number.
type backend struct {
	dir  directory
	vols volumes

	cd     []byte
	loaded bool
	count  uint64
}

func (b *backend) disks(inst *archive.Instance) *volumes {
	if b.vols.inst == nil {
		b.vols.init(inst, b.dir.lastDisk)
	}
	return &b.vols
}

func (b *backend) Scan(inst *archive.Instance) (bool, error) {
	t := inst.Tree()
	if !b.loaded {
		t.Aux = uint64(b.dir.lastDisk)
		buf, err := sizing.Buffer(b.dir.cdSize, maxCentralDir)
		if err != nil {
			return false, fmt.Errorf("zip: central directory of %d bytes: %w", b.dir.cdSize, err)
		}
		sp := newSpan(b.disks(inst), b.dir.cdDisk, b.dir.cdOffset, b.dir.cdSize)
		if err := sp.ReadFull(buf); err != nil {
			return false, fmt.Errorf("zip: central directory: %w", err)
		}
		b.cd = buf
		b.loaded = true
		return false, nil
	}

	for range scanBatch {
		if len(b.cd) == 0 {
			if b.count != b.dir.entries {
				inst.Logger().Warn("central directory entry count mismatch",
					"declared", b.dir.entries, "found", b.count)
			}
			b.cd = nil
			return true, nil
		}
		hdr, n, err := parseHeader(b.cd)
		if err != nil {
			return false, err
		}
		b.cd = b.cd[n:]
		b.count++
		if hdr.disk > b.dir.lastDisk {
			return false, fmt.Errorf("zip: %s on disk %d of %d: %w", hdr.name, hdr.disk, b.dir.lastDisk+1, vfs.ErrMalformed)
		}
		t.Insert(hdr.name, archive.Entry{
			UTF8:      hdr.utf8,
			Offset:    hdr.offset,
			CompSize:  hdr.compSize,
			Size:      hdr.size,
			SizeKnown: true,
			Disk:      hdr.disk,
			Method:    hdr.method,
			Flags:     hdr.flags,
		})
	}
	return false, nil
}

// Open re-reads the local header to find where the member data starts,
// then wraps the data in the decoder for its method.
func (b *backend) Open(inst *archive.Instance, i uint32) (archive.Member, error) {
	e := inst.Tree().Files[i]
	name := inst.Tree().Path(e.Dir)
	if name != "" {
		name += "/"
	}
	name += e.Raw

	if e.Flags&flagEncrypted != 0 {
		return nil, fmt.Errorf("zip: %s: %w", name, ErrEncrypted)
	}
	switch e.Method {
	case methodStore, methodShrink, methodImplode, methodDeflate, methodDeflate64, methodBzip2:
	default:
		return nil, fmt.Errorf("zip: %s: method %d: %w", name, e.Method, ErrUnsupportedMethod)
	}

	sp := newSpan(b.disks(inst), e.Disk, e.Offset, archive.Unbounded)
	var local [localLen]byte
	if err := sp.ReadFull(local[:]); err != nil {
		return nil, fmt.Errorf("zip: %s: local header: %w", name, err)
	}
	if binary.LittleEndian.Uint32(local[:]) != sigLocal {
		return nil, fmt.Errorf("zip: %s: bad local header signature: %w", name, vfs.ErrMalformed)
	}
	skip := uint64(binary.LittleEndian.Uint16(local[26:])) + uint64(binary.LittleEndian.Uint16(local[28:]))
	if err := sp.Seek(localLen + skip); err != nil {
		return nil, err
	}
	sp.rebase(e.CompSize)

	switch e.Method {
	case methodStore:
		return sp, nil
	case methodShrink:
		return newMember(sp, codec.Pump(shrink.New(e.Size), sp)), nil
	case methodImplode:
		return newMember(sp, codec.Pump(explode.New(e.Size, explode.OptionsFromFlags(e.Flags)), sp)), nil
	case methodDeflate:
		return newMember(sp, codec.NewFlate(sp)), nil
	case methodDeflate64:
		return newMember(sp, inflate64.NewReader(sp)), nil
	default:
		r, err := codec.NewBzip2(sp)
		if err != nil {
			return nil, fmt.Errorf("zip: %s: %w", name, err)
		}
		return newMember(sp, r), nil
	}
}

func (b *backend) Close() {
	b.vols.close()
}

// member decodes a compressed member.
type member struct {
	src *span
	r   codec.Reader
}

func newMember(src *span, r codec.Reader) *member {
	return &member{src: src, r: r}
}

func (m *member) Read(p []byte) (int, error) { return m.r.Read(p) }

func (m *member) Rewind() error {
	if err := m.src.Rewind(); err != nil {
		return err
	}
	return m.r.Reset(m.src)
}
