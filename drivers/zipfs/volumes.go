package zipfs

import (
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/meigma/arcvfs/archive"
	"github.com/meigma/arcvfs/vfs"
)

// volumes resolves disk numbers to container handles. The last disk is
// the mounted file itself; earlier disks are its .z01, .z02, ...
// siblings, opened on first use.
type volumes struct {
	inst    *archive.Instance
	last    uint32
	files   []vfs.File
	handles []vfs.FileHandle
	sizes   []uint64
}

// VolumeName returns the file name of disk n of a split archive whose
// final volume is called name and which has last+1 volumes.
func VolumeName(name string, n, last uint32) string {
	if n == last {
		return name
	}
	ext := path.Ext(name)
	base := strings.TrimSuffix(name, ext)
	format := "%s.z%02d"
	if ext == strings.ToUpper(ext) && ext != "" {
		format = "%s.Z%02d"
	}
	return fmt.Sprintf(format, base, n+1)
}

func (v *volumes) init(inst *archive.Instance, last uint32) {
	v.inst = inst
	v.last = last
	v.files = make([]vfs.File, last+1)
	v.handles = make([]vfs.FileHandle, last+1)
	v.sizes = make([]uint64, last+1)
}

// handle returns the handle and size of disk n.
func (v *volumes) handle(n uint32) (vfs.FileHandle, uint64, error) {
	if n > v.last {
		return nil, 0, fmt.Errorf("zip: disk %d of %d: %w", n, v.last+1, vfs.ErrMalformed)
	}
	if n == v.last {
		h, err := v.inst.Handle()
		return h, v.inst.ContainerSize(), err
	}
	if v.handles[n] != nil {
		return v.handles[n], v.sizes[n], nil
	}

	container := v.inst.Container()
	name := VolumeName(container.Name(), n, v.last)
	parent := container.Parent()
	if parent == nil {
		return nil, 0, fmt.Errorf("zip: volume %s: %w", name, vfs.ErrNotExist)
	}
	node, err := vfs.Lookup(parent, name)
	if err != nil {
		return nil, 0, fmt.Errorf("zip: volume %s: %w", name, err)
	}
	f, ok := node.(vfs.File)
	if !ok {
		node.Unref()
		return nil, 0, fmt.Errorf("zip: volume %s is a directory: %w", name, vfs.ErrNotExist)
	}
	size, err := f.Size()
	if err != nil {
		f.Unref()
		return nil, 0, err
	}
	h, err := f.Open()
	if err != nil {
		f.Unref()
		return nil, 0, err
	}
	v.inst.Logger().Debug("zip volume opened", "volume", name, "size", size)
	v.files[n], v.handles[n], v.sizes[n] = f, h, size
	return h, size, nil
}

func (v *volumes) close() {
	for i := range v.handles {
		if v.handles[i] != nil {
			v.handles[i].Unref()
			v.handles[i] = nil
		}
		if v.files[i] != nil {
			v.files[i].Unref()
			v.files[i] = nil
		}
	}
}

// span reads n bytes starting at offset off of disk, continuing into the
// following volumes when a volume ends.
type span struct {
	vols  *volumes
	disk0 uint32
	off0  uint64
	n     uint64
	disk  uint32
	off   uint64
	pos   uint64
}

var (
	_ archive.Member = (*span)(nil)
	_ archive.Seeker = (*span)(nil)
)

func newSpan(vols *volumes, disk uint32, off, n uint64) *span {
	return &span{vols: vols, disk0: disk, off0: off, n: n, disk: disk, off: off}
}

func (s *span) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if s.n != archive.Unbounded {
		if s.pos >= s.n {
			return 0, io.EOF
		}
		if left := s.n - s.pos; uint64(len(p)) > left {
			p = p[:left]
		}
	}
	for {
		h, size, err := s.vols.handle(s.disk)
		if err != nil {
			return 0, err
		}
		if s.off >= size {
			if s.disk == s.vols.last {
				return 0, io.EOF
			}
			s.disk++
			s.off = 0
			continue
		}
		n, err := archive.NewSection(h, s.off, size-s.off).Read(p)
		s.off += uint64(n) //nolint:gosec // n is non-negative
		s.pos += uint64(n) //nolint:gosec // n is non-negative
		if errors.Is(err, io.EOF) {
			if n > 0 {
				return n, nil
			}
			if s.disk == s.vols.last {
				return 0, io.EOF
			}
			s.disk++
			s.off = 0
			continue
		}
		return n, err
	}
}

// Rewind returns to the first byte and repositions the underlying
// handle immediately.
func (s *span) Rewind() error {
	s.disk, s.off, s.pos = s.disk0, s.off0, 0
	h, _, err := s.vols.handle(s.disk)
	if err != nil {
		return err
	}
	return h.SeekSet(s.off)
}

// Seek moves to pos, walking volume sizes to find the disk it lies on.
func (s *span) Seek(pos uint64) error {
	disk, off, rem := s.disk0, s.off0, pos
	for disk < s.vols.last {
		_, size, err := s.vols.handle(disk)
		if err != nil {
			return err
		}
		if off+rem < size {
			break
		}
		rem -= size - off
		disk++
		off = 0
	}
	s.disk, s.off, s.pos = disk, off+rem, pos
	return nil
}

// ReadFull reads exactly len(p) bytes.
func (s *span) ReadFull(p []byte) error {
	if _, err := io.ReadFull(s, p); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF { //nolint:errorlint // io.ReadFull returns these unwrapped
			return fmt.Errorf("zip: truncated: %w: %w", vfs.ErrMalformed, err)
		}
		return err
	}
	return nil
}

// rebase makes the current position the start of a range of n bytes.
func (s *span) rebase(n uint64) {
	s.disk0, s.off0, s.n, s.pos = s.disk, s.off, n, 0
}
