// Package testutil provides in-memory vfs nodes and archive builders for
// tests.
package testutil

import (
	"errors"
	"io"

	"github.com/meigma/arcvfs/vfs"
)

// MemDir is an in-memory vfs.Dir. It counts references so tests can check
// that archives release their containers.
type MemDir struct {
	ids    *vfs.IDs
	id     uint32
	name   string
	parent *MemDir
	files  []*MemFile
	dirs   []*MemDir

	Refs int
}

// MemFile is an in-memory vfs.File. Every SeekSet issued by any of its
// handles is appended to Seeks.
type MemFile struct {
	id     uint32
	name   string
	parent *MemDir
	Data   []byte

	// ReadErr, when set, is returned by reads at or past FailAt.
	ReadErr error
	FailAt  uint64

	Refs  int
	Opens int
	Seeks []uint64
	Reads int
}

var (
	_ vfs.Dir        = (*MemDir)(nil)
	_ vfs.File       = (*MemFile)(nil)
	_ vfs.FileHandle = (*MemHandle)(nil)
)

// NewRoot returns a top-level directory registered in ids.
func NewRoot(ids *vfs.IDs, name string) *MemDir {
	return &MemDir{ids: ids, id: ids.Intern(vfs.NoID, name), name: name}
}

// AddFile adds a file with the given contents.
func (d *MemDir) AddFile(name string, data []byte) *MemFile {
	f := &MemFile{id: d.ids.Intern(d.id, name), name: name, parent: d, Data: data}
	d.files = append(d.files, f)
	return f
}

// AddDir adds a subdirectory.
func (d *MemDir) AddDir(name string) *MemDir {
	sub := &MemDir{ids: d.ids, id: d.ids.Intern(d.id, name), name: name, parent: d}
	d.dirs = append(d.dirs, sub)
	return sub
}

func (d *MemDir) Ref()         { d.Refs++ }
func (d *MemDir) Unref()       { d.Refs-- }
func (d *MemDir) ID() uint32   { return d.id }
func (d *MemDir) Name() string { return d.name }

func (d *MemDir) Parent() vfs.Dir {
	if d.parent == nil {
		return nil
	}
	return d.parent
}

func (d *MemDir) ReadDirStart(onFile vfs.FileFunc, onDir vfs.DirFunc) (vfs.DirIterator, error) {
	d.Ref()
	return &memIter{d: d, onFile: onFile, onDir: onDir}, nil
}

func (d *MemDir) ReadFlatDirStart(onFile vfs.FileFunc) (vfs.DirIterator, error) {
	var all []*MemFile
	var collect func(*MemDir)
	collect = func(x *MemDir) {
		all = append(all, x.files...)
		for _, sub := range x.dirs {
			collect(sub)
		}
	}
	collect(d)
	d.Ref()
	return &memIter{d: d, onFile: onFile, flat: all}, nil
}

func (d *MemDir) ReadDirDir(id uint32) (vfs.Dir, bool) {
	for _, sub := range d.dirs {
		if sub.id == id {
			sub.Ref()
			return sub, true
		}
	}
	return nil, false
}

func (d *MemDir) ReadDirFile(id uint32) (vfs.File, bool) {
	for _, f := range d.files {
		if f.id == id {
			f.Ref()
			return f, true
		}
	}
	return nil, false
}

type memIter struct {
	d      *MemDir
	onFile vfs.FileFunc
	onDir  vfs.DirFunc
	flat   []*MemFile
	i      int
	done   bool
}

func (it *memIter) Iterate() bool {
	if it.done {
		return false
	}
	if it.flat != nil {
		if it.i >= len(it.flat) {
			return false
		}
		if it.onFile != nil {
			it.onFile(it.flat[it.i])
		}
		it.i++
		return true
	}
	switch {
	case it.i < len(it.d.dirs):
		if it.onDir != nil {
			it.onDir(it.d.dirs[it.i])
		}
	case it.i < len(it.d.dirs)+len(it.d.files):
		if it.onFile != nil {
			it.onFile(it.d.files[it.i-len(it.d.dirs)])
		}
	default:
		return false
	}
	it.i++
	return true
}

func (it *memIter) Cancel() {
	if !it.done {
		it.done = true
		it.d.Unref()
	}
}

func (f *MemFile) Ref()         { f.Refs++ }
func (f *MemFile) Unref()       { f.Refs-- }
func (f *MemFile) ID() uint32   { return f.id }
func (f *MemFile) Name() string { return f.name }

func (f *MemFile) Parent() vfs.Dir {
	if f.parent == nil {
		return nil
	}
	return f.parent
}

func (f *MemFile) Open() (vfs.FileHandle, error) {
	f.Opens++
	f.Refs++
	return &MemHandle{f: f, refs: 1}, nil
}

func (f *MemFile) Size() (uint64, error) { return uint64(len(f.Data)), nil }

func (f *MemFile) SizeReady() bool { return true }

// MemHandle reads a MemFile.
type MemHandle struct {
	f    *MemFile
	pos  uint64
	err  error
	refs int
}

func (h *MemHandle) Read(p []byte) (int, error) {
	if h.err != nil {
		return 0, h.err
	}
	if h.f.ReadErr != nil && h.pos >= h.f.FailAt {
		h.err = vfs.IOError(h.f.ReadErr)
		return 0, h.err
	}
	if h.pos >= uint64(len(h.f.Data)) {
		return 0, io.EOF
	}
	end := uint64(len(h.f.Data))
	if h.f.ReadErr != nil && h.f.FailAt > h.pos && h.f.FailAt < end {
		end = h.f.FailAt
	}
	n := copy(p, h.f.Data[h.pos:end])
	h.pos += uint64(n)
	h.f.Reads++
	return n, nil
}

func (h *MemHandle) Ref() { h.refs++ }

func (h *MemHandle) Unref() {
	h.refs--
	if h.refs == 0 {
		h.f.Refs--
	}
}

func (h *MemHandle) SeekSet(pos uint64) error {
	h.f.Seeks = append(h.f.Seeks, pos)
	h.pos = pos
	h.err = nil
	return nil
}

func (h *MemHandle) Pos() uint64           { return h.pos }
func (h *MemHandle) EOF() bool             { return h.pos >= uint64(len(h.f.Data)) }
func (h *MemHandle) Err() error            { return h.err }
func (h *MemHandle) Size() (uint64, error) { return uint64(len(h.f.Data)), nil }
func (h *MemHandle) SizeReady() bool       { return true }

// ErrInjected is a convenience error for MemFile.ReadErr.
var ErrInjected = errors.New("testutil: injected read failure")
