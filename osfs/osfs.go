// Package osfs exposes a host directory tree as vfs nodes.
//
// Directories are listed with os.ReadDir when an iteration starts; files
// are read with ReadAt so several handles on one file never disturb each
// other. Symbolic links are followed. Entries that are neither regular
// files nor directories are skipped.
package osfs

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/meigma/arcvfs/vfs"
)

// Option configures the nodes returned by Open.
type Option func(*config)

type config struct {
	logger *slog.Logger
}

// WithLogger sets the logger for skipped entries and close failures.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

func (c *config) log() *slog.Logger {
	if c.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return c.logger
}

// Dir is a host directory.
type Dir struct {
	cfg    *config
	ids    *vfs.IDs
	path   string
	name   string
	id     uint32
	parent *Dir
	refs   int
}

// File is a host file.
type File struct {
	cfg    *config
	ids    *vfs.IDs
	path   string
	name   string
	id     uint32
	parent *Dir
	refs   int
}

var (
	_ vfs.Dir        = (*Dir)(nil)
	_ vfs.File       = (*File)(nil)
	_ vfs.FileHandle = (*handle)(nil)
)

// Open returns the host directory at path as a top-level vfs.Dir. Its
// parent is nil. IDs are interned one path element at a time from the
// filesystem root, so a node has the same ID whichever directory was
// opened to reach it.
func Open(ids *vfs.IDs, path string, opts ...Option) (*Dir, error) {
	cfg := &config{}
	for _, opt := range opts {
		opt(cfg)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, &fs.PathError{Op: "open", Path: abs, Err: errors.New("not a directory")}
	}
	return &Dir{
		cfg:  cfg,
		ids:  ids,
		path: abs,
		name: filepath.Base(abs),
		id:   PathID(ids, abs),
		refs: 1,
	}, nil
}

// PathID returns the ID of the clean absolute host path abs.
func PathID(ids *vfs.IDs, abs string) uint32 {
	vol := filepath.VolumeName(abs)
	id := ids.Intern(vfs.NoID, vol+string(filepath.Separator))
	for _, elem := range strings.Split(abs[len(vol):], string(filepath.Separator)) {
		if elem != "" {
			id = ids.Intern(id, elem)
		}
	}
	return id
}

// Path returns the host path of the directory.
func (d *Dir) Path() string { return d.path }

func (d *Dir) Ref()         { d.refs++ }
func (d *Dir) Unref()       { d.refs-- }
func (d *Dir) ID() uint32   { return d.id }
func (d *Dir) Name() string { return d.name }

func (d *Dir) Parent() vfs.Dir {
	if d.parent == nil {
		return nil
	}
	return d.parent
}

func (d *Dir) child(name string, isDir bool) vfs.Node {
	p := filepath.Join(d.path, name)
	id := d.ids.Intern(d.id, name)
	if isDir {
		return &Dir{cfg: d.cfg, ids: d.ids, path: p, name: name, id: id, parent: d, refs: 1}
	}
	return &File{cfg: d.cfg, ids: d.ids, path: p, name: name, id: id, parent: d, refs: 1}
}

// entry is one listed child.
type entry struct {
	name  string
	isDir bool
}

func (d *Dir) list() ([]entry, error) {
	des, err := os.ReadDir(d.path)
	if err != nil {
		return nil, vfs.IOError(err)
	}
	out := make([]entry, 0, len(des))
	for _, de := range des {
		mode := de.Type()
		if mode&fs.ModeSymlink != 0 {
			info, err := os.Stat(filepath.Join(d.path, de.Name()))
			if err != nil {
				d.cfg.log().Debug("skipping dangling link", "path", filepath.Join(d.path, de.Name()))
				continue
			}
			mode = info.Mode().Type()
		}
		switch {
		case mode.IsDir():
			out = append(out, entry{name: de.Name(), isDir: true})
		case mode.IsRegular():
			out = append(out, entry{name: de.Name()})
		}
	}
	return out, nil
}

func (d *Dir) ReadDirStart(onFile vfs.FileFunc, onDir vfs.DirFunc) (vfs.DirIterator, error) {
	entries, err := d.list()
	if err != nil {
		return nil, err
	}
	d.Ref()
	return &dirIter{d: d, entries: entries, onFile: onFile, onDir: onDir}, nil
}

func (d *Dir) ReadFlatDirStart(onFile vfs.FileFunc) (vfs.DirIterator, error) {
	entries, err := d.list()
	if err != nil {
		return nil, err
	}
	d.Ref()
	return &flatIter{root: d, stack: []frame{{d: d, entries: entries}}, onFile: onFile}, nil
}

func (d *Dir) ReadDirDir(id uint32) (vfs.Dir, bool) {
	n, ok := d.resolve(id, true)
	if !ok {
		return nil, false
	}
	return n.(*Dir), true
}

func (d *Dir) ReadDirFile(id uint32) (vfs.File, bool) {
	n, ok := d.resolve(id, false)
	if !ok {
		return nil, false
	}
	return n.(*File), true
}

func (d *Dir) resolve(id uint32, wantDir bool) (vfs.Node, bool) {
	name := d.ids.Name(id)
	if name == "" || d.ids.Intern(d.id, name) != id {
		return nil, false
	}
	info, err := os.Stat(filepath.Join(d.path, name))
	if err != nil || info.IsDir() != wantDir || (!wantDir && !info.Mode().IsRegular()) {
		return nil, false
	}
	return d.child(name, wantDir), true
}

type dirIter struct {
	d       *Dir
	entries []entry
	i       int
	onFile  vfs.FileFunc
	onDir   vfs.DirFunc
	done    bool
}

func (it *dirIter) Iterate() bool {
	if it.done || it.i >= len(it.entries) {
		return false
	}
	e := it.entries[it.i]
	it.i++
	n := it.d.child(e.name, e.isDir)
	switch n := n.(type) {
	case *Dir:
		if it.onDir != nil {
			it.onDir(n)
		}
	case *File:
		if it.onFile != nil {
			it.onFile(n)
		}
	}
	return true
}

func (it *dirIter) Cancel() {
	if !it.done {
		it.done = true
		it.d.Unref()
	}
}

// flatIter walks the tree depth first, one entry per step.
type flatIter struct {
	root   *Dir
	stack  []frame
	onFile vfs.FileFunc
	done   bool
}

type frame struct {
	d       *Dir
	entries []entry
	i       int
}

func (it *flatIter) Iterate() bool {
	if it.done || len(it.stack) == 0 {
		return false
	}
	top := &it.stack[len(it.stack)-1]
	if top.i >= len(top.entries) {
		it.stack = it.stack[:len(it.stack)-1]
		return len(it.stack) > 0
	}
	e := top.entries[top.i]
	top.i++
	n := top.d.child(e.name, e.isDir)
	switch n := n.(type) {
	case *Dir:
		entries, err := n.list()
		if err != nil {
			n.cfg.log().Debug("skipping unreadable directory", "path", n.path, "error", err)
			break
		}
		it.stack = append(it.stack, frame{d: n, entries: entries})
	case *File:
		if it.onFile != nil {
			it.onFile(n)
		}
	}
	return true
}

func (it *flatIter) Cancel() {
	if !it.done {
		it.done = true
		it.root.Unref()
	}
}

// Path returns the host path of the file.
func (f *File) Path() string { return f.path }

func (f *File) Ref()         { f.refs++ }
func (f *File) Unref()       { f.refs-- }
func (f *File) ID() uint32   { return f.id }
func (f *File) Name() string { return f.name }

func (f *File) Parent() vfs.Dir {
	if f.parent == nil {
		return nil
	}
	return f.parent
}

func (f *File) Open() (vfs.FileHandle, error) {
	osf, err := os.Open(f.path)
	if err != nil {
		return nil, vfs.IOError(err)
	}
	info, err := osf.Stat()
	if err != nil {
		_ = osf.Close()
		return nil, vfs.IOError(err)
	}
	f.Ref()
	return &handle{file: f, f: osf, size: uint64(info.Size()), refs: 1}, nil //nolint:gosec // sizes are non-negative
}

func (f *File) Size() (uint64, error) {
	info, err := os.Stat(f.path)
	if err != nil {
		return 0, vfs.IOError(err)
	}
	return uint64(info.Size()), nil //nolint:gosec // sizes are non-negative
}

func (f *File) SizeReady() bool { return true }

type handle struct {
	file *File
	f    *os.File
	size uint64
	pos  uint64
	err  error
	refs int
}

func (h *handle) Read(p []byte) (int, error) {
	if h.err != nil {
		return 0, h.err
	}
	if h.pos >= h.size {
		return 0, io.EOF
	}
	if left := h.size - h.pos; uint64(len(p)) > left {
		p = p[:left]
	}
	n, err := h.f.ReadAt(p, int64(h.pos)) //nolint:gosec // pos < size
	h.pos += uint64(n)                    //nolint:gosec // n is non-negative
	switch {
	case err == nil:
	case errors.Is(err, io.EOF):
		// The file shrank under us.
		h.size = h.pos
		if n == 0 {
			return 0, io.EOF
		}
	default:
		h.err = vfs.IOError(fmt.Errorf("osfs: %s: %w", h.file.path, err))
		if n == 0 {
			return 0, h.err
		}
	}
	return n, nil
}

func (h *handle) Ref() { h.refs++ }

func (h *handle) Unref() {
	if h.refs <= 0 {
		return
	}
	h.refs--
	if h.refs > 0 {
		return
	}
	if err := h.f.Close(); err != nil {
		h.file.cfg.log().Debug("close failed", "path", h.file.path, "error", err)
	}
	h.file.Unref()
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
