package archive

import "github.com/meigma/arcvfs/vfs"

type dirNode struct {
	inst  *Instance
	index uint32
}

// rootNode is the directory an archive mounts as. It carries the charset
// override for the whole archive.
type rootNode struct {
	dirNode
}

type fileNode struct {
	inst  *Instance
	index uint32
}

var (
	_ vfs.Dir              = (*dirNode)(nil)
	_ vfs.Dir              = (*rootNode)(nil)
	_ vfs.CharsetOverrider = (*rootNode)(nil)
	_ vfs.File             = (*fileNode)(nil)
)

func (in *Instance) root() vfs.Dir {
	if in.noCharset {
		return &dirNode{inst: in}
	}
	return &rootNode{dirNode{inst: in}}
}

func (in *Instance) dir(i uint32) vfs.Dir {
	if i == 0 {
		return in.root()
	}
	return &dirNode{inst: in, index: i}
}

func (in *Instance) file(i uint32) vfs.File {
	return &fileNode{inst: in, index: i}
}

func (d *dirNode) Ref()         { d.inst.Ref() }
func (d *dirNode) Unref()       { d.inst.Unref() }
func (d *dirNode) ID() uint32   { return d.inst.dirIDs[d.index] }
func (d *dirNode) Name() string { return d.inst.dirName(d.index) }

// Parent returns the enclosing directory. For the archive root that is
// the directory holding the container.
func (d *dirNode) Parent() vfs.Dir {
	if d.index == 0 {
		return d.inst.container.Parent()
	}
	return d.inst.dir(d.inst.tree.Dirs[d.index].Parent)
}

func (d *dirNode) ReadDirStart(onFile vfs.FileFunc, onDir vfs.DirFunc) (vfs.DirIterator, error) {
	d.inst.Ref()
	return &dirIter{
		inst:     d.inst,
		dir:      d.index,
		onFile:   onFile,
		onDir:    onDir,
		lastDir:  None,
		lastFile: None,
	}, nil
}

func (d *dirNode) ReadFlatDirStart(onFile vfs.FileFunc) (vfs.DirIterator, error) {
	d.inst.Ref()
	return &flatIter{inst: d.inst, dir: d.index, onFile: onFile}, nil
}

func (d *dirNode) ReadDirDir(id uint32) (vfs.Dir, bool) {
	var i uint32
	var ok bool
	d.inst.scanUntil(func() bool {
		i, ok = d.inst.dirByID[id]
		return ok
	})
	if !ok || d.inst.tree.Dirs[i].Parent != d.index {
		return nil, false
	}
	d.inst.Ref()
	return d.inst.dir(i), true
}

func (d *dirNode) ReadDirFile(id uint32) (vfs.File, bool) {
	var i uint32
	var ok bool
	d.inst.scanUntil(func() bool {
		i, ok = d.inst.fileByID[id]
		return ok
	})
	if !ok || d.inst.tree.Files[i].Dir != d.index {
		return nil, false
	}
	d.inst.Ref()
	return d.inst.file(i), true
}

// Charset returns the active override, or "" for the format default.
func (r *rootNode) Charset() string { return r.inst.Charset() }

// SetCharset re-derives every display name of the archive.
func (r *rootNode) SetCharset(name string) error { return r.inst.setCharset(name) }

func (in *Instance) dirName(i uint32) string {
	if i == 0 {
		return in.container.Name()
	}
	return in.dirNames[i]
}

func (f *fileNode) Ref()         { f.inst.Ref() }
func (f *fileNode) Unref()       { f.inst.Unref() }
func (f *fileNode) ID() uint32   { return f.inst.fileIDs[f.index] }
func (f *fileNode) Name() string { return f.inst.fileNames[f.index] }

func (f *fileNode) Parent() vfs.Dir {
	return f.inst.dir(f.inst.tree.Files[f.index].Dir)
}

func (f *fileNode) Open() (vfs.FileHandle, error) {
	h, err := f.inst.open(f.index)
	if err != nil {
		return nil, err
	}
	return h, nil
}

func (f *fileNode) Size() (uint64, error) { return f.inst.fileSize(f.index) }

func (f *fileNode) SizeReady() bool { return f.inst.tree.Files[f.index].SizeKnown }

// Index returns the position of the file in the archive tree.
func (f *fileNode) Index() uint32 { return f.index }
