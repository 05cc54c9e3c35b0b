package archive

import "github.com/meigma/arcvfs/vfs"

// dirIter lists one directory: child directories first, then files, both
// in insertion order. When the known children are exhausted it advances
// the scan instead, so entries appear as the container is read.
type dirIter struct {
	inst   *Instance
	dir    uint32
	onFile vfs.FileFunc
	onDir  vfs.DirFunc

	lastDir, lastFile uint32
	cancelled         bool
}

func (it *dirIter) Iterate() bool {
	if it.cancelled {
		return false
	}
	t := it.inst.tree
	d := &t.Dirs[it.dir]

	next := d.FirstDir
	if it.lastDir != None {
		next = t.Dirs[it.lastDir].NextDir
	}
	if next != None {
		it.lastDir = next
		if it.onDir != nil {
			it.onDir(it.inst.dir(next))
		}
		return true
	}

	next = d.FirstFile
	if it.lastFile != None {
		next = t.Files[it.lastFile].Next
	}
	if next != None {
		it.lastFile = next
		if it.onFile != nil {
			it.onFile(it.inst.file(next))
		}
		return true
	}

	if !it.inst.scanned {
		it.inst.scanStep()
		return true
	}
	return false
}

func (it *dirIter) Cancel() {
	if it.cancelled {
		return
	}
	it.cancelled = true
	it.inst.Unref()
}

// flatIter lists every file below a directory in archive order.
type flatIter struct {
	inst      *Instance
	dir       uint32
	onFile    vfs.FileFunc
	next      uint32
	cancelled bool
}

func (it *flatIter) Iterate() bool {
	if it.cancelled {
		return false
	}
	t := it.inst.tree
	for int(it.next) < len(t.Files) {
		i := it.next
		it.next++
		if t.Within(t.Files[i].Dir, it.dir) {
			if it.onFile != nil {
				it.onFile(it.inst.file(i))
			}
			return true
		}
	}
	if !it.inst.scanned {
		it.inst.scanStep()
		return true
	}
	return false
}

func (it *flatIter) Cancel() {
	if it.cancelled {
		return
	}
	it.cancelled = true
	it.inst.Unref()
}
