package archive

import "strings"

// None marks an absent link in a Tree.
const None = ^uint32(0)

// DirEntry is one directory of a Tree. Children form singly linked lists
// in insertion order; Last* pointers make appends O(1).
type DirEntry struct {
	Raw    string // name bytes as stored in the container
	UTF8   bool   // Raw is known to be UTF-8
	Parent uint32

	FirstDir, NextDir, LastDir uint32
	FirstFile, LastFile        uint32
}

// Entry is one member file of a Tree.
type Entry struct {
	Raw  string
	UTF8 bool
	Dir  uint32
	Next uint32 // next file in the same directory

	Offset    uint64 // driver defined, usually the data or header offset
	CompSize  uint64
	Size      uint64
	SizeKnown bool
	Disk      uint32
	Method    uint16
	Flags     uint16
}

// Tree is the flattened directory structure of an archive. Dirs[0] is the
// root. A parent always has a lower index than its children.
type Tree struct {
	Dirs  []DirEntry
	Files []Entry

	// Aux carries one driver-specific word through the metadata cache.
	Aux uint64

	lookup map[dirKey]uint32
}

type dirKey struct {
	parent uint32
	raw    string
}

// NewTree returns a tree holding only the root directory.
func NewTree() *Tree {
	t := &Tree{}
	t.Reset()
	return t
}

// Reset discards everything but the root directory.
func (t *Tree) Reset() {
	t.Dirs = append(t.Dirs[:0], DirEntry{
		Parent:    None,
		FirstDir:  None,
		NextDir:   None,
		LastDir:   None,
		FirstFile: None,
		LastFile:  None,
	})
	t.Files = t.Files[:0]
	t.Aux = 0
	t.lookup = make(map[dirKey]uint32)
}

// Mkdir returns the child of parent named raw, creating it if needed.
func (t *Tree) Mkdir(parent uint32, raw string, utf8 bool) uint32 {
	if t.lookup == nil {
		t.reindex()
	}
	k := dirKey{parent: parent, raw: raw}
	if i, ok := t.lookup[k]; ok {
		if utf8 {
			t.Dirs[i].UTF8 = true
		}
		return i
	}

	i := uint32(len(t.Dirs)) //nolint:gosec // bounded by the format limits of every driver
	t.Dirs = append(t.Dirs, DirEntry{
		Raw:       raw,
		UTF8:      utf8,
		Parent:    parent,
		FirstDir:  None,
		NextDir:   None,
		LastDir:   None,
		FirstFile: None,
		LastFile:  None,
	})
	p := &t.Dirs[parent]
	if p.LastDir == None {
		p.FirstDir = i
	} else {
		t.Dirs[p.LastDir].NextDir = i
	}
	p.LastDir = i
	t.lookup[k] = i
	return i
}

// MkdirAll creates every component of elems below parent and returns the
// innermost directory.
func (t *Tree) MkdirAll(parent uint32, elems []string, utf8 bool) uint32 {
	for _, e := range elems {
		parent = t.Mkdir(parent, e, utf8)
	}
	return parent
}

// AddFile appends e to directory e.Dir and returns its index.
func (t *Tree) AddFile(e Entry) uint32 {
	i := uint32(len(t.Files)) //nolint:gosec // bounded by the format limits of every driver
	e.Next = None
	t.Files = append(t.Files, e)
	d := &t.Dirs[e.Dir]
	if d.LastFile == None {
		d.FirstFile = i
	} else {
		t.Files[d.LastFile].Next = i
	}
	d.LastFile = i
	return i
}

// Insert adds a member by its full stored path. A path ending in a
// separator creates directories only and returns None. Otherwise the
// file's parent directories are created and the file index is returned.
// Empty names are rejected by returning None.
func (t *Tree) Insert(path string, e Entry) uint32 {
	elems := SplitPath(path)
	isDir := strings.HasSuffix(path, "/") || strings.HasSuffix(path, "\\")
	if isDir {
		t.MkdirAll(0, elems, e.UTF8)
		return None
	}
	if len(elems) == 0 {
		return None
	}
	e.Dir = t.MkdirAll(0, elems[:len(elems)-1], e.UTF8)
	e.Raw = elems[len(elems)-1]
	return t.AddFile(e)
}

// Within reports whether directory d is anc or lies below it.
func (t *Tree) Within(d, anc uint32) bool {
	for d != None {
		if d == anc {
			return true
		}
		d = t.Dirs[d].Parent
	}
	return false
}

// Path returns the slash-joined raw path of directory d.
func (t *Tree) Path(d uint32) string {
	var elems []string
	for ; d != 0 && d != None; d = t.Dirs[d].Parent {
		elems = append(elems, t.Dirs[d].Raw)
	}
	for i, j := 0, len(elems)-1; i < j; i, j = i+1, j-1 {
		elems[i], elems[j] = elems[j], elems[i]
	}
	return strings.Join(elems, "/")
}

func (t *Tree) reindex() {
	t.lookup = make(map[dirKey]uint32, len(t.Dirs))
	for i := 1; i < len(t.Dirs); i++ {
		t.lookup[dirKey{parent: t.Dirs[i].Parent, raw: t.Dirs[i].Raw}] = uint32(i) //nolint:gosec // index of an existing dir
	}
}

// SplitPath splits a stored member path on '/' and '\' and drops empty,
// "." and ".." components.
func SplitPath(p string) []string {
	fields := strings.FieldsFunc(p, func(r rune) bool {
		return r == '/' || r == '\\'
	})
	out := fields[:0]
	for _, f := range fields {
		if f == "." || f == ".." {
			continue
		}
		out = append(out, f)
	}
	return out
}
