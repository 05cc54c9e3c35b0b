package vfs

import "io"

// Node is the capability set shared by directories and files.
type Node interface {
	// Ref takes an additional reference.
	Ref()

	// Unref drops a reference. The last Unref releases the node and
	// everything it owns.
	Unref()

	// ID returns the session-unique identity of the node.
	ID() uint32

	// Name returns the display name of the node.
	Name() string
}

// FileFunc receives a borrowed file during directory iteration.
type FileFunc func(File)

// DirFunc receives a borrowed directory during directory iteration.
type DirFunc func(Dir)

// Dir is an enumerable directory.
type Dir interface {
	Node

	// Parent returns the enclosing directory, or nil for a root.
	Parent() Dir

	// ReadDirStart begins a single-level enumeration. Either callback
	// may be nil.
	ReadDirStart(onFile FileFunc, onDir DirFunc) (DirIterator, error)

	// ReadFlatDirStart begins a recursive, files-only enumeration.
	ReadFlatDirStart(onFile FileFunc) (DirIterator, error)

	// ReadDirDir resolves a direct child directory by identity.
	ReadDirDir(id uint32) (Dir, bool)

	// ReadDirFile resolves a direct child file by identity.
	ReadDirFile(id uint32) (File, bool)
}

// DirIterator drives an enumeration one step at a time.
//
// Iterate performs one step, which reports at most one entry through the
// callbacks given at start, and returns true while more steps remain.
// Cancel releases the reference the iterator holds on its directory; it
// must be called once the caller is done, exhausted or not.
type DirIterator interface {
	Iterate() bool
	Cancel()
}

// File is an openable leaf.
type File interface {
	Node

	// Parent returns the directory the file was found in.
	Parent() Dir

	// Open returns a new handle positioned at offset zero.
	Open() (FileHandle, error)

	// Size returns the uncompressed size. It may decode the whole file
	// when the size is not known yet.
	Size() (uint64, error)

	// SizeReady reports whether Size is cheap.
	SizeReady() bool
}

// FileHandle is a read cursor over an opened [File].
//
// Read follows the io.Reader contract and returns io.EOF once the end of
// the data is reached. Any other failure is sticky: it is returned by Err
// and by every later Read until SeekSet reinitialises the cursor.
type FileHandle interface {
	io.Reader

	Ref()
	Unref()

	// SeekSet moves the cursor to an absolute position and clears the
	// sticky error. Positions past the end are allowed; the next Read
	// returns io.EOF.
	SeekSet(pos uint64) error

	// Pos returns the current logical position.
	Pos() uint64

	// EOF reports whether the cursor is known to be at the end.
	EOF() bool

	// Err returns the sticky error, if any.
	Err() error

	// Size returns the uncompressed size of the underlying file.
	Size() (uint64, error)

	// SizeReady reports whether Size is cheap.
	SizeReady() bool
}

// CharsetOverrider is implemented by archive roots whose member names are
// stored in a legacy encoding.
type CharsetOverrider interface {
	// Charset returns the active override, or "" for the format default.
	Charset() string

	// SetCharset re-derives every display name from the stored raw bytes.
	// An empty name restores the format default.
	SetCharset(name string) error
}
