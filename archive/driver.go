package archive

import (
	"io"

	"github.com/meigma/arcvfs/vfs"
)

// Driver recognises one container format.
type Driver interface {
	// Name is a human readable format name.
	Name() string

	// SIG tags the driver's metadata cache entries.
	SIG() string

	// Extensions lists the lower-case file extensions, with leading dot,
	// the driver is offered first.
	Extensions() []string

	// Detect mounts f if it is in the driver's format. ext is the
	// lower-case extension of f's name. Detect returns ErrNotMine for
	// foreign files; the returned Dir carries one reference.
	Detect(env *Env, f vfs.File, ext string) (vfs.Dir, error)
}

// Backend is the format-specific half of an Instance.
type Backend interface {
	// Scan performs one unit of index building, adding entries to the
	// instance tree. It returns done once the tree is complete.
	Scan(inst *Instance) (done bool, err error)

	// Open returns a decoder positioned at the start of file i.
	Open(inst *Instance, i uint32) (Member, error)

	// Close releases backend resources such as extra volume handles.
	Close()
}

// Member decodes the data of one archive member.
type Member interface {
	io.Reader

	// Rewind restarts decoding from the first byte of the member.
	Rewind() error
}

// Seeker is implemented by members that can reposition without decoding,
// such as stored ZIP members. Seek moves to an absolute member position.
type Seeker interface {
	Seek(pos uint64) error
}
