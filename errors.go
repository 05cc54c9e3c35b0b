package arcvfs

import (
	"errors"

	"github.com/meigma/arcvfs/vfs"
)

var (
	// ErrNotArchive is returned by Mount when no driver recognises the file.
	ErrNotArchive = errors.New("arcvfs: not a recognised archive")

	// ErrNotFile is returned when a path names a directory where a file is
	// required.
	ErrNotFile = errors.New("arcvfs: not a file")

	// ErrClosed is returned by operations on a closed session.
	ErrClosed = errors.New("arcvfs: session closed")
)

// Errors re-exported from vfs.
var (
	// ErrNotExist is returned when a path element cannot be found.
	ErrNotExist = vfs.ErrNotExist

	// ErrMalformed is returned for corrupt or inconsistent archives.
	ErrMalformed = vfs.ErrMalformed

	// ErrIO wraps failures of the underlying storage.
	ErrIO = vfs.ErrIO
)
