package archive

import (
	"errors"
	"fmt"
	"io"

	"github.com/meigma/arcvfs/codec"
	"github.com/meigma/arcvfs/vfs"
)

// ErrNotMine is returned by Driver.Detect when the file is not in the
// driver's format.
var ErrNotMine = errors.New("archive: not in this format")

// classify maps member read failures onto the vfs error taxonomy.
func classify(err error) error {
	switch {
	case err == nil, errors.Is(err, io.EOF):
		return err
	case errors.Is(err, codec.ErrCorrupt):
		if errors.Is(err, vfs.ErrMalformed) {
			return err
		}
		return fmt.Errorf("%w: %w", vfs.ErrMalformed, err)
	case errors.Is(err, vfs.ErrMalformed), errors.Is(err, vfs.ErrIO), errors.Is(err, vfs.ErrNoMemory):
		return err
	case errors.Is(err, io.ErrUnexpectedEOF):
		return fmt.Errorf("%w: %w", vfs.ErrMalformed, err)
	default:
		return vfs.IOError(err)
	}
}

func truncated(err error) error {
	return fmt.Errorf("%w: truncated: %w", vfs.ErrMalformed, err)
}
