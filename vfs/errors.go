package vfs

import (
	"errors"
	"fmt"
)

// Error taxonomy shared by drivers and codecs.
var (
	// ErrMalformed is returned for bad magic, truncated records and
	// inconsistent headers.
	ErrMalformed = errors.New("vfs: malformed input")

	// ErrLimit is returned when a format limit is exceeded. It is treated
	// as malformed input.
	ErrLimit = fmt.Errorf("%w: format limit exceeded", ErrMalformed)

	// ErrNoMemory is returned when a size cannot be represented in memory.
	ErrNoMemory = errors.New("vfs: allocation failure")

	// ErrIO wraps failures of the underlying byte stream.
	ErrIO = errors.New("vfs: i/o error")

	// ErrNotExist is returned when a path element cannot be found.
	ErrNotExist = errors.New("vfs: no such file or directory")
)

// IOError wraps err so that errors.Is(err, ErrIO) holds while keeping the
// original error reachable.
func IOError(err error) error {
	if err == nil || errors.Is(err, ErrIO) {
		return err
	}
	return &ioError{err: err}
}

type ioError struct {
	err error
}

func (e *ioError) Error() string { return "vfs: i/o error: " + e.err.Error() }

func (e *ioError) Unwrap() []error { return []error{ErrIO, e.err} }
