package zipfs

import "errors"

var (
	// ErrUnsupportedMethod is returned by Open for members compressed
	// with a method this package cannot decode. Such members are still
	// listed.
	ErrUnsupportedMethod = errors.New("zip: unsupported compression method")

	// ErrEncrypted is returned by Open for encrypted members.
	ErrEncrypted = errors.New("zip: encrypted member")

	// errNoDirectory means no end of central directory record was found.
	errNoDirectory = errors.New("zip: end of central directory not found")
)
