// Package sizing provides overflow-checked size arithmetic for values read
// from untrusted container headers.
package sizing

import (
	"math"

	"github.com/meigma/arcvfs/vfs"
)

// ToInt converts a uint64 to int, failing with vfs.ErrNoMemory when the
// value cannot be represented.
func ToInt(size uint64) (int, error) {
	if size > uint64(math.MaxInt) {
		return 0, vfs.ErrNoMemory
	}
	return int(size), nil
}

// ToInt64 converts a uint64 to int64, failing with vfs.ErrNoMemory when the
// value cannot be represented.
func ToInt64(size uint64) (int64, error) {
	if size > uint64(math.MaxInt64) {
		return 0, vfs.ErrNoMemory
	}
	return int64(size), nil
}

// AddUint64 adds two uint64 values, returning (result, false) on overflow.
func AddUint64(a, b uint64) (uint64, bool) {
	sum := a + b
	if sum < a {
		return 0, false
	}
	return sum, true
}

// Within reports whether the range [off, off+n) lies inside [0, limit).
func Within(off, n, limit uint64) bool {
	end, ok := AddUint64(off, n)
	return ok && end <= limit
}

// Buffer allocates a byte slice of size n, refusing sizes above limit so
// that a corrupt length field cannot trigger a huge allocation.
func Buffer(n, limit uint64) ([]byte, error) {
	if n > limit {
		return nil, vfs.ErrLimit
	}
	m, err := ToInt(n)
	if err != nil {
		return nil, err
	}
	return make([]byte, m), nil
}
