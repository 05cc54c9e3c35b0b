package archive

import (
	"errors"
	"io"

	"github.com/meigma/arcvfs/vfs"
)

// Reuse returns the root of the live instance of driver sig on f, if one
// exists, with a new reference.
func Reuse(env *Env, f vfs.File, sig string) (vfs.Dir, bool) {
	inst := env.registry.Lookup(f.ID(), sig)
	if inst == nil {
		return nil, false
	}
	inst.Ref()
	return inst.root(), true
}

// Probe opens f and reads up to n bytes from its start. The returned slice
// is shorter than n for small files. The caller owns the handle.
func Probe(f vfs.File, n int) (vfs.FileHandle, []byte, error) {
	h, err := f.Open()
	if err != nil {
		return nil, nil, err
	}
	buf := make([]byte, n)
	got, err := io.ReadFull(h, buf)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		h.Unref()
		return nil, nil, err
	}
	return h, buf[:got], nil
}
