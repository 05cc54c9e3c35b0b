// Package zcompfs mounts compress(1) .Z files as a directory holding the
// single decompressed member.
package zcompfs

import (
	"io"

	"github.com/meigma/arcvfs/archive"
	"github.com/meigma/arcvfs/codec"
	"github.com/meigma/arcvfs/codec/unlzw"
	"github.com/meigma/arcvfs/vfs"
)

// SIG tags .Z entries in the metadata cache.
const SIG = "Z"

// Driver is the compress(1) archive driver.
type Driver struct{}

var _ archive.Driver = Driver{}

// New returns the .Z driver.
func New() Driver { return Driver{} }

func (Driver) Name() string { return "compress" }

func (Driver) SIG() string { return SIG }

func (Driver) Extensions() []string { return []string{".z", ".taz", ".tz"} }

// Detect mounts f when it starts with the 1F 9D magic and a plausible
// flags byte.
func (Driver) Detect(env *archive.Env, f vfs.File, _ string) (vfs.Dir, error) {
	if d, ok := archive.Reuse(env, f, SIG); ok {
		return d, nil
	}
	h, head, err := archive.Probe(f, 3)
	if err != nil {
		return nil, err
	}
	if len(head) < 3 || head[0] != 0x1f || head[1] != 0x9d {
		h.Unref()
		return nil, archive.ErrNotMine
	}
	if bits := head[2] & 0x1f; bits < 9 || bits > 16 {
		h.Unref()
		return nil, archive.ErrNotMine
	}
	return archive.MountStream(env, f, archive.StreamConfig{
		SIG:       SIG,
		Handle:    h,
		Name:      archive.StripExt(f.Name()),
		NewReader: newReader,
	})
}

func newReader(src io.Reader) (codec.Reader, error) {
	return codec.Pump(unlzw.New(), src), nil
}
