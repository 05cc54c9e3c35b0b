// Package bzip2fs mounts bzip2 files as a directory holding the single
// decompressed member.
package bzip2fs

import (
	"github.com/meigma/arcvfs/archive"
	"github.com/meigma/arcvfs/codec"
	"github.com/meigma/arcvfs/vfs"
)

// SIG tags bzip2 entries in the metadata cache.
const SIG = "BZIP2"

// Driver is the bzip2 archive driver.
type Driver struct{}

var _ archive.Driver = Driver{}

// New returns the bzip2 driver.
func New() Driver { return Driver{} }

func (Driver) Name() string { return "bzip2" }

func (Driver) SIG() string { return SIG }

func (Driver) Extensions() []string { return []string{".bz2", ".tbz", ".tbz2"} }

// Detect mounts f when it starts with "BZh" and a block size digit. The
// member size is unknown until the first full decode.
func (Driver) Detect(env *archive.Env, f vfs.File, _ string) (vfs.Dir, error) {
	if d, ok := archive.Reuse(env, f, SIG); ok {
		return d, nil
	}
	h, head, err := archive.Probe(f, 4)
	if err != nil {
		return nil, err
	}
	if len(head) < 4 || string(head[:3]) != "BZh" || head[3] < '1' || head[3] > '9' {
		h.Unref()
		return nil, archive.ErrNotMine
	}
	return archive.MountStream(env, f, archive.StreamConfig{
		SIG:       SIG,
		Handle:    h,
		Name:      archive.StripExt(f.Name()),
		NewReader: codec.NewBzip2,
	})
}
