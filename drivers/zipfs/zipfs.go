// Package zipfs mounts ZIP archives, including ZIP64 and split archives
// whose volumes sit next to the final .zip file.
//
// Members compressed with store, shrink, implode, deflate, deflate64 and
// bzip2 can be read. Names use UTF-8 when the entry is flagged so and
// code page 437 otherwise; the root directory accepts a charset override
// for archives written with another legacy code page.
package zipfs

import (
	"errors"

	"github.com/meigma/arcvfs/archive"
	"github.com/meigma/arcvfs/vfs"
)

// SIG tags ZIP entries in the metadata cache.
const SIG = "ZIP"

// Record signatures.
const (
	sigLocal        = 0x04034b50
	sigCentral      = 0x02014b50
	sigEOCD         = 0x06054b50
	sigZip64Locator = 0x07064b50
	sigZip64EOCD    = 0x06064b50
)

// Record lengths and format limits.
const (
	localLen        = 30
	centralLen      = 46
	eocdLen         = 22
	zip64LocatorLen = 20
	zip64EOCDLen    = 56
	maxCommentLen   = 0xffff

	maxCentralDir = 64 << 20
	maxVolumes    = 100
)

const (
	flagEncrypted = 1 << 0
	flagUTF8      = 1 << 11
)

// Compression methods.
const (
	methodStore     = 0
	methodShrink    = 1
	methodImplode   = 6
	methodDeflate   = 8
	methodDeflate64 = 9
	methodBzip2     = 12
)

// Driver is the ZIP archive driver.
type Driver struct{}

var _ archive.Driver = Driver{}

// New returns the ZIP driver.
func New() Driver { return Driver{} }

func (Driver) Name() string { return "zip" }

func (Driver) SIG() string { return SIG }

func (Driver) Extensions() []string { return []string{".zip"} }

// Detect mounts f when an end of central directory record can be found
// near its end.
func (Driver) Detect(env *archive.Env, f vfs.File, _ string) (vfs.Dir, error) {
	if d, ok := archive.Reuse(env, f, SIG); ok {
		return d, nil
	}
	size, err := f.Size()
	if err != nil {
		return nil, err
	}
	h, err := f.Open()
	if err != nil {
		return nil, err
	}
	dir, err := findDirectory(h, size)
	if err != nil {
		h.Unref()
		if errors.Is(err, vfs.ErrIO) {
			return nil, err
		}
		env.Logger().Debug("not a zip file", "container", f.Name(), "error", err)
		return nil, archive.ErrNotMine
	}
	return archive.Mount(env, f, archive.Config{
		SIG:     SIG,
		Backend: &backend{dir: dir},
		Handle:  h,
		Names:   archive.NamesCP437,
	})
}
