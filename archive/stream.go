package archive

import (
	"io"
	"path"
	"strings"

	"github.com/meigma/arcvfs/codec"
	"github.com/meigma/arcvfs/vfs"
)

// StreamConfig describes a single-member compressed container such as a
// gzip, bzip2 or compress(1) file.
type StreamConfig struct {
	SIG string

	// Handle is the detection handle; ownership passes to the instance.
	Handle vfs.FileHandle

	// Name is the raw name of the decompressed member.
	Name string

	// Size and SizeKnown describe the decompressed size when the
	// container header records a trustworthy one. The size is still
	// confirmed by the first full decode.
	Size      uint64
	SizeKnown bool

	// NewReader builds a decoder over the raw container bytes.
	NewReader func(src io.Reader) (codec.Reader, error)
}

// MountStream mounts a single-member container. The member size, once
// learned by a full decode, is persisted as an 8-byte blob.
func MountStream(env *Env, f vfs.File, cfg StreamConfig) (vfs.Dir, error) {
	t := NewTree()
	t.AddFile(Entry{
		Raw:       cfg.Name,
		UTF8:      true,
		Dir:       0,
		Size:      cfg.Size,
		SizeKnown: cfg.SizeKnown,
	})
	return Mount(env, f, Config{
		SIG:         cfg.SIG,
		Backend:     &streamBackend{newReader: cfg.NewReader},
		Handle:      cfg.Handle,
		Tree:        t,
		Complete:    true,
		Meta:        SizeMeta{},
		NoCharset:   true,
		Provisional: cfg.SizeKnown,
	})
}

type streamBackend struct {
	newReader func(src io.Reader) (codec.Reader, error)
}

func (b *streamBackend) Scan(*Instance) (bool, error) { return true, nil }

func (b *streamBackend) Open(inst *Instance, _ uint32) (Member, error) {
	sec, err := inst.Section(0, Unbounded)
	if err != nil {
		return nil, err
	}
	r, err := b.newReader(sec)
	if err != nil {
		return nil, classify(err)
	}
	return &streamMember{sec: sec, r: r}, nil
}

func (b *streamBackend) Close() {}

type streamMember struct {
	sec *Section
	r   codec.Reader
}

func (m *streamMember) Read(p []byte) (int, error) { return m.r.Read(p) }

func (m *streamMember) Rewind() error {
	if err := m.sec.Rewind(); err != nil {
		return err
	}
	return m.r.Reset(m.sec)
}

// StripExt derives the member name of a compressed container from the
// container's own name: "song.mod.gz" becomes "song.mod" and the
// shorthand tarball suffixes map to ".tar".
func StripExt(name string) string {
	ext := path.Ext(name)
	base := strings.TrimSuffix(name, ext)
	switch strings.ToLower(ext) {
	case ".tgz", ".tbz", ".tbz2", ".taz", ".tz":
		return base + ".tar"
	case "":
		return name + ".out"
	}
	if base == "" {
		return name + ".out"
	}
	return base
}

// Ext returns the lower-case extension of name, including the dot.
func Ext(name string) string {
	return strings.ToLower(path.Ext(name))
}
