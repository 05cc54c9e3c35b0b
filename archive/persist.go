package archive

import (
	"encoding/binary"
	"errors"
	"fmt"

	flatbuffers "github.com/google/flatbuffers/go"

	"github.com/meigma/arcvfs/internal/fb"
	"github.com/meigma/arcvfs/vfs"
)

// treeVersion is stored in every encoded tree; blobs with another version
// are treated as cache misses.
const treeVersion = 1

// Meta converts the facts learned about a container to and from a
// metadata cache blob.
type Meta interface {
	// Encode returns the blob to persist, or nil if there is nothing
	// worth caching yet.
	Encode(t *Tree) []byte

	// Decode applies a persisted blob to t. On error t is left unchanged.
	Decode(blob []byte, t *Tree) error
}

// TreeMeta persists the whole tree as a FlatBuffers table.
type TreeMeta struct{}

// Encode serializes t.
func (TreeMeta) Encode(t *Tree) []byte {
	return EncodeTree(t)
}

// Decode replaces t with the decoded tree.
func (TreeMeta) Decode(blob []byte, t *Tree) error {
	dec, err := DecodeTree(blob)
	if err != nil {
		return err
	}
	*t = *dec
	return nil
}

// SizeMeta persists only the size of the first file, as an 8-byte
// big-endian integer. It serves single-member stream containers.
type SizeMeta struct{}

// Encode returns the size blob once the size is known.
func (SizeMeta) Encode(t *Tree) []byte {
	if len(t.Files) == 0 || !t.Files[0].SizeKnown {
		return nil
	}
	return binary.BigEndian.AppendUint64(nil, t.Files[0].Size)
}

// Decode marks the first file's size as known.
func (SizeMeta) Decode(blob []byte, t *Tree) error {
	if len(blob) != 8 {
		return fmt.Errorf("archive: size blob of %d bytes: %w", len(blob), vfs.ErrMalformed)
	}
	if len(t.Files) == 0 {
		return fmt.Errorf("archive: size blob for empty tree: %w", vfs.ErrMalformed)
	}
	t.Files[0].Size = binary.BigEndian.Uint64(blob)
	t.Files[0].SizeKnown = true
	return nil
}

// EncodeTree serializes t to FlatBuffers. Child links are not stored;
// they are rebuilt from the parent indexes on decode.
func EncodeTree(t *Tree) []byte {
	builder := flatbuffers.NewBuilder(1024)

	dirOffsets := make([]flatbuffers.UOffsetT, len(t.Dirs))
	for i := len(t.Dirs) - 1; i >= 0; i-- {
		d := t.Dirs[i]
		nameOffset := builder.CreateByteVector([]byte(d.Raw))
		fb.DirStart(builder)
		fb.DirAddName(builder, nameOffset)
		fb.DirAddParent(builder, d.Parent)
		fb.DirAddUtf8(builder, d.UTF8)
		dirOffsets[i] = fb.DirEnd(builder)
	}

	fileOffsets := make([]flatbuffers.UOffsetT, len(t.Files))
	for i := len(t.Files) - 1; i >= 0; i-- {
		e := t.Files[i]
		nameOffset := builder.CreateByteVector([]byte(e.Raw))
		fb.FileStart(builder)
		fb.FileAddName(builder, nameOffset)
		fb.FileAddDir(builder, e.Dir)
		fb.FileAddOffset(builder, e.Offset)
		fb.FileAddCompSize(builder, e.CompSize)
		fb.FileAddSize(builder, e.Size)
		fb.FileAddSizeKnown(builder, e.SizeKnown)
		fb.FileAddDisk(builder, e.Disk)
		fb.FileAddMethod(builder, e.Method)
		fb.FileAddFlags(builder, e.Flags)
		fb.FileAddUtf8(builder, e.UTF8)
		fileOffsets[i] = fb.FileEnd(builder)
	}

	fb.TreeStartDirsVector(builder, len(dirOffsets))
	for i := len(dirOffsets) - 1; i >= 0; i-- {
		builder.PrependUOffsetT(dirOffsets[i])
	}
	dirsOffset := builder.EndVector(len(dirOffsets))

	fb.TreeStartFilesVector(builder, len(fileOffsets))
	for i := len(fileOffsets) - 1; i >= 0; i-- {
		builder.PrependUOffsetT(fileOffsets[i])
	}
	filesOffset := builder.EndVector(len(fileOffsets))

	fb.TreeStart(builder)
	fb.TreeAddVersion(builder, treeVersion)
	fb.TreeAddAux(builder, t.Aux)
	fb.TreeAddDirs(builder, dirsOffset)
	fb.TreeAddFiles(builder, filesOffset)
	builder.Finish(fb.TreeEnd(builder))
	return builder.FinishedBytes()
}

// DecodeTree parses a blob produced by EncodeTree and validates its links.
func DecodeTree(data []byte) (t *Tree, err error) {
	defer func() {
		if r := recover(); r != nil {
			t = nil
			err = fmt.Errorf("archive: failed to parse cached tree: %v: %w", r, vfs.ErrMalformed)
		}
	}()
	if len(data) < 8 {
		return nil, errors.Join(vfs.ErrMalformed, errors.New("archive: cached tree too short"))
	}

	root := fb.GetRootAsTree(data, 0)
	if v := root.Version(); v != treeVersion {
		return nil, fmt.Errorf("archive: cached tree version %d: %w", v, vfs.ErrMalformed)
	}
	ndirs := root.DirsLength()
	if ndirs == 0 {
		return nil, fmt.Errorf("archive: cached tree has no root: %w", vfs.ErrMalformed)
	}

	t = NewTree()
	t.Aux = root.Aux()

	var d fb.Dir
	for i := range ndirs {
		if !root.Dirs(&d, i) {
			return nil, fmt.Errorf("archive: cached dir %d: %w", i, vfs.ErrMalformed)
		}
		if i == 0 {
			continue
		}
		parent := d.Parent()
		if parent >= uint32(i) { //nolint:gosec // i < ndirs
			return nil, fmt.Errorf("archive: cached dir %d has parent %d: %w", i, parent, vfs.ErrMalformed)
		}
		if got := t.Mkdir(parent, string(d.NameBytes()), d.Utf8()); got != uint32(i) { //nolint:gosec // i < ndirs
			return nil, fmt.Errorf("archive: cached dir %d is a duplicate: %w", i, vfs.ErrMalformed)
		}
	}

	var f fb.File
	for i := range root.FilesLength() {
		if !root.Files(&f, i) {
			return nil, fmt.Errorf("archive: cached file %d: %w", i, vfs.ErrMalformed)
		}
		dir := f.Dir()
		if int(dir) >= ndirs {
			return nil, fmt.Errorf("archive: cached file %d in dir %d: %w", i, dir, vfs.ErrMalformed)
		}
		t.AddFile(Entry{
			Raw:       string(f.NameBytes()),
			UTF8:      f.Utf8(),
			Dir:       dir,
			Offset:    f.Offset(),
			CompSize:  f.CompSize(),
			Size:      f.Size(),
			SizeKnown: f.SizeKnown(),
			Disk:      f.Disk(),
			Method:    f.Method(),
			Flags:     f.Flags(),
		})
	}
	return t, nil
}
