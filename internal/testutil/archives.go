package testutil

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"encoding/binary"
	"io"
	"testing"

	"github.com/dsnet/compress/bzip2"
	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
)

// Member is one entry of a test archive. Names ending in "/" are
// directories.
type Member struct {
	Name string
	Data []byte
}

// Gzip compresses data, recording name in the FNAME field when non-empty.
func Gzip(tb testing.TB, name string, data []byte) []byte {
	tb.Helper()
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	w.Name = name
	if _, err := w.Write(data); err != nil {
		tb.Fatalf("gzip write: %v", err)
	}
	if err := w.Close(); err != nil {
		tb.Fatalf("gzip close: %v", err)
	}
	return buf.Bytes()
}

// Bzip2 compresses data.
func Bzip2(tb testing.TB, data []byte) []byte {
	tb.Helper()
	var buf bytes.Buffer
	w, err := bzip2.NewWriter(&buf, &bzip2.WriterConfig{})
	if err != nil {
		tb.Fatalf("bzip2 writer: %v", err)
	}
	if _, err := w.Write(data); err != nil {
		tb.Fatalf("bzip2 write: %v", err)
	}
	if err := w.Close(); err != nil {
		tb.Fatalf("bzip2 close: %v", err)
	}
	return buf.Bytes()
}

// Deflate compresses data as a raw deflate stream.
func Deflate(tb testing.TB, data []byte) []byte {
	tb.Helper()
	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, flate.DefaultCompression)
	if err != nil {
		tb.Fatalf("flate writer: %v", err)
	}
	if _, err := w.Write(data); err != nil {
		tb.Fatalf("flate write: %v", err)
	}
	if err := w.Close(); err != nil {
		tb.Fatalf("flate close: %v", err)
	}
	return buf.Bytes()
}

// ZipMember describes one ZIP entry. Method is zip.Store, zip.Deflate,
// 9 for deflate64 or 12 for bzip2. Deflate64 members are written without
// matches, which makes the plain deflate stream a valid deflate64 one.
type ZipMember struct {
	Name    string
	Data    []byte
	Method  uint16
	NonUTF8 bool
}

// Zip builds a ZIP archive.
func Zip(tb testing.TB, members ...ZipMember) []byte {
	tb.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	w.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, flate.DefaultCompression)
	})
	w.RegisterCompressor(9, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, flate.HuffmanOnly)
	})
	w.RegisterCompressor(12, func(out io.Writer) (io.WriteCloser, error) {
		return bzip2.NewWriter(out, &bzip2.WriterConfig{})
	})
	for _, m := range members {
		fw, err := w.CreateHeader(&zip.FileHeader{
			Name:    m.Name,
			Method:  m.Method,
			NonUTF8: m.NonUTF8,
		})
		if err != nil {
			tb.Fatalf("zip header %s: %v", m.Name, err)
		}
		if _, err := fw.Write(m.Data); err != nil {
			tb.Fatalf("zip write %s: %v", m.Name, err)
		}
	}
	if err := w.Close(); err != nil {
		tb.Fatalf("zip close: %v", err)
	}
	return buf.Bytes()
}

// Tar builds a ustar archive. Long names use the PAX or GNU forms chosen
// by archive/tar.
func Tar(tb testing.TB, members ...Member) []byte {
	tb.Helper()
	var buf bytes.Buffer
	w := tar.NewWriter(&buf)
	for _, m := range members {
		hdr := &tar.Header{Name: m.Name, Mode: 0o644, Size: int64(len(m.Data)), Typeflag: tar.TypeReg}
		if n := len(m.Name); n > 0 && m.Name[n-1] == '/' {
			hdr.Typeflag = tar.TypeDir
			hdr.Mode = 0o755
			hdr.Size = 0
		}
		if err := w.WriteHeader(hdr); err != nil {
			tb.Fatalf("tar header %s: %v", m.Name, err)
		}
		if hdr.Typeflag == tar.TypeReg {
			if _, err := w.Write(m.Data); err != nil {
				tb.Fatalf("tar write %s: %v", m.Name, err)
			}
		}
	}
	if err := w.Close(); err != nil {
		tb.Fatalf("tar close: %v", err)
	}
	return buf.Bytes()
}

// QuakePak builds a Quake PACK file.
func QuakePak(members ...Member) []byte {
	var data bytes.Buffer
	type rec struct {
		name      string
		off, size uint32
	}
	recs := make([]rec, 0, len(members))
	for _, m := range members {
		recs = append(recs, rec{m.Name, uint32(12 + data.Len()), uint32(len(m.Data))}) //nolint:gosec // test sizes
		data.Write(m.Data)
	}
	out := make([]byte, 0, 12+data.Len()+64*len(recs))
	out = append(out, "PACK"...)
	out = binary.LittleEndian.AppendUint32(out, uint32(12+data.Len())) //nolint:gosec // test sizes
	out = binary.LittleEndian.AppendUint32(out, uint32(64*len(recs)))  //nolint:gosec // test sizes
	out = append(out, data.Bytes()...)
	for _, r := range recs {
		var name [56]byte
		copy(name[:], r.name)
		out = append(out, name[:]...)
		out = binary.LittleEndian.AppendUint32(out, r.off)
		out = binary.LittleEndian.AppendUint32(out, r.size)
	}
	return out
}

// WestwoodPak builds a Westwood PAK file: a chain of offset and name
// records terminated by the total file size.
func WestwoodPak(members ...Member) []byte {
	hdr := 4
	for _, m := range members {
		hdr += 4 + len(m.Name) + 1
	}
	var out []byte
	off := hdr
	for _, m := range members {
		out = binary.LittleEndian.AppendUint32(out, uint32(off)) //nolint:gosec // test sizes
		out = append(out, m.Name...)
		out = append(out, 0)
		off += len(m.Data)
	}
	out = binary.LittleEndian.AppendUint32(out, uint32(off)) //nolint:gosec // test sizes
	for _, m := range members {
		out = append(out, m.Data...)
	}
	return out
}

// RPG builds an ohrrpgce lump file.
func RPG(members ...Member) []byte {
	var out []byte
	for _, m := range members {
		out = append(out, m.Name...)
		out = append(out, 0)
		out = AppendPDP32(out, uint32(len(m.Data))) //nolint:gosec // test sizes
		out = append(out, m.Data...)
	}
	return out
}

// AppendPDP32 appends v in PDP-11 order: high word first, each word
// little-endian.
func AppendPDP32(b []byte, v uint32) []byte {
	return append(b, byte(v>>16), byte(v>>24), byte(v), byte(v>>8))
}

// Pattern returns n bytes of deterministic, mildly compressible data.
func Pattern(n int, seed byte) []byte {
	b := make([]byte, n)
	x := uint32(seed) + 1
	for i := range b {
		x = x*1103515245 + 12345
		if i%7 == 0 {
			b[i] = byte(x >> 24)
		} else {
			b[i] = "abcdefgh"[(x>>16)&7]
		}
	}
	return b
}

// SplitZip cuts a single-volume ZIP produced by Zip at the given offsets
// and rewrites its central directory so that the pieces form a split
// archive. The central directory must lie after the last cut. The
// returned volumes are in disk order; the last one is the .zip file.
func SplitZip(tb testing.TB, data []byte, cuts ...int) [][]byte {
	tb.Helper()
	out := bytes.Clone(data)
	eocd := bytes.LastIndex(out, []byte("PK\x05\x06"))
	if eocd < 0 {
		tb.Fatalf("split zip: no end record")
	}
	cdSize := int(binary.LittleEndian.Uint32(out[eocd+12:]))
	cdOff := int(binary.LittleEndian.Uint32(out[eocd+16:]))
	last := len(cuts)
	if last > 0 && cuts[last-1] > cdOff {
		tb.Fatalf("split zip: cut %d inside the central directory at %d", cuts[last-1], cdOff)
	}
	locate := func(off int) (disk, rel int) {
		start := 0
		for i, c := range cuts {
			if off < c {
				return i, off - start
			}
			start = c
		}
		return last, off - start
	}

	for p := cdOff; p < cdOff+cdSize; {
		lho := int(binary.LittleEndian.Uint32(out[p+42:]))
		disk, rel := locate(lho)
		binary.LittleEndian.PutUint16(out[p+34:], uint16(disk)) //nolint:gosec // test sizes
		binary.LittleEndian.PutUint32(out[p+42:], uint32(rel))  //nolint:gosec // test sizes
		n := 46 + int(binary.LittleEndian.Uint16(out[p+28:])) +
			int(binary.LittleEndian.Uint16(out[p+30:])) +
			int(binary.LittleEndian.Uint16(out[p+32:]))
		p += n
	}
	_, cdRel := locate(cdOff)
	binary.LittleEndian.PutUint16(out[eocd+4:], uint16(last))   //nolint:gosec // test sizes
	binary.LittleEndian.PutUint16(out[eocd+6:], uint16(last))   //nolint:gosec // test sizes
	binary.LittleEndian.PutUint32(out[eocd+16:], uint32(cdRel)) //nolint:gosec // test sizes

	vols := make([][]byte, 0, last+1)
	start := 0
	for _, c := range cuts {
		vols = append(vols, out[start:c])
		start = c
	}
	return append(vols, out[start:])
}
