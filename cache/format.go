package cache

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/meigma/arcvfs/vfs"
)

// Signature opens every cache file: "OCPArchiveMeta", ESC, NUL.
const Signature = "OCPArchiveMeta\x1b\x00"

const headerLen = len(Signature) + 4

var errTruncated = fmt.Errorf("%w: truncated cache record", vfs.ErrMalformed)

// Commit rewrites the backing file when the store is dirty. The file is
// written next to the target and renamed over it.
func (s *Store) Commit() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.dirty {
		return nil
	}
	if s.path == "" {
		s.dirty = false
		return nil
	}

	data := encode(s.entries)
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("cache: commit: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".arcmeta-*")
	if err != nil {
		return fmt.Errorf("cache: commit: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("cache: commit: %w", err)
	}
	if err := tmp.Chmod(s.mode); err != nil {
		s.log().Debug("cache file chmod failed", "path", tmpPath, "error", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("cache: commit: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("cache: commit: %w", err)
	}

	s.dirty = false
	s.log().Debug("metadata cache committed", "path", s.path, "entries", len(s.entries), "bytes", len(data))
	return nil
}

// encode serialises entries in their current order.
func encode(entries []Entry) []byte {
	size := headerLen
	for _, e := range entries {
		size += len(e.Name) + 1 + len(e.SIG) + 1 + 8 + 4 + len(e.Blob)
	}
	buf := make([]byte, 0, size)
	buf = append(buf, Signature...)
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(entries))) //nolint:gosec // bounded by memory
	for _, e := range entries {
		buf = append(buf, e.Name...)
		buf = append(buf, 0)
		buf = append(buf, e.SIG...)
		buf = append(buf, 0)
		buf = binary.BigEndian.AppendUint64(buf, e.Size)
		buf = binary.BigEndian.AppendUint32(buf, uint32(len(e.Blob))) //nolint:gosec // limited by MaxBlobLen
		buf = append(buf, e.Blob...)
	}
	return buf
}

func decode(data []byte) ([]Entry, error) {
	if len(data) < headerLen {
		return nil, errTruncated
	}
	if string(data[:len(Signature)]) != Signature {
		return nil, fmt.Errorf("%w: bad cache signature", vfs.ErrMalformed)
	}
	count := binary.BigEndian.Uint32(data[len(Signature):headerLen])
	rest := data[headerLen:]

	// Every record takes at least 14 bytes; reject counts the file cannot hold.
	if uint64(count)*14 > uint64(len(rest)) {
		return nil, errTruncated
	}

	entries := make([]Entry, 0, count)
	for range count {
		var e Entry
		var err error
		if e.Name, rest, err = cstring(rest, MaxNameLen); err != nil {
			return nil, err
		}
		if e.SIG, rest, err = cstring(rest, MaxSIGLen); err != nil {
			return nil, err
		}
		if len(rest) < 12 {
			return nil, errTruncated
		}
		e.Size = binary.BigEndian.Uint64(rest)
		n := binary.BigEndian.Uint32(rest[8:])
		rest = rest[12:]
		if n > MaxBlobLen {
			return nil, fmt.Errorf("cache: blob of %d bytes: %w", n, vfs.ErrLimit)
		}
		if uint64(n) > uint64(len(rest)) {
			return nil, errTruncated
		}
		if n > 0 {
			e.Blob = bytes.Clone(rest[:n])
		}
		rest = rest[n:]
		entries = append(entries, e)
	}
	return entries, nil
}

func cstring(b []byte, limit int) (string, []byte, error) {
	i := bytes.IndexByte(b, 0)
	if i < 0 {
		return "", nil, errTruncated
	}
	if i > limit {
		return "", nil, errors.Join(vfs.ErrLimit, fmt.Errorf("cache: key of %d bytes", i))
	}
	return string(b[:i]), b[i+1:], nil
}
