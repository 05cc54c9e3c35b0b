package arcvfs

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"syscall"

	"github.com/meigma/arcvfs/osfs"
	"github.com/meigma/arcvfs/vfs"
)

// Resolve returns the node at path. The path starts on the host
// filesystem; every element after an archive file is looked up inside the
// mounted archive. The caller owns the returned reference.
//
// Failures are reported as *fs.PathError.
func (s *Session) Resolve(path string) (vfs.Node, error) {
	if s.closed {
		return nil, &fs.PathError{Op: "open", Path: path, Err: ErrClosed}
	}
	n, err := s.resolve(path)
	if err != nil {
		return nil, &fs.PathError{Op: "open", Path: path, Err: err}
	}
	return n, nil
}

// OpenDir returns the directory at path. A path naming an archive file
// returns the archive root.
func (s *Session) OpenDir(path string) (vfs.Dir, error) {
	n, err := s.Resolve(path)
	if err != nil {
		return nil, err
	}
	switch n := n.(type) {
	case vfs.Dir:
		return n, nil
	case vfs.File:
		d, err := s.Mount(n)
		n.Unref()
		if err != nil {
			return nil, &fs.PathError{Op: "open", Path: path, Err: err}
		}
		return d, nil
	}
	n.Unref()
	return nil, &fs.PathError{Op: "open", Path: path, Err: ErrNotExist}
}

// OpenFile returns the file at path.
func (s *Session) OpenFile(path string) (vfs.File, error) {
	n, err := s.Resolve(path)
	if err != nil {
		return nil, err
	}
	f, ok := n.(vfs.File)
	if !ok {
		n.Unref()
		return nil, &fs.PathError{Op: "open", Path: path, Err: ErrNotFile}
	}
	return f, nil
}

func (s *Session) resolve(path string) (vfs.Node, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	host, info, rest, err := splitHost(abs)
	if err != nil {
		return nil, err
	}

	var cur vfs.Node
	if info.IsDir() {
		d, err := osfs.Open(s.env.IDs(), host, osfs.WithLogger(s.logger))
		if err != nil {
			return nil, err
		}
		cur = d
	} else {
		d, err := osfs.Open(s.env.IDs(), filepath.Dir(host), osfs.WithLogger(s.logger))
		if err != nil {
			return nil, err
		}
		cur, err = vfs.Lookup(d, filepath.Base(host))
		d.Unref()
		if err != nil {
			return nil, err
		}
	}

	return s.descend(cur, rest)
}

// ResolveFrom returns the node at the slash-separated path rel below n,
// mounting archive files along the way. An empty rel returns n itself.
// The caller keeps its reference on n and owns the returned one.
func (s *Session) ResolveFrom(n vfs.Node, rel string) (vfs.Node, error) {
	if s.closed {
		return nil, &fs.PathError{Op: "open", Path: rel, Err: ErrClosed}
	}
	var elems []string
	for e := range strings.SplitSeq(rel, "/") {
		if e != "" && e != "." {
			elems = append(elems, e)
		}
	}
	n.Ref()
	cur, err := s.descend(n, elems)
	if err != nil {
		return nil, &fs.PathError{Op: "open", Path: rel, Err: err}
	}
	return cur, nil
}

// descend consumes the reference on cur.
func (s *Session) descend(cur vfs.Node, elems []string) (vfs.Node, error) {
	for _, name := range elems {
		var dir vfs.Dir
		switch n := cur.(type) {
		case vfs.Dir:
			dir = n
		case vfs.File:
			var err error
			dir, err = s.Mount(n)
			n.Unref()
			if err != nil {
				return nil, err
			}
		}
		next, err := vfs.Lookup(dir, name)
		dir.Unref()
		if err != nil {
			return nil, err
		}
		cur = next
	}
	return cur, nil
}

// splitHost returns the longest existing prefix of abs, its file info and
// the elements that follow it.
func splitHost(abs string) (string, fs.FileInfo, []string, error) {
	host := abs
	var rest []string
	for {
		info, err := os.Stat(host)
		if err == nil {
			slices.Reverse(rest)
			return host, info, rest, nil
		}
		if !errors.Is(err, fs.ErrNotExist) && !errors.Is(err, syscall.ENOTDIR) {
			return "", nil, nil, vfs.IOError(err)
		}
		parent := filepath.Dir(host)
		if parent == host {
			return "", nil, nil, ErrNotExist
		}
		rest = append(rest, filepath.Base(host))
		host = parent
	}
}
