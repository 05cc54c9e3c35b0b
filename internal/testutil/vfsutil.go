package testutil

import (
	"strings"
	"testing"

	"github.com/meigma/arcvfs/vfs"
)

// Names returns the display names of d's direct children in iteration
// order. Directory names carry a trailing slash.
func Names(tb testing.TB, d vfs.Dir) []string {
	tb.Helper()
	var names []string
	it, err := d.ReadDirStart(
		func(f vfs.File) { names = append(names, f.Name()) },
		func(sub vfs.Dir) { names = append(names, sub.Name()+"/") },
	)
	if err != nil {
		tb.Fatalf("ReadDirStart() error = %v", err)
	}
	for it.Iterate() {
	}
	it.Cancel()
	return names
}

// FindFile resolves a slash-separated path below d. The caller owns the
// returned reference.
func FindFile(tb testing.TB, d vfs.Dir, p string) vfs.File {
	tb.Helper()
	elems := strings.Split(p, "/")
	cur := d
	cur.Ref()
	defer func() { cur.Unref() }()
	for i, e := range elems {
		n, err := vfs.Lookup(cur, e)
		if err != nil {
			tb.Fatalf("Lookup(%q) in %q error = %v", e, p, err)
		}
		if i == len(elems)-1 {
			f, ok := n.(vfs.File)
			if !ok {
				n.Unref()
				tb.Fatalf("%q is not a file", p)
			}
			return f
		}
		sub, ok := n.(vfs.Dir)
		if !ok {
			n.Unref()
			tb.Fatalf("%q in %q is not a directory", e, p)
		}
		cur.Unref()
		cur = sub
	}
	tb.Fatalf("empty path")
	return nil
}

// ReadPath reads the file at p below d.
func ReadPath(tb testing.TB, d vfs.Dir, p string) []byte {
	tb.Helper()
	f := FindFile(tb, d, p)
	defer f.Unref()
	data, err := vfs.ReadFile(f)
	if err != nil {
		tb.Fatalf("ReadFile(%q) error = %v", p, err)
	}
	return data
}
