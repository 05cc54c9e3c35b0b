package vfs

import (
	"fmt"
	"path"
)

// List enumerates the direct children of d. The caller owns one
// reference on every returned node; see Release.
func List(d Dir) ([]File, []Dir, error) {
	var files []File
	var dirs []Dir
	it, err := d.ReadDirStart(
		func(f File) {
			f.Ref()
			files = append(files, f)
		},
		func(sub Dir) {
			sub.Ref()
			dirs = append(dirs, sub)
		},
	)
	if err != nil {
		return nil, nil, err
	}
	for it.Iterate() {
	}
	it.Cancel()
	return files, dirs, nil
}

// ListFlat enumerates every file below d, recursively.
func ListFlat(d Dir) ([]File, error) {
	var files []File
	it, err := d.ReadFlatDirStart(func(f File) {
		f.Ref()
		files = append(files, f)
	})
	if err != nil {
		return nil, err
	}
	for it.Iterate() {
	}
	it.Cancel()
	return files, nil
}

// Release drops one reference on every node.
func Release[N Node](nodes []N) {
	for _, n := range nodes {
		n.Unref()
	}
}

// WalkFunc is called by Walk for every file. p is the slash-separated path
// of the file relative to the walk root. Returning an error stops the walk.
type WalkFunc func(p string, f File) error

// Walk visits every file below d in depth-first order using the
// single-level iterator of each directory.
func Walk(d Dir, fn WalkFunc) error {
	return walk(d, "", fn)
}

func walk(d Dir, prefix string, fn WalkFunc) error {
	files, dirs, err := List(d)
	if err != nil {
		return err
	}
	defer Release(files)
	defer Release(dirs)

	for _, f := range files {
		if err := fn(path.Join(prefix, f.Name()), f); err != nil {
			return err
		}
	}
	for _, sub := range dirs {
		if err := walk(sub, path.Join(prefix, sub.Name()), fn); err != nil {
			return err
		}
	}
	return nil
}

// Lookup finds the direct child of d with the given display name. Files
// win over directories of the same name. The caller owns the returned
// reference.
func Lookup(d Dir, name string) (Node, error) {
	var found Node
	var foundDir Node
	it, err := d.ReadDirStart(
		func(f File) {
			if found == nil && f.Name() == name {
				f.Ref()
				found = f
			}
		},
		func(sub Dir) {
			if foundDir == nil && sub.Name() == name {
				sub.Ref()
				foundDir = sub
			}
		},
	)
	if err != nil {
		return nil, err
	}
	for found == nil && it.Iterate() {
	}
	it.Cancel()

	switch {
	case found != nil:
		if foundDir != nil {
			foundDir.Unref()
		}
		return found, nil
	case foundDir != nil:
		return foundDir, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrNotExist, name)
	}
}
