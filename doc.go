// Package arcvfs mounts archive files as directories so a player can
// browse and read modules stored inside them.
//
// A [Session] owns the state shared by every archive it mounts: the node
// identity table, the registry of live archive instances and the metadata
// cache. Files are offered to the registered drivers, extension matches
// first, until one recognises the format:
//
//	s, err := arcvfs.New(arcvfs.WithCacheFile(path))
//	if err != nil {
//	    return err
//	}
//	defer s.Close()
//
//	f, err := s.OpenFile("/music/collection.zip/demo/song.mod")
//	if err != nil {
//	    return err
//	}
//	defer f.Unref()
//	data, err := vfs.ReadFile(f)
//
// Paths may descend through any number of nested archives, for example
// "pack.tar.gz/pack.tar/tunes/a.xm". Directory nodes returned by a session
// implement [vfs.Dir]; archive roots also implement [vfs.CharsetOverrider]
// when their format stores names in a legacy encoding.
//
// A Session is not safe for concurrent use. Independent sessions may share
// one [cache.Store].
package arcvfs
