// Package vfs defines the node interfaces shared by every layer of the
// archive filesystem.
//
// A tree is made of three capability sets:
//   - [Dir]: enumerable container of files and sub-directories
//   - [File]: openable leaf with a (possibly expensive) size
//   - [FileHandle]: per-open read cursor with a sticky error flag
//
// Nodes are reference counted. A node returned by a constructor, by
// [Dir.ReadDirDir]/[Dir.ReadDirFile] or by [File.Open] carries one
// reference owned by the caller. Nodes passed to iterator callbacks are
// borrowed; call Ref to keep one past the callback. Parent pointers are
// borrowed as well and stay valid while the child is alive.
//
// Implementations are not safe for concurrent use.
package vfs
