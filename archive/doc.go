// Package archive is the shared machinery behind every archive driver.
//
// A driver recognises its container format and describes it with a
// Backend: a scanner that fills a Tree and an opener that decodes one
// member. Mount turns that into a mounted Instance whose root directory
// implements vfs.Dir. The instance serves directory iteration, lookups by
// identity, name decoding with charset overrides, and member handles with
// forward-only decoding and sticky errors. A finished scan is persisted to
// the metadata cache so the next mount can skip it.
//
// Instances are reference counted. Every directory and file node forwards
// Ref and Unref to its instance; the last Unref releases the container
// handle and removes the instance from its Registry. Nothing here is safe
// for concurrent use.
package archive
