// Package archive indexes a read-only zip archive root.
//
// An Index is built once from the archive's central directory and is
// immutable afterwards. It answers path lookups with a binary search over
// sorted entries, lists the direct children of a directory and reads raw
// entry content, decompressing and verifying it on the way.
//
// Indexes can be persisted as FlatBuffers snapshots so that later process
// starts mount a root without re-reading its central directory; see
// OpenCached.
package archive
