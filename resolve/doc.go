// Package resolve maps dotted module names to loaders over mounted archive
// roots and plain directories.
//
// A Resolver keeps an ordered namespace of path entries. Each mounted
// archive contributes one entry, its location in the extraction cache;
// archives mounted with the same cache id share a location and are searched
// as one. Directories added at runtime contribute their own entries, and a
// directory that lies inside a mounted location is served from the archive.
//
// Lookups return a Spec whose Loader reads code straight from the archive.
// Only files that need a real path are extracted: native modules when they
// are loaded, and package resources once their top-level package has been
// imported.
//
// Loaded modules live in a Registry, which also implements the legacy
// find-then-load protocol through Handle.
package resolve
