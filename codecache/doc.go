// Package codecache stores compiled code beside the source it was compiled
// from.
//
// Each cache file starts with a 16-byte header recording the compiler's
// magic number, a flags word and the source's modification time and size,
// all little-endian. The header alone decides whether a cache file is
// current: a file whose header matches the source is returned as is,
// without reading or verifying its payload.
package codecache
