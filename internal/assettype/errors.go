// Package assettype holds values shared by every public package so that
// errors.Is works across component boundaries.
package assettype

import "errors"

// Sentinel errors for archive, cache and resolution operations.
var (
	// ErrNotFound is returned when a module, resource, entry or distribution
	// is absent from every mounted root.
	ErrNotFound = errors.New("assetimport: not found")

	// ErrInvalidPath is returned when a path escapes all managed roots or
	// names something that cannot be materialized, such as a directory.
	ErrInvalidPath = errors.New("assetimport: invalid path")

	// ErrRenameUnsupported is returned when a protected module is loaded
	// under a different name.
	ErrRenameUnsupported = errors.New("assetimport: rename unsupported")

	// ErrCorruptArchive is returned when an archive's central directory
	// cannot be parsed.
	ErrCorruptArchive = errors.New("assetimport: corrupt archive")

	// ErrCompile is returned when source fails to compile.
	ErrCompile = errors.New("assetimport: compile failed")

	// ErrChecksum is returned when entry content does not match its CRC-32.
	ErrChecksum = errors.New("assetimport: checksum mismatch")

	// ErrDecompression is returned when entry content cannot be decompressed.
	ErrDecompression = errors.New("assetimport: decompression failed")

	// ErrSizeOverflow is returned when sizes or offsets exceed supported limits.
	ErrSizeOverflow = errors.New("assetimport: size overflow")

	// ErrSourceUnavailable is returned when source text was requested for a
	// module that only ships compiled code.
	ErrSourceUnavailable = errors.New("assetimport: source unavailable")
)
