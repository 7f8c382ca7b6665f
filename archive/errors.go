package archive

import (
	"errors"

	"github.com/meigma/assetimport/internal/assettype"
)

// Sentinel errors re-exported from internal/assettype.
var (
	// ErrNotFound is returned when an entry does not exist.
	ErrNotFound = assettype.ErrNotFound

	// ErrInvalidPath is returned for paths that are not valid archive paths
	// or that name a directory where a file is required.
	ErrInvalidPath = assettype.ErrInvalidPath

	// ErrCorruptArchive is returned when the central directory cannot be parsed.
	ErrCorruptArchive = assettype.ErrCorruptArchive

	// ErrChecksum is returned when content does not match the stored CRC-32.
	ErrChecksum = assettype.ErrChecksum

	// ErrDecompression is returned when decompression fails.
	ErrDecompression = assettype.ErrDecompression

	// ErrSizeOverflow is returned when sizes exceed supported limits.
	ErrSizeOverflow = assettype.ErrSizeOverflow
)

// Sentinel errors specific to the archive package.
var (
	// ErrUnsupportedMethod is returned for compression methods other than
	// store, deflate and zstd.
	ErrUnsupportedMethod = errors.New("archive: unsupported compression method")

	// ErrStaleSnapshot is returned when a snapshot was recorded for a
	// different archive source.
	ErrStaleSnapshot = errors.New("archive: stale snapshot")
)
