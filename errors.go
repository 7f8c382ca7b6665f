package assetimport

import (
	"fmt"

	"github.com/meigma/assetimport/archive"
	"github.com/meigma/assetimport/codecache"
	"github.com/meigma/assetimport/internal/assettype"
	"github.com/meigma/assetimport/resolve"
)

// Errors re-exported from resolve.
var (
	// ErrNotFound is returned when a module, resource or library does not exist.
	ErrNotFound = resolve.ErrNotFound

	// ErrInvalidPath is returned for paths outside a loader's location or
	// naming a directory where a file is required.
	ErrInvalidPath = resolve.ErrInvalidPath

	// ErrRenameUnsupported is returned when a protected module is loaded
	// under a different name.
	ErrRenameUnsupported = resolve.ErrRenameUnsupported
)

// Errors re-exported from archive.
var (
	// ErrCorruptArchive is returned when an archive cannot be indexed.
	ErrCorruptArchive = archive.ErrCorruptArchive

	// ErrChecksum is returned when entry content does not match its CRC-32.
	ErrChecksum = archive.ErrChecksum

	// ErrDecompression is returned when decompression fails.
	ErrDecompression = archive.ErrDecompression

	// ErrSizeOverflow is returned when a size value overflows.
	ErrSizeOverflow = archive.ErrSizeOverflow
)

// Errors re-exported from codecache.
var (
	// ErrCompile is returned when source fails to compile.
	ErrCompile = codecache.ErrCompile
)

// ErrSourceUnavailable is returned by Runtime.Source for modules shipped
// without source.
var ErrSourceUnavailable = assettype.ErrSourceUnavailable

// MountError records a root that could not be mounted.
type MountError struct {
	Root string
	Path string
	Err  error
}

func (e *MountError) Error() string {
	return fmt.Sprintf("mount root %s (%s): %v", e.Root, e.Path, e.Err)
}

func (e *MountError) Unwrap() error {
	return e.Err
}
