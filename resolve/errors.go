package resolve

import (
	"fmt"

	"github.com/meigma/assetimport/internal/assettype"
)

// Sentinel errors re-exported from internal/assettype.
var (
	// ErrNotFound is returned when no path entry provides a module or
	// resource.
	ErrNotFound = assettype.ErrNotFound

	// ErrInvalidPath is returned when a resource path lies outside the
	// loader's root or names a directory.
	ErrInvalidPath = assettype.ErrInvalidPath

	// ErrRenameUnsupported is wrapped by *RenameError.
	ErrRenameUnsupported = assettype.ErrRenameUnsupported
)

// RenameError is returned when a protected module is loaded under a name
// other than the one it was found under.
type RenameError struct {
	Name  string
	Alias string
}

func (e *RenameError) Error() string {
	return fmt.Sprintf("archive loader does not support loading module %q under a different name %q", e.Name, e.Alias)
}

// Unwrap returns ErrRenameUnsupported.
func (e *RenameError) Unwrap() error {
	return ErrRenameUnsupported
}

func notFound(name string) error {
	return fmt.Errorf("%w: no module named %q", ErrNotFound, name)
}
