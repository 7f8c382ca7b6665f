package codecache

import (
	"errors"
	"fmt"

	"github.com/meigma/assetimport/internal/assettype"
)

// ErrCompile is returned, wrapped in a *CompileError, when source fails to
// compile.
var ErrCompile = assettype.ErrCompile

var (
	// ErrShortHeader is returned when data is too short to hold a header.
	ErrShortHeader = errors.New("codecache: short header")

	// ErrBadMagic is returned when compiled code was produced by a different
	// compiler version.
	ErrBadMagic = errors.New("codecache: bad magic number")
)

// CompileError reports a compile failure. Filename is always the logical
// source path, never a cache path.
type CompileError struct {
	Filename string
	Line     int
	Err      error
}

func (e *CompileError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("compile %s:%d: %v", e.Filename, e.Line, e.Err)
	}
	return fmt.Sprintf("compile %s: %v", e.Filename, e.Err)
}

// Unwrap returns both ErrCompile and the compiler's own error.
func (e *CompileError) Unwrap() []error {
	return []error{ErrCompile, e.Err}
}

type sourceLiner interface {
	SourceLine() int
}

func newCompileError(filename string, err error) *CompileError {
	ce := &CompileError{Filename: filename, Err: err}
	var sl sourceLiner
	if errors.As(err, &sl) {
		ce.Line = sl.SourceLine()
	}
	return ce
}
