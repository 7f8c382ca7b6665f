package testutil

import (
	"bytes"
	"fmt"
	"sync/atomic"
)

// FakeMagic is the magic number written by FakeCompiler.
var FakeMagic = [4]byte{0x55, 0x0d, 0x0d, 0x0a}

// SyntaxErrorMarker makes FakeCompiler fail when present in source.
const SyntaxErrorMarker = "<<syntax error>>"

// FakeCompiler is a deterministic compiler for tests. Its output is the
// source prefixed with "compiled:", and it counts invocations.
type FakeCompiler struct {
	calls atomic.Int64
}

// Magic returns FakeMagic.
func (c *FakeCompiler) Magic() [4]byte {
	return FakeMagic
}

// Tag returns the interpreter tag used in cache file names.
func (c *FakeCompiler) Tag() string {
	return "fake-38"
}

// Compile returns a fake code object for source.
func (c *FakeCompiler) Compile(source []byte, filename string) ([]byte, error) {
	c.calls.Add(1)
	if i := bytes.Index(source, []byte(SyntaxErrorMarker)); i >= 0 {
		return nil, &LineError{Line: bytes.Count(source[:i], []byte("\n")) + 1, Msg: "invalid syntax"}
	}
	return append([]byte("compiled:"), source...), nil
}

// Calls returns the number of Compile invocations.
func (c *FakeCompiler) Calls() int {
	return int(c.calls.Load())
}

// LineError is a compile failure at a source line.
type LineError struct {
	Line int
	Msg  string
}

func (e *LineError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Msg)
}

// SourceLine returns the failing line.
func (e *LineError) SourceLine() int {
	return e.Line
}
