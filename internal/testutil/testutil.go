// Package testutil provides archive fixtures and fakes shared by tests.
package testutil

import (
	"io"

	"github.com/opencontainers/go-digest"
)

// MockByteSource implements an in-memory byte source that counts reads.
type MockByteSource struct {
	data  []byte
	id    string
	reads int
}

// NewMockByteSource returns a byte source backed by the provided data.
func NewMockByteSource(data []byte) *MockByteSource {
	return &MockByteSource{data: data, id: digest.FromBytes(data).String()}
}

// ReadAt implements io.ReaderAt semantics over the backing slice.
func (m *MockByteSource) ReadAt(p []byte, off int64) (int, error) {
	m.reads++
	if off >= int64(len(m.data)) {
		return 0, io.EOF
	}
	n := copy(p, m.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// Size returns the total size of the backing data.
func (m *MockByteSource) Size() int64 {
	return int64(len(m.data))
}

// SourceID returns the content digest of the backing data.
func (m *MockByteSource) SourceID() string {
	return m.id
}

// SetSourceID overrides the identifier, simulating a replaced archive.
func (m *MockByteSource) SetSourceID(id string) {
	m.id = id
}

// Reads returns the number of ReadAt calls. Not safe for concurrent use.
func (m *MockByteSource) Reads() int {
	return m.reads
}

// Bytes returns the backing slice for tests that need to mutate data.
func (m *MockByteSource) Bytes() []byte {
	return m.data
}
