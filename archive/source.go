package archive

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/opencontainers/go-digest"
)

// ByteSource provides random access to archive bytes.
//
// SourceID must return a stable identifier for the underlying content; it
// keys persisted snapshots.
type ByteSource interface {
	io.ReaderAt
	Size() int64
	SourceID() string
}

// FileSource is a ByteSource backed by a local archive file.
type FileSource struct {
	f    *os.File
	size int64
	id   string
}

// OpenFile opens the archive at path.
//
// The source identifier digests the absolute path, size and modification
// time, so replacing the archive invalidates snapshots taken from it.
func OpenFile(path string) (*FileSource, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(abs)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	id := digest.FromString(fmt.Sprintf("%s\x00%d\x00%d", abs, info.Size(), info.ModTime().UnixNano()))
	return &FileSource{f: f, size: info.Size(), id: id.String()}, nil
}

// ReadAt implements io.ReaderAt.
func (s *FileSource) ReadAt(p []byte, off int64) (int, error) {
	return s.f.ReadAt(p, off)
}

// Size returns the archive size in bytes.
func (s *FileSource) Size() int64 {
	return s.size
}

// SourceID returns the content identifier of the archive.
func (s *FileSource) SourceID() string {
	return s.id
}

// Name returns the absolute path of the archive file.
func (s *FileSource) Name() string {
	return s.f.Name()
}

// Close closes the underlying file.
func (s *FileSource) Close() error {
	return s.f.Close()
}

type bytesSource struct {
	*bytes.Reader
	id string
}

func (s *bytesSource) SourceID() string {
	return s.id
}

// NewBytesSource returns a ByteSource over an in-memory archive. Its
// identifier is the content digest.
func NewBytesSource(data []byte) ByteSource {
	return &bytesSource{
		Reader: bytes.NewReader(data),
		id:     digest.FromBytes(data).String(),
	}
}
