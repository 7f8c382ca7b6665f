package archive

import (
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"io/fs"

	"github.com/meigma/assetimport/internal/sizing"
)

// ReadRaw reads the full content of an entry, decompressing it and verifying
// its size and CRC-32.
func (idx *Index) ReadRaw(e Entry) ([]byte, error) {
	if e.IsDir() {
		return nil, &fs.PathError{Op: "read", Path: e.Path, Err: ErrInvalidPath}
	}
	if err := idx.validate(&e); err != nil {
		return nil, fmt.Errorf("read %s: %w", e.Path, err)
	}

	offset, err := sizing.ToInt64(e.Offset, ErrSizeOverflow)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", e.Path, err)
	}
	stored, err := sizing.ToInt64(e.CompressedSize, ErrSizeOverflow)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", e.Path, err)
	}
	section := io.NewSectionReader(idx.source, offset, stored)

	r, release, err := idx.methodReader(&e, section)
	if err != nil {
		if errors.Is(err, ErrUnsupportedMethod) {
			return nil, fmt.Errorf("read %s: %w: %d", e.Path, err, e.Method)
		}
		return nil, fmt.Errorf("read %s: %w: %v", e.Path, ErrDecompression, err)
	}
	defer release()

	size, err := sizing.ToInt(e.RawSize, ErrSizeOverflow)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", e.Path, err)
	}
	content := make([]byte, size)
	if n, err := io.ReadFull(r, content); err != nil {
		return nil, mapReadError(&e, n, size, err)
	}
	if err := ensureNoExtra(r); err != nil {
		return nil, mapReadError(&e, size, size, err)
	}

	if crc32.ChecksumIEEE(content) != e.CRC32 {
		return nil, fmt.Errorf("read %s: %w", e.Path, ErrChecksum)
	}
	return content, nil
}

// ReadFile reads the content of the file entry at path.
func (idx *Index) ReadFile(path string) ([]byte, error) {
	e, ok := idx.Find(path)
	if !ok {
		return nil, &fs.PathError{Op: "read", Path: path, Err: ErrNotFound}
	}
	return idx.ReadRaw(e)
}

// validate checks that an entry is safe to read from the source.
func (idx *Index) validate(e *Entry) error {
	if idx.maxFileSize > 0 && (e.RawSize > idx.maxFileSize || e.CompressedSize > idx.maxFileSize) {
		return ErrSizeOverflow
	}
	end, ok := sizing.AddUint64(e.Offset, e.CompressedSize)
	if !ok {
		return ErrSizeOverflow
	}
	size := idx.source.Size()
	if size < 0 || end > uint64(size) {
		return ErrSizeOverflow
	}
	if e.Method == MethodStore && e.CompressedSize != e.RawSize {
		return fmt.Errorf("%w: size mismatch", ErrDecompression)
	}
	return nil
}

var errExtraData = errors.New("content exceeds declared size")

// ensureNoExtra verifies the reader has no data beyond the declared size.
func ensureNoExtra(r io.Reader) error {
	var buf [1]byte
	n, err := r.Read(buf[:])
	if n > 0 {
		return errExtraData
	}
	if err == nil || errors.Is(err, io.EOF) {
		// A nil error with zero bytes is allowed by io.Reader; treat it as EOF.
		return nil
	}
	return err
}

func mapReadError(e *Entry, n, expected int, err error) error {
	if e.Method == MethodStore {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return fmt.Errorf("read %s: short read (%d of %d bytes)", e.Path, n, expected)
		}
		if errors.Is(err, errExtraData) {
			return fmt.Errorf("read %s: %w", e.Path, ErrChecksum)
		}
		return fmt.Errorf("read %s: %w", e.Path, err)
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("read %s: %w: unexpected EOF", e.Path, ErrDecompression)
	}
	return fmt.Errorf("read %s: %w: %v", e.Path, ErrDecompression, err)
}
