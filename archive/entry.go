package archive

import (
	"strings"
	"time"
)

// Kind classifies an archive entry by how it is consumed.
type Kind uint8

const (
	// KindSourceFile is importable source text.
	KindSourceFile Kind = iota
	// KindCompiledArtifact is precompiled code with a 16-byte header.
	KindCompiledArtifact
	// KindNativeLibrary is a shared library; it must exist on disk to be loaded.
	KindNativeLibrary
	// KindPackageMarker is an explicit directory entry.
	KindPackageMarker
	// KindPlainResource is any other data file.
	KindPlainResource
)

// String returns the human-readable name of the kind.
func (k Kind) String() string {
	switch k {
	case KindSourceFile:
		return "source"
	case KindCompiledArtifact:
		return "compiled"
	case KindNativeLibrary:
		return "native"
	case KindPackageMarker:
		return "marker"
	case KindPlainResource:
		return "resource"
	default:
		return "unknown"
	}
}

// Importable reports whether entries of this kind are consumed by the
// module loader rather than read as data.
func (k Kind) Importable() bool {
	return k == KindSourceFile || k == KindCompiledArtifact || k == KindNativeLibrary
}

// Method is a zip compression method.
type Method uint16

const (
	MethodStore   Method = 0
	MethodDeflate Method = 8
	MethodZstd    Method = 93
)

// String returns the human-readable name of the method.
func (m Method) String() string {
	switch m {
	case MethodStore:
		return "store"
	case MethodDeflate:
		return "deflate"
	case MethodZstd:
		return "zstd"
	default:
		return "unknown"
	}
}

// File suffixes used by Classify.
const (
	SourceSuffix   = ".py"
	CompiledSuffix = ".pyc"
	NativeSuffix   = ".so"
)

// Entry describes one file or directory in an archive root.
type Entry struct {
	// Path is the slash-separated path relative to the archive root, without
	// a trailing slash (e.g., "pkg/mod.py").
	Path string

	// Kind classifies the entry.
	Kind Kind

	// Offset is the byte offset of the entry's stored data in the archive.
	Offset uint64

	// RawSize is the uncompressed size in bytes.
	RawSize uint64

	// CompressedSize is the stored size in bytes.
	CompressedSize uint64

	// ModTime is the modification time declared by the archive, at second
	// precision. It is the baseline for extraction change detection.
	ModTime time.Time

	// Method is the compression method of the stored data.
	Method Method

	// CRC32 is the IEEE checksum of the uncompressed content.
	CRC32 uint32
}

// IsDir reports whether the entry is a directory marker.
func (e *Entry) IsDir() bool {
	return e.Kind == KindPackageMarker
}

// Classify returns the kind of an archive path. Directory entries carry a
// trailing slash in the archive.
func Classify(name string) Kind {
	if strings.HasSuffix(name, "/") {
		return KindPackageMarker
	}
	switch {
	case strings.HasSuffix(name, CompiledSuffix):
		return KindCompiledArtifact
	case strings.HasSuffix(name, SourceSuffix):
		return KindSourceFile
	case IsNativeName(name):
		return KindNativeLibrary
	default:
		return KindPlainResource
	}
}

// IsNativeName reports whether a file name looks like a shared library:
// "x.so" or a versioned "libx.so.1".
func IsNativeName(name string) bool {
	if strings.HasSuffix(name, NativeSuffix) {
		return true
	}
	base := name
	if i := strings.LastIndex(base, "/"); i >= 0 {
		base = base[i+1:]
	}
	i := strings.Index(base, NativeSuffix+".")
	if i <= 0 {
		return false
	}
	for _, r := range base[i+len(NativeSuffix)+1:] {
		if (r < '0' || r > '9') && r != '.' {
			return false
		}
	}
	return true
}

func storedTime(t time.Time) time.Time {
	return time.Unix(t.Unix(), 0).UTC()
}
