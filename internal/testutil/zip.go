package testutil

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"
)

// DefaultModTime is the modification time given to fixture entries that do
// not set one.
var DefaultModTime = time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

// Zip compression methods understood by archive readers.
const (
	Store   uint16 = zip.Store
	Deflate uint16 = zip.Deflate
	Zstd    uint16 = zstd.ZipMethodWinZip
)

// ZipEntry describes one fixture entry. Names ending in "/" become
// directory entries.
type ZipEntry struct {
	Name     string
	Data     []byte
	Method   uint16
	Modified time.Time
}

// File returns a deflated fixture entry with string content.
func File(name, content string) ZipEntry {
	return ZipEntry{Name: name, Data: []byte(content), Method: Deflate}
}

// Dir returns a directory fixture entry.
func Dir(name string) ZipEntry {
	return ZipEntry{Name: name}
}

// BuildZip returns the bytes of a zip archive containing entries in order.
func BuildZip(tb testing.TB, entries ...ZipEntry) []byte {
	tb.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	zw.RegisterCompressor(zstd.ZipMethodWinZip, zstd.ZipCompressor())
	for _, e := range entries {
		mod := e.Modified
		if mod.IsZero() {
			mod = DefaultModTime
		}
		method := e.Method
		if len(e.Name) > 0 && e.Name[len(e.Name)-1] == '/' {
			method = zip.Store
		}
		w, err := zw.CreateHeader(&zip.FileHeader{
			Name:     e.Name,
			Method:   method,
			Modified: mod,
		})
		if err != nil {
			tb.Fatalf("create %s: %v", e.Name, err)
		}
		if len(e.Data) > 0 {
			if _, err := w.Write(e.Data); err != nil {
				tb.Fatalf("write %s: %v", e.Name, err)
			}
		}
	}
	if err := zw.Close(); err != nil {
		tb.Fatalf("close zip: %v", err)
	}
	return buf.Bytes()
}

// WriteZip writes a fixture archive to dir/name and returns its path.
func WriteZip(tb testing.TB, dir, name string, entries ...ZipEntry) string {
	tb.Helper()

	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		tb.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, BuildZip(tb, entries...), 0o644); err != nil {
		tb.Fatalf("write zip: %v", err)
	}
	return path
}
