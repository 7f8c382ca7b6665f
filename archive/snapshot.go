package archive

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cespare/xxhash/v2"
	flatbuffers "github.com/google/flatbuffers/go"

	"github.com/meigma/assetimport/internal/fb"
	"github.com/meigma/assetimport/internal/write"
)

// SnapshotVersion is the current snapshot format version.
const SnapshotVersion = 1

// snapshotMagic prefixes every snapshot, followed by the xxhash64 of the
// FlatBuffers payload.
var snapshotMagic = [4]byte{'A', 'I', 'D', 'X'}

const snapshotHeaderSize = 4 + 8

var errSnapshotCorrupt = errors.New("archive: corrupt snapshot")

// MarshalSnapshot encodes the index so it can be reloaded with LoadSnapshot.
func (idx *Index) MarshalSnapshot() []byte {
	builder := flatbuffers.NewBuilder(len(idx.entries) * 96)

	offsets := make([]flatbuffers.UOffsetT, len(idx.entries))
	for i := len(idx.entries) - 1; i >= 0; i-- {
		e := &idx.entries[i]
		path := builder.CreateString(e.Path)
		fb.EntryStart(builder)
		fb.EntryAddPath(builder, path)
		fb.EntryAddKind(builder, fb.EntryKind(e.Kind))
		fb.EntryAddDataOffset(builder, e.Offset)
		fb.EntryAddRawSize(builder, e.RawSize)
		fb.EntryAddCompressedSize(builder, e.CompressedSize)
		fb.EntryAddMtime(builder, e.ModTime.Unix())
		fb.EntryAddMethod(builder, uint16(e.Method))
		fb.EntryAddCrc32(builder, e.CRC32)
		offsets[i] = fb.EntryEnd(builder)
	}

	fb.SnapshotStartEntriesVector(builder, len(offsets))
	for i := len(offsets) - 1; i >= 0; i-- {
		builder.PrependUOffsetT(offsets[i])
	}
	entries := builder.EndVector(len(offsets))

	rootID := builder.CreateString(idx.id)
	sourceID := builder.CreateString(idx.source.SourceID())

	fb.SnapshotStart(builder)
	fb.SnapshotAddVersion(builder, SnapshotVersion)
	fb.SnapshotAddRootId(builder, rootID)
	fb.SnapshotAddSourceId(builder, sourceID)
	fb.SnapshotAddEntries(builder, entries)
	builder.Finish(fb.SnapshotEnd(builder))

	payload := builder.FinishedBytes()
	out := make([]byte, snapshotHeaderSize, snapshotHeaderSize+len(payload))
	copy(out, snapshotMagic[:])
	binary.LittleEndian.PutUint64(out[4:], xxhash.Sum64(payload))
	return append(out, payload...)
}

// LoadSnapshot rebuilds an Index from a snapshot taken of src.
//
// It returns ErrStaleSnapshot if the snapshot was taken from a source with a
// different SourceID, and a corruption error if the checksum or encoding is
// invalid.
func LoadSnapshot(data []byte, src ByteSource, opts ...Option) (idx *Index, err error) {
	if len(data) < snapshotHeaderSize || !bytes.Equal(data[:4], snapshotMagic[:]) {
		return nil, errSnapshotCorrupt
	}
	payload := data[snapshotHeaderSize:]
	if binary.LittleEndian.Uint64(data[4:]) != xxhash.Sum64(payload) {
		return nil, fmt.Errorf("%w: checksum mismatch", errSnapshotCorrupt)
	}

	// Malformed FlatBuffers panic on out-of-range access.
	defer func() {
		if r := recover(); r != nil {
			idx, err = nil, fmt.Errorf("%w: %v", errSnapshotCorrupt, r)
		}
	}()

	root := fb.GetRootAsSnapshot(payload, 0)
	if v := root.Version(); v != SnapshotVersion {
		return nil, fmt.Errorf("%w: version %d", errSnapshotCorrupt, v)
	}
	if string(root.SourceId()) != src.SourceID() {
		return nil, ErrStaleSnapshot
	}

	idx = newIndex(string(root.RootId()), src, opts)
	n := root.EntriesLength()
	entries := make([]Entry, 0, n)
	var e fb.Entry
	for i := range n {
		if !root.Entries(&e, i) {
			return nil, errSnapshotCorrupt
		}
		entries = append(entries, Entry{
			Path:           string(e.Path()),
			Kind:           Kind(e.Kind()),
			Offset:         e.DataOffset(),
			RawSize:        e.RawSize(),
			CompressedSize: e.CompressedSize(),
			ModTime:        time.Unix(e.Mtime(), 0).UTC(),
			Method:         Method(e.Method()),
			CRC32:          e.Crc32(),
		})
	}
	idx.setEntries(entries)
	return idx, nil
}

// SnapshotPath returns where OpenCached stores the snapshot of root id.
func SnapshotPath(dir, id string) string {
	return filepath.Join(dir, id+".idx")
}

// OpenCached opens root id from a snapshot in dir when one exists for the
// current source, and otherwise indexes the archive and refreshes the
// snapshot. Snapshot write failures are logged, not returned.
func OpenCached(id string, src ByteSource, dir string, opts ...Option) (*Index, error) {
	path := SnapshotPath(dir, id)
	if data, err := os.ReadFile(path); err == nil { //nolint:gosec // path is derived from the root id
		idx, loadErr := LoadSnapshot(data, src, opts...)
		if loadErr == nil && idx.id == id {
			idx.log().Debug("loaded index snapshot", "root", id, "entries", idx.Len())
			return idx, nil
		}
		if loadErr != nil {
			newIndex(id, src, opts).log().Debug("discarding index snapshot", "root", id, "error", loadErr)
		}
	}

	idx, err := Open(id, src, opts...)
	if err != nil {
		return nil, err
	}
	if err := write.File(path, idx.MarshalSnapshot()); err != nil {
		idx.log().Warn("failed to write index snapshot", "root", id, "path", path, "error", err)
	}
	return idx, nil
}
