package fb

import (
	flatbuffers "github.com/google/flatbuffers/go"
)

type Entry struct {
	_tab flatbuffers.Table
}

func GetRootAsEntry(buf []byte, offset flatbuffers.UOffsetT) *Entry {
	n := flatbuffers.GetUOffsetT(buf[offset:])
	x := &Entry{}
	x.Init(buf, n+offset)
	return x
}

func (rcv *Entry) Init(buf []byte, i flatbuffers.UOffsetT) {
	rcv._tab.Bytes = buf
	rcv._tab.Pos = i
}

func (rcv *Entry) Table() flatbuffers.Table {
	return rcv._tab
}

func (rcv *Entry) Path() []byte {
	o := flatbuffers.UOffsetT(rcv._tab.Offset(4))
	if o != 0 {
		return rcv._tab.ByteVector(o + rcv._tab.Pos)
	}
	return nil
}

func (rcv *Entry) Kind() EntryKind {
	o := flatbuffers.UOffsetT(rcv._tab.Offset(6))
	if o != 0 {
		return EntryKind(rcv._tab.GetByte(o + rcv._tab.Pos))
	}
	return 0
}

func (rcv *Entry) DataOffset() uint64 {
	o := flatbuffers.UOffsetT(rcv._tab.Offset(8))
	if o != 0 {
		return rcv._tab.GetUint64(o + rcv._tab.Pos)
	}
	return 0
}

func (rcv *Entry) RawSize() uint64 {
	o := flatbuffers.UOffsetT(rcv._tab.Offset(10))
	if o != 0 {
		return rcv._tab.GetUint64(o + rcv._tab.Pos)
	}
	return 0
}

func (rcv *Entry) CompressedSize() uint64 {
	o := flatbuffers.UOffsetT(rcv._tab.Offset(12))
	if o != 0 {
		return rcv._tab.GetUint64(o + rcv._tab.Pos)
	}
	return 0
}

func (rcv *Entry) Mtime() int64 {
	o := flatbuffers.UOffsetT(rcv._tab.Offset(14))
	if o != 0 {
		return rcv._tab.GetInt64(o + rcv._tab.Pos)
	}
	return 0
}

func (rcv *Entry) Method() uint16 {
	o := flatbuffers.UOffsetT(rcv._tab.Offset(16))
	if o != 0 {
		return rcv._tab.GetUint16(o + rcv._tab.Pos)
	}
	return 0
}

func (rcv *Entry) Crc32() uint32 {
	o := flatbuffers.UOffsetT(rcv._tab.Offset(18))
	if o != 0 {
		return rcv._tab.GetUint32(o + rcv._tab.Pos)
	}
	return 0
}

func EntryStart(builder *flatbuffers.Builder) {
	builder.StartObject(8)
}
func EntryAddPath(builder *flatbuffers.Builder, path flatbuffers.UOffsetT) {
	builder.PrependUOffsetTSlot(0, flatbuffers.UOffsetT(path), 0)
}
func EntryAddKind(builder *flatbuffers.Builder, kind EntryKind) {
	builder.PrependByteSlot(1, byte(kind), 0)
}
func EntryAddDataOffset(builder *flatbuffers.Builder, dataOffset uint64) {
	builder.PrependUint64Slot(2, dataOffset, 0)
}
func EntryAddRawSize(builder *flatbuffers.Builder, rawSize uint64) {
	builder.PrependUint64Slot(3, rawSize, 0)
}
func EntryAddCompressedSize(builder *flatbuffers.Builder, compressedSize uint64) {
	builder.PrependUint64Slot(4, compressedSize, 0)
}
func EntryAddMtime(builder *flatbuffers.Builder, mtime int64) {
	builder.PrependInt64Slot(5, mtime, 0)
}
func EntryAddMethod(builder *flatbuffers.Builder, method uint16) {
	builder.PrependUint16Slot(6, method, 0)
}
func EntryAddCrc32(builder *flatbuffers.Builder, crc32 uint32) {
	builder.PrependUint32Slot(7, crc32, 0)
}
func EntryEnd(builder *flatbuffers.Builder) flatbuffers.UOffsetT {
	return builder.EndObject()
}
