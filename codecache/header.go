package codecache

import (
	"encoding/binary"
	"fmt"

	"github.com/meigma/assetimport/internal/sizing"
)

// HeaderSize is the size of the compiled code header in bytes.
const HeaderSize = 16

// Header is the fixed prefix of every compiled code file.
type Header struct {
	Magic       [4]byte
	Flags       uint32
	SourceMtime uint32
	SourceSize  uint32
}

// HeaderFor returns the header a cache file compiled from src must carry.
// Times and sizes are stored modulo 2^32.
func HeaderFor(c Compiler, src Source) Header {
	return Header{
		Magic:       c.Magic(),
		SourceMtime: sizing.Low32(src.ModTime.Unix()),
		SourceSize:  uint32(src.Size & 0xFFFFFFFF), //nolint:gosec // truncation is the point
	}
}

// Validates reports whether h is a valid cache header for a source whose
// expected header is want. Flags are not compared.
func (h Header) Validates(want Header) bool {
	return h.Magic == want.Magic && h.SourceMtime == want.SourceMtime && h.SourceSize == want.SourceSize
}

// ParseHeader decodes the header at the start of data.
func ParseHeader(data []byte) (Header, error) {
	if len(data) < HeaderSize {
		return Header{}, fmt.Errorf("%w: %d bytes", ErrShortHeader, len(data))
	}
	var h Header
	copy(h.Magic[:], data[:4])
	h.Flags = binary.LittleEndian.Uint32(data[4:8])
	h.SourceMtime = binary.LittleEndian.Uint32(data[8:12])
	h.SourceSize = binary.LittleEndian.Uint32(data[12:16])
	return h, nil
}

// MarshalBinary encodes the header. It never fails.
func (h Header) MarshalBinary() ([]byte, error) {
	return h.appendTo(make([]byte, 0, HeaderSize)), nil
}

func (h Header) appendTo(b []byte) []byte {
	b = append(b, h.Magic[:]...)
	b = binary.LittleEndian.AppendUint32(b, h.Flags)
	b = binary.LittleEndian.AppendUint32(b, h.SourceMtime)
	return binary.LittleEndian.AppendUint32(b, h.SourceSize)
}
