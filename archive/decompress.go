package archive

import (
	"io"
	"sync"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zstd"
)

// decoderPool reuses zstd decoders across entry reads.
type decoderPool struct {
	pool      sync.Pool
	maxMemory uint64
}

func newDecoderPool(maxMemory uint64) *decoderPool {
	return &decoderPool{maxMemory: maxMemory}
}

// get returns a decoder reading from r and a release func returning it to
// the pool.
func (p *decoderPool) get(r io.Reader) (io.Reader, func(), error) {
	if dec, ok := p.pool.Get().(*zstd.Decoder); ok {
		if err := dec.Reset(r); err == nil {
			return dec, func() {
				_ = dec.Reset(nil) //nolint:errcheck // clearing state before pool return
				p.pool.Put(dec)
			}, nil
		}
		dec.Close()
	}
	dec, err := p.newDecoder(r)
	if err != nil {
		return nil, nil, err
	}
	return dec, func() {
		_ = dec.Reset(nil) //nolint:errcheck // clearing state before pool return
		p.pool.Put(dec)
	}, nil
}

func (p *decoderPool) newDecoder(r io.Reader) (*zstd.Decoder, error) {
	opts := []zstd.DOption{zstd.WithDecoderConcurrency(1)}
	if p.maxMemory > 0 {
		opts = append(opts, zstd.WithDecoderMaxMemory(p.maxMemory))
	}
	return zstd.NewReader(r, opts...)
}

// methodReader wraps the stored bytes of an entry in a decompressor for its
// method.
func (idx *Index) methodReader(e *Entry, stored io.Reader) (io.Reader, func(), error) {
	switch e.Method {
	case MethodStore:
		return stored, func() {}, nil
	case MethodDeflate:
		rc := flate.NewReader(stored)
		return rc, func() { _ = rc.Close() }, nil
	case MethodZstd:
		return idx.pool.get(stored)
	default:
		return nil, nil, ErrUnsupportedMethod
	}
}
