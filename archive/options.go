package archive

import "log/slog"

const (
	// DefaultMaxFileSize is the default maximum entry size (256MB).
	DefaultMaxFileSize = 256 << 20

	// DefaultMaxDecoderMemory is the default maximum zstd decoder memory (256MB).
	DefaultMaxDecoderMemory = 256 << 20
)

// Option configures an Index.
type Option func(*Index)

// WithMaxFileSize limits the raw and stored size of entries that can be read.
// Set to 0 to disable the limit.
func WithMaxFileSize(limit uint64) Option {
	return func(idx *Index) {
		idx.maxFileSize = limit
	}
}

// WithMaxDecoderMemory limits the memory used by zstd decoders.
// Set to 0 to disable the limit.
func WithMaxDecoderMemory(limit uint64) Option {
	return func(idx *Index) {
		idx.maxDecoderMemory = limit
	}
}

// WithLogger sets the logger used for skipped entries and snapshot activity.
func WithLogger(logger *slog.Logger) Option {
	return func(idx *Index) {
		idx.logger = logger
	}
}
