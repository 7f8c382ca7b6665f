package assetimport

import (
	"errors"
	"log/slog"

	"github.com/meigma/assetimport/archive"
	"github.com/meigma/assetimport/resolve"
)

// Option configures a Runtime.
type Option func(*Runtime) error

// WithLogger sets the logger passed to every component.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runtime) error {
		r.logger = logger
		return nil
	}
}

// WithExec sets the function that runs modules after they are loaded.
func WithExec(fn resolve.ExecFunc) Option {
	return func(r *Runtime) error {
		r.exec = fn
		return nil
	}
}

// WithArchiveOptions sets options used when indexing every root.
func WithArchiveOptions(opts ...archive.Option) Option {
	return func(r *Runtime) error {
		r.archiveOpts = append(r.archiveOpts, opts...)
		return nil
	}
}

// WithStageConcurrency sets how many bootstrap files are staged in
// parallel.
func WithStageConcurrency(n int) Option {
	return func(r *Runtime) error {
		if n < 1 {
			return errors.New("assetimport: stage concurrency must be at least 1")
		}
		r.stageConcurrency = n
		return nil
	}
}
