// Package stage keeps a directory holding exactly a declared set of
// archive files.
//
// Bootstrap files must exist on disk before anything else can run. A
// Stager materializes them into an extraction cache and then sweeps the
// cache root, removing every file that is not part of the set, including
// temp files and strays left by earlier runs.
package stage

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/meigma/assetimport/archive"
	"github.com/meigma/assetimport/extract"
	"github.com/meigma/assetimport/internal/write"
)

const defaultConcurrency = 4

type requirement struct {
	idx  *archive.Index
	path string
}

// Report summarizes one Stage run. Paths are absolute and sorted.
type Report struct {
	// Written lists required files that were (re)extracted.
	Written []string

	// Unchanged lists required files that were already current.
	Unchanged []string

	// Removed lists files and directories deleted by the sweep.
	Removed []string

	// Interrupted lists the removed files that were temp files of writes
	// that never completed.
	Interrupted []string
}

// Stager materializes a fixed set of files and removes everything else.
type Stager struct {
	cache       *extract.Cache
	concurrency int
	logger      *slog.Logger

	mu   sync.Mutex
	reqs []requirement
}

// Option configures a Stager.
type Option func(*Stager)

// WithConcurrency sets how many files are materialized in parallel.
// Values < 1 are treated as 1.
func WithConcurrency(n int) Option {
	return func(s *Stager) {
		s.concurrency = max(n, 1)
	}
}

// WithLogger sets the logger for staging activity.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Stager) {
		s.logger = logger
	}
}

// New creates a Stager writing into cache. The cache root is owned by the
// stager: anything in it that is not required is deleted by Stage.
func New(cache *extract.Cache, opts ...Option) *Stager {
	s := &Stager{
		cache:       cache,
		concurrency: defaultConcurrency,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Require adds entries of idx to the required set.
func (s *Stager) Require(idx *archive.Index, entryPaths ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range entryPaths {
		s.reqs = append(s.reqs, requirement{idx: idx, path: p})
	}
}

// Stage materializes every required file, then removes other files and
// empty directories from the cache root. It is idempotent: a second run
// with nothing changed writes and removes nothing.
//
// ctx is checked between files.
func (s *Stager) Stage(ctx context.Context) (Report, error) {
	s.mu.Lock()
	reqs := slices.Clone(s.reqs)
	s.mu.Unlock()

	var (
		report Report
		mu     sync.Mutex
		keep   = make(map[string]struct{}, len(reqs))
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, r := range reqs {
		keep[s.cache.Path(r.idx.ID(), r.path)] = struct{}{}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rec, err := s.cache.Materialize(r.idx, r.path)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			if rec.Written {
				report.Written = append(report.Written, rec.Path)
			} else {
				report.Unchanged = append(report.Unchanged, rec.Path)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Report{}, err
	}

	removed, interrupted, err := s.sweep(ctx, keep)
	if err != nil {
		return Report{}, err
	}
	report.Removed, report.Interrupted = removed, interrupted

	sort.Strings(report.Written)
	sort.Strings(report.Unchanged)
	s.log().Info("staged bootstrap files",
		"written", len(report.Written),
		"unchanged", len(report.Unchanged),
		"removed", len(report.Removed))
	return report, nil
}

// sweep deletes files not in keep, then directories left empty.
func (s *Stager) sweep(ctx context.Context, keep map[string]struct{}) (removed, interrupted []string, err error) {
	root := s.cache.Root()
	var files, dirs []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			if path != root {
				dirs = append(dirs, path)
			}
			return nil
		}
		if _, ok := keep[path]; !ok {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	for _, f := range files {
		if err := os.Remove(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return removed, interrupted, err
		}
		if write.IsTemp(f) {
			s.log().Info("removed interrupted write", "path", f)
			interrupted = append(interrupted, f)
		} else {
			s.log().Info("removed stray file", "path", f)
		}
		removed = append(removed, f)
	}

	// Deepest first, so parents are empty by the time they are visited.
	sort.Sort(sort.Reverse(sort.StringSlice(dirs)))
	for _, d := range dirs {
		entries, err := os.ReadDir(d)
		if err != nil || len(entries) > 0 {
			continue
		}
		if err := os.Remove(d); err == nil {
			removed = append(removed, d)
		}
	}
	sort.Strings(removed)
	sort.Strings(interrupted)
	return removed, interrupted, nil
}

func (s *Stager) log() *slog.Logger {
	if s.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return s.logger
}
