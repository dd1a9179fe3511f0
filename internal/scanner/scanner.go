// Package scanner finds C and C++ sources and feeds their macro definitions
// into a table.
package scanner

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/fwessels/macroexp/internal/macro"
	"github.com/fwessels/macroexp/internal/preprocessor"

	"github.com/gobwas/glob"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Sink receives the extraction results of one file. Both macro.Set and
// store.DB implement it.
type Sink interface {
	ReplaceFile(file string, defs []macro.Definition, types []string, failures []macro.Diagnostic) error
}

// Scanner recursively finds C/C++ files and extracts them in parallel.
type Scanner struct {
	excludes []glob.Glob
	jobs     int
	log      logrus.FieldLogger
}

// New compiles the exclude patterns. A pattern matches either the base
// name or the slash separated path of a file or directory, e.g. "build",
// "*_test.c" or "vendor/**". jobs <= 0 uses one worker per CPU.
func New(excludes []string, jobs int) (*Scanner, error) {
	s := &Scanner{jobs: jobs, log: logrus.WithField("component", "scanner")}
	if s.jobs <= 0 {
		s.jobs = runtime.NumCPU()
	}
	for _, p := range excludes {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		g, err := glob.Compile(p, '/')
		if err != nil {
			return nil, errors.Wrapf(err, "invalid exclude pattern %q", p)
		}
		s.excludes = append(s.excludes, g)
	}
	return s, nil
}

// ScanPath returns the source files under path, in walk order. A file
// given directly is returned whatever its extension.
func (s *Scanner) ScanPath(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, errors.Wrap(err, "scan")
	}
	if !info.IsDir() {
		return []string{filepath.Clean(path)}, nil
	}

	var files []string
	err = filepath.WalkDir(path, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			s.log.WithError(err).WithField("path", p).Warn("skipping")
			return nil
		}
		rel, _ := filepath.Rel(path, p)
		if d.IsDir() {
			if rel != "." && s.excluded(rel) {
				return filepath.SkipDir
			}
			return nil
		}
		if IsSource(p) && !s.excluded(rel) {
			files = append(files, p)
		}
		return nil
	})
	return files, errors.Wrapf(err, "walk %s", path)
}

// ScanPaths scans every path and drops duplicates.
func (s *Scanner) ScanPaths(paths []string) ([]string, error) {
	var all []string
	seen := make(map[string]bool)
	for _, path := range paths {
		files, err := s.ScanPath(path)
		if err != nil {
			return nil, err
		}
		for _, f := range files {
			abs, err := filepath.Abs(f)
			if err != nil {
				abs = f
			}
			if !seen[abs] {
				seen[abs] = true
				all = append(all, f)
			}
		}
	}
	return all, nil
}

func (s *Scanner) excluded(rel string) bool {
	rel = filepath.ToSlash(rel)
	base := filepath.Base(rel)
	for _, g := range s.excludes {
		if g.Match(base) || g.Match(rel) {
			return true
		}
	}
	return false
}

// IsSource reports whether path has a C or C++ source or header extension.
func IsSource(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".c", ".h", ".cpp", ".hpp", ".cc", ".cxx", ".hxx", ".inc", ".inl":
		return true
	}
	return false
}

// Summary counts what Index stored.
type Summary struct {
	Files       int
	Bytes       int64
	Definitions int
	Types       int
	Failures    int
}

// Index extracts files in parallel and hands the results to sink in the
// order of files, so later files redefine earlier ones.
func (s *Scanner) Index(ctx context.Context, files []string, sink Sink) (Summary, error) {
	results := make([]*preprocessor.Extraction, len(files))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.jobs)
	for i, f := range files {
		i, f := i, f
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			ex, err := preprocessor.ExtractFile(f)
			if err != nil {
				return errors.Wrap(err, "index")
			}
			results[i] = ex
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Summary{}, err
	}

	var sum Summary
	for _, ex := range results {
		if err := sink.ReplaceFile(ex.File, ex.Definitions, ex.KnownTypes, ex.Diagnostics); err != nil {
			return sum, err
		}
		for _, d := range ex.Diagnostics {
			s.log.WithFields(logrus.Fields{
				"file":  d.Location.File,
				"line":  d.Location.Line,
				"macro": d.Macro,
			}).Warn(d.Message)
		}
		s.log.WithFields(logrus.Fields{
			"file":        ex.File,
			"definitions": len(ex.Definitions),
		}).Debug("indexed")
		sum.Files++
		sum.Bytes += ex.Size
		sum.Definitions += len(ex.Definitions)
		sum.Types += len(ex.KnownTypes)
		sum.Failures += len(ex.Diagnostics)
	}
	return sum, nil
}
