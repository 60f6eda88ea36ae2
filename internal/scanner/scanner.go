// Package scanner enumerates watched directories and reports paths the
// monitor has not yet surfaced. Discovery is polling-based: the storage
// backend is NFS-exposed and change notification does not propagate from
// remote mutations.
package scanner

import (
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"tierwatch/internal/logging"
	"tierwatch/internal/pathset"
)

// Scanner discovers new paths under watched roots, recording everything it
// returns in the known-path set so the same entry is never surfaced twice.
type Scanner struct {
	known  *pathset.Set
	logger *slog.Logger
}

// New constructs a scanner over the provided known-path set.
func New(known *pathset.Set, logger *slog.Logger) *Scanner {
	return &Scanner{
		known:  known,
		logger: logging.NewComponentLogger(logger, "scanner"),
	}
}

type candidate struct {
	path  string
	atime time.Time
}

// ScanTopLevel lists the immediate children of root (files and directories,
// hidden entries skipped) and returns those not yet known, most recently
// accessed first. Poll cost stays proportional to the entry count, not the
// tree size.
func (s *Scanner) ScanTopLevel(root string) []string {
	entries, err := os.ReadDir(root)
	if err != nil {
		s.logger.Error("scan top-level failed",
			logging.String(logging.FieldPath, root),
			logging.Error(err),
		)
		return nil
	}

	candidates := make([]candidate, 0, len(entries))
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		path := filepath.Join(root, entry.Name())
		if s.known.Contains(path) {
			continue
		}
		candidates = append(candidates, candidate{path: path, atime: accessTimeOrZero(path)})
	}

	return s.commit(candidates)
}

// ScanDepth walks root up to maxDepth levels below it and returns unknown
// files, most recently accessed first. Hidden directories are pruned.
func (s *Scanner) ScanDepth(root string, maxDepth int) []string {
	var candidates []candidate

	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil // unreadable subtrees are skipped, not fatal
		}
		if path == root {
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if depthBelow(root, path) > maxDepth {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if s.known.Contains(path) {
			return nil
		}
		candidates = append(candidates, candidate{path: path, atime: accessTimeOrZero(path)})
		return nil
	})
	if err != nil {
		s.logger.Error("scan recursive failed",
			logging.String(logging.FieldPath, root),
			logging.Error(err),
		)
	}

	return s.commit(candidates)
}

// ListFiles returns every non-hidden file under root up to maxDepth levels,
// without consulting or updating the known-path set. Used for folder
// ingestion candidate listings.
func ListFiles(root string, maxDepth int) []string {
	var files []string
	_ = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if path == root {
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if depthBelow(root, path) > maxDepth {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.IsDir() {
			files = append(files, path)
		}
		return nil
	})
	return files
}

func (s *Scanner) commit(candidates []candidate) []string {
	if len(candidates) == 0 {
		return nil
	}
	// Newest activity first: under load the most recently touched files are
	// the ones someone is waiting on.
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].atime.After(candidates[j].atime)
	})
	paths := make([]string, 0, len(candidates))
	for _, c := range candidates {
		s.known.Add(c.path)
		paths = append(paths, c.path)
	}
	return paths
}

func depthBelow(root, path string) int {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return 0
	}
	return strings.Count(rel, string(os.PathSeparator)) + 1
}

func accessTimeOrZero(path string) time.Time {
	atime, err := AccessTime(path)
	if err != nil {
		return time.Time{}
	}
	return atime
}
