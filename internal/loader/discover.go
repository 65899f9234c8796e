// SPDX-License-Identifier: MPL-2.0

package loader

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Candidate is a package directory found by Discover.
type Candidate struct {
	// Path is the package directory.
	Path string
}

// Name returns the directory name, used in reports before the manifest is
// read.
func (c Candidate) Name() string { return filepath.Base(c.Path) }

// String implements fmt.Stringer.
func (c Candidate) String() string { return c.Path }

// Candidates wraps paths given explicitly, e.g. on the command line.
func Candidates(paths ...string) []Candidate {
	out := make([]Candidate, len(paths))
	for i, p := range paths {
		out[i] = Candidate{Path: p}
	}
	return out
}

// Discover lists the package directories directly inside dir, in name
// order. Hidden entries and plain files are ignored; entries that cannot be
// inspected are logged and skipped. An empty directory yields no
// candidates and no error.
func Discover(dir string) ([]Candidate, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		slog.Warn("failed to resolve absolute path for modules directory", "dir", dir, "error", err)
		absDir = dir
	}

	entries, err := os.ReadDir(absDir)
	if err != nil {
		return nil, fmt.Errorf("read modules directory %s: %w", dir, err)
	}

	var candidates []Candidate
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), ".") {
			continue
		}

		path := filepath.Join(absDir, entry.Name())
		// os.Stat follows symlinks so linked packages are picked up.
		info, err := os.Stat(path)
		if err != nil {
			slog.Warn("skipping unreadable module entry", "path", path, "error", err)
			continue
		}
		if !info.IsDir() {
			continue
		}
		candidates = append(candidates, Candidate{Path: path})
	}
	return candidates, nil
}
