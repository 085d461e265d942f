package asset

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gobwas/glob"
)

// DefaultPatterns selects host asset files.
var DefaultPatterns = []string{"*.asset"}

type compiledPattern struct {
	pattern string
	glob    glob.Glob
}

// Discovery finds asset files under a root directory.
type Discovery struct {
	root      string
	recursive bool
	patterns  []compiledPattern
}

// NewDiscovery compiles the glob patterns. Empty patterns select DefaultPatterns.
// Without recursive, only files directly inside root are considered.
func NewDiscovery(root string, patterns []string, recursive bool) (*Discovery, error) {
	if len(patterns) == 0 {
		patterns = DefaultPatterns
	}

	d := &Discovery{root: root, recursive: recursive}
	for _, pattern := range patterns {
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			return nil, fmt.Errorf("invalid asset pattern %q: %w", pattern, err)
		}
		d.patterns = append(d.patterns, compiledPattern{pattern: pattern, glob: g})
	}
	return d, nil
}

// Discover returns matching files in lexical order.
// A root that is a regular file is returned as-is, without pattern matching.
func (d *Discovery) Discover() ([]string, error) {
	info, err := os.Stat(d.root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{d.root}, nil
	}

	var files []string
	err = filepath.WalkDir(d.root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			if path != d.root && !d.recursive {
				return filepath.SkipDir
			}
			return nil
		}

		relPath, err := filepath.Rel(d.root, path)
		if err != nil {
			return err
		}
		if d.matches(filepath.ToSlash(relPath)) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(files)
	return files, nil
}

// matches checks a slash-separated relative path against every pattern.
// Root-level paths also match "**/" patterns with the prefix removed, so
// "**/*.asset" selects both "a.asset" and "sub/b.asset". In recursive mode
// a pattern without a slash is matched against the base name.
func (d *Discovery) matches(relPath string) bool {
	base := relPath[strings.LastIndex(relPath, "/")+1:]
	for _, cp := range d.patterns {
		if cp.glob.Match(relPath) {
			return true
		}
		if d.recursive && !strings.Contains(cp.pattern, "/") && cp.glob.Match(base) {
			return true
		}
	}

	if strings.Contains(relPath, "/") {
		return false
	}
	for _, cp := range d.patterns {
		if !strings.HasPrefix(cp.pattern, "**/") {
			continue
		}
		if g, err := glob.Compile(strings.TrimPrefix(cp.pattern, "**/"), '/'); err == nil && g.Match(relPath) {
			return true
		}
	}
	return false
}
