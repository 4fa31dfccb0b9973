package analysis

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// File is one collected (relative path, text content) pair.
type File struct {
	Path    string
	Content string
}

// CollectorStats counts the outcome of a collection walk.
type CollectorStats struct {
	Seen     int
	Included int
	Skipped  int
}

// CollectorConfig filters which files enter the analysis corpus.
type CollectorConfig struct {
	IncludeGlobs []string
	ExcludeGlobs []string
	MaxFileSize  int64 // bytes
}

// DefaultCollectorConfig admits common source and config files while keeping
// binaries and vendored bundles out of the corpus.
func DefaultCollectorConfig() CollectorConfig {
	return CollectorConfig{
		IncludeGlobs: []string{
			"*.go", "*.java", "*.py", "*.js", "*.jsx", "*.ts", "*.tsx",
			"*.cs", "*.rb", "*.php", "*.kt", "*.scala",
			"*.xml", "*.yaml", "*.yml", "*.json", "*.properties", "*.toml",
			"*.sql", "*.sh", "Dockerfile", "*.tf", "*.html",
		},
		ExcludeGlobs: []string{
			"*.min.js", "*.min.css", "*.lock", "package-lock.json",
			"*.map", "*.pb.go",
		},
		MaxFileSize: 512 * 1024,
	}
}

// Collect walks the snapshot root and returns the corpus files in walk order.
// Failure to read an individual file is never fatal; the file is counted as
// skipped. Symlinks are not followed.
func Collect(root string, cfg CollectorConfig) ([]File, CollectorStats, error) {
	var files []File
	var stats CollectorStats

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			stats.Skipped++
			return nil
		}
		if d.IsDir() {
			if d.Name() == ".git" {
				return fs.SkipDir
			}
			return nil
		}
		if d.Type()&fs.ModeSymlink != 0 {
			stats.Seen++
			stats.Skipped++
			return nil
		}
		stats.Seen++

		name := d.Name()
		if !matchAny(cfg.IncludeGlobs, name) || matchAny(cfg.ExcludeGlobs, name) {
			stats.Skipped++
			return nil
		}

		info, err := d.Info()
		if err != nil || (cfg.MaxFileSize > 0 && info.Size() >= cfg.MaxFileSize) {
			stats.Skipped++
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			stats.Skipped++
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			rel = path
		}
		files = append(files, File{Path: rel, Content: decodeText(data)})
		stats.Included++
		return nil
	})
	if err != nil {
		return nil, stats, err
	}
	return files, stats, nil
}

func matchAny(globs []string, name string) bool {
	for _, g := range globs {
		if ok, err := filepath.Match(g, name); err == nil && ok {
			return true
		}
	}
	return false
}

// decodeText converts bytes to a string, dropping invalid UTF-8 sequences
// rather than failing the scan.
func decodeText(data []byte) string {
	if utf8.Valid(data) {
		return string(data)
	}
	var b strings.Builder
	b.Grow(len(data))
	for len(data) > 0 {
		r, size := utf8.DecodeRune(data)
		if r != utf8.RuneError || size > 1 {
			b.WriteRune(r)
		}
		data = data[size:]
	}
	return b.String()
}
