package batch

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/MeKo-Tech/scanprep/internal/raster"
)

// discoverImageFiles expands files and directories into the image files to
// process. Explicit files are kept when they pass the patterns; directory
// entries must also have a supported extension. Files that already carry
// skipSuffix are ignored so a second run does not reprocess its outputs.
func discoverImageFiles(args []string, recursive bool, includePatterns, excludePatterns []string, skipSuffix string) ([]string, error) {
	var imageFiles []string

	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("cannot access %s: %w", arg, err)
		}

		if info.IsDir() {
			files, err := discoverInDirectory(arg, recursive, includePatterns, excludePatterns, skipSuffix)
			if err != nil {
				return nil, err
			}
			imageFiles = append(imageFiles, files...)
		} else if shouldIncludeFile(arg, includePatterns, excludePatterns) {
			imageFiles = append(imageFiles, arg)
		}
	}

	return imageFiles, nil
}

// discoverInDirectory walks dir, descending only when recursive is set.
func discoverInDirectory(dir string, recursive bool, includePatterns, excludePatterns []string, skipSuffix string) ([]string, error) {
	var files []string

	walkFn := func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			if !recursive && path != dir {
				return filepath.SkipDir
			}
			return nil
		}

		if !raster.IsSupported(path) || hasSuffix(path, skipSuffix) {
			return nil
		}
		if shouldIncludeFile(path, includePatterns, excludePatterns) {
			files = append(files, path)
		}
		return nil
	}

	if err := filepath.WalkDir(dir, walkFn); err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

func hasSuffix(path, suffix string) bool {
	if suffix == "" {
		return false
	}
	base := filepath.Base(path)
	return strings.HasSuffix(strings.TrimSuffix(base, filepath.Ext(base)), suffix)
}

// shouldIncludeFile determines if a file should be included based on include/exclude patterns.
func shouldIncludeFile(path string, includePatterns, excludePatterns []string) bool {
	// Check exclude patterns first
	if matchesAnyPattern(path, excludePatterns) {
		return false
	}

	if len(includePatterns) == 0 {
		return true
	}
	return matchesAnyPattern(path, includePatterns)
}

// matchesAnyPattern matches the base name of path against shell patterns.
func matchesAnyPattern(path string, patterns []string) bool {
	base := filepath.Base(path)
	for _, pattern := range patterns {
		if matched, _ := filepath.Match(pattern, base); matched {
			return true
		}
	}
	return false
}
