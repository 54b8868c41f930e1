package extract

import "path/filepath"

// PathFilter applies include/exclude glob patterns to file paths, per the
// repository.include_patterns / repository.exclude_patterns config options.
// An empty include list means "everything included, then excluded".
type PathFilter struct {
	include []string
	exclude []string
}

// NewPathFilter builds a filter from glob pattern lists.
func NewPathFilter(include, exclude []string) PathFilter {
	return PathFilter{include: include, exclude: exclude}
}

// Allowed reports whether path passes the include/exclude patterns.
func (f PathFilter) Allowed(path string) bool {
	if len(f.include) > 0 && !matchesAny(f.include, path) {
		return false
	}

	return !matchesAny(f.exclude, path)
}

func matchesAny(patterns []string, path string) bool {
	for _, pattern := range patterns {
		if ok, err := filepath.Match(pattern, path); err == nil && ok {
			return true
		}
		// Also match against the base name, so "*.lock" matches
		// "vendor/foo/go.sum.lock" the way a shell glob would feel it should.
		if ok, err := filepath.Match(pattern, filepath.Base(path)); err == nil && ok {
			return true
		}
	}

	return false
}
