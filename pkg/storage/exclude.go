package storage

import (
	"path"
	"path/filepath"
	"strings"
)

// shouldExclude checks if a path should be excluded based on the given patterns.
// Patterns support:
//   - Simple glob patterns: *.tmp, *.log
//   - Directory patterns: .git/, node_modules/
//   - Path patterns: build/*, **/test/*
//   - Negation: !important.log re-includes a path excluded by an earlier pattern
//
// Later patterns take precedence over earlier ones.
func shouldExclude(relativePath string, patterns []string) bool {
	if len(patterns) == 0 {
		return false
	}

	// Normalize path separators for cross-platform support
	normalizedPath := filepath.ToSlash(relativePath)
	baseName := path.Base(normalizedPath)

	excluded := false
	for _, pattern := range patterns {
		pattern = strings.TrimSpace(pattern)
		if pattern == "" {
			continue
		}

		negate := strings.HasPrefix(pattern, "!")
		if negate {
			pattern = strings.TrimPrefix(pattern, "!")
		}

		if matchPattern(normalizedPath, baseName, filepath.ToSlash(pattern)) {
			excluded = !negate
		}
	}

	return excluded
}

// ShouldExclude reports whether relativePath is excluded by patterns
func ShouldExclude(relativePath string, patterns []string) bool {
	return shouldExclude(relativePath, patterns)
}

func matchPattern(normalizedPath, baseName, pattern string) bool {
	// Directory pattern (ends with /)
	if dirPattern, ok := strings.CutSuffix(pattern, "/"); ok {
		return normalizedPath == dirPattern ||
			strings.HasPrefix(normalizedPath, dirPattern+"/") ||
			strings.Contains(normalizedPath, "/"+dirPattern+"/") ||
			strings.HasSuffix(normalizedPath, "/"+dirPattern)
	}

	// ** matches any path depth
	if suffix, ok := strings.CutPrefix(pattern, "**/"); ok {
		if matchGlob(baseName, suffix) {
			return true
		}
		return matchGlobTail(normalizedPath, suffix) || matchGlobPath(normalizedPath, suffix)
	}

	// Pattern with a separator applies to the full path
	if strings.Contains(pattern, "/") {
		if matched, _ := path.Match(pattern, normalizedPath); matched {
			return true
		}
		// Also try matching from the end (for patterns like build/*)
		return strings.HasSuffix(normalizedPath, "/"+pattern)
	}

	// Pattern applies to basename only
	return matchGlob(baseName, pattern)
}

// matchGlob performs simple glob matching on a single path component
func matchGlob(name, pattern string) bool {
	matched, _ := path.Match(pattern, name)
	return matched
}

// matchGlobTail checks the pattern against every trailing run of path components
func matchGlobTail(p, pattern string) bool {
	for {
		if matchGlob(p, pattern) {
			return true
		}
		idx := strings.Index(p, "/")
		if idx < 0 {
			return false
		}
		p = p[idx+1:]
	}
}

// matchGlobPath checks if any component of the path matches the pattern
func matchGlobPath(p, pattern string) bool {
	for _, part := range strings.Split(p, "/") {
		if matchGlob(part, pattern) {
			return true
		}
	}
	return false
}
