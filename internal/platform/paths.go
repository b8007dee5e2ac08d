package platform

import (
	"fmt"
	"path"
	"path/filepath"
	"runtime"
	"strings"
)

// NormalizePath normalizes a path for the current platform
func NormalizePath(p string) string {
	normalized := filepath.Clean(p)

	// On Windows, ensure UNC paths are preserved
	if runtime.GOOS == "windows" {
		if strings.HasPrefix(p, "\\\\") && !strings.HasPrefix(normalized, "\\\\") {
			normalized = "\\\\" + normalized
		}
	}

	return normalized
}

// IsUNCPath checks if a path is a UNC path (Windows network share)
func IsUNCPath(p string) bool {
	if runtime.GOOS != "windows" {
		return false
	}
	return strings.HasPrefix(p, "\\\\") || strings.HasPrefix(p, "//")
}

// IsAbsolute checks if a path is absolute
func IsAbsolute(p string) bool {
	if IsUNCPath(p) {
		return true
	}
	return filepath.IsAbs(p)
}

// CleanRelative normalizes a plan-relative path to slash form.
// The result never starts with "/" and never climbs above the root.
func CleanRelative(rel string) (string, error) {
	trimmed := strings.TrimSpace(rel)
	if trimmed == "" {
		return "", &PathError{Path: rel, Message: "path is empty"}
	}
	slashed := strings.ReplaceAll(trimmed, "\\", "/")
	if strings.HasPrefix(slashed, "/") || IsAbsolute(trimmed) {
		return "", &PathError{Path: rel, Message: "path must be relative"}
	}
	cleaned := path.Clean(slashed)
	if cleaned == "." {
		return "", &PathError{Path: rel, Message: "path is empty"}
	}
	if cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", &PathError{Path: rel, Message: "path escapes the root"}
	}
	return cleaned, nil
}

// RelWithin returns target relative to root in slash form, failing if target lies outside root
func RelWithin(root, target string) (string, error) {
	rel, err := filepath.Rel(NormalizePath(root), NormalizePath(target))
	if err != nil {
		return "", &PathError{Path: target, Message: err.Error()}
	}
	rel = filepath.ToSlash(rel)
	if rel == ".." || strings.HasPrefix(rel, "../") {
		return "", &PathError{Path: target, Message: "path is outside " + root}
	}
	return rel, nil
}

// SplitRelative splits a slash-form relative path into its directory and base name.
// The directory is "" for files at the root.
func SplitRelative(rel string) (dir, name string) {
	idx := strings.LastIndex(rel, "/")
	if idx <= 0 {
		return "", strings.TrimPrefix(rel, "/")
	}
	return rel[:idx], rel[idx+1:]
}

// JoinRelative joins a directory and a name in slash form; an empty directory means the root
func JoinRelative(dir, name string) string {
	if dir == "" {
		return name
	}
	return dir + "/" + name
}

// MaxNameLength is the longest file name, in bytes, accepted on common filesystems
const MaxNameLength = 255

// ValidateName checks that a single file name is usable on the current platform
func ValidateName(name string) error {
	if name == "" || name == "." || name == ".." {
		return &PathError{Path: name, Message: "invalid file name"}
	}
	if strings.ContainsAny(name, "/\\") {
		return &PathError{Path: name, Message: "file name contains a path separator"}
	}
	if len(name) > MaxNameLength {
		return &PathError{Path: name, Message: fmt.Sprintf("file name longer than %d bytes", MaxNameLength)}
	}
	if strings.ContainsRune(name, 0) {
		return &PathError{Path: name, Message: "file name contains a NUL byte"}
	}

	// Check for invalid characters based on OS
	if runtime.GOOS == "windows" {
		invalidChars := []string{"<", ">", ":", "\"", "|", "?", "*"}
		for _, char := range invalidChars {
			if strings.Contains(name, char) {
				return &PathError{Path: name, Message: "file name contains invalid character: " + char}
			}
		}
	}

	return nil
}

// PathError represents a path validation error
type PathError struct {
	Path    string
	Message string
}

func (e *PathError) Error() string {
	return "invalid path '" + e.Path + "': " + e.Message
}
