package storage

import (
	"context"
	"io"
	"time"
)

// FileInfo represents metadata about a file
type FileInfo struct {
	Path         string
	Size         int64
	ModTime      time.Time
	IsDir        bool
	Permissions  uint32
	RelativePath string
}

// ListOptions controls directory listings
type ListOptions struct {
	// Recursive descends into subdirectories
	Recursive bool
	// Exclude holds glob patterns matched against the relative path
	Exclude []string
	// IncludeHidden lists dot files and descends into dot directories
	IncludeHidden bool
}

// Backend defines the interface for storage operations.
// Paths may be relative to the backend root or absolute paths inside it.
type Backend interface {
	// Root returns the absolute root path
	Root() string

	// List returns the regular files in the specified directory
	List(ctx context.Context, path string, opts ListOptions) ([]FileInfo, error)

	// Read opens a file for reading
	Read(ctx context.Context, path string) (io.ReadCloser, error)

	// Rename moves a file; the destination directory must exist
	Rename(ctx context.Context, from, to string) error

	// Delete removes a file
	Delete(ctx context.Context, path string) error

	// Exists checks if a file or directory exists
	Exists(ctx context.Context, path string) (bool, error)

	// Stat returns file metadata
	Stat(ctx context.Context, path string) (*FileInfo, error)

	// MkdirAll creates a directory and all necessary parents
	MkdirAll(ctx context.Context, path string) error

	// Close releases any resources held by the backend
	Close() error
}
