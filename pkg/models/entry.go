package models

import (
	"path/filepath"
	"time"
)

// FileEntry represents a regular file found by a directory listing
type FileEntry struct {
	// Name is the base name of the file
	Name string `json:"name"`
	// Path is the absolute path on the filesystem
	Path string `json:"path"`
	// Size in bytes
	Size int64 `json:"size"`
	// ModTime is the last modification time
	ModTime time.Time `json:"mod_time"`
}

// NewFileEntry builds an entry from an absolute path and its metadata
func NewFileEntry(path string, size int64, modTime time.Time) FileEntry {
	return FileEntry{
		Name:    filepath.Base(path),
		Path:    path,
		Size:    size,
		ModTime: modTime,
	}
}

// FileRef is the {name, path} pair sent to the classifier service
type FileRef struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

// Ref returns the classifier-facing reference for the entry
func (e FileEntry) Ref() FileRef {
	return FileRef{Name: e.Name, Path: e.Path}
}

// Refs converts a listing into classifier references
func Refs(entries []FileEntry) []FileRef {
	refs := make([]FileRef, 0, len(entries))
	for _, e := range entries {
		refs = append(refs, e.Ref())
	}
	return refs
}

// RenameRequest asks for a file to be renamed in place
type RenameRequest struct {
	// OldPath is the absolute path of the file to rename
	OldPath string `json:"old_path"`
	// NewName is the desired base name (no directory component)
	NewName string `json:"new_name"`
}

// Action represents what happened to a file
type Action string

const (
	// ActionRename renames a file inside its directory
	ActionRename Action = "rename"
	// ActionMove moves a file to a plan destination
	ActionMove Action = "move"
	// ActionDelete removes a file (duplicate cleanup)
	ActionDelete Action = "delete"
	// ActionSkip leaves the file untouched
	ActionSkip Action = "skip"
)
