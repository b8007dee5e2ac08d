// Package plan models a proposed reorganization of a directory and the
// user edits applied to it.
package plan

import (
	"path"
	"sort"
	"strings"

	"github.com/sdejongh/fylr/internal/platform"
)

// RootDir is the grouping key for items placed directly under the root
const RootDir = ""

// Item is one proposed move: SrcPath is absolute, DstPath is relative to the plan root
type Item struct {
	SrcPath string `json:"src_path"`
	DstPath string `json:"dst_path"`
}

// Dir returns the destination directory of the item, RootDir for root-level items
func (i Item) Dir() string {
	dir, _ := platform.SplitRelative(i.DstPath)
	return dir
}

// Name returns the destination file name
func (i Item) Name() string {
	return path.Base(i.DstPath)
}

// Plan is an ordered set of moves under Root
type Plan struct {
	Root     string   `json:"root"`
	Items    []Item   `json:"files"`
	Warnings []string `json:"warnings,omitempty"`
}

// Group collects the items sharing a destination directory
type Group struct {
	Dir   string `json:"dir"`
	Items []Item `json:"files"`
}

// New builds a plan rooted at root
func New(root string, items []Item) *Plan {
	return &Plan{Root: root, Items: items}
}

// Len returns the number of items
func (p *Plan) Len() int {
	if p == nil {
		return 0
	}
	return len(p.Items)
}

// Clone returns a deep copy
func (p *Plan) Clone() *Plan {
	if p == nil {
		return nil
	}
	c := &Plan{Root: p.Root}
	if p.Items != nil {
		c.Items = append([]Item(nil), p.Items...)
	}
	if p.Warnings != nil {
		c.Warnings = append([]string(nil), p.Warnings...)
	}
	return c
}

// Filter returns a copy holding only the items keep accepts
func (p *Plan) Filter(keep func(Item) bool) *Plan {
	c := &Plan{Root: p.Root, Warnings: append([]string(nil), p.Warnings...)}
	for _, item := range p.Items {
		if keep(item) {
			c.Items = append(c.Items, item)
		}
	}
	return c
}

// Find returns the index of the item whose source is src
func (p *Plan) Find(src string) (int, bool) {
	for i, item := range p.Items {
		if item.SrcPath == src {
			return i, true
		}
	}
	return -1, false
}

// Groups computes the grouping by destination directory.
// The root group comes first, the others are sorted by directory.
// Items keep their plan order within a group.
func (p *Plan) Groups() []Group {
	return groupItems(p.Items, nil)
}

func groupItems(items []Item, extraDirs []string) []Group {
	index := make(map[string]int)
	var groups []Group

	add := func(dir string) int {
		if i, ok := index[dir]; ok {
			return i
		}
		index[dir] = len(groups)
		groups = append(groups, Group{Dir: dir})
		return index[dir]
	}

	for _, item := range items {
		i := add(item.Dir())
		groups[i].Items = append(groups[i].Items, item)
	}
	for _, dir := range extraDirs {
		add(dir)
	}

	sort.SliceStable(groups, func(a, b int) bool {
		if groups[a].Dir == RootDir {
			return groups[b].Dir != RootDir
		}
		if groups[b].Dir == RootDir {
			return false
		}
		return groups[a].Dir < groups[b].Dir
	})
	return groups
}

// IsRootDir reports whether dir names the plan root
func IsRootDir(dir string) bool {
	switch strings.TrimSpace(dir) {
	case "", "/", ".":
		return true
	}
	return false
}

// MoveItem re-targets item into newDir, keeping its destination file name
func MoveItem(item Item, newDir string) Item {
	name := path.Base(item.DstPath)
	if IsRootDir(newDir) {
		return Item{SrcPath: item.SrcPath, DstPath: name}
	}
	dir := strings.Trim(strings.ReplaceAll(strings.TrimSpace(newDir), "\\", "/"), "/")
	return Item{SrcPath: item.SrcPath, DstPath: dir + "/" + name}
}

// inDir reports whether item's destination lies in dir or below it
func inDir(item Item, dir string) bool {
	d := item.Dir()
	return d == dir || strings.HasPrefix(d, dir+"/")
}
