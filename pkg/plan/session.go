package plan

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sdejongh/fylr/internal/platform"
	"github.com/sdejongh/fylr/pkg/models"
)

var (
	// ErrConfirmationRequired is returned when removing a non-empty directory without confirmation
	ErrConfirmationRequired = errors.New("directory is not empty; confirmation required to move its files to the root")
	// ErrItemNotFound is returned when no plan item has the given source
	ErrItemNotFound = errors.New("no plan item for that file")
	// ErrDirectoryNotFound is returned when a directory is neither used nor declared
	ErrDirectoryNotFound = errors.New("directory not in plan")
)

// Session holds the analyzed plan and the user's edits to it.
// The original plan is never modified once the session exists.
type Session struct {
	ID        string
	Root      string
	Mode      models.Mode
	CreatedAt time.Time
	UpdatedAt time.Time

	original *Plan
	current  *Plan
	// directories added by the user, possibly empty
	dirs []string
}

// NewSession starts a session whose original and current plans are copies of p
func NewSession(p *Plan, mode models.Mode) *Session {
	now := time.Now()
	return &Session{
		ID:        uuid.New().String(),
		Root:      p.Root,
		Mode:      mode,
		CreatedAt: now,
		UpdatedAt: now,
		original:  p.Clone(),
		current:   p.Clone(),
	}
}

// Original returns a copy of the analyzed plan
func (s *Session) Original() *Plan {
	return s.original.Clone()
}

// Current returns a copy of the edited plan
func (s *Session) Current() *Plan {
	return s.current.Clone()
}

// Directories returns the user-added directories
func (s *Session) Directories() []string {
	return append([]string(nil), s.dirs...)
}

// Modified reports whether current differs from original
func (s *Session) Modified() bool {
	if len(s.dirs) > 0 || len(s.original.Items) != len(s.current.Items) {
		return true
	}
	for i := range s.original.Items {
		if s.original.Items[i] != s.current.Items[i] {
			return true
		}
	}
	return false
}

// Reset discards every edit
func (s *Session) Reset() {
	s.current = s.original.Clone()
	s.dirs = nil
	s.touch()
}

// Move re-targets the item with source src into dir
func (s *Session) Move(src, dir string) (Item, error) {
	i, ok := s.current.Find(src)
	if !ok {
		return Item{}, fmt.Errorf("%w: %s", ErrItemNotFound, src)
	}

	target := RootDir
	if !IsRootDir(dir) {
		cleaned, err := cleanDir(dir)
		if err != nil {
			return Item{}, err
		}
		target = cleaned
	}

	moved := MoveItem(s.current.Items[i], target)
	s.current.Items[i] = moved
	s.touch()
	return moved, nil
}

// AddDirectory declares a directory that may stay empty
func (s *Session) AddDirectory(dir string) (string, error) {
	if IsRootDir(dir) {
		return "", fmt.Errorf("cannot add the root directory")
	}
	cleaned, err := cleanDir(dir)
	if err != nil {
		return "", err
	}
	for _, d := range s.dirs {
		if d == cleaned {
			return cleaned, nil
		}
	}
	s.dirs = append(s.dirs, cleaned)
	sort.Strings(s.dirs)
	s.touch()
	return cleaned, nil
}

// RemoveDirectory removes dir (and anything below it) from the plan.
// A directory holding items is only removed with confirm set, after its
// items are moved to the root; otherwise ErrConfirmationRequired is returned
// and nothing changes. It returns the number of relocated items.
func (s *Session) RemoveDirectory(dir string, confirm bool) (int, error) {
	if IsRootDir(dir) {
		return 0, fmt.Errorf("cannot remove the root directory")
	}
	cleaned, err := cleanDir(dir)
	if err != nil {
		return 0, err
	}

	var contained []int
	for i, item := range s.current.Items {
		if inDir(item, cleaned) {
			contained = append(contained, i)
		}
	}

	declared := false
	for _, d := range s.dirs {
		if d == cleaned || strings.HasPrefix(d, cleaned+"/") {
			declared = true
			break
		}
	}

	if len(contained) == 0 && !declared {
		return 0, fmt.Errorf("%w: %s", ErrDirectoryNotFound, cleaned)
	}
	if len(contained) > 0 && !confirm {
		return 0, fmt.Errorf("%w (%s holds %d files)", ErrConfirmationRequired, cleaned, len(contained))
	}

	for _, i := range contained {
		s.current.Items[i] = MoveItem(s.current.Items[i], RootDir)
	}

	kept := s.dirs[:0]
	for _, d := range s.dirs {
		if d != cleaned && !strings.HasPrefix(d, cleaned+"/") {
			kept = append(kept, d)
		}
	}
	s.dirs = kept
	s.touch()
	return len(contained), nil
}

// cleanDir normalizes a plan directory: leading and trailing slashes are
// dropped, so "/Music/" names the same directory as "Music".
func cleanDir(dir string) (string, error) {
	trimmed := strings.Trim(strings.ReplaceAll(strings.TrimSpace(dir), "\\", "/"), "/")
	return platform.CleanRelative(trimmed)
}

// Groups recomputes the grouping of the current plan, including empty user directories
func (s *Session) Groups() []Group {
	return groupItems(s.current.Items, s.dirs)
}

func (s *Session) touch() {
	s.UpdatedAt = time.Now()
}

type sessionFile struct {
	Version     int         `json:"version"`
	ID          string      `json:"id"`
	Root        string      `json:"root"`
	Mode        models.Mode `json:"mode"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
	Original    *Plan       `json:"original"`
	Current     *Plan       `json:"current"`
	Directories []string    `json:"directories,omitempty"`
}

const sessionFileVersion = 1

// MarshalJSON encodes the session including both plans
func (s *Session) MarshalJSON() ([]byte, error) {
	return json.Marshal(sessionFile{
		Version:     sessionFileVersion,
		ID:          s.ID,
		Root:        s.Root,
		Mode:        s.Mode,
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   s.UpdatedAt,
		Original:    s.original,
		Current:     s.current,
		Directories: s.dirs,
	})
}

// UnmarshalJSON decodes a session written by MarshalJSON
func (s *Session) UnmarshalJSON(data []byte) error {
	var f sessionFile
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	if f.Version > sessionFileVersion {
		return fmt.Errorf("session file version %d is newer than supported version %d", f.Version, sessionFileVersion)
	}
	if f.Original == nil {
		return fmt.Errorf("session file has no original plan")
	}
	if f.Current == nil {
		f.Current = f.Original.Clone()
	}

	*s = Session{
		ID:        f.ID,
		Root:      f.Root,
		Mode:      f.Mode,
		CreatedAt: f.CreatedAt,
		UpdatedAt: f.UpdatedAt,
		original:  f.Original,
		current:   f.Current,
		dirs:      f.Directories,
	}
	return nil
}
