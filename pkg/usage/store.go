package usage

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/sdejongh/fylr/pkg/models"
	"github.com/sdejongh/fylr/pkg/state"
)

const (
	usageFileVersion = 1
	usageFileName    = "usage.json"
)

type usageFile struct {
	// Version for state file format compatibility
	Version   int               `json:"version"`
	Usage     models.UsageState `json:"usage"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// Store persists usage counters between invocations
type Store struct {
	path string
}

// NewStore returns a store writing to usage.json inside dir
func NewStore(dir string) *Store {
	return &Store{path: filepath.Join(dir, usageFileName)}
}

// Path returns the backing file
func (s *Store) Path() string {
	return s.path
}

// Load reads the saved counters; a missing file yields zero usage
func (s *Store) Load() (models.UsageState, error) {
	var f usageFile
	found, err := state.ReadJSON(s.path, &f)
	if err != nil || !found {
		return models.UsageState{}, err
	}

	// Check version compatibility
	if f.Version > usageFileVersion {
		return models.UsageState{}, fmt.Errorf("usage file version %d is newer than supported version %d", f.Version, usageFileVersion)
	}
	return f.Usage, nil
}

// Save writes the counters atomically
func (s *Store) Save(u models.UsageState) error {
	return state.WriteJSON(s.path, usageFile{
		Version:   usageFileVersion,
		Usage:     u,
		UpdatedAt: time.Now(),
	})
}

// LoadInto restores persisted counters into g
func (s *Store) LoadInto(g *Governor) error {
	u, err := s.Load()
	if err != nil {
		return err
	}
	g.Restore(u)
	return nil
}

// SaveFrom persists g's current counters
func (s *Store) SaveFrom(g *Governor) error {
	return s.Save(g.Snapshot())
}
