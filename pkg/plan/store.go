package plan

import (
	"errors"
	"path/filepath"

	"github.com/sdejongh/fylr/pkg/state"
)

// ErrNoSession is returned when no plan session has been saved
var ErrNoSession = errors.New("no plan session; run 'fylr analyze' first")

const sessionFileName = "session.json"

// Store persists the active session
type Store struct {
	path string
}

// NewStore returns a store writing session.json inside dir
func NewStore(dir string) *Store {
	return &Store{path: filepath.Join(dir, sessionFileName)}
}

// Path returns the backing file
func (s *Store) Path() string {
	return s.path
}

// Save writes the session atomically
func (s *Store) Save(sess *Session) error {
	return state.WriteJSON(s.path, sess)
}

// Load reads the saved session, or ErrNoSession
func (s *Store) Load() (*Session, error) {
	var sess Session
	found, err := state.ReadJSON(s.path, &sess)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrNoSession
	}
	return &sess, nil
}

// Delete removes the saved session
func (s *Store) Delete() error {
	return state.Remove(s.path)
}
