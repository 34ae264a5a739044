package client

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"

	"github.com/carecal/go-access"
)

// StoredSession is the persisted session snapshot: both tokens plus the last
// known user projection so the UI can render before verification finishes.
type StoredSession struct {
	Token        string             `json:"token,omitempty"`
	RefreshToken string             `json:"refreshToken,omitempty"`
	User         *access.UserRecord `json:"user,omitempty"`
}

// HasTokens reports whether there is anything worth recovering
func (s *StoredSession) HasTokens() bool {
	return s != nil && (s.Token != "" || s.RefreshToken != "")
}

// TokenStore persists sessions between process runs
type TokenStore interface {
	Load() (*StoredSession, error)
	Save(session *StoredSession) error
	Clear() error
}

// FileTokenStore keeps the session in a JSON file with owner-only permissions
type FileTokenStore struct {
	mu   sync.Mutex
	path string
}

var _ TokenStore = (*FileTokenStore)(nil)

func NewFileTokenStore(path string) *FileTokenStore {
	return &FileTokenStore{path: path}
}

func (s *FileTokenStore) Load() (*StoredSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	body, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &StoredSession{}, nil
		}
		return nil, err
	}

	session := &StoredSession{}
	if err := json.Unmarshal(body, session); err != nil {
		// a corrupt session file is treated as no session
		return &StoredSession{}, nil
	}

	return session, nil
}

func (s *FileTokenStore) Save(session *StoredSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	body, err := json.Marshal(session)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return err
	}

	return os.WriteFile(s.path, body, 0o600)
}

func (s *FileTokenStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// MemoryTokenStore is an in-process store, handy for tests and short lived tools
type MemoryTokenStore struct {
	mu      sync.Mutex
	session *StoredSession
}

var _ TokenStore = (*MemoryTokenStore)(nil)

func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{}
}

func (s *MemoryTokenStore) Load() (*StoredSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return &StoredSession{}, nil
	}
	clone := *s.session
	return &clone, nil
}

func (s *MemoryTokenStore) Save(session *StoredSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *session
	s.session = &clone
	return nil
}

func (s *MemoryTokenStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = nil
	return nil
}
