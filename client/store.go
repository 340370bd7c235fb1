package client

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/MagetoJ/EduKE-sub001/core/account"
)

// SavedSession is what a client keeps between requests, and persists across restarts when
// the session is persistent.
type SavedSession struct {
	AccessToken      string            `json:"accessToken"`
	RefreshToken     string            `json:"refreshToken"`
	AccessExpiresAt  time.Time         `json:"accessExpiresAt"`
	SessionExpiresAt time.Time         `json:"sessionExpiresAt"`
	Persistent       bool              `json:"persistent"`
	Principal        account.Principal `json:"principal"`
}

// Store persists a session. Load returns nil, nil when nothing is stored.
type Store interface {
	Load() (*SavedSession, error)
	Save(SavedSession) error
	Clear() error
}

// FileStore keeps the session in a JSON file readable by its owner only.
type FileStore struct {
	path string
}

var _ Store = (*FileStore)(nil)

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (fs *FileStore) Load() (*SavedSession, error) {
	data, err := os.ReadFile(fs.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "reading session file")
	}
	var saved SavedSession
	if err := json.Unmarshal(data, &saved); err != nil {
		return nil, errors.Wrap(err, "decoding session file")
	}
	return &saved, nil
}

// Save replaces the file atomically so a crash never leaves half a session behind.
func (fs *FileStore) Save(saved SavedSession) error {
	data, err := json.Marshal(saved)
	if err != nil {
		return errors.Wrap(err, "encoding session")
	}
	if err := os.MkdirAll(filepath.Dir(fs.path), 0o700); err != nil {
		return errors.Wrap(err, "creating session directory")
	}
	tmp, err := os.CreateTemp(filepath.Dir(fs.path), ".session-*")
	if err != nil {
		return errors.Wrap(err, "creating session file")
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return errors.Wrap(err, "restricting session file")
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.Wrap(err, "writing session file")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "writing session file")
	}
	return errors.Wrap(os.Rename(tmp.Name(), fs.path), "replacing session file")
}

func (fs *FileStore) Clear() error {
	if err := os.Remove(fs.path); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "removing session file")
	}
	return nil
}

// MemoryStore keeps the session for the life of the process.
type MemoryStore struct {
	mu    sync.Mutex
	saved *SavedSession
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return new(MemoryStore)
}

func (ms *MemoryStore) Load() (*SavedSession, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	if ms.saved == nil {
		return nil, nil
	}
	saved := *ms.saved
	return &saved, nil
}

func (ms *MemoryStore) Save(saved SavedSession) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.saved = &saved
	return nil
}

func (ms *MemoryStore) Clear() error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.saved = nil
	return nil
}
