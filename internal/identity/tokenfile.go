package identity

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"
)

// FileTokenStore keeps the session token in a file, guarded by a sibling
// .lock file so concurrent board processes do not interleave writes.
type FileTokenStore struct {
	Path string
	lock *flock.Flock
}

// NewFileTokenStore returns a token store backed by path.
func NewFileTokenStore(path string) *FileTokenStore {
	return &FileTokenStore{Path: path, lock: flock.New(path + ".lock")}
}

func (f *FileTokenStore) ensureDir() error {
	return os.MkdirAll(filepath.Dir(f.Path), 0o700)
}

// Load returns the saved token, or "" when none is saved.
func (f *FileTokenStore) Load() (string, error) {
	if err := f.ensureDir(); err != nil {
		return "", err
	}
	if err := f.lock.RLock(); err != nil {
		return "", fmt.Errorf("lock credentials: %w", err)
	}
	defer func() { _ = f.lock.Unlock() }()

	data, err := os.ReadFile(f.Path)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// Save writes token, readable only by the owner.
func (f *FileTokenStore) Save(token string) error {
	if err := f.ensureDir(); err != nil {
		return err
	}
	if err := f.lock.Lock(); err != nil {
		return fmt.Errorf("lock credentials: %w", err)
	}
	defer func() { _ = f.lock.Unlock() }()

	return os.WriteFile(f.Path, []byte(token+"\n"), 0o600)
}

// Clear removes the saved token.
func (f *FileTokenStore) Clear() error {
	if err := f.ensureDir(); err != nil {
		return err
	}
	if err := f.lock.Lock(); err != nil {
		return fmt.Errorf("lock credentials: %w", err)
	}
	defer func() { _ = f.lock.Unlock() }()

	if err := os.Remove(f.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
