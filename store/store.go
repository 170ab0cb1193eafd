// Package store holds the launcher's durable, process-wide settings,
// most importantly the install root.
package store

import (
	"sync"
)

// KeyInstallPath is where the user-chosen install root is stored
const KeyInstallPath = "installPath"

// A Store is a small durable key-value settings store. Keys are free-form.
type Store interface {
	// Get returns the value for key, and whether it was set at all
	Get(key string) (string, bool, error)
	// Set creates or overwrites the value for key
	Set(key string, value string) error
}

// GetInstallPath returns the install root, or "" if it was never set
// or the store could not be read.
func GetInstallPath(s Store) string {
	value, ok, err := s.Get(KeyInstallPath)
	if err != nil || !ok {
		return ""
	}
	return value
}

// MemoryStore is a Store that forgets everything when the process exits
type MemoryStore struct {
	values map[string]string
	lock   sync.RWMutex
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		values: make(map[string]string),
	}
}

func (ms *MemoryStore) Get(key string) (string, bool, error) {
	ms.lock.RLock()
	defer ms.lock.RUnlock()

	value, ok := ms.values[key]
	return value, ok, nil
}

func (ms *MemoryStore) Set(key string, value string) error {
	ms.lock.Lock()
	defer ms.lock.Unlock()

	ms.values[key] = value
	return nil
}
