// Package faststore holds the synchronous local key/value stores that
// survive a process crash. Each store is scoped to one namespace.
package faststore

import (
	"errors"
	"sync"
)

const (
	NamespaceTimer   = "iron-timer"
	NamespaceSession = "iron-session"
	NamespaceState   = "iron-state"

	// SessionKey holds the crash-recovery snapshot in NamespaceSession.
	SessionKey = "active_session"
)

var ErrClosed = errors.New("store closed")

// Store is a small string key/value store. A Set that returned must be
// readable after a crash of the process.
type Store interface {
	GetString(key string) (string, bool, error)
	Set(key, value string) error
	Delete(key string) error
	Close() error
}

// Opener returns the store of a namespace.
type Opener func(namespace string) (Store, error)

// SQLiteOpener opens one database file per namespace under dir.
func SQLiteOpener(dir string) Opener {
	return func(namespace string) (Store, error) {
		return OpenSQLite(dir, namespace)
	}
}

// MemoryOpener keeps every namespace in memory, for the lifetime of the returned opener.
func MemoryOpener() Opener {
	var mu sync.Mutex
	stores := make(map[string]*MemoryStore)
	return func(namespace string) (Store, error) {
		mu.Lock()
		defer mu.Unlock()
		if s, ok := stores[namespace]; ok {
			return s, nil
		}
		s := NewMemoryStore(DefaultMemorySize)
		stores[namespace] = s
		return s, nil
	}
}
