package faststore

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/coocood/freecache"
)

const (
	// MaxMemoryEntrySize is the largest entry freecache keeps in a DefaultMemorySize
	// arena: it rejects entries above 1/1024 of its size.
	MaxMemoryEntrySize = 64 * 1024
	// DefaultMemorySize is the freecache arena of a MemoryStore, in bytes.
	DefaultMemorySize = MaxMemoryEntrySize * 1024
)

// MemoryStore keeps values in a freecache arena. It does not survive a restart,
// it backs tests and ephemeral runs. Values too large for the arena (a long
// history) go to a plain map so that Set never fails on size.
type MemoryStore struct {
	cache  *freecache.Cache
	closed atomic.Bool

	mu    sync.Mutex
	large map[string]string
}

func NewMemoryStore(size int) *MemoryStore {
	return &MemoryStore{
		cache: freecache.NewCache(size),
		large: make(map[string]string),
	}
}

func (s *MemoryStore) GetString(key string) (string, bool, error) {
	if s.closed.Load() {
		return "", false, ErrClosed
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if value, ok := s.large[key]; ok {
		return value, true, nil
	}
	value, err := s.cache.Get([]byte(key))
	if errors.Is(err, freecache.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return string(value), true, nil
}

func (s *MemoryStore) Set(key, value string) error {
	if s.closed.Load() {
		return ErrClosed
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// no expiry
	err := s.cache.Set([]byte(key), []byte(value), 0)
	if errors.Is(err, freecache.ErrLargeEntry) {
		s.cache.Del([]byte(key))
		s.large[key] = value
		return nil
	}
	if err != nil {
		return err
	}
	delete(s.large, key)
	return nil
}

func (s *MemoryStore) Delete(key string) error {
	if s.closed.Load() {
		return ErrClosed
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.cache.Del([]byte(key))
	delete(s.large, key)
	return nil
}

func (s *MemoryStore) Close() error {
	s.closed.Store(true)
	return nil
}
