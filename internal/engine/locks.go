package engine

import (
	"sync"

	"github.com/stefs/evelyn-reminder/internal/reminder"
)

// keyedLocks serializes mutations per reminder identity. Mutations on
// different reminders never block each other.
type keyedLocks struct {
	mu    sync.Mutex
	locks map[reminder.Key]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newKeyedLocks() *keyedLocks {
	return &keyedLocks{locks: make(map[reminder.Key]*lockEntry)}
}

// lock acquires the mutex for key and returns the matching unlock.
// Entries are dropped once the last holder releases, so the map does
// not grow with the number of reminders ever touched.
func (k *keyedLocks) lock(key reminder.Key) func() {
	k.mu.Lock()
	entry, ok := k.locks[key]
	if !ok {
		entry = &lockEntry{}
		k.locks[key] = entry
	}
	entry.refs++
	k.mu.Unlock()

	entry.mu.Lock()
	return func() {
		entry.mu.Unlock()
		k.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
