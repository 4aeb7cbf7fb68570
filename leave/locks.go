package leave

import (
	"sort"
	"sync"
)

// =============================================================================
// KEYED MUTEX - One lock per employee
// =============================================================================

// KeyedMutex serializes work per employee while letting different
// employees proceed in parallel. Entries are reference counted and dropped
// once no goroutine holds or waits for them.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[EmployeeID]*keyedEntry
}

type keyedEntry struct {
	mu   sync.Mutex
	refs int
}

func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{locks: make(map[EmployeeID]*keyedEntry)}
}

// Lock blocks until the employee's lock is held and returns its release func.
func (k *KeyedMutex) Lock(id EmployeeID) func() {
	k.mu.Lock()
	e, ok := k.locks[id]
	if !ok {
		e = &keyedEntry{}
		k.locks[id] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()

	return func() {
		e.mu.Unlock()

		k.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(k.locks, id)
		}
		k.mu.Unlock()
	}
}

// LockAll locks several employees in ID order so two callers locking
// overlapping sets cannot deadlock. Duplicates are locked once.
func (k *KeyedMutex) LockAll(ids ...EmployeeID) func() {
	uniq := make([]EmployeeID, 0, len(ids))
	seen := make(map[EmployeeID]bool, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			uniq = append(uniq, id)
		}
	}
	sort.Slice(uniq, func(i, j int) bool { return uniq[i] < uniq[j] })

	unlocks := make([]func(), 0, len(uniq))
	for _, id := range uniq {
		unlocks = append(unlocks, k.Lock(id))
	}
	return func() {
		for i := len(unlocks) - 1; i >= 0; i-- {
			unlocks[i]()
		}
	}
}

// Len returns the number of employees with a held or awaited lock.
func (k *KeyedMutex) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}
