package service

import (
	"sync"

	"github.com/google/uuid"
)

// LeadLocker serializes all ledger and conversion mutations per lead id.
// Concurrent payment writes on the same lead would otherwise read a stale
// paid amount and overwrite each other's increment. Locks are never removed;
// the map grows with the number of distinct leads mutated by this process,
// which is acceptable for the expected cardinality.
type LeadLocker struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*sync.Mutex
}

func NewLeadLocker() *LeadLocker {
	return &LeadLocker{locks: make(map[uuid.UUID]*sync.Mutex)}
}

// Lock acquires the exclusive lock for the given lead id, creating it on
// first use. The caller must call the returned unlock function.
func (l *LeadLocker) Lock(id uuid.UUID) func() {
	l.mu.Lock()
	m, ok := l.locks[id]
	if !ok {
		m = &sync.Mutex{}
		l.locks[id] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
