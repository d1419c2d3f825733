package application

import (
	"sync"
	"time"
)

// WriteGuard serialises the read-modify-write cycles the services run against
// the week records. Share one guard between every service built on the same
// repositories.
//
// Evaluation passes and evidence writes hold the guard shared and lock the
// window they touch. Replacing the commitment holds it exclusively, so week
// records are never cleared in the middle of a pass.
type WriteGuard struct {
	gate sync.RWMutex

	mu      sync.Mutex
	windows map[windowKey]*windowLock
}

type windowKey struct {
	start int64
	end   int64
}

type windowLock struct {
	mu   sync.Mutex
	refs int
}

// NewWriteGuard returns an unlocked guard.
func NewWriteGuard() *WriteGuard {
	return &WriteGuard{windows: make(map[windowKey]*windowLock)}
}

func orNewGuard(guard *WriteGuard) *WriteGuard {
	if guard == nil {
		return NewWriteGuard()
	}
	return guard
}

// shared blocks until no exclusive holder remains. Callers holding it must not
// take it again; a queued exclusive holder would deadlock them.
func (g *WriteGuard) shared() (unlock func()) {
	g.gate.RLock()
	return g.gate.RUnlock
}

func (g *WriteGuard) exclusive() (unlock func()) {
	g.gate.Lock()
	return g.gate.Unlock
}

// window locks the record keyed by start and end. Entries are dropped once the
// last holder releases them.
func (g *WriteGuard) window(start, end time.Time) (unlock func()) {
	key := windowKey{start: start.UnixNano(), end: end.UnixNano()}

	g.mu.Lock()
	lock, ok := g.windows[key]
	if !ok {
		lock = &windowLock{}
		g.windows[key] = lock
	}
	lock.refs++
	g.mu.Unlock()

	lock.mu.Lock()
	return func() {
		lock.mu.Unlock()
		g.mu.Lock()
		lock.refs--
		if lock.refs == 0 {
			delete(g.windows, key)
		}
		g.mu.Unlock()
	}
}

func (g *WriteGuard) tracked() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.windows)
}
