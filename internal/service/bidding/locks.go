package bidding

import (
	"sync"

	"github.com/google/uuid"
)

// lockArena hands out one mutex per item so bids on different items run
// fully in parallel while bids on the same item serialize end-to-end.
// Entries are reference counted and dropped once the last holder releases,
// keeping the map bounded by the number of items under contention rather
// than the number of items ever seen.
type lockArena struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*itemLock
}

type itemLock struct {
	mu   sync.Mutex
	refs int
}

func newLockArena() *lockArena {
	return &lockArena{
		locks: make(map[uuid.UUID]*itemLock),
	}
}

// acquire blocks until the item lock is held and returns the release
// function. Callers must release on every exit path.
func (a *lockArena) acquire(itemID uuid.UUID) func() {
	a.mu.Lock()
	l, ok := a.locks[itemID]
	if !ok {
		l = &itemLock{}
		a.locks[itemID] = l
	}
	l.refs++
	a.mu.Unlock()

	l.mu.Lock()

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Unlock()

			a.mu.Lock()
			l.refs--
			if l.refs == 0 {
				delete(a.locks, itemID)
			}
			a.mu.Unlock()
		})
	}
}

// size reports the number of items currently tracked, for tests and gauges
func (a *lockArena) size() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.locks)
}
