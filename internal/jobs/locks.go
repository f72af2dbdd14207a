package jobs

import "sync"

// userLocks hands out one mutex per username and forgets it once nobody
// holds or waits on it.
type userLocks struct {
	mu    sync.Mutex
	locks map[string]*userLock
}

type userLock struct {
	mu   sync.Mutex
	refs int
}

func newUserLocks() *userLocks {
	return &userLocks{locks: make(map[string]*userLock)}
}

// Lock blocks until username is free and returns the matching unlock.
func (l *userLocks) Lock(username string) func() {
	l.mu.Lock()
	entry, ok := l.locks[username]
	if !ok {
		entry = &userLock{}
		l.locks[username] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()
	return func() {
		entry.mu.Unlock()
		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.locks, username)
		}
		l.mu.Unlock()
	}
}
