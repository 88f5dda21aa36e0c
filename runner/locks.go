package runner

import "sync"

// threadLocks serializes turns per thread. Distinct threads proceed in
// parallel; two turns on the same thread run one after the other.
type threadLocks struct {
	mu    sync.Mutex
	locks map[string]*threadLock
}

type threadLock struct {
	mu   sync.Mutex
	refs int
}

func newThreadLocks() *threadLocks {
	return &threadLocks{locks: make(map[string]*threadLock)}
}

// Lock acquires the lock for threadID, blocking while another turn holds it.
// The returned function releases the lock and drops the entry once no turn
// is waiting on it.
func (l *threadLocks) Lock(threadID string) func() {
	l.mu.Lock()
	lock, ok := l.locks[threadID]
	if !ok {
		lock = &threadLock{}
		l.locks[threadID] = lock
	}
	lock.refs++
	l.mu.Unlock()

	lock.mu.Lock()

	return func() {
		lock.mu.Unlock()

		l.mu.Lock()
		lock.refs--
		if lock.refs == 0 {
			delete(l.locks, threadID)
		}
		l.mu.Unlock()
	}
}
