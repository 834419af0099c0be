package engine

import "sync"

// recordLocks serializes writes per record id. The sync cycle, the retry
// queue replay and the offline queue flush all take the record's lock
// before touching either store, so concurrent timers never interleave
// writes to the same record.
//
// Lock entries are never released; the set of record ids is small and
// stable for the lifetime of the process.
type recordLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newRecordLocks() *recordLocks {
	return &recordLocks{locks: make(map[string]*sync.Mutex)}
}

// lock acquires the mutex for id and returns the matching unlock.
func (l *recordLocks) lock(id string) func() {
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
