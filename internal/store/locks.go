package store

import "sync"

// pathLocks provides one mutex per record path. Ingestion and the export
// sweep both read-modify-write whole record files, so operations on the
// same path must never interleave.
type pathLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newPathLocks() *pathLocks {
	return &pathLocks{locks: make(map[string]*sync.Mutex)}
}

// lock acquires the mutex for path and returns the unlock function.
// Lock entries are never removed: the set of conversations a single
// recorder sees is small and stable.
func (p *pathLocks) lock(path string) func() {
	p.mu.Lock()
	m, ok := p.locks[path]
	if !ok {
		m = &sync.Mutex{}
		p.locks[path] = m
	}
	p.mu.Unlock()

	m.Lock()
	return m.Unlock
}
