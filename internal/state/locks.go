package state

import "sync"

// keyedLocks serializes access per logical document key.
// Locks are created on first use and never discarded; the key space is small
// (a handful of documents per tenant).
type keyedLocks struct {
	mu sync.Mutex
	m  map[string]*sync.Mutex
}

func newKeyedLocks() *keyedLocks {
	return &keyedLocks{m: map[string]*sync.Mutex{}}
}

// lock acquires the mutex for key and returns its unlock func.
func (k *keyedLocks) lock(key string) func() {
	k.mu.Lock()
	l, ok := k.m[key]
	if !ok {
		l = &sync.Mutex{}
		k.m[key] = l
	}
	k.mu.Unlock()

	l.Lock()
	return l.Unlock
}
