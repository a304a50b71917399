package pipeline

import (
	"sync"
)

// Locker hands out one mutex per key, and forgets it when nobody holds or waits for it.
type Locker struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	sync.Mutex
	refs int
}

func NewLocker() *Locker {
	return &Locker{
		locks: make(map[string]*keyLock),
	}
}

// Lock blocks until the lock for key is held, and returns the function that releases it.
func (l *Locker) Lock(key string) (unlock func()) {
	l.mu.Lock()
	kl, ok := l.locks[key]
	if !ok {
		kl = &keyLock{}
		l.locks[key] = kl
	}
	kl.refs++
	l.mu.Unlock()

	kl.Lock()

	return func() {
		kl.Unlock()

		l.mu.Lock()
		defer l.mu.Unlock()
		kl.refs--
		if kl.refs == 0 {
			delete(l.locks, key)
		}
	}
}

func (l *Locker) held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
