package intake

import (
	"sync"

	domain "github.com/bryanwahyu/moto-intake/internal/domain/intake"
)

// keyedMutex serialises mutations of one intake. Entries are dropped when no one holds them.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[domain.ID]*refLock
}

type refLock struct {
	sync.Mutex
	refs int
}

func (k *keyedMutex) Lock(id domain.ID) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[domain.ID]*refLock)
	}
	l, ok := k.locks[id]
	if !ok {
		l = &refLock{}
		k.locks[id] = l
	}
	l.refs++
	k.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, id)
		}
		k.mu.Unlock()
	}
}
