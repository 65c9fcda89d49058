package memory

import (
	"context"
	"sync"
)

// Locker serializes work per account and settlement pair with process-local
// mutexes.
type Locker struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewLocker constructs a locker.
func NewLocker() *Locker {
	return &Locker{locks: make(map[string]*sync.Mutex)}
}

// WithLock runs fn while holding the pair's mutex.
func (l *Locker) WithLock(ctx context.Context, accountID, settlementID string, fn func(ctx context.Context) error) error {
	key := accountID + "|" + settlementID
	l.mu.Lock()
	lock, ok := l.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		l.locks[key] = lock
	}
	l.mu.Unlock()

	lock.Lock()
	defer lock.Unlock()
	return fn(ctx)
}
