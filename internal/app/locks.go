package service

import (
	"sync"

	"github.com/okian/prefrank/internal/domain/model"
)

// keyLocks hands out one RWMutex per (user, polarity). Entries are reference
// counted and dropped when the last holder releases.
type keyLocks struct {
	mu    sync.Mutex
	locks map[model.Key]*keyLock
}

type keyLock struct {
	sync.RWMutex
	refs int
}

func newKeyLocks() *keyLocks {
	return &keyLocks{locks: make(map[model.Key]*keyLock)}
}

func (k *keyLocks) acquire(key model.Key) *keyLock {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &keyLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()
	return l
}

func (k *keyLocks) release(key model.Key, l *keyLock) {
	k.mu.Lock()
	l.refs--
	if l.refs == 0 {
		delete(k.locks, key)
	}
	k.mu.Unlock()
}

// Lock takes the exclusive lock for key and returns its unlock func.
func (k *keyLocks) Lock(key model.Key) func() {
	l := k.acquire(key)
	l.Lock()
	return func() {
		l.Unlock()
		k.release(key, l)
	}
}

// LockUser takes the exclusive locks of both polarities of user, liked
// first, and returns a func releasing them in reverse order.
func (k *keyLocks) LockUser(user model.UserID) func() {
	unlockLiked := k.Lock(model.Key{UserID: user, Polarity: model.Liked})
	unlockDisliked := k.Lock(model.Key{UserID: user, Polarity: model.Disliked})
	return func() {
		unlockDisliked()
		unlockLiked()
	}
}

// RLock takes the shared lock for key and returns its unlock func.
func (k *keyLocks) RLock(key model.Key) func() {
	l := k.acquire(key)
	l.RLock()
	return func() {
		l.RUnlock()
		k.release(key, l)
	}
}

// Len returns the number of keys currently held or awaited.
func (k *keyLocks) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}
