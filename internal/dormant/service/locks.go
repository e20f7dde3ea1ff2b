package service

import "sync"

// UserLocks hands out one mutex per user so that read-check-then-write
// sequences targeting the same user serialise, while distinct users proceed
// in parallel. The lifecycle and reset services share a single instance so
// a confirm and a reset submission for the same user can never interleave.
type UserLocks struct {
	mu sync.Mutex
	m  map[string]*sync.Mutex
}

func NewUserLocks() *UserLocks {
	return &UserLocks{m: make(map[string]*sync.Mutex)}
}

// Lock acquires the mutex for user and returns its unlock function.
func (l *UserLocks) Lock(user string) func() {
	l.mu.Lock()
	m, ok := l.m[user]
	if !ok {
		m = &sync.Mutex{}
		l.m[user] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
