package entitlement

import (
	"context"
	"sync"
	"time"
)

// Locker hands out short-lived exclusive keys. TryLock never blocks: ok is
// false when another holder has the key. A lock left behind by a crashed
// holder frees itself after ttl.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (unlock func(), ok bool, err error)
}

// MemoryLocker is a process-local Locker.
type MemoryLocker struct {
	mu   sync.Mutex
	held map[string]memoryLock
	seq  uint64
	now  func() time.Time
}

type memoryLock struct {
	token     uint64
	expiresAt time.Time
}

// NewMemoryLocker creates an empty MemoryLocker.
func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{held: make(map[string]memoryLock), now: time.Now}
}

func (l *MemoryLocker) TryLock(_ context.Context, key string, ttl time.Duration) (func(), bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if cur, ok := l.held[key]; ok && now.Before(cur.expiresAt) {
		return nil, false, nil
	}
	l.seq++
	token := l.seq
	l.held[key] = memoryLock{token: token, expiresAt: now.Add(ttl)}

	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		// only the holder that set the key may clear it
		if cur, ok := l.held[key]; ok && cur.token == token {
			delete(l.held, key)
		}
	}, true, nil
}
