package memory

import (
	"context"
	"sync"
	"time"

	billing "billing-relay/internal/billing/domain"
)

// Lock is a process-local run lock.
type Lock struct {
	mu   sync.Mutex
	held map[string]time.Time
	now  func() time.Time
}

// NewLock constructs a Lock.
func NewLock() *Lock {
	return &Lock{held: make(map[string]time.Time), now: time.Now}
}

// Acquire takes key for ttl. It returns billing.ErrRunInProgress when the key is held.
func (l *Lock) Acquire(_ context.Context, key string, ttl time.Duration) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	if expires, ok := l.held[key]; ok && now.Before(expires) {
		return nil, billing.ErrRunInProgress
	}
	expires := now.Add(ttl)
	l.held[key] = expires
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		if current, ok := l.held[key]; ok && current.Equal(expires) {
			delete(l.held, key)
		}
	}, nil
}
