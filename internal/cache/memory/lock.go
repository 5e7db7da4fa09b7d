package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/tradeconsole/internal/domain"
)

type heldLock struct {
	token   string
	expires time.Time
}

// LockManager is a process-local named lock with expiry.
type LockManager struct {
	mu    sync.Mutex
	locks map[string]heldLock
	now   func() time.Time
}

// NewLockManager creates an empty LockManager.
func NewLockManager() *LockManager {
	return &LockManager{locks: make(map[string]heldLock), now: time.Now}
}

// Acquire takes key for ttl or fails with domain.ErrLockHeld. The returned
// unlock only releases the lock it acquired.
func (lm *LockManager) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	now := lm.now()
	if held, ok := lm.locks[key]; ok && now.Before(held.expires) {
		return nil, domain.ErrLockHeld
	}
	token := uuid.NewString()
	lm.locks[key] = heldLock{token: token, expires: now.Add(ttl)}

	var once sync.Once
	return func() {
		once.Do(func() {
			lm.mu.Lock()
			defer lm.mu.Unlock()
			if held, ok := lm.locks[key]; ok && held.token == token {
				delete(lm.locks, key)
			}
		})
	}, nil
}

var _ domain.LockManager = (*LockManager)(nil)
