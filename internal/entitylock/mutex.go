package entitylock

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/Iron-Ham/entitylock/internal/errors"
)

// errWaitExpired is returned by acquire when the expiry channel fires first.
var errWaitExpired = errors.New("lock wait expired")

// reentrantMutex is a fair, owner-keyed reentrant lock.
//
// Waiters are granted the lock strictly in arrival order: releasing the last
// level hands ownership directly to the oldest waiter, so a newcomer can
// never overtake a queued owner. The holder may re-acquire without waiting
// and must release once per acquisition.
type reentrantMutex struct {
	mu      sync.Mutex
	owner   Owner
	depth   int
	waiters list.List // of *waiter, oldest first
}

type waiter struct {
	owner Owner
	ready chan struct{} // closed once ownership has been handed over
}

func newReentrantMutex() *reentrantMutex {
	return &reentrantMutex{}
}

// lock blocks until owner holds m.
func (m *reentrantMutex) lock(owner Owner) {
	_ = m.acquire(context.Background(), owner, nil)
}

// tryLock acquires m only if that is possible without waiting.
func (m *reentrantMutex) tryLock(owner Owner) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.grantLocked(owner)
}

// acquire blocks until owner holds m, ctx is done, or expired fires.
// A nil expired channel never fires. On failure nothing is held and no
// waiter is left queued. If ownership was handed over at the same moment the
// wait was abandoned, the grant wins and acquire reports success.
func (m *reentrantMutex) acquire(ctx context.Context, owner Owner, expired <-chan time.Time) error {
	m.mu.Lock()
	if m.grantLocked(owner) {
		m.mu.Unlock()
		return nil
	}
	w := &waiter{owner: owner, ready: make(chan struct{})}
	elem := m.waiters.PushBack(w)
	m.mu.Unlock()

	select {
	case <-w.ready:
		return nil
	case <-ctx.Done():
		return m.abandon(elem, w, ctx.Err())
	case <-expired:
		return m.abandon(elem, w, errWaitExpired)
	}
}

func (m *reentrantMutex) abandon(elem *list.Element, w *waiter, cause error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	select {
	case <-w.ready:
		return nil
	default:
		m.waiters.Remove(elem)
		return cause
	}
}

// grantLocked takes or re-enters m for owner if no wait is needed.
// While depth is zero the waiter queue is always empty, because the last
// release hands ownership straight to the head of the queue.
func (m *reentrantMutex) grantLocked(owner Owner) bool {
	switch {
	case m.depth == 0:
		m.owner = owner
		m.depth = 1
		return true
	case m.owner == owner:
		m.depth++
		return true
	default:
		return false
	}
}

// unlock releases one level held by owner. It reports false, changing
// nothing, when owner does not hold m.
func (m *reentrantMutex) unlock(owner Owner) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.depth == 0 || m.owner != owner {
		return false
	}
	m.depth--
	if m.depth == 0 {
		m.handoffLocked()
	}
	return true
}

func (m *reentrantMutex) handoffLocked() {
	front := m.waiters.Front()
	if front == nil {
		m.owner = Owner{}
		return
	}
	w := m.waiters.Remove(front).(*waiter)
	m.owner = w.owner
	m.depth = 1
	close(w.ready)
}

// level returns how many times owner currently holds m, zero if it does not.
func (m *reentrantMutex) level(owner Owner) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.depth == 0 || m.owner != owner {
		return 0
	}
	return m.depth
}

// holder returns the current owner, if any.
func (m *reentrantMutex) holder() (Owner, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.depth == 0 {
		return Owner{}, false
	}
	return m.owner, true
}

// queued returns the number of waiting owners.
func (m *reentrantMutex) queued() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.waiters.Len()
}
