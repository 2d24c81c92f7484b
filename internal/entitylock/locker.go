package entitylock

import (
	"context"
	"fmt"
	"reflect"
	"sync/atomic"
	"time"

	"github.com/juju/clock"
	"github.com/puzpuzpuz/xsync/v3"

	"github.com/Iron-Ham/entitylock/internal/errors"
	"github.com/Iron-Ham/entitylock/internal/event"
	"github.com/Iron-Ham/entitylock/internal/logging"
)

// Locker serializes critical sections per entity id while letting sections
// on different ids run in parallel, and can escalate one owner to exclusive
// access over every entity at once.
//
// Per-entity locks are created on first reference and live as long as the
// Locker. All methods are safe for concurrent use.
type Locker[K comparable] struct {
	name string

	// locks maps entity ids to their lock. Entries are inserted atomically
	// on first reference and never removed.
	locks *xsync.MapOf[K, *reentrantMutex]

	// global arbitrates entry into and exit from global mode and is held
	// for the whole global critical section.
	global *reentrantMutex

	// escalated is set while some owner holds global mode. Entity lockers
	// that observe it wait on global before queuing for their entity.
	escalated atomic.Bool

	clock  clock.Clock
	logger *logging.Logger
	bus    *event.Bus
	debug  bool
}

// New creates a Locker.
func New[K comparable](opts ...Option) *Locker[K] {
	cfg := &lockerConfig{
		name:   DefaultName,
		clock:  clock.WallClock,
		logger: logging.NopLogger(),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	logger := cfg.logger.WithComponent("entitylock").WithLocker(cfg.name)
	return &Locker[K]{
		name:   cfg.name,
		locks:  xsync.NewMapOf[K, *reentrantMutex](),
		global: newReentrantMutex(),
		clock:  cfg.clock,
		logger: logger,
		bus:    cfg.bus,
		debug:  logger.Enabled(logging.LevelDebug),
	}
}

// Name returns the locker's name.
func (l *Locker[K]) Name() string { return l.name }

// Lock blocks until owner holds the lock for id. If global mode is active
// it first waits for the global holder to release it. An owner that
// already holds the lock re-enters it and must Unlock once more.
//
// The only errors are validation errors for an absent id or zero owner.
func (l *Locker[K]) Lock(owner Owner, id K) error {
	m, err := l.resolve(owner, id)
	if err != nil {
		return err
	}

	start := l.clock.Now()
	_ = l.awaitGlobal(context.Background(), owner)
	m.lock(owner)
	l.entityLocked(owner, id, start)
	return nil
}

// LockTimeout is Lock with the entity wait bounded by timeout and the whole
// call bounded by ctx. A non-positive timeout makes a single attempt.
//
// It returns a *errors.TimeoutError when timeout elapses and a
// *errors.LockError matching errors.ErrInterrupted when ctx is done first.
// On either failure the caller holds nothing and is no longer queued.
func (l *Locker[K]) LockTimeout(ctx context.Context, owner Owner, id K, timeout time.Duration) error {
	m, err := l.resolve(owner, id)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return l.interrupted(owner, id, timeout, err)
	}

	start := l.clock.Now()
	if err := l.awaitGlobal(ctx, owner); err != nil {
		return l.interrupted(owner, id, timeout, err)
	}

	if timeout <= 0 {
		if !m.tryLock(owner) {
			return l.timedOut(owner, id, timeout)
		}
		l.entityLocked(owner, id, start)
		return nil
	}

	timer := l.clock.NewTimer(timeout)
	err = m.acquire(ctx, owner, timer.Chan())
	timer.Stop()

	switch {
	case err == nil:
		l.entityLocked(owner, id, start)
		return nil
	case errors.Is(err, errWaitExpired):
		return l.timedOut(owner, id, timeout)
	default:
		return l.interrupted(owner, id, timeout, err)
	}
}

// Unlock releases one level of the lock for id if owner holds it, and does
// nothing otherwise. It fails for an absent id, a zero owner, or an id that
// was never locked.
func (l *Locker[K]) Unlock(owner Owner, id K) error {
	if isAbsent(id) {
		return errNilEntity()
	}
	if owner.IsZero() {
		return errZeroOwner()
	}

	m, ok := l.locks.Load(id)
	if !ok {
		return errors.NewValidationError("cannot unlock unknown entity").
			WithField("id").
			WithValue(id).
			WithCause(errors.ErrEntityNotFound)
	}

	if m.unlock(owner) {
		l.entityUnlocked(owner, id)
	}
	return nil
}

// AcquireGlobal gives owner exclusive access over every entity registered
// when it is called. It takes the arbitration lock (re-entering it if owner
// already holds it), raises the escalation flag so new entity lockers wait,
// then acquires every registered entity lock in registry order, waiting for
// current holders to finish.
//
// Entities first referenced while the scan runs, by callers that had not yet
// seen the flag, are not collected: global mode covers the entities known
// when escalation began.
func (l *Locker[K]) AcquireGlobal(owner Owner) error {
	if owner.IsZero() {
		return errZeroOwner()
	}

	start := l.clock.Now()
	l.global.lock(owner)
	l.escalated.Store(true)

	var registered []*reentrantMutex
	l.locks.Range(func(_ K, m *reentrantMutex) bool {
		registered = append(registered, m)
		return true
	})
	for _, m := range registered {
		m.lock(owner)
	}

	waited := l.clock.Now().Sub(start)
	l.logger.WithOwner(owner.String()).Info("global lock acquired",
		"entities", len(registered),
		"waited_ms", waited.Milliseconds())
	if l.bus != nil {
		l.bus.Publish(event.NewGlobalAcquiredEvent(l.clock.Now(), l.name, owner.String(), len(registered), waited))
	}
	return nil
}

// ReleaseGlobal ends one level of owner's global hold. It is a no-op when
// owner does not hold global mode. Otherwise it releases one level of every
// entity lock owner holds and then one level of the arbitration lock; the
// escalation flag is cleared when the outermost hold ends.
func (l *Locker[K]) ReleaseGlobal(owner Owner) error {
	if owner.IsZero() {
		return errZeroOwner()
	}

	depth := l.global.level(owner)
	if depth == 0 {
		return nil
	}
	final := depth == 1
	if final {
		l.escalated.Store(false)
	}

	released := 0
	l.locks.Range(func(_ K, m *reentrantMutex) bool {
		if m.unlock(owner) {
			released++
		}
		return true
	})
	l.global.unlock(owner)

	l.logger.WithOwner(owner.String()).Info("global lock released",
		"entities", released,
		"final", final)
	if l.bus != nil {
		l.bus.Publish(event.NewGlobalReleasedEvent(l.clock.Now(), l.name, owner.String(), released, final))
	}
	return nil
}

// IsHeld reports whether owner currently holds the lock for id. It never
// registers id.
func (l *Locker[K]) IsHeld(owner Owner, id K) bool {
	if isAbsent(id) || owner.IsZero() {
		return false
	}
	m, ok := l.locks.Load(id)
	return ok && m.level(owner) > 0
}

// IsGlobal reports whether global mode is active.
func (l *Locker[K]) IsGlobal() bool {
	return l.escalated.Load()
}

// GlobalHolder returns the owner holding the arbitration lock, if any.
func (l *Locker[K]) GlobalHolder() (Owner, bool) {
	return l.global.holder()
}

// Len returns the number of registered entities.
func (l *Locker[K]) Len() int {
	return l.locks.Size()
}

// Keys returns a snapshot of the registered entity ids in registry order.
func (l *Locker[K]) Keys() []K {
	keys := make([]K, 0, l.locks.Size())
	l.locks.Range(func(k K, _ *reentrantMutex) bool {
		keys = append(keys, k)
		return true
	})
	return keys
}

// Waiting returns how many owners are queued for id's lock.
func (l *Locker[K]) Waiting(id K) int {
	if isAbsent(id) {
		return 0
	}
	m, ok := l.locks.Load(id)
	if !ok {
		return 0
	}
	return m.queued()
}

// resolve validates the arguments and returns the lock for id, creating it
// atomically on first reference. Invalid arguments never touch the registry.
func (l *Locker[K]) resolve(owner Owner, id K) (*reentrantMutex, error) {
	if isAbsent(id) {
		return nil, errNilEntity()
	}
	if owner.IsZero() {
		return nil, errZeroOwner()
	}
	m, _ := l.locks.LoadOrCompute(id, newReentrantMutex)
	return m, nil
}

// awaitGlobal is the global-wait rendezvous: while escalation is active it
// takes and immediately drops the arbitration lock, which blocks until the
// global holder leaves global mode. The global holder itself passes
// straight through by re-entering.
func (l *Locker[K]) awaitGlobal(ctx context.Context, owner Owner) error {
	if !l.escalated.Load() {
		return nil
	}
	if err := l.global.acquire(ctx, owner, nil); err != nil {
		return err
	}
	l.global.unlock(owner)
	return nil
}

func (l *Locker[K]) entityLocked(owner Owner, id K, start time.Time) {
	if l.bus == nil && !l.debug {
		return
	}
	now := l.clock.Now()
	entity := fmt.Sprint(id)
	l.logger.WithOwner(owner.String()).Debug("entity locked", "entity", entity, "waited_ms", now.Sub(start).Milliseconds())
	if l.bus != nil {
		l.bus.Publish(event.NewEntityLockedEvent(now, l.name, entity, owner.String(), now.Sub(start)))
	}
}

func (l *Locker[K]) entityUnlocked(owner Owner, id K) {
	if l.bus == nil && !l.debug {
		return
	}
	entity := fmt.Sprint(id)
	l.logger.WithOwner(owner.String()).Debug("entity unlocked", "entity", entity)
	if l.bus != nil {
		l.bus.Publish(event.NewEntityUnlockedEvent(l.clock.Now(), l.name, entity, owner.String()))
	}
}

func (l *Locker[K]) timedOut(owner Owner, id K, timeout time.Duration) error {
	entity := fmt.Sprint(id)
	l.logger.WithOwner(owner.String()).Warn("entity lock timed out", "entity", entity, "timeout_ms", timeout.Milliseconds())
	if l.bus != nil {
		l.bus.Publish(event.NewEntityTimeoutEvent(l.clock.Now(), l.name, entity, owner.String(), timeout))
	}
	return errors.NewTimeoutError("lock entity "+entity, timeout)
}

func (l *Locker[K]) interrupted(owner Owner, id K, timeout time.Duration, cause error) error {
	entity := fmt.Sprint(id)
	l.logger.WithOwner(owner.String()).Warn("entity lock interrupted", "entity", entity, "error", cause.Error())
	if l.bus != nil {
		l.bus.Publish(event.NewEntityInterruptedEvent(l.clock.Now(), l.name, entity, owner.String(), timeout))
	}
	// The caller's context is done, so a retry under it fails the same way.
	return errors.NewLockError("lock wait interrupted", errors.Join(errors.ErrInterrupted, cause)).
		WithLocker(l.name).
		WithEntity(entity).
		WithOwner(owner.String()).
		WithRetryable(false)
}

func errNilEntity() error {
	return errors.NewValidationError("entity id must not be nil").WithField("id")
}

func errZeroOwner() error {
	return errors.NewValidationError("owner must not be zero").WithField("owner")
}

// isAbsent reports whether id is a nil interface, pointer, or channel.
// Slices, maps, and funcs are not comparable, so they never reach here.
func isAbsent[K comparable](id K) bool {
	v := any(id)
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Chan, reflect.UnsafePointer:
		return rv.IsNil()
	default:
		return false
	}
}
