package entitylock

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/juju/clock/testclock"

	"github.com/Iron-Ham/entitylock/internal/errors"
	"github.com/Iron-Ham/entitylock/internal/event"
	"github.com/Iron-Ham/entitylock/internal/logging"
	"github.com/Iron-Ham/entitylock/internal/testutil"
)

// lockAsync locks id for owner on a new goroutine and closes the returned
// channel once the lock is held.
func lockAsync[K comparable](t *testing.T, l *Locker[K], owner Owner, id K) <-chan struct{} {
	t.Helper()

	done := make(chan struct{})
	go func() {
		if err := l.Lock(owner, id); err != nil {
			t.Errorf("Lock(%v) error = %v", id, err)
		}
		close(done)
	}()
	return done
}

func mustLock[K comparable](t *testing.T, l *Locker[K], owner Owner, id K) {
	t.Helper()
	if err := l.Lock(owner, id); err != nil {
		t.Fatalf("Lock(%v) error = %v", id, err)
	}
}

func mustUnlock[K comparable](t *testing.T, l *Locker[K], owner Owner, id K) {
	t.Helper()
	if err := l.Unlock(owner, id); err != nil {
		t.Fatalf("Unlock(%v) error = %v", id, err)
	}
}

func TestNew(t *testing.T) {
	l := New[string]()

	if l.Name() != DefaultName {
		t.Errorf("Name() = %q, want %q", l.Name(), DefaultName)
	}
	if l.Len() != 0 {
		t.Errorf("Len() = %d, want 0", l.Len())
	}
	if l.IsGlobal() {
		t.Error("new locker should not be in global mode")
	}
	if _, ok := l.GlobalHolder(); ok {
		t.Error("new locker should have no global holder")
	}
}

func TestNew_Options(t *testing.T) {
	l := New[string](WithName("orders"), WithName(""), WithLogger(nil), WithClock(nil))

	if l.Name() != "orders" {
		t.Errorf("Name() = %q, want %q", l.Name(), "orders")
	}
	if l.clock == nil || l.logger == nil {
		t.Error("nil options should keep the defaults")
	}
}

func TestLocker_MutualExclusion(t *testing.T) {
	const (
		workers    = 1000
		increments = 10
	)
	l := New[int]()

	counter := 0
	testutil.RunGroup(workers, func(int) {
		owner := NewOwner()
		for range increments {
			err := l.Do(owner, 1, func() error {
				counter++
				return nil
			})
			if err != nil {
				t.Errorf("Do() error = %v", err)
				return
			}
		}
	})

	if counter != workers*increments {
		t.Errorf("counter = %d, want %d", counter, workers*increments)
	}
}

func TestLocker_EqualKeysShareLock(t *testing.T) {
	type key struct {
		tenant string
		id     int
	}
	l := New[key]()
	a, b := NewOwner(), NewOwner()

	mustLock(t, l, a, key{"acme", 7})

	err := l.LockTimeout(context.Background(), b, key{"acme", 7}, 0)
	if !errors.Is(err, errors.ErrTimeout) {
		t.Fatalf("LockTimeout() on equal key error = %v, want timeout", err)
	}
	if l.Len() != 1 {
		t.Errorf("Len() = %d, want 1", l.Len())
	}
}

func TestLocker_ParallelKeys(t *testing.T) {
	l := New[int]()
	a, b := NewOwner(), NewOwner()

	mustLock(t, l, a, 1)
	defer mustUnlock(t, l, a, 1)

	done := lockAsync(t, l, b, 2)
	testutil.WaitClosed(t, done, "lock on an unrelated key")
	mustUnlock(t, l, b, 2)
}

func TestLocker_ConcurrentFirstTouch(t *testing.T) {
	l := New[string]()

	var inside atomic.Int32
	var overlap atomic.Bool
	testutil.RunGroup(200, func(int) {
		_ = l.Do(NewOwner(), "fresh", func() error {
			if inside.Add(1) > 1 {
				overlap.Store(true)
			}
			time.Sleep(10 * time.Microsecond)
			inside.Add(-1)
			return nil
		})
	})

	if overlap.Load() {
		t.Error("two owners were inside the same entity at once")
	}
	if l.Len() != 1 {
		t.Errorf("Len() = %d, want 1", l.Len())
	}
}

func TestLocker_Reentrancy(t *testing.T) {
	l := New[int]()
	a, b := NewOwner(), NewOwner()
	ctx := context.Background()

	mustLock(t, l, a, 1)
	mustLock(t, l, a, 1)
	if err := l.LockTimeout(ctx, a, 1, time.Millisecond); err != nil {
		t.Fatalf("timed reentry error = %v", err)
	}

	mustUnlock(t, l, a, 1)
	mustUnlock(t, l, a, 1)
	if !l.IsHeld(a, 1) {
		t.Fatal("lock should still be held after releasing two of three levels")
	}
	if err := l.LockTimeout(ctx, b, 1, 0); !errors.Is(err, errors.ErrTimeout) {
		t.Fatalf("other owner acquired a held lock, err = %v", err)
	}

	mustUnlock(t, l, a, 1)
	if l.IsHeld(a, 1) {
		t.Fatal("lock should be free after releasing every level")
	}
	if err := l.LockTimeout(ctx, b, 1, 0); err != nil {
		t.Fatalf("other owner could not acquire a free lock: %v", err)
	}
}

func TestLocker_FIFO(t *testing.T) {
	l := New[int]()
	holder := NewOwner()
	mustLock(t, l, holder, 1)

	var mu sync.Mutex
	var order []int
	var wg sync.WaitGroup
	for i := range 3 {
		owner := NewOwner()
		wg.Go(func() {
			_ = l.Do(owner, 1, func() error {
				mu.Lock()
				order = append(order, i)
				mu.Unlock()
				return nil
			})
		})
		testutil.Eventually(t, testutil.DefaultWait, func() bool { return l.Waiting(1) == i+1 }, "waiter to queue")
	}

	mustUnlock(t, l, holder, 1)
	wg.Wait()

	for i, got := range order {
		if got != i {
			t.Fatalf("grant order = %v, want [0 1 2]", order)
		}
	}
}

func TestLocker_NoBarging(t *testing.T) {
	l := New[int]()
	holder, queued, late := NewOwner(), NewOwner(), NewOwner()
	mustLock(t, l, holder, 1)

	done := lockAsync(t, l, queued, 1)
	testutil.Eventually(t, testutil.DefaultWait, func() bool { return l.Waiting(1) == 1 }, "waiter to queue")

	mustUnlock(t, l, holder, 1)
	if err := l.LockTimeout(context.Background(), late, 1, 0); !errors.Is(err, errors.ErrTimeout) {
		t.Fatalf("newcomer overtook a queued owner, err = %v", err)
	}
	testutil.WaitClosed(t, done, "queued owner to be granted the lock")
	if !l.IsHeld(queued, 1) {
		t.Error("queued owner should hold the lock")
	}
}

func TestLockTimeout_Expires(t *testing.T) {
	l := New[int]()
	a, b := NewOwner(), NewOwner()
	mustLock(t, l, a, 1)

	start := time.Now()
	err := l.LockTimeout(context.Background(), b, 1, 30*time.Millisecond)
	elapsed := time.Since(start)

	if !errors.Is(err, errors.ErrTimeout) {
		t.Fatalf("LockTimeout() error = %v, want timeout", err)
	}
	var te *errors.TimeoutError
	if !errors.As(err, &te) {
		t.Fatalf("error should be a *TimeoutError, got %T", err)
	}
	if te.Duration != 30*time.Millisecond {
		t.Errorf("Duration = %v, want 30ms", te.Duration)
	}
	if !errors.IsRetryable(err) {
		t.Error("a timed-out wait should be retryable")
	}
	if elapsed < 30*time.Millisecond {
		t.Errorf("returned after %v, before the timeout", elapsed)
	}
	if l.IsHeld(b, 1) {
		t.Error("timed-out owner must not hold the lock")
	}
	if l.Waiting(1) != 0 {
		t.Errorf("Waiting() = %d, timed-out owner left in queue", l.Waiting(1))
	}

	mustUnlock(t, l, a, 1)
	if err := l.LockTimeout(context.Background(), b, 1, 30*time.Millisecond); err != nil {
		t.Fatalf("LockTimeout() on a free lock error = %v", err)
	}
}

func TestLockTimeout_TestClock(t *testing.T) {
	clk := testclock.NewClock(time.Now())
	l := New[string](WithClock(clk))
	a, b := NewOwner(), NewOwner()
	mustLock(t, l, a, "doc")

	result := make(chan error, 1)
	go func() {
		result <- l.LockTimeout(context.Background(), b, "doc", time.Minute)
	}()

	if err := clk.WaitAdvance(59*time.Second, testutil.DefaultWait, 1); err != nil {
		t.Fatal(err)
	}
	testutil.NeverWithin(t, result, 20*time.Millisecond, "timeout before the deadline")

	clk.Advance(time.Second)
	select {
	case err := <-result:
		if !errors.Is(err, errors.ErrTimeout) {
			t.Fatalf("LockTimeout() error = %v, want timeout", err)
		}
	case <-time.After(testutil.DefaultWait):
		t.Fatal("LockTimeout() did not return after the clock passed the deadline")
	}
}

func TestLockTimeout_GrantedBeforeDeadline(t *testing.T) {
	clk := testclock.NewClock(time.Now())
	l := New[string](WithClock(clk))
	a, b := NewOwner(), NewOwner()
	mustLock(t, l, a, "doc")

	result := make(chan error, 1)
	go func() {
		result <- l.LockTimeout(context.Background(), b, "doc", time.Minute)
	}()
	testutil.Eventually(t, testutil.DefaultWait, func() bool { return l.Waiting("doc") == 1 }, "waiter to queue")

	mustUnlock(t, l, a, "doc")
	select {
	case err := <-result:
		if err != nil {
			t.Fatalf("LockTimeout() error = %v", err)
		}
	case <-time.After(testutil.DefaultWait):
		t.Fatal("waiter was not granted the released lock")
	}
	if !l.IsHeld(b, "doc") {
		t.Error("waiter should hold the lock")
	}
}

func TestLockTimeout_NonPositive(t *testing.T) {
	l := New[int]()
	a, b := NewOwner(), NewOwner()
	ctx := context.Background()

	for _, timeout := range []time.Duration{0, -time.Second} {
		if err := l.LockTimeout(ctx, a, 1, timeout); err != nil {
			t.Fatalf("LockTimeout(%v) on free lock error = %v", timeout, err)
		}
		if err := l.LockTimeout(ctx, b, 1, timeout); !errors.Is(err, errors.ErrTimeout) {
			t.Fatalf("LockTimeout(%v) on held lock error = %v, want timeout", timeout, err)
		}
		mustUnlock(t, l, a, 1)
	}
}

func TestLockTimeout_Interrupted(t *testing.T) {
	l := New[int]()
	a, b := NewOwner(), NewOwner()
	mustLock(t, l, a, 1)

	ctx, cancel := context.WithCancel(context.Background())
	result := make(chan error, 1)
	go func() {
		result <- l.LockTimeout(ctx, b, 1, time.Hour)
	}()
	testutil.Eventually(t, testutil.DefaultWait, func() bool { return l.Waiting(1) == 1 }, "waiter to queue")

	cancel()
	var err error
	select {
	case err = <-result:
	case <-time.After(testutil.DefaultWait):
		t.Fatal("cancelled wait did not return")
	}

	if !errors.Is(err, errors.ErrInterrupted) {
		t.Errorf("error = %v, want ErrInterrupted", err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, should wrap context.Canceled", err)
	}
	if errors.Is(err, errors.ErrTimeout) {
		t.Error("interruption must be distinguishable from timeout")
	}
	var le *errors.LockError
	if !errors.As(err, &le) {
		t.Fatalf("error should be a *LockError, got %T", err)
	}
	if le.Entity != "1" || le.Owner != b.String() {
		t.Errorf("LockError context = %+v", le)
	}
	if errors.IsRetryable(err) {
		t.Error("a wait interrupted by its context should not be retryable")
	}
	if l.Waiting(1) != 0 || l.IsHeld(b, 1) {
		t.Error("interrupted owner must leave nothing behind")
	}
}

func TestLockTimeout_AlreadyCancelled(t *testing.T) {
	l := New[int]()
	owner := NewOwner()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := l.LockTimeout(ctx, owner, 1, time.Second)
	if !errors.Is(err, errors.ErrInterrupted) {
		t.Fatalf("error = %v, want ErrInterrupted", err)
	}
	if l.IsHeld(owner, 1) {
		t.Error("cancelled call must not acquire the lock")
	}
}

func TestLockTimeout_DeadlineExceeded(t *testing.T) {
	l := New[int]()
	a, b := NewOwner(), NewOwner()
	mustLock(t, l, a, 1)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := l.LockTimeout(ctx, b, 1, time.Hour)
	if !errors.Is(err, errors.ErrInterrupted) || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("error = %v, want interrupted by deadline", err)
	}
}

func TestUnlock(t *testing.T) {
	l := New[int]()
	a, b := NewOwner(), NewOwner()

	t.Run("unknown entity", func(t *testing.T) {
		err := l.Unlock(a, 404)
		if !errors.Is(err, errors.ErrEntityNotFound) {
			t.Errorf("error = %v, want ErrEntityNotFound", err)
		}
		if !errors.Is(err, errors.ErrInvalidInput) {
			t.Errorf("error = %v, want ErrInvalidInput", err)
		}
		if l.Len() != 0 {
			t.Error("failed unlock must not register the entity")
		}
	})

	t.Run("not held by anyone", func(t *testing.T) {
		mustLock(t, l, a, 1)
		mustUnlock(t, l, a, 1)
		if err := l.Unlock(a, 1); err != nil {
			t.Errorf("Unlock() of a free lock error = %v, want nil", err)
		}
	})

	t.Run("held by another owner", func(t *testing.T) {
		mustLock(t, l, a, 2)
		if err := l.Unlock(b, 2); err != nil {
			t.Errorf("Unlock() by non-holder error = %v, want nil", err)
		}
		if !l.IsHeld(a, 2) {
			t.Error("non-holder unlock must not release the lock")
		}
		mustUnlock(t, l, a, 2)
	})
}

func TestLocker_InvalidArguments(t *testing.T) {
	ctx := context.Background()
	owner := NewOwner()

	t.Run("nil pointer id", func(t *testing.T) {
		l := New[*int]()
		checks := map[string]error{
			"Lock":        l.Lock(owner, nil),
			"LockTimeout": l.LockTimeout(ctx, owner, nil, time.Second),
			"Unlock":      l.Unlock(owner, nil),
		}
		for name, err := range checks {
			if !errors.Is(err, errors.ErrInvalidInput) {
				t.Errorf("%s(nil) error = %v, want ErrInvalidInput", name, err)
			}
		}
		if l.Len() != 0 {
			t.Errorf("Len() = %d, invalid calls must not register", l.Len())
		}
	})

	t.Run("nil interface id", func(t *testing.T) {
		l := New[any]()
		if err := l.Lock(owner, nil); !errors.Is(err, errors.ErrInvalidInput) {
			t.Errorf("Lock(nil) error = %v, want ErrInvalidInput", err)
		}
		if err := l.Do(owner, nil, func() error { t.Error("fn must not run"); return nil }); err == nil {
			t.Error("Do(nil) should fail")
		}
		if l.Len() != 0 {
			t.Errorf("Len() = %d, invalid calls must not register", l.Len())
		}
	})

	t.Run("nil channel id", func(t *testing.T) {
		l := New[chan int]()
		var ch chan int
		if err := l.Lock(owner, ch); !errors.Is(err, errors.ErrInvalidInput) {
			t.Errorf("Lock(nil chan) error = %v, want ErrInvalidInput", err)
		}
		live := make(chan int)
		mustLock(t, l, owner, live)
		mustUnlock(t, l, owner, live)
		if l.Len() != 1 {
			t.Errorf("Len() = %d, want only the live channel registered", l.Len())
		}
	})

	t.Run("zero owner", func(t *testing.T) {
		l := New[int]()
		var zero Owner
		checks := map[string]error{
			"Lock":          l.Lock(zero, 1),
			"LockTimeout":   l.LockTimeout(ctx, zero, 1, 0),
			"Unlock":        l.Unlock(zero, 1),
			"AcquireGlobal": l.AcquireGlobal(zero),
			"ReleaseGlobal": l.ReleaseGlobal(zero),
		}
		for name, err := range checks {
			if !errors.Is(err, errors.ErrInvalidInput) {
				t.Errorf("%s(zero owner) error = %v, want ErrInvalidInput", name, err)
			}
		}
		if l.Len() != 0 || l.IsGlobal() {
			t.Error("invalid calls must not change state")
		}
	})

	t.Run("zero value id is valid", func(t *testing.T) {
		l := New[string]()
		mustLock(t, l, owner, "")
		mustUnlock(t, l, owner, "")
	})
}

func TestGlobal_BlocksEntityLockers(t *testing.T) {
	l := New[int]()
	global, worker := NewOwner(), NewOwner()
	for k := range 5 {
		mustLock(t, l, worker, k)
		mustUnlock(t, l, worker, k)
	}

	if err := l.AcquireGlobal(global); err != nil {
		t.Fatalf("AcquireGlobal() error = %v", err)
	}
	if !l.IsGlobal() {
		t.Fatal("IsGlobal() should be true")
	}
	if holder, ok := l.GlobalHolder(); !ok || holder != global {
		t.Fatalf("GlobalHolder() = %v, %v", holder, ok)
	}
	for k := range 5 {
		if !l.IsHeld(global, k) {
			t.Errorf("global holder should hold entity %d", k)
		}
	}

	known := lockAsync(t, l, worker, 3)
	unknown := lockAsync(t, l, NewOwner(), 99)
	testutil.NeverWithin(t, known, 30*time.Millisecond, "entity lock during global mode")
	testutil.NeverWithin(t, unknown, 0, "new entity lock during global mode")

	if err := l.ReleaseGlobal(global); err != nil {
		t.Fatalf("ReleaseGlobal() error = %v", err)
	}
	if l.IsGlobal() {
		t.Error("IsGlobal() should be false after release")
	}
	testutil.WaitClosed(t, known, "entity lock after global release")
	testutil.WaitClosed(t, unknown, "new entity lock after global release")
}

func TestGlobal_WaitsForHolders(t *testing.T) {
	l := New[int]()
	holder, global := NewOwner(), NewOwner()
	mustLock(t, l, holder, 1)

	done := make(chan struct{})
	go func() {
		_ = l.AcquireGlobal(global)
		close(done)
	}()

	testutil.NeverWithin(t, done, 30*time.Millisecond, "global acquisition while an entity is held")
	mustUnlock(t, l, holder, 1)
	testutil.WaitClosed(t, done, "global acquisition")

	if !l.IsHeld(global, 1) {
		t.Error("global holder should hold the released entity")
	}
	_ = l.ReleaseGlobal(global)
}

func TestGlobal_Exclusive(t *testing.T) {
	l := New[int]()
	a, b := NewOwner(), NewOwner()

	if err := l.AcquireGlobal(a); err != nil {
		t.Fatal(err)
	}
	done := make(chan struct{})
	go func() {
		_ = l.AcquireGlobal(b)
		close(done)
	}()
	testutil.NeverWithin(t, done, 30*time.Millisecond, "second global acquisition")

	_ = l.ReleaseGlobal(a)
	testutil.WaitClosed(t, done, "second global acquisition")
	if holder, _ := l.GlobalHolder(); holder != b {
		t.Errorf("GlobalHolder() = %v, want %v", holder, b)
	}
	_ = l.ReleaseGlobal(b)
}

func TestGlobal_Reentrant(t *testing.T) {
	l := New[int]()
	global, other := NewOwner(), NewOwner()
	mustLock(t, l, other, 1)
	mustUnlock(t, l, other, 1)

	_ = l.AcquireGlobal(global)
	_ = l.AcquireGlobal(global)
	_ = l.ReleaseGlobal(global)

	if !l.IsGlobal() {
		t.Fatal("inner release must not leave global mode")
	}
	if !l.IsHeld(global, 1) {
		t.Fatal("entity should still be held after inner release")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := l.LockTimeout(ctx, other, 1, 0); !errors.Is(err, errors.ErrInterrupted) {
		t.Fatalf("entity locker should wait out global mode, err = %v", err)
	}

	_ = l.ReleaseGlobal(global)
	if l.IsGlobal() {
		t.Fatal("outer release should leave global mode")
	}
	if err := l.LockTimeout(context.Background(), other, 1, 0); err != nil {
		t.Fatalf("entity should be free after outer release: %v", err)
	}
}

func TestGlobal_HolderLocksEntities(t *testing.T) {
	l := New[int]()
	global := NewOwner()
	mustLock(t, l, global, 1)
	mustUnlock(t, l, global, 1)

	err := l.DoGlobal(global, func() error {
		return l.Do(global, 1, func() error {
			if l.Waiting(1) != 0 {
				t.Error("global holder should re-enter, not queue")
			}
			return nil
		})
	})
	if err != nil {
		t.Fatalf("DoGlobal() error = %v", err)
	}
	if l.IsHeld(global, 1) || l.IsGlobal() {
		t.Error("everything should be released after DoGlobal")
	}
}

func TestGlobal_ReleaseByNonHolder(t *testing.T) {
	l := New[int]()
	global, other := NewOwner(), NewOwner()

	if err := l.ReleaseGlobal(other); err != nil {
		t.Fatalf("ReleaseGlobal() without global mode error = %v", err)
	}

	_ = l.AcquireGlobal(global)
	if err := l.ReleaseGlobal(other); err != nil {
		t.Fatalf("ReleaseGlobal() by non-holder error = %v", err)
	}
	if !l.IsGlobal() {
		t.Error("non-holder release must not end global mode")
	}
	_ = l.ReleaseGlobal(global)
}

func TestGlobal_ConsistentSnapshot(t *testing.T) {
	testutil.SkipIfShort(t)

	const (
		keys       = 8
		workers    = 64
		increments = 200
	)
	l := New[int]()
	setup := NewOwner()
	for k := range keys {
		mustLock(t, l, setup, k)
		mustUnlock(t, l, setup, k)
	}

	counters := make([]int, keys)
	var inside atomic.Int32
	stop := make(chan struct{})

	var snapshots sync.WaitGroup
	snapshots.Go(func() {
		owner := NewOwner()
		for {
			select {
			case <-stop:
				return
			default:
			}
			_ = l.DoGlobal(owner, func() error {
				if n := inside.Load(); n != 0 {
					t.Errorf("%d entity sections ran during global mode", n)
				}
				return nil
			})
		}
	})

	testutil.RunGroup(workers, func(i int) {
		owner := NewOwner()
		for j := range increments {
			k := (i + j) % keys
			_ = l.Do(owner, k, func() error {
				inside.Add(1)
				counters[k]++
				inside.Add(-1)
				return nil
			})
		}
	})
	close(stop)
	snapshots.Wait()

	total := 0
	_ = l.DoGlobal(setup, func() error {
		for _, c := range counters {
			total += c
		}
		return nil
	})
	if total != workers*increments {
		t.Errorf("total = %d, want %d", total, workers*increments)
	}
}

func TestLocker_PublishesEvents(t *testing.T) {
	bus := event.NewBus()
	var mu sync.Mutex
	var types []string
	bus.SubscribeAll(func(e event.Event) {
		mu.Lock()
		types = append(types, e.EventType())
		mu.Unlock()
	})

	l := New[int](WithBus(bus), WithName("orders"))
	a, b := NewOwner(), NewOwner()

	mustLock(t, l, a, 1)
	_ = l.LockTimeout(context.Background(), b, 1, 0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_ = l.LockTimeout(ctx, b, 1, time.Second)
	mustUnlock(t, l, a, 1)
	_ = l.Unlock(b, 1) // not held: no event
	_ = l.DoGlobal(a, func() error { return nil })

	want := []string{
		event.TypeEntityLocked,
		event.TypeEntityTimeout,
		event.TypeEntityInterrupted,
		event.TypeEntityUnlocked,
		event.TypeGlobalAcquired,
		event.TypeGlobalReleased,
	}
	mu.Lock()
	defer mu.Unlock()
	if strings.Join(types, ",") != strings.Join(want, ",") {
		t.Errorf("events = %v, want %v", types, want)
	}
}

func TestLocker_GlobalEventPayload(t *testing.T) {
	bus := event.NewBus()
	var acquired event.GlobalAcquiredEvent
	var released event.GlobalReleasedEvent
	bus.Subscribe(event.TypeGlobalAcquired, func(e event.Event) { acquired = e.(event.GlobalAcquiredEvent) })
	bus.Subscribe(event.TypeGlobalReleased, func(e event.Event) { released = e.(event.GlobalReleasedEvent) })

	l := New[int](WithBus(bus), WithName("orders"))
	owner := NewOwner()
	for k := range 3 {
		mustLock(t, l, owner, k)
		mustUnlock(t, l, owner, k)
	}
	_ = l.DoGlobal(owner, func() error { return nil })

	if acquired.Locker != "orders" || acquired.OwnerID != owner.String() || acquired.Entities != 3 {
		t.Errorf("acquired = %+v", acquired)
	}
	if released.Entities != 3 || !released.Final {
		t.Errorf("released = %+v", released)
	}
}

func TestLocker_Logging(t *testing.T) {
	logger, buf := testutil.CaptureLogger(t, logging.LevelDebug)
	l := New[int](WithLogger(logger), WithName("orders"))
	a, b := NewOwner(), NewOwner()

	mustLock(t, l, a, 7)
	_ = l.LockTimeout(context.Background(), b, 7, 0)
	mustUnlock(t, l, a, 7)

	out := buf.String()
	for _, want := range []string{
		`"msg":"entity locked"`,
		`"msg":"entity lock timed out"`,
		`"msg":"entity unlocked"`,
		`"locker":"orders"`,
		`"component":"entitylock"`,
		`"entity":"7"`,
		`"owner_id":"` + a.String() + `"`,
		`"owner_id":"` + b.String() + `"`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %s:\n%s", want, out)
		}
	}
}

func TestLocker_Introspection(t *testing.T) {
	l := New[string]()
	owner := NewOwner()

	for _, k := range []string{"a", "b", "c"} {
		mustLock(t, l, owner, k)
	}
	if l.Len() != 3 {
		t.Errorf("Len() = %d, want 3", l.Len())
	}
	keys := l.Keys()
	if len(keys) != 3 {
		t.Errorf("Keys() = %v", keys)
	}
	if l.IsHeld(owner, "missing") {
		t.Error("IsHeld() on unknown id should be false")
	}
	if l.Len() != 3 {
		t.Error("IsHeld() must not register ids")
	}
	if l.Waiting("missing") != 0 {
		t.Error("Waiting() on unknown id should be 0")
	}
}
