// Package entitylock coordinates exclusive access to entities identified by
// arbitrary comparable ids.
//
// A Locker hands out one reentrant lock per entity id, creating it on first
// use. Critical sections on the same id are serialized and granted in
// arrival order; sections on different ids run in parallel. An owner may
// escalate to global mode with AcquireGlobal, after which it holds every
// registered entity lock and other owners wait until ReleaseGlobal.
//
// Goroutines have no identity, so every call names its Owner explicitly:
//
//	locker := entitylock.New[int64](entitylock.WithName("orders"))
//	worker := entitylock.NewOwner()
//
//	err := locker.Do(worker, orderID, func() error {
//		return applyPayment(orderID)
//	})
//
// Timed acquisition is bounded by both a duration and a context:
//
//	err := locker.LockTimeout(ctx, worker, orderID, 2*time.Second)
//	switch {
//	case errors.Is(err, errors.ErrTimeout):
//		// the lock stayed busy
//	case errors.Is(err, errors.ErrInterrupted):
//		// ctx was cancelled while waiting
//	}
//
// Lock events are published to an optional event.Bus (see WithBus), and
// logging goes through the logger given with WithLogger.
package entitylock
