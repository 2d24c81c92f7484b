// Package event provides a pub-sub event bus for lock lifecycle events.
//
// Lock coordinators publish an event whenever an entity lock is acquired,
// released, times out, or is abandoned, and whenever global mode is entered
// or left. Observers (metrics, audit logging, test probes) subscribe to the
// bus without the coordinator depending on them.
//
// # Main Types
//
//   - [Event]: Interface that all events must implement, providing EventType() and Timestamp()
//   - [Bus]: Synchronous pub-sub event dispatcher with thread-safe operations
//   - [Handler]: Function type for event handlers (func(Event))
//
// # Event Types
//
//   - [EntityLockedEvent] ("entity.locked")
//   - [EntityUnlockedEvent] ("entity.unlocked")
//   - [EntityLockFailedEvent] ("entity.lock_timeout", "entity.lock_interrupted")
//   - [GlobalAcquiredEvent] ("global.acquired")
//   - [GlobalReleasedEvent] ("global.released")
//
// # Usage
//
//	bus := event.NewBus()
//	bus.Subscribe(event.TypeEntityTimeout, func(e event.Event) {
//	    failed := e.(event.EntityLockFailedEvent)
//	    log.Printf("gave up on %s after %s", failed.EntityID, failed.Timeout)
//	})
//
// # Thread Safety
//
// The [Bus] is safe for concurrent use. Handlers are invoked synchronously
// on the publishing goroutine, outside the bus's internal lock, so a handler
// may subscribe or unsubscribe without deadlocking. Handler panics are
// recovered and logged.
package event
