// Package event defines lock lifecycle events and the bus that carries them.
package event

import "time"

// Event is the interface that all events must implement.
type Event interface {
	// EventType returns a string identifier for this event type.
	// Convention: "category.action" (e.g., "entity.locked", "global.released")
	EventType() string

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// Event type identifiers.
const (
	TypeEntityLocked      = "entity.locked"
	TypeEntityUnlocked    = "entity.unlocked"
	TypeEntityTimeout     = "entity.lock_timeout"
	TypeEntityInterrupted = "entity.lock_interrupted"
	TypeGlobalAcquired    = "global.acquired"
	TypeGlobalReleased    = "global.released"
)

// baseEvent provides common fields for all events.
type baseEvent struct {
	eventType string
	timestamp time.Time
}

func (e baseEvent) EventType() string    { return e.eventType }
func (e baseEvent) Timestamp() time.Time { return e.timestamp }

func newBaseEvent(eventType string, at time.Time) baseEvent {
	return baseEvent{
		eventType: eventType,
		timestamp: at,
	}
}

// -----------------------------------------------------------------------------
// Entity Events
// -----------------------------------------------------------------------------

// EntityLockedEvent is emitted when an owner acquires a per-entity lock,
// including reentrant acquisitions.
type EntityLockedEvent struct {
	baseEvent
	Locker   string        // Name of the coordinator
	EntityID string        // Formatted entity identifier
	OwnerID  string        // Owner that now holds the lock
	Waited   time.Duration // Time spent in the rendezvous and the lock queue
}

// NewEntityLockedEvent creates an EntityLockedEvent.
func NewEntityLockedEvent(at time.Time, locker, entityID, ownerID string, waited time.Duration) EntityLockedEvent {
	return EntityLockedEvent{
		baseEvent: newBaseEvent(TypeEntityLocked, at),
		Locker:    locker,
		EntityID:  entityID,
		OwnerID:   ownerID,
		Waited:    waited,
	}
}

// EntityUnlockedEvent is emitted when an owner releases one level of a
// per-entity lock it holds.
type EntityUnlockedEvent struct {
	baseEvent
	Locker   string
	EntityID string
	OwnerID  string
}

// NewEntityUnlockedEvent creates an EntityUnlockedEvent.
func NewEntityUnlockedEvent(at time.Time, locker, entityID, ownerID string) EntityUnlockedEvent {
	return EntityUnlockedEvent{
		baseEvent: newBaseEvent(TypeEntityUnlocked, at),
		Locker:    locker,
		EntityID:  entityID,
		OwnerID:   ownerID,
	}
}

// EntityLockFailedEvent is emitted when a timed acquire gives up, either
// because the bound elapsed (entity.lock_timeout) or because the caller's
// context was done (entity.lock_interrupted).
type EntityLockFailedEvent struct {
	baseEvent
	Locker   string
	EntityID string
	OwnerID  string
	Timeout  time.Duration
}

// NewEntityTimeoutEvent creates an entity.lock_timeout event.
func NewEntityTimeoutEvent(at time.Time, locker, entityID, ownerID string, timeout time.Duration) EntityLockFailedEvent {
	return EntityLockFailedEvent{
		baseEvent: newBaseEvent(TypeEntityTimeout, at),
		Locker:    locker,
		EntityID:  entityID,
		OwnerID:   ownerID,
		Timeout:   timeout,
	}
}

// NewEntityInterruptedEvent creates an entity.lock_interrupted event.
func NewEntityInterruptedEvent(at time.Time, locker, entityID, ownerID string, timeout time.Duration) EntityLockFailedEvent {
	return EntityLockFailedEvent{
		baseEvent: newBaseEvent(TypeEntityInterrupted, at),
		Locker:    locker,
		EntityID:  entityID,
		OwnerID:   ownerID,
		Timeout:   timeout,
	}
}

// -----------------------------------------------------------------------------
// Global Events
// -----------------------------------------------------------------------------

// GlobalAcquiredEvent is emitted once an owner holds the arbitration lock and
// every entity lock that was registered when its scan began.
type GlobalAcquiredEvent struct {
	baseEvent
	Locker   string
	OwnerID  string
	Entities int // Number of entity locks collected by the scan
	Waited   time.Duration
}

// NewGlobalAcquiredEvent creates a GlobalAcquiredEvent.
func NewGlobalAcquiredEvent(at time.Time, locker, ownerID string, entities int, waited time.Duration) GlobalAcquiredEvent {
	return GlobalAcquiredEvent{
		baseEvent: newBaseEvent(TypeGlobalAcquired, at),
		Locker:    locker,
		OwnerID:   ownerID,
		Entities:  entities,
		Waited:    waited,
	}
}

// GlobalReleasedEvent is emitted when an owner leaves global mode.
type GlobalReleasedEvent struct {
	baseEvent
	Locker   string
	OwnerID  string
	Entities int  // Number of entity locks released
	Final    bool // True when the outermost global hold ended and the escalation flag cleared
}

// NewGlobalReleasedEvent creates a GlobalReleasedEvent.
func NewGlobalReleasedEvent(at time.Time, locker, ownerID string, entities int, final bool) GlobalReleasedEvent {
	return GlobalReleasedEvent{
		baseEvent: newBaseEvent(TypeGlobalReleased, at),
		Locker:    locker,
		OwnerID:   ownerID,
		Entities:  entities,
		Final:     final,
	}
}
