package entitylock

import "github.com/google/uuid"

// Owner identifies the flow of control a lock is held by. Goroutines carry
// no identity of their own, so callers create an Owner once per logical
// worker and pass it to every lock call that worker makes; reentrancy and
// release checks are keyed by it.
//
// An Owner must not be shared by goroutines that lock concurrently: two
// goroutines using the same Owner are one holder as far as the Locker is
// concerned.
type Owner struct {
	id uuid.UUID
}

// NewOwner returns a fresh, random Owner.
func NewOwner() Owner {
	return Owner{id: uuid.New()}
}

// OwnerFromUUID wraps an existing identifier, for callers that already
// track their workers by UUID.
func OwnerFromUUID(id uuid.UUID) Owner {
	return Owner{id: id}
}

// ID returns the underlying identifier.
func (o Owner) ID() uuid.UUID { return o.id }

// IsZero reports whether o is the zero Owner, which no lock accepts.
func (o Owner) IsZero() bool { return o.id == uuid.Nil }

// String returns the owner's UUID, or "<none>" for the zero Owner.
func (o Owner) String() string {
	if o.IsZero() {
		return "<none>"
	}
	return o.id.String()
}
