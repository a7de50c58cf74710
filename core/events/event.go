package events

import "leasechain/core/types"

// Event represents a structured state change emitted by a lease.
type Event interface {
	EventType() string
	Event() *types.Event
}
