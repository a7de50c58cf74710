package platform

import (
	"leasechain/core/events"
	"leasechain/core/types"
)

// Batch collects the outbound messages and events produced by one
// invocation.
type Batch struct {
	Messages []Message
	Events   []*types.Event
}

// Schedule appends messages in delivery order.
func (b *Batch) Schedule(msgs ...Message) {
	b.Messages = append(b.Messages, msgs...)
}

// Emit renders and appends events.
func (b *Batch) Emit(evts ...events.Event) {
	for _, evt := range evts {
		if evt == nil {
			continue
		}
		b.Events = append(b.Events, evt.Event())
	}
}

// Merge appends another batch after this one.
func (b *Batch) Merge(other Batch) {
	b.Messages = append(b.Messages, other.Messages...)
	b.Events = append(b.Events, other.Events...)
}

// Empty reports whether nothing was produced.
func (b Batch) Empty() bool {
	return len(b.Messages) == 0 && len(b.Events) == 0
}

// Callbacks returns the self-addressed continuations of the batch.
func (b Batch) Callbacks() []SelfCallback {
	var out []SelfCallback
	for _, msg := range b.Messages {
		if cb, ok := msg.(SelfCallback); ok {
			out = append(out, cb)
		}
	}
	return out
}

// External returns the messages addressed to other parties.
func (b Batch) External() []Message {
	var out []Message
	for _, msg := range b.Messages {
		if _, ok := msg.(SelfCallback); ok {
			continue
		}
		out = append(out, msg)
	}
	return out
}
