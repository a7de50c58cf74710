package lease

import (
	"errors"
	"fmt"
)

var (
	ErrUnauthorized     = errors.New("lease: unauthorized sender")
	ErrInvalidForm      = errors.New("lease: invalid open request")
	ErrInvalidPayment   = errors.New("lease: invalid payment")
	ErrUnknownKind      = errors.New("lease: unknown state kind")
	ErrUnknownVersion   = errors.New("lease: unknown record version")
	ErrNotFound         = errors.New("lease: not found")
	ErrAlreadyExists    = errors.New("lease: already exists")
	ErrTerminated       = errors.New("lease: lease is closed")
	errMissingQuerier   = errors.New("lease: querier not configured")
	errMissingSequencer = errors.New("lease: id sequencer not configured")
)

// UnsupportedOperationError rejects a customer operation the current state
// does not accept.
type UnsupportedOperationError struct {
	Operation string
	State     Kind
}

func (e *UnsupportedOperationError) Error() string {
	return fmt.Sprintf("lease: %s is not supported in state %s", e.Operation, e.State)
}

// ProtocolViolationError rejects a system message the current state never
// asked for. It indicates a duplicate delivery or a bug.
type ProtocolViolationError struct {
	Message string
	State   Kind
	Err     error
}

func (e *ProtocolViolationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("lease: %s not expected in state %s: %v", e.Message, e.State, e.Err)
	}
	return fmt.Sprintf("lease: %s not expected in state %s", e.Message, e.State)
}

func (e *ProtocolViolationError) Unwrap() error { return e.Err }

func unsupported(msg Message, st State) error {
	return &UnsupportedOperationError{Operation: msg.Operation(), State: st.Kind()}
}

func violation(msg Message, st State, err error) error {
	return &ProtocolViolationError{Message: msg.Operation(), State: st.Kind(), Err: err}
}
