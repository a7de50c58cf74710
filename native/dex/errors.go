package dex

import "errors"

var (
	// ErrUnexpected marks a reply that does not match the step the task waits
	// on.
	ErrUnexpected      = errors.New("dex: message does not match the pending step")
	ErrNoSwapPath      = errors.New("dex: no swap path between currencies")
	ErrInvalidAccount  = errors.New("dex: invalid interchain account")
	ErrInvalidResponse = errors.New("dex: malformed response")
	ErrNothingToMove   = errors.New("dex: no funds to move")
)
