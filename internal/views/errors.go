// Package views holds the feature view models of the portal. Each view loads
// its collections from the store, keeps a private copy and changes it only
// through commands that roll back when the store rejects them.
//
// Views are not safe for concurrent use.
package views

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput is returned before any request when a command's input is invalid.
	ErrInvalidInput = errors.New("invalid input")
	// ErrNotVerified is returned when paying an unverified employee.
	ErrNotVerified = errors.New("employee is not verified")
	// ErrAlreadyPaid is returned when approving a payment twice.
	ErrAlreadyPaid = errors.New("payment already paid")
	// ErrNotApplied is returned when the store reports that nothing changed.
	ErrNotApplied = errors.New("change not applied")
	// ErrUnknownRecord is returned for ids the view has not loaded.
	ErrUnknownRecord = errors.New("unknown record")
)

// CommandError is returned by failed commands.
type CommandError struct {
	Op  string
	Err error
}

func (e *CommandError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *CommandError) Unwrap() error { return e.Err }

func fail(op string, err error) error {
	return &CommandError{Op: op, Err: err}
}

func invalid(op, format string, args ...any) error {
	return fail(op, fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...)))
}

// command is a local patch, the request that makes it durable and the
// undo that restores the previous state when the request fails.
type command struct {
	op       string
	apply    func()
	send     func() error
	rollback func()
}

func (c command) run() error {
	c.apply()
	if err := c.send(); err != nil {
		c.rollback()
		return fail(c.op, err)
	}
	return nil
}
