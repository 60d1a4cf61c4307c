package engine

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies a reconciliation failure by where it originated.
type ErrorKind string

const (
	// KindMalformedUnit indicates a requested identifier failed to parse.
	// Nothing external has been queried or changed.
	KindMalformedUnit ErrorKind = "malformed_unit"

	// KindExternalQuery indicates the installed-unit query failed or returned
	// unparseable content. The installed set is unknown, not empty.
	KindExternalQuery ErrorKind = "external_query"

	// KindActionExecution indicates an install or uninstall action failed.
	// Earlier actions in the run are not rolled back.
	KindActionExecution ErrorKind = "action_execution"
)

// Error is a classified reconciliation error.
// nolint:revive // engine.Error reads naturally at call sites
type Error struct {
	// Kind is the error classification.
	Kind ErrorKind `json:"kind"`

	// Message is the human-readable error message.
	Message string `json:"message"`

	// Action is the action that failed, set for KindActionExecution.
	Action *Action `json:"action,omitempty"`

	// Completed lists the actions that finished before the failure, in
	// execution order.
	Completed []Action `json:"completed,omitempty"`

	// Err is the underlying error.
	Err error `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s", e.Kind, e.Message)
	if e.Action != nil {
		fmt.Fprintf(&b, " (action=%s, completed=%d)", e.Action, len(e.Completed))
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %s", e.Err.Error())
	}
	return b.String()
}

// Unwrap returns the underlying error for error chain inspection.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// NewMalformedUnitError creates a malformed-unit error.
func NewMalformedUnitError(message string, err error) *Error {
	return &Error{Kind: KindMalformedUnit, Message: message, Err: err}
}

// NewExternalQueryError creates an external-query error.
func NewExternalQueryError(message string, err error) *Error {
	return &Error{Kind: KindExternalQuery, Message: message, Err: err}
}

// NewActionExecutionError creates an action-execution error for the failed
// action, recording what had already completed.
func NewActionExecutionError(action Action, completed []Action, err error) *Error {
	return &Error{
		Kind:      KindActionExecution,
		Message:   fmt.Sprintf("%s failed", action.Direction),
		Action:    &action,
		Completed: append([]Action(nil), completed...),
		Err:       err,
	}
}

// KindOf returns the kind of the first *Error in err's chain, or "".
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsMalformedUnit reports whether err is a malformed-unit error.
func IsMalformedUnit(err error) bool {
	return KindOf(err) == KindMalformedUnit
}

// IsExternalQuery reports whether err is an external-query error.
func IsExternalQuery(err error) bool {
	return KindOf(err) == KindExternalQuery
}

// IsActionExecution reports whether err is an action-execution error.
func IsActionExecution(err error) bool {
	return KindOf(err) == KindActionExecution
}
