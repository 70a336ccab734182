// internal/common/errors/errors.go
package errors

import (
	"errors"
	"fmt"
)

// ErrorCode classifies application errors for logging and metrics.
type ErrorCode string

const (
	ErrCodeClient            ErrorCode = "CLIENT_ERROR"
	ErrCodeInvalidIdentifier ErrorCode = "INVALID_IDENTIFIER"
	ErrCodeInvalidState      ErrorCode = "INVALID_STATE"
	ErrCodeDataAccess        ErrorCode = "DATA_ACCESS_ERROR"
	ErrCodeReservedOperation ErrorCode = "RESERVED_OPERATION"
)

// ClientError marks malformed or empty input. The message is user-facing
// and is returned to the sender over the originating channel.
type ClientError struct {
	Message string
}

func (e *ClientError) Error() string {
	return fmt.Sprintf("%s: %s", ErrCodeClient, e.Message)
}

func NewClientError(format string, args ...interface{}) *ClientError {
	return &ClientError{Message: fmt.Sprintf(format, args...)}
}

// InvalidIdentifierError marks a reference that does not resolve to a
// stored entity. User-facing "not found".
type InvalidIdentifierError struct {
	Kind string
	Key  string
}

func (e *InvalidIdentifierError) Error() string {
	return fmt.Sprintf("%s: no %s for identifier %q", ErrCodeInvalidIdentifier, e.Kind, e.Key)
}

func NewInvalidIdentifierError(kind, key string) *InvalidIdentifierError {
	return &InvalidIdentifierError{Kind: kind, Key: key}
}

// InvalidStateError marks an illegal lifecycle transition. It carries both
// states so the user-facing message can name them.
type InvalidStateError struct {
	Current   string
	Attempted string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("%s: cannot move from %q to %q", ErrCodeInvalidState, e.Current, e.Attempted)
}

func NewInvalidStateError(current, attempted string) *InvalidStateError {
	return &InvalidStateError{Current: current, Attempted: attempted}
}

// DataAccessError wraps a persistence failure. Logged, surfaced as a
// generic failure, triggers no entity mutation.
type DataAccessError struct {
	Op  string
	Err error
}

func (e *DataAccessError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrCodeDataAccess, e.Op, e.Err)
}

func (e *DataAccessError) Unwrap() error { return e.Err }

func NewDataAccessError(op string, err error) *DataAccessError {
	return &DataAccessError{Op: op, Err: err}
}

// ReservedOperationError marks an action the actor is not permitted to
// perform. User-facing "not permitted".
type ReservedOperationError struct {
	Action   string
	ActorKey string
}

func (e *ReservedOperationError) Error() string {
	return fmt.Sprintf("%s: action %q not permitted for %q", ErrCodeReservedOperation, e.Action, e.ActorKey)
}

func NewReservedOperationError(action, actorKey string) *ReservedOperationError {
	return &ReservedOperationError{Action: action, ActorKey: actorKey}
}

// CodeOf returns the taxonomy code of err, or "INTERNAL_ERROR" for
// anything outside the taxonomy.
func CodeOf(err error) ErrorCode {
	var (
		client   *ClientError
		ident    *InvalidIdentifierError
		state    *InvalidStateError
		data     *DataAccessError
		reserved *ReservedOperationError
	)
	switch {
	case errors.As(err, &client):
		return ErrCodeClient
	case errors.As(err, &ident):
		return ErrCodeInvalidIdentifier
	case errors.As(err, &state):
		return ErrCodeInvalidState
	case errors.As(err, &data):
		return ErrCodeDataAccess
	case errors.As(err, &reserved):
		return ErrCodeReservedOperation
	}
	return "INTERNAL_ERROR"
}

// UserFacing reports whether err's message may be echoed to the sender.
// Data access failures are reported generically instead.
func UserFacing(err error) bool {
	switch CodeOf(err) {
	case ErrCodeClient, ErrCodeInvalidIdentifier, ErrCodeInvalidState, ErrCodeReservedOperation:
		return true
	}
	return false
}
