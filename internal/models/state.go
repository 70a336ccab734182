// internal/models/state.go
package models

// State is the lifecycle state shared by demands and proposals.
type State string

const (
	StateOpened            State = "opened"
	StateInvalid           State = "invalid"
	StatePublished         State = "published"
	StateConfirmed         State = "confirmed"
	StateDeclined          State = "declined"
	StateCancelled         State = "cancelled"
	StateClosed            State = "closed"
	StateMarkedForDeletion State = "markedForDeletion"
)

// Final reports whether the state permits no further field mutation.
// Only state inspection is allowed once an entity reaches one of these.
func (s State) Final() bool {
	switch s {
	case StateClosed, StateCancelled, StateMarkedForDeletion:
		return true
	}
	return false
}

// Editable reports whether attribute edits are permitted in this state.
func (s State) Editable() bool {
	switch s {
	case StateOpened, StatePublished, StateInvalid:
		return true
	}
	return false
}
