// Package booking mediates between remote booking state and the local
// pending selection, and owns the only mutating operations of the client.
package booking

// State represents the current phase of the booking flow.
type State string

const (
	StateIdle          State = "idle"
	StateAuthRequired  State = "auth_required"
	StateSlotPicking   State = "slot_picking"
	StateSubmitting    State = "submitting"
	StateDeletePending State = "delete_pending"
	StateDeleting      State = "deleting"
)

// FSM manages the allowed transitions of the booking flow.
type FSM struct {
	transitions map[State][]State
}

// NewFSM creates an FSM with the predefined transitions.
func NewFSM() *FSM {
	return &FSM{
		transitions: map[State][]State{
			StateIdle:          {StateSlotPicking, StateAuthRequired, StateDeletePending},
			StateAuthRequired:  {StateIdle, StateSlotPicking},
			StateSlotPicking:   {StateSubmitting, StateIdle, StateDeletePending, StateAuthRequired},
			StateSubmitting:    {StateIdle, StateSlotPicking},
			StateDeletePending: {StateDeleting, StateIdle, StateSlotPicking},
			StateDeleting:      {StateIdle, StateSlotPicking},
		},
	}
}

// CanTransition checks if the transition is allowed.
func (f *FSM) CanTransition(from, to State) bool {
	for _, s := range f.transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
