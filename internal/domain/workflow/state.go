package workflow

import "github.com/garyjia/access-portal/internal/domain/entity"

// State represents a stage in the application review lifecycle
type State string

const (
	StatePending     State = State(entity.StatusPending)
	StateUnderReview State = State(entity.StatusUnderReview)
	StateApproved    State = State(entity.StatusApproved)
	StateRejected    State = State(entity.StatusRejected)
)

var validStates = map[State]bool{
	StatePending:     true,
	StateUnderReview: true,
	StateApproved:    true,
	StateRejected:    true,
}

// StateFromStatus converts a stored application status into a machine state
func StateFromStatus(s entity.Status) State {
	return State(s)
}

// Status converts the state back into the stored application status
func (s State) Status() entity.Status {
	return entity.Status(s)
}

func (s State) String() string {
	return string(s)
}

// IsValid returns true if the state is a valid lifecycle state
func (s State) IsValid() bool {
	return validStates[s]
}
