package workflow

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/garyjia/access-portal/internal/domain/entity"
)

type rule struct {
	to          State
	needsReason bool
}

// transitions is the review lifecycle:
//
//	PENDING      -> UNDER_REVIEW | APPROVED | REJECTED
//	UNDER_REVIEW -> APPROVED | REJECTED
//
// APPROVED and REJECTED have no outgoing edges.
var transitions = map[State]map[Trigger]rule{
	StatePending: {
		TriggerStartReview: {to: StateUnderReview},
		TriggerApprove:     {to: StateApproved},
		TriggerReject:      {to: StateRejected, needsReason: true},
	},
	StateUnderReview: {
		TriggerApprove: {to: StateApproved},
		TriggerReject:  {to: StateRejected, needsReason: true},
	},
}

// Permitted lists the triggers that can fire from state, sorted.
func Permitted(state State) []Trigger {
	rules := transitions[state]
	out := make([]Trigger, 0, len(rules))
	for trigger := range rules {
		out = append(out, trigger)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Next resolves the status an application moves to when trigger fires.
// REJECT with a blank reason fails with entity.ErrMissingParameter.
func Next(ctx context.Context, current entity.Status, trigger Trigger, reason string) (entity.Status, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	state := StateFromStatus(current)
	if !state.IsValid() {
		return "", fmt.Errorf("%w: %s", ErrInvalidState, current)
	}

	r, ok := transitions[state][trigger]
	if !ok {
		return "", fmt.Errorf("%w: cannot fire %s from %s", ErrInvalidTransition, trigger, state)
	}
	if r.needsReason && strings.TrimSpace(reason) == "" {
		return "", fmt.Errorf("%w: rejection reason is required", entity.ErrMissingParameter)
	}
	return r.to.Status(), nil
}
