package workflow

import "strings"

// Trigger represents a reviewer action that can cause a state transition
type Trigger string

const (
	TriggerStartReview Trigger = "START_REVIEW"
	TriggerApprove     Trigger = "APPROVE"
	TriggerReject      Trigger = "REJECT"
)

func (t Trigger) String() string {
	return string(t)
}

// Action is the admin console action name that fires t
func (t Trigger) Action() string {
	switch t {
	case TriggerApprove:
		return "approve"
	case TriggerReject:
		return "reject"
	case TriggerStartReview:
		return "review"
	}
	return strings.ToLower(string(t))
}

// ParseAction maps an admin console action (approve, reject, review) to its trigger
func ParseAction(action string) (Trigger, bool) {
	switch strings.ToLower(strings.TrimSpace(action)) {
	case "approve":
		return TriggerApprove, true
	case "reject":
		return TriggerReject, true
	case "review", "start_review":
		return TriggerStartReview, true
	}
	return "", false
}
