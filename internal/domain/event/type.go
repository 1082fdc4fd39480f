package event

// Type identifies the type of domain event
type Type string

const (
	TypeApplicationSubmitted     Type = "application.submitted"
	TypeApplicationStatusChanged Type = "application.status_changed"
)

func (t Type) String() string {
	return string(t)
}

// IsValid checks if the event type is one of the defined constants
func (t Type) IsValid() bool {
	switch t {
	case TypeApplicationSubmitted, TypeApplicationStatusChanged:
		return true
	default:
		return false
	}
}
