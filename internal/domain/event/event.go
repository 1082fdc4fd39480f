package event

import (
	"time"

	"github.com/google/uuid"

	"github.com/garyjia/access-portal/internal/domain/entity"
)

// Payload keys used by application events
const (
	PayloadPreviousStatus = "previous_status"
	PayloadStatus         = "status"
	PayloadReason         = "rejection_reason"
	PayloadType           = "type"
)

// Event represents a domain event about one application.
// Application is a snapshot taken when the event was raised.
type Event struct {
	ID            string                 `json:"id"`
	Type          Type                   `json:"type"`
	ApplicationID string                 `json:"application_id"`
	Receipt       string                 `json:"receipt"`
	Application   *entity.Application    `json:"-"`
	Payload       map[string]interface{} `json:"payload"`
	Timestamp     time.Time              `json:"timestamp"`
	CorrelationID string                 `json:"correlation_id"`
}

// NewEvent creates an event for app with a generated ID and timestamp
func NewEvent(eventType Type, app *entity.Application, payload map[string]interface{}) *Event {
	return NewEventWithCorrelation(eventType, app, payload, uuid.NewString())
}

// NewEventWithCorrelation creates an event linked to a correlation chain
func NewEventWithCorrelation(eventType Type, app *entity.Application, payload map[string]interface{}, correlationID string) *Event {
	e := &Event{
		ID:            uuid.NewString(),
		Type:          eventType,
		Payload:       payload,
		Timestamp:     time.Now(),
		CorrelationID: correlationID,
	}
	if e.Payload == nil {
		e.Payload = map[string]interface{}{}
	}
	if app != nil {
		e.ApplicationID = app.ID
		e.Receipt = app.Receipt
		e.Application = app.Clone()
	}
	return e
}

// WithPayload returns a new Event with an added payload key-value pair
func (e *Event) WithPayload(key string, value interface{}) *Event {
	newPayload := make(map[string]interface{}, len(e.Payload)+1)
	for k, v := range e.Payload {
		newPayload[k] = v
	}
	newPayload[key] = value

	c := *e
	c.Payload = newPayload
	return &c
}

// GetPayloadString retrieves a string value from the payload
func (e *Event) GetPayloadString(key string) string {
	if val, ok := e.Payload[key]; ok {
		switch v := val.(type) {
		case string:
			return v
		case entity.Status:
			return string(v)
		case entity.Type:
			return string(v)
		}
	}
	return ""
}

// GetPayloadBool retrieves a bool value from the payload
func (e *Event) GetPayloadBool(key string) bool {
	if val, ok := e.Payload[key]; ok {
		if b, ok := val.(bool); ok {
			return b
		}
	}
	return false
}
