package event

import (
	"testing"
	"time"

	"github.com/garyjia/access-portal/internal/domain/entity"
)

func sampleApplication() *entity.Application {
	return &entity.Application{
		ID:      "app-1",
		Receipt: "VR-20250528-0001",
		Type:    entity.TypeVisitR3,
		Status:  entity.StatusPending,
		VisitR3: &entity.VisitR3{VisitorName: "홍길동"},
	}
}

func TestType_IsValid(t *testing.T) {
	tests := []struct {
		name      string
		eventType Type
		want      bool
	}{
		{"submitted", TypeApplicationSubmitted, true},
		{"status changed", TypeApplicationStatusChanged, true},
		{"unknown", Type("instance.created"), false},
		{"empty", Type(""), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.eventType.IsValid(); got != tt.want {
				t.Errorf("Type.IsValid() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewEvent(t *testing.T) {
	app := sampleApplication()
	event := NewEvent(TypeApplicationSubmitted, app, map[string]interface{}{
		PayloadType: string(app.Type),
	})

	if event.ID == "" {
		t.Error("Event ID should not be empty")
	}
	if event.ApplicationID != "app-1" {
		t.Errorf("Event ApplicationID = %v, want app-1", event.ApplicationID)
	}
	if event.Receipt != app.Receipt {
		t.Errorf("Event Receipt = %v, want %v", event.Receipt, app.Receipt)
	}
	if event.CorrelationID == "" {
		t.Error("Event CorrelationID should not be empty")
	}
	if time.Since(event.Timestamp) > time.Second {
		t.Error("Event Timestamp should be recent")
	}
	if event.GetPayloadString(PayloadType) != "VISIT_R3" {
		t.Errorf("payload type = %v, want VISIT_R3", event.GetPayloadString(PayloadType))
	}
}

func TestNewEvent_SnapshotsApplication(t *testing.T) {
	app := sampleApplication()
	event := NewEvent(TypeApplicationSubmitted, app, nil)

	app.Status = entity.StatusApproved
	app.VisitR3.VisitorName = "changed"

	if event.Application.Status != entity.StatusPending {
		t.Errorf("snapshot status = %v, want PENDING", event.Application.Status)
	}
	if event.Application.VisitR3.VisitorName != "홍길동" {
		t.Errorf("snapshot visitor = %v, want 홍길동", event.Application.VisitR3.VisitorName)
	}
	if event.Payload == nil {
		t.Error("nil payload should be replaced by an empty map")
	}
}

func TestNewEventWithCorrelation(t *testing.T) {
	event := NewEventWithCorrelation(TypeApplicationStatusChanged, sampleApplication(), nil, "corr-123")

	if event.CorrelationID != "corr-123" {
		t.Errorf("Event CorrelationID = %v, want corr-123", event.CorrelationID)
	}
	if event.Type != TypeApplicationStatusChanged {
		t.Errorf("Event Type = %v, want %v", event.Type, TypeApplicationStatusChanged)
	}
}

func TestEvent_WithPayload(t *testing.T) {
	original := NewEvent(TypeApplicationStatusChanged, sampleApplication(), map[string]interface{}{
		PayloadPreviousStatus: entity.StatusPending,
	})

	modified := original.WithPayload(PayloadStatus, entity.StatusApproved)

	if _, exists := original.Payload[PayloadStatus]; exists {
		t.Error("Original event should not be modified")
	}
	if modified.GetPayloadString(PayloadPreviousStatus) != "PENDING" {
		t.Error("Modified event should retain original payload")
	}
	if modified.GetPayloadString(PayloadStatus) != "APPROVED" {
		t.Error("Modified event should have new payload")
	}
	if modified.ID != original.ID || modified.CorrelationID != original.CorrelationID {
		t.Error("Modified event should keep identity fields")
	}
}

func TestEvent_GetPayloadBool(t *testing.T) {
	event := NewEvent(TypeApplicationSubmitted, nil, map[string]interface{}{
		"cached": true,
		"name":   "x",
	})

	if !event.GetPayloadBool("cached") {
		t.Error("GetPayloadBool(cached) should be true")
	}
	if event.GetPayloadBool("name") {
		t.Error("GetPayloadBool on non-bool should be false")
	}
	if event.GetPayloadBool("missing") {
		t.Error("GetPayloadBool on missing key should be false")
	}
}

func TestEvent_UniqueIDs(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		e := NewEvent(TypeApplicationSubmitted, nil, nil)
		if seen[e.ID] {
			t.Fatalf("duplicate event ID %s", e.ID)
		}
		seen[e.ID] = true
	}
}
