package mq

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestParsePayload(t *testing.T) {
	scheduleID := uuid.New()
	planID := uuid.New()

	// Сообщение проходит через JSON, как при доставке из брокера
	original := Message{
		ID:        uuid.New().String(),
		Type:      MessageTypePlanDue,
		Payload:   PlanDuePayload{ScheduleID: scheduleID, PlanID: planID},
		Timestamp: time.Now(),
	}
	body, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var msg Message
	if err := json.Unmarshal(body, &msg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	payload, err := ParsePayload[PlanDuePayload](&msg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if payload.ScheduleID != scheduleID || payload.PlanID != planID {
		t.Errorf("payload = %+v", payload)
	}
}

func TestParsePayload_TypeMismatch(t *testing.T) {
	msg := Message{Payload: "just a string"}

	if _, err := ParsePayload[PlanDuePayload](&msg); err == nil {
		t.Fatal("expected error for mismatched payload shape")
	}
}
