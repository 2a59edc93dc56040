package model

import (
	"encoding/json"
	"testing"
	"time"
)

func TestPayload_MergesAuditFields(t *testing.T) {
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	p := Payload[Plant]{
		Record: Plant{ID: 3, Code: "P3", Name: "North"},
		Audit:  Audit{Actor: "qa.lead", Signature: "sig", Reason: "typo", AuditOn: at},
	}
	b, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var flat map[string]any
	if err := json.Unmarshal(b, &flat); err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"plantId", "plantCode", "plantName", "actor", "signature", "reason", "auditOn"} {
		if _, ok := flat[key]; !ok {
			t.Errorf("payload missing %q: %s", key, b)
		}
	}

	var back Payload[Plant]
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if back.Record.Code != "P3" || back.Audit.Reason != "typo" || !back.Audit.AuditOn.Equal(at) {
		t.Errorf("round trip = %+v", back)
	}
}

func TestHandoff_RoundTrip(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	rec := PlantAssignment{ID: 9, PlantID: 2, PlantName: "South", UserIDs: IDList{1, 2}}
	h, err := NewHandoff("plant-assignment", PlantAssignmentEntity, rec, now)
	if err != nil {
		t.Fatalf("NewHandoff: %v", err)
	}
	if h.Display["PLANT NAME"] != "South" {
		t.Errorf("Display = %v", h.Display)
	}
	got, err := DecodeHandoff[PlantAssignment](h)
	if err != nil {
		t.Fatalf("DecodeHandoff: %v", err)
	}
	if got.ID != 9 || len(got.UserIDs) != 2 {
		t.Errorf("decoded = %+v", got)
	}
	if h.IsExpired(now.Add(time.Hour)) {
		t.Error("handoff expired too early")
	}
	if !h.IsExpired(now.Add(HandoffDuration + time.Second)) {
		t.Error("handoff should expire after HandoffDuration")
	}
}
