package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// Handoff carries the record a list screen selected over to the screen that
// edits it. It is written once by the list screen and read by the
// destination, and may be persisted so the destination survives a restart.
type Handoff struct {
	Workflow  string            `json:"workflow"`
	RecordID  int64             `json:"recordId"`
	Display   map[string]string `json:"display,omitempty"`
	Record    json.RawMessage   `json:"record"`
	CreatedAt time.Time         `json:"createdAt"`
	ExpiresAt time.Time         `json:"expiresAt"`
}

// HandoffDuration is how long a persisted handoff stays readable.
const HandoffDuration = 24 * time.Hour

// NewHandoff snapshots rec for the named workflow.
func NewHandoff[T Record](workflow string, e Entity, rec T, now time.Time) (*Handoff, error) {
	raw, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("encode %s handoff: %w", e.Name, err)
	}
	return &Handoff{
		Workflow:  workflow,
		RecordID:  rec.RecordID(),
		Display:   Display(e, rec),
		Record:    raw,
		CreatedAt: now,
		ExpiresAt: now.Add(HandoffDuration),
	}, nil
}

// IsExpired reports whether the handoff is past its expiry at now.
func (h *Handoff) IsExpired(now time.Time) bool {
	return !h.ExpiresAt.IsZero() && now.After(h.ExpiresAt)
}

// DecodeHandoff restores the record carried by h.
func DecodeHandoff[T Record](h *Handoff) (T, error) {
	var rec T
	if h == nil {
		return rec, fmt.Errorf("no handoff")
	}
	if err := json.Unmarshal(h.Record, &rec); err != nil {
		return rec, fmt.Errorf("decode %s handoff: %w", h.Workflow, err)
	}
	if rec.RecordID() != h.RecordID {
		return rec, fmt.Errorf("handoff %s: record id %d does not match %d", h.Workflow, rec.RecordID(), h.RecordID)
	}
	return rec, nil
}
