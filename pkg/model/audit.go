package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// Stamp holds the server-maintained audit columns returned with every record.
type Stamp struct {
	CreatedBy  string    `json:"createdBy,omitempty"`
	ModifiedBy string    `json:"modifiedBy,omitempty"`
	ModifiedOn time.Time `json:"modifiedOn,omitzero"`
}

// Audit is attached by the console to every create and update request.
// Actor and Signature come from the identity provider; Reason is only set
// on updates.
type Audit struct {
	Actor     string    `json:"actor"`
	Signature string    `json:"signature,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	AuditOn   time.Time `json:"auditOn"`
}

// Payload is a mutation request body: the record's fields with the audit
// fields merged into the same JSON object.
type Payload[T any] struct {
	Record T
	Audit  Audit
}

func (p Payload[T]) MarshalJSON() ([]byte, error) {
	rec, err := json.Marshal(p.Record)
	if err != nil {
		return nil, err
	}
	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(rec, &fields); err != nil {
		return nil, fmt.Errorf("payload record must encode as an object: %w", err)
	}
	audit, err := json.Marshal(p.Audit)
	if err != nil {
		return nil, err
	}
	var auditFields map[string]json.RawMessage
	if err := json.Unmarshal(audit, &auditFields); err != nil {
		return nil, err
	}
	for k, v := range auditFields {
		fields[k] = v
	}
	return json.Marshal(fields)
}

func (p *Payload[T]) UnmarshalJSON(b []byte) error {
	if err := json.Unmarshal(b, &p.Record); err != nil {
		return err
	}
	return json.Unmarshal(b, &p.Audit)
}
