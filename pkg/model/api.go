package model

import (
	"encoding/json"
	"fmt"
	"strings"
)

// MessageLevel is the severity attached to a user-facing envelope message.
type MessageLevel int

const (
	LevelUnknown MessageLevel = iota
	LevelInformation
	LevelWarning
	LevelError
	LevelSuccess
)

var levelNames = map[MessageLevel]string{
	LevelInformation: "Information",
	LevelWarning:     "Warning",
	LevelError:       "Error",
	LevelSuccess:     "Success",
}

// ParseMessageLevel matches s case-insensitively against the known level names.
// Unrecognized or empty values return LevelUnknown.
func ParseMessageLevel(s string) MessageLevel {
	s = strings.TrimSpace(s)
	for lvl, name := range levelNames {
		if strings.EqualFold(s, name) {
			return lvl
		}
	}
	return LevelUnknown
}

func (l MessageLevel) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return ""
}

// MarshalJSON encodes the level by name. LevelUnknown encodes as an empty string.
func (l MessageLevel) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.String())
}

// UnmarshalJSON never fails: anything that is not a known level name decodes
// to LevelUnknown so one bad message cannot poison the whole envelope.
func (l *MessageLevel) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		*l = LevelUnknown
		return nil
	}
	*l = ParseMessageLevel(s)
	return nil
}

// Message is a single user-facing notice carried in an envelope header.
type Message struct {
	Level MessageLevel `json:"messageLevel"`
	Text  string       `json:"messageText"`
}

// Header is the status block shared by every endpoint response.
// ErrorCount is the discriminant: zero means the operation succeeded.
type Header struct {
	ErrorCount int       `json:"errorCount"`
	Messages   []Message `json:"messages"`
}

// OK reports whether the envelope represents a successful operation.
func (h Header) OK() bool {
	return h.ErrorCount == 0
}

// Envelope is the standard API response wrapper without a payload.
type Envelope struct {
	Header Header `json:"header"`
}

// Page is a decoded list response. Items and Total are only populated when
// the header reports success.
type Page[T any] struct {
	Header Header
	Items  []T
	Total  int
}

// Result is a decoded create/update response. Record is nil when the
// server did not echo the record back or the header reports failure.
type Result[T any] struct {
	Header Header
	Record *T
}

// DecodeEnvelope parses the header of a response body.
func DecodeEnvelope(body []byte) (Envelope, error) {
	fields, err := splitEnvelope(body)
	if err != nil {
		return Envelope{}, err
	}
	h, err := decodeHeader(fields)
	return Envelope{Header: h}, err
}

// DecodePage parses a list response whose records live under listField.
// A missing or non-array list field yields an empty list; a missing or
// non-numeric totalRecord on a successful response is a contract violation.
func DecodePage[T any](body []byte, listField string) (Page[T], error) {
	fields, err := splitEnvelope(body)
	if err != nil {
		return Page[T]{}, err
	}
	h, err := decodeHeader(fields)
	if err != nil {
		return Page[T]{}, err
	}
	page := Page[T]{Header: h}
	if !h.OK() {
		return page, nil
	}

	var elems []json.RawMessage
	if raw, ok := fields[listField]; ok {
		if err := json.Unmarshal(raw, &elems); err != nil {
			elems = nil
		}
	}
	page.Items = make([]T, 0, len(elems))
	for i, raw := range elems {
		var item T
		if err := json.Unmarshal(raw, &item); err != nil {
			return Page[T]{}, fmt.Errorf("%w: %s[%d]: %v", ErrContract, listField, i, err)
		}
		page.Items = append(page.Items, item)
	}

	raw, ok := fields["totalRecord"]
	if !ok {
		return Page[T]{}, fmt.Errorf("%w: missing totalRecord", ErrContract)
	}
	if err := json.Unmarshal(raw, &page.Total); err != nil || page.Total < 0 {
		return Page[T]{}, fmt.Errorf("%w: invalid totalRecord %s", ErrContract, string(raw))
	}
	return page, nil
}

// DecodeResult parses a create/update response whose record, if any, lives
// under recordField.
func DecodeResult[T any](body []byte, recordField string) (Result[T], error) {
	fields, err := splitEnvelope(body)
	if err != nil {
		return Result[T]{}, err
	}
	h, err := decodeHeader(fields)
	if err != nil {
		return Result[T]{}, err
	}
	res := Result[T]{Header: h}
	if !h.OK() {
		return res, nil
	}
	raw, ok := fields[recordField]
	if !ok || string(raw) == "null" {
		return res, nil
	}
	var rec T
	if err := json.Unmarshal(raw, &rec); err != nil {
		return Result[T]{}, fmt.Errorf("%w: %s: %v", ErrContract, recordField, err)
	}
	res.Record = &rec
	return res, nil
}

func splitEnvelope(body []byte) (map[string]json.RawMessage, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrContract, err)
	}
	if fields == nil {
		return nil, fmt.Errorf("%w: empty body", ErrContract)
	}
	return fields, nil
}

func decodeHeader(fields map[string]json.RawMessage) (Header, error) {
	raw, ok := fields["header"]
	if !ok || string(raw) == "null" {
		return Header{}, fmt.Errorf("%w: missing header", ErrContract)
	}
	var h Header
	if err := json.Unmarshal(raw, &h); err != nil {
		return Header{}, fmt.Errorf("%w: header: %v", ErrContract, err)
	}
	if h.ErrorCount < 0 {
		return Header{}, fmt.Errorf("%w: negative errorCount", ErrContract)
	}
	return h, nil
}
