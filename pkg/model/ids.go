package model

import (
	"encoding/json"
	"strconv"
	"strings"
)

// ParseIDList splits a comma-joined id list, dropping blanks and any entry
// that is not a base-10 integer.
func ParseIDList(s string) []int64 {
	var ids []int64
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

// IDList is a list of numeric identifiers that travels as a comma-joined
// string on the wire. It also accepts a JSON array of numbers or numeric strings.
type IDList []int64

func (l IDList) String() string {
	parts := make([]string, len(l))
	for i, id := range l {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ",")
}

func (l IDList) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.String())
}

func (l *IDList) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*l = ParseIDList(s)
		return nil
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		*l = nil
		return nil
	}
	out := make(IDList, 0, len(raw))
	for _, r := range raw {
		var n int64
		if err := json.Unmarshal(r, &n); err == nil {
			out = append(out, n)
			continue
		}
		var s string
		if err := json.Unmarshal(r, &s); err == nil {
			out = append(out, ParseIDList(s)...)
		}
	}
	*l = out
	return nil
}
