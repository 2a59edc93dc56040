package model

import (
	"errors"
	"fmt"
	"testing"
)

func TestValidationError(t *testing.T) {
	err := Designation{Code: "  ", Name: "Operator"}.Validate()
	if err == nil {
		t.Fatal("expected validation error for blank code")
	}
	if !IsValidation(fmt.Errorf("wrapped: %w", err)) {
		t.Error("IsValidation should see through wrapping")
	}
	var ve *ValidationError
	if !errors.As(err, &ve) || len(ve.Fields) != 1 || ve.Fields[0].Field != "designationCode" {
		t.Errorf("fields = %+v, want designationCode only", ve)
	}
}

func TestNewValidationError_Empty(t *testing.T) {
	if err := NewValidationError(); err != nil {
		t.Errorf("NewValidationError() = %v, want nil", err)
	}
}

func TestBusinessError_Error(t *testing.T) {
	err := &BusinessError{Header: Header{ErrorCount: 1, Messages: []Message{
		{Level: LevelWarning, Text: "careful"},
		{Level: LevelError, Text: "Code already exists"},
	}}}
	if got := err.Error(); got != "Code already exists" {
		t.Errorf("Error() = %q", got)
	}

	err = &BusinessError{Header: Header{ErrorCount: 2}}
	if got := err.Error(); got != "request rejected with 2 error(s)" {
		t.Errorf("Error() = %q", got)
	}
}

func TestRecordValidate(t *testing.T) {
	tests := []struct {
		name    string
		rec     Record
		wantErr bool
	}{
		{"designation ok", Designation{Code: "OP", Name: "Operator"}, false},
		{"plant missing name", Plant{Code: "P1"}, true},
		{"assignment no users", PlantAssignment{PlantID: 3}, true},
		{"assignment ok", PlantAssignment{PlantID: 3, UserIDs: IDList{4}}, false},
		{"document missing version", Document{Number: "SOP-1", Title: "Cleaning"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.rec.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
