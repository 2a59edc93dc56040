package model

import "testing"

func TestDeleteState_Transitions(t *testing.T) {
	tests := []struct {
		from, to DeleteState
		want     bool
	}{
		{DeleteIdle, DeleteConfirmPending, true},
		{DeleteIdle, DeleteSubmitting, false},
		{DeleteConfirmPending, DeleteIdle, true},
		{DeleteConfirmPending, DeleteSubmitting, true},
		{DeleteSubmitting, DeleteIdle, true},
		{DeleteSubmitting, DeleteConfirmPending, false},
	}
	for _, tt := range tests {
		if got := tt.from.CanTransitionTo(tt.to); got != tt.want {
			t.Errorf("%s → %s = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestFormState_Transitions(t *testing.T) {
	tests := []struct {
		from, to FormState
		want     bool
	}{
		{FormEditing, FormReasonPending, true},
		{FormEditing, FormDone, false},
		{FormReasonPending, FormSubmitting, true},
		{FormSubmitting, FormDone, true},
		{FormDone, FormEditing, false},
	}
	for _, tt := range tests {
		if got := tt.from.CanTransitionTo(tt.to); got != tt.want {
			t.Errorf("%s → %s = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
	if !FormDone.IsTerminal() || FormEditing.IsTerminal() {
		t.Error("only FormDone is terminal")
	}
}

func TestInvalidTransitionError(t *testing.T) {
	err := &InvalidTransitionError{Flow: "delete", From: "IDLE", To: "SUBMITTING"}
	want := "invalid delete transition: IDLE → SUBMITTING"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}
