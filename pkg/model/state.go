package model

// DebounceState is the lifecycle state of the search debounce.
type DebounceState string

const (
	DebounceIdle      DebounceState = "IDLE"
	DebouncePending   DebounceState = "PENDING"
	DebounceCommitted DebounceState = "COMMITTED"
)

func (s DebounceState) String() string {
	return string(s)
}

// DeleteState represents the lifecycle state of a delete confirmation.
type DeleteState string

const (
	DeleteIdle           DeleteState = "IDLE"
	DeleteConfirmPending DeleteState = "CONFIRM_PENDING"
	DeleteSubmitting     DeleteState = "SUBMITTING"
)

func (s DeleteState) String() string {
	return string(s)
}

// ValidDeleteTransitions defines the allowed state transitions for delete flows.
var ValidDeleteTransitions = map[DeleteState][]DeleteState{
	DeleteIdle:           {DeleteConfirmPending},
	DeleteConfirmPending: {DeleteIdle, DeleteSubmitting, DeleteConfirmPending},
	DeleteSubmitting:     {DeleteIdle},
}

// CanTransitionTo returns true if moving from the current state to next is valid.
func (s DeleteState) CanTransitionTo(next DeleteState) bool {
	for _, allowed := range ValidDeleteTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// FormState represents the lifecycle state of a create or edit form.
type FormState string

const (
	FormEditing       FormState = "EDITING"
	FormReasonPending FormState = "REASON_PENDING"
	FormSubmitting    FormState = "SUBMITTING"
	FormDone          FormState = "DONE"
)

func (s FormState) String() string {
	return string(s)
}

// IsTerminal returns true once the form has been saved successfully.
func (s FormState) IsTerminal() bool {
	return s == FormDone
}

// ValidFormTransitions defines the allowed state transitions for forms.
// Create forms never enter FormReasonPending.
var ValidFormTransitions = map[FormState][]FormState{
	FormEditing:       {FormReasonPending, FormSubmitting},
	FormReasonPending: {FormEditing, FormSubmitting},
	FormSubmitting:    {FormEditing, FormReasonPending, FormDone},
}

// CanTransitionTo returns true if moving from the current state to next is valid.
func (s FormState) CanTransitionTo(next FormState) bool {
	for _, allowed := range ValidFormTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}
