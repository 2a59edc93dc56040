package listflow

import (
	"github.com/me/mdconsole/pkg/model"
)

// User-facing texts for failures whose detail is only logged.
const (
	GenericFailureText     = "Something went wrong. Please try again."
	UnexpectedResponseText = "Unexpected response from server."
	NoChangesText          = "No changes to save."
	ReasonRequiredText     = "A reason for change is required."
)

// Notifier receives fire-and-forget user notifications (toasts).
type Notifier interface {
	Notify(level model.MessageLevel, text string)
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(level model.MessageLevel, text string)

func (f NotifierFunc) Notify(level model.MessageLevel, text string) {
	f(level, text)
}

// DispatchHeader surfaces every message in h, in order, at its own level.
//
// On a successful header whose first message carries no recognised level
// the response is treated as unexpected and a single generic error is shown
// instead. A failed header with no messages gets a generic error so the
// failure is never silent. Later messages with no level fall back to Error
// on failure and Information on success.
func DispatchHeader(n Notifier, h model.Header) {
	if len(h.Messages) == 0 {
		if !h.OK() {
			n.Notify(model.LevelError, GenericFailureText)
		}
		return
	}
	if h.OK() && h.Messages[0].Level == model.LevelUnknown {
		n.Notify(model.LevelError, UnexpectedResponseText)
		return
	}
	fallback := model.LevelInformation
	if !h.OK() {
		fallback = model.LevelError
	}
	for _, m := range h.Messages {
		lvl := m.Level
		if lvl == model.LevelUnknown {
			lvl = fallback
		}
		n.Notify(lvl, m.Text)
	}
}

// dispatchSuccess shows the server's messages for a successful mutation, or
// defaultText when the server sent none. Informational messages are promoted
// to Success so a completed mutation always reads as a success notice.
// It returns false when the response is unexpected, in which case the
// caller must treat the mutation as failed.
func dispatchSuccess(n Notifier, h model.Header, defaultText string) bool {
	if len(h.Messages) == 0 {
		n.Notify(model.LevelSuccess, defaultText)
		return true
	}
	if h.Messages[0].Level == model.LevelUnknown {
		n.Notify(model.LevelError, UnexpectedResponseText)
		return false
	}
	for _, m := range h.Messages {
		lvl := m.Level
		if lvl == model.LevelInformation || lvl == model.LevelUnknown {
			lvl = model.LevelSuccess
		}
		n.Notify(lvl, m.Text)
	}
	return true
}
