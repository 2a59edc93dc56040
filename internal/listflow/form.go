package listflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/me/mdconsole/internal/logging"
	"github.com/me/mdconsole/pkg/model"
)

// Navigation delays after a successful save, long enough for the success
// notice to be read.
const (
	DefaultNavigateDelay = 1500 * time.Millisecond
	MinNavigateDelay     = 1200 * time.Millisecond
	MaxNavigateDelay     = 3 * time.Second
)

// ErrReasonRequired is returned by ConfirmReason when the reason is blank.
var ErrReasonRequired = errors.New("reason for change is required")

// SaveFunc calls a create or update endpoint.
type SaveFunc[T any] func(ctx context.Context, p model.Payload[T]) (model.Result[T], error)

// Navigator moves the console to another screen. state may carry a record
// to the destination.
type Navigator interface {
	Navigate(path string, state any)
}

// NavigatorFunc adapts a function to the Navigator interface.
type NavigatorFunc func(path string, state any)

func (f NavigatorFunc) Navigate(path string, state any) {
	f(path, state)
}

// FormConfig holds the collaborators shared by create and edit forms.
type FormConfig struct {
	Entity        model.Entity
	Notifier      Notifier
	Navigator     Navigator
	Identity      Identity
	Clock         Clock
	Logger        *slog.Logger
	ListRoute     string        // where to go after a successful save
	NavigateDelay time.Duration // clamped to [MinNavigateDelay, MaxNavigateDelay]
}

func (c FormConfig) withDefaults() FormConfig {
	if c.Clock == nil {
		c.Clock = RealClock()
	}
	if c.Logger == nil {
		c.Logger = logging.Discard()
	}
	if c.Navigator == nil {
		c.Navigator = NavigatorFunc(func(string, any) {})
	}
	if c.ListRoute == "" {
		c.ListRoute = "/" + c.Entity.Plural
	}
	c.NavigateDelay = ClampNavigateDelay(c.NavigateDelay)
	return c
}

// ClampNavigateDelay maps zero to the default and bounds everything else.
func ClampNavigateDelay(d time.Duration) time.Duration {
	switch {
	case d == 0:
		return DefaultNavigateDelay
	case d < MinNavigateDelay:
		return MinNavigateDelay
	case d > MaxNavigateDelay:
		return MaxNavigateDelay
	}
	return d
}

// form holds what create and edit forms have in common: the draft, the
// state, inline field errors and the save/notify/navigate tail.
type form[T model.Record] struct {
	mu          sync.Mutex
	cfg         FormConfig
	save        SaveFunc[T]
	logger      *slog.Logger
	draft       T
	state       model.FormState
	fieldErrors []model.FieldError
	navTimer    Timer
}

func (f *form[T]) Draft() T {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.draft
}

// SetDraft replaces the draft and clears inline errors.
func (f *form[T]) SetDraft(d T) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.draft = d
	f.fieldErrors = nil
}

// Update edits the draft in place.
func (f *form[T]) Update(fn func(*T)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(&f.draft)
	f.fieldErrors = nil
}

// State returns the current form state.
func (f *form[T]) State() model.FormState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// FieldErrors returns the inline validation cues from the last submit.
func (f *form[T]) FieldErrors() []model.FieldError {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.FieldError(nil), f.fieldErrors...)
}

// Close cancels a pending post-save navigation.
func (f *form[T]) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.navTimer != nil {
		f.navTimer.Stop()
		f.navTimer = nil
	}
}

// validateLocked runs client-side validation and records inline errors.
func (f *form[T]) validateLocked() error {
	err := f.draft.Validate()
	var ve *model.ValidationError
	if errors.As(err, &ve) {
		f.fieldErrors = ve.Fields
	} else {
		f.fieldErrors = nil
	}
	return err
}

// submit performs the save and interprets the envelope. The caller must
// have moved the form to FormSubmitting; on failure the form returns to
// FormEditing with the draft untouched.
func (f *form[T]) submit(ctx context.Context, p model.Payload[T], verb string, onSuccess func()) error {
	res, err := f.save(ctx, p)
	if err != nil {
		f.fail()
		f.logger.Error(verb+" failed", "error", err)
		f.cfg.Notifier.Notify(model.LevelError, GenericFailureText)
		return fmt.Errorf("%s %s: %w", verb, f.cfg.Entity.Name, err)
	}
	if !res.Header.OK() {
		f.fail()
		f.logger.Warn(verb+" rejected", "error_count", res.Header.ErrorCount)
		DispatchHeader(f.cfg.Notifier, res.Header)
		return &model.BusinessError{Header: res.Header}
	}
	if !dispatchSuccess(f.cfg.Notifier, res.Header, f.cfg.Entity.Title+" "+verb+"d.") {
		f.fail()
		f.logger.Error(verb+" returned unexpected response", "messages", res.Header.Messages)
		return fmt.Errorf("%s %s: %w", verb, f.cfg.Entity.Name, model.ErrContract)
	}

	f.mu.Lock()
	f.state = model.FormDone
	if res.Record != nil {
		f.draft = *res.Record
	}
	route := f.cfg.ListRoute
	f.navTimer = f.cfg.Clock.AfterFunc(f.cfg.NavigateDelay, func() {
		f.cfg.Navigator.Navigate(route, nil)
	})
	f.mu.Unlock()

	f.logger.Info("record "+verb+"d", "id", p.Record.RecordID())
	if onSuccess != nil {
		onSuccess()
	}
	return nil
}

func (f *form[T]) fail() {
	f.mu.Lock()
	f.state = model.FormEditing
	f.mu.Unlock()
}

// CreateForm collects a new record and posts it.
type CreateForm[T model.Record] struct {
	form[T]
}

// NewCreateForm creates a form with an empty draft.
func NewCreateForm[T model.Record](create SaveFunc[T], cfg FormConfig) *CreateForm[T] {
	cfg = cfg.withDefaults()
	return &CreateForm[T]{form: form[T]{
		cfg:    cfg,
		save:   create,
		logger: cfg.Logger.With("component", "create", "entity", cfg.Entity.Name),
		state:  model.FormEditing,
	}}
}

// Submit validates the draft and, when valid, calls the create endpoint.
// Invalid drafts return a *model.ValidationError and make no call.
func (f *CreateForm[T]) Submit(ctx context.Context) error {
	f.mu.Lock()
	if f.state != model.FormEditing {
		from := f.state
		f.mu.Unlock()
		return &model.InvalidTransitionError{Flow: "create", From: from.String(), To: model.FormSubmitting.String()}
	}
	if err := f.validateLocked(); err != nil {
		f.mu.Unlock()
		return err
	}
	if err := checkIdentity(f.cfg.Identity); err != nil {
		f.mu.Unlock()
		f.cfg.Notifier.Notify(model.LevelError, err.Error())
		return err
	}
	f.state = model.FormSubmitting
	p := model.Payload[T]{
		Record: f.draft,
		Audit: model.Audit{
			Actor:   f.cfg.Identity.Actor(),
			AuditOn: f.cfg.Clock.Now().UTC(),
		},
	}
	f.mu.Unlock()

	return f.submit(ctx, p, "create", nil)
}

// EditForm edits an existing record. Saving requires a change against the
// original snapshot and a non-empty reason for change.
type EditForm[T model.Record] struct {
	form[T]
	snapshot   T
	handoffs   HandoffStore
	handoffKey string
}

// NewEditForm creates a form pre-populated with initial.
func NewEditForm[T model.Record](update SaveFunc[T], initial T, cfg FormConfig) *EditForm[T] {
	cfg = cfg.withDefaults()
	return &EditForm[T]{
		form: form[T]{
			cfg:    cfg,
			save:   update,
			logger: cfg.Logger.With("component", "edit", "entity", cfg.Entity.Name, "id", initial.RecordID()),
			draft:  initial,
			state:  model.FormEditing,
		},
		snapshot: initial,
	}
}

// NewEditFormFromHandoff pre-populates the form from the handoff stored
// under key. The handoff is cleared once the update succeeds.
func NewEditFormFromHandoff[T model.Record](ctx context.Context, update SaveFunc[T], store HandoffStore, key string, cfg FormConfig) (*EditForm[T], error) {
	rec, err := ReadSelection[T](ctx, store, key)
	if err != nil {
		return nil, err
	}
	f := NewEditForm(update, rec, cfg)
	f.handoffs = store
	f.handoffKey = key
	return f, nil
}

// Original returns the snapshot the draft is compared against.
func (f *EditForm[T]) Original() T {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snapshot
}

// Changed reports whether the draft differs from the original snapshot.
func (f *EditForm[T]) Changed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return !reflect.DeepEqual(f.draft, f.snapshot)
}

// Submit validates the draft. An unchanged draft produces one
// informational notice and no call; a changed one moves the form to
// REASON_PENDING, where ConfirmReason performs the update.
func (f *EditForm[T]) Submit(ctx context.Context) error {
	f.mu.Lock()
	if f.state != model.FormEditing {
		from := f.state
		f.mu.Unlock()
		return &model.InvalidTransitionError{Flow: "edit", From: from.String(), To: model.FormReasonPending.String()}
	}
	if err := f.validateLocked(); err != nil {
		f.mu.Unlock()
		return err
	}
	if reflect.DeepEqual(f.draft, f.snapshot) {
		f.mu.Unlock()
		f.cfg.Notifier.Notify(model.LevelInformation, NoChangesText)
		return nil
	}
	f.state = model.FormReasonPending
	f.mu.Unlock()
	return nil
}

// CancelReason leaves REASON_PENDING and returns to editing.
func (f *EditForm[T]) CancelReason() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state == model.FormReasonPending {
		f.state = model.FormEditing
	}
}

// ConfirmReason supplies the reason for change and calls the update
// endpoint. A blank reason produces one error notice, keeps the form in
// REASON_PENDING and returns ErrReasonRequired.
func (f *EditForm[T]) ConfirmReason(ctx context.Context, reason string) error {
	f.mu.Lock()
	if f.state != model.FormReasonPending {
		from := f.state
		f.mu.Unlock()
		return &model.InvalidTransitionError{Flow: "edit", From: from.String(), To: model.FormSubmitting.String()}
	}
	// The draft may have been edited again while the reason was pending.
	if err := f.validateLocked(); err != nil {
		f.state = model.FormEditing
		f.mu.Unlock()
		return err
	}
	if reflect.DeepEqual(f.draft, f.snapshot) {
		f.state = model.FormEditing
		f.mu.Unlock()
		f.cfg.Notifier.Notify(model.LevelInformation, NoChangesText)
		return nil
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		f.mu.Unlock()
		f.cfg.Notifier.Notify(model.LevelError, ReasonRequiredText)
		return ErrReasonRequired
	}
	if err := checkIdentity(f.cfg.Identity); err != nil {
		f.state = model.FormEditing
		f.mu.Unlock()
		f.cfg.Notifier.Notify(model.LevelError, err.Error())
		return err
	}
	f.state = model.FormSubmitting
	p := model.Payload[T]{
		Record: f.draft,
		Audit: model.Audit{
			Actor:     f.cfg.Identity.Actor(),
			Signature: f.cfg.Identity.Signature(),
			Reason:    reason,
			AuditOn:   f.cfg.Clock.Now().UTC(),
		},
	}
	f.mu.Unlock()

	return f.submit(ctx, p, "update", func() {
		f.mu.Lock()
		f.snapshot = f.draft
		store, key := f.handoffs, f.handoffKey
		f.mu.Unlock()
		if store != nil {
			if err := store.Clear(ctx, key); err != nil {
				f.logger.Warn("clear handoff", "key", key, "error", err)
			}
		}
	})
}
