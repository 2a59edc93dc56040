package listflow

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/me/mdconsole/internal/logging"
	"github.com/me/mdconsole/pkg/model"
)

// DeleteRequest identifies the record to delete and who is deleting it.
type DeleteRequest struct {
	ID    int64
	Actor string
}

// DeleteFunc calls the delete endpoint.
type DeleteFunc func(ctx context.Context, req DeleteRequest) (model.Envelope, error)

// Refresher re-fetches a list; *Lister satisfies it.
type Refresher interface {
	Refresh()
}

// DeleteFlow drives the confirm-then-delete lifecycle of a list screen:
//
//	IDLE --Request--> CONFIRM_PENDING --Cancel--> IDLE
//	CONFIRM_PENDING --Confirm--> SUBMITTING --> IDLE
//
// The captured target is cleared whatever the outcome.
type DeleteFlow[T model.Record] struct {
	mu        sync.Mutex
	entity    model.Entity
	del       DeleteFunc
	refresher Refresher
	notifier  Notifier
	identity  Identity
	logger    *slog.Logger
	state     model.DeleteState
	target    *T
}

// NewDeleteFlow creates an idle delete flow.
func NewDeleteFlow[T model.Record](e model.Entity, del DeleteFunc, r Refresher, n Notifier, id Identity, logger *slog.Logger) *DeleteFlow[T] {
	if logger == nil {
		logger = logging.Discard()
	}
	return &DeleteFlow[T]{
		entity:    e,
		del:       del,
		refresher: r,
		notifier:  n,
		identity:  id,
		logger:    logger.With("component", "delete", "entity", e.Name),
		state:     model.DeleteIdle,
	}
}

// State returns the current lifecycle state.
func (f *DeleteFlow[T]) State() model.DeleteState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Target returns the record awaiting confirmation, if any.
func (f *DeleteFlow[T]) Target() (T, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.target == nil {
		var zero T
		return zero, false
	}
	return *f.target, true
}

// Request captures rec and opens the confirmation. Requesting again while
// confirmation is pending replaces the target.
func (f *DeleteFlow[T]) Request(rec T) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.state.CanTransitionTo(model.DeleteConfirmPending) {
		return &model.InvalidTransitionError{Flow: "delete", From: f.state.String(), To: model.DeleteConfirmPending.String()}
	}
	f.state = model.DeleteConfirmPending
	f.target = &rec
	return nil
}

// Cancel closes the confirmation without deleting.
func (f *DeleteFlow[T]) Cancel() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state == model.DeleteConfirmPending {
		f.state = model.DeleteIdle
		f.target = nil
	}
}

// Confirm deletes the pending target. Notifications are emitted for every
// outcome; the returned error is for callers that need an exit status.
func (f *DeleteFlow[T]) Confirm(ctx context.Context) error {
	f.mu.Lock()
	if f.state != model.DeleteConfirmPending || f.target == nil {
		from := f.state
		f.mu.Unlock()
		return &model.InvalidTransitionError{Flow: "delete", From: from.String(), To: model.DeleteSubmitting.String()}
	}
	if err := checkIdentity(f.identity); err != nil {
		f.state = model.DeleteIdle
		f.target = nil
		f.mu.Unlock()
		f.notifier.Notify(model.LevelError, err.Error())
		return err
	}
	rec := *f.target
	f.state = model.DeleteSubmitting
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.state = model.DeleteIdle
		f.target = nil
		f.mu.Unlock()
	}()

	id := rec.RecordID()
	env, err := f.del(ctx, DeleteRequest{ID: id, Actor: f.identity.Actor()})
	if err != nil {
		f.logger.Error("delete failed", "id", id, "error", err)
		f.notifier.Notify(model.LevelError, GenericFailureText)
		return fmt.Errorf("delete %s %d: %w", f.entity.Name, id, err)
	}
	if !env.Header.OK() {
		f.logger.Warn("delete rejected", "id", id, "error_count", env.Header.ErrorCount)
		DispatchHeader(f.notifier, env.Header)
		return &model.BusinessError{Header: env.Header}
	}

	if !dispatchSuccess(f.notifier, env.Header, f.entity.Title+" deleted.") {
		f.logger.Error("delete returned unexpected response", "id", id, "messages", env.Header.Messages)
		return fmt.Errorf("delete %s %d: %w", f.entity.Name, id, model.ErrContract)
	}
	f.logger.Info("record deleted", "id", id)
	if f.refresher != nil {
		f.refresher.Refresh()
	}
	return nil
}
