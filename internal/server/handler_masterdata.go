package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/me/mdconsole/internal/store"
	"github.com/me/mdconsole/pkg/model"
)

// Mutation outcomes recorded in metrics.
const (
	outcomeOK       = "ok"
	outcomeRejected = "business_error"
	outcomeFailed   = "error"
)

// resource serves the REST endpoints of one master-data entity.
type resource[T model.Record, PT model.RecordPtr[T]] struct {
	s      *Server
	entity model.Entity
	repo   store.Repository[T]
	logger *slog.Logger
}

func newResource[T model.Record, PT model.RecordPtr[T]](s *Server, e model.Entity, repo store.Repository[T]) *resource[T, PT] {
	return &resource[T, PT]{s: s, entity: e, repo: repo, logger: s.logger.With("entity", e.Name)}
}

func (res *resource[T, PT]) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := model.ListOptions{Search: strings.TrimSpace(q.Get("searchText"))}
	var msgs []model.Message
	var err error
	if opts.PageNumber, err = intParam(q.Get("pageNumber"), 1); err != nil || opts.PageNumber < 1 {
		msgs = append(msgs, msg(model.LevelError, "Page number must be a positive integer."))
	}
	if opts.PageSize, err = intParam(q.Get("pageSize"), model.DefaultPageSize); err != nil || opts.PageSize < 1 || opts.PageSize > model.MaxPageSize {
		msgs = append(msgs, msg(model.LevelError, fmt.Sprintf("Page size must be between 1 and %d.", model.MaxPageSize)))
	}
	if len(msgs) > 0 {
		respondMessages(w, http.StatusBadRequest, msgs...)
		return
	}

	items, total, err := res.repo.List(r.Context(), opts)
	if err != nil {
		res.internal(w, r, "list", err)
		return
	}
	respondList(w, res.entity.Plural, items, total)
}

func (res *resource[T, PT]) handleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := res.pathID(w, r)
	if !ok {
		return
	}
	rec, err := res.repo.Get(r.Context(), id)
	if err != nil {
		res.internal(w, r, "get", err)
		return
	}
	if rec == nil {
		respondError(w, http.StatusNotFound, fmt.Sprintf("%s %d not found.", res.entity.Title, id))
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"header": header(), res.entity.Name: rec})
}

func (res *resource[T, PT]) handleCreate(w http.ResponseWriter, r *http.Request) {
	p, ok := res.decode(w, r, "create")
	if !ok {
		return
	}
	if err := p.Record.Validate(); err != nil {
		res.reject(w, "create", err)
		return
	}
	if err := res.repo.Create(r.Context(), &p.Record, p.Audit); err != nil {
		res.storeError(w, r, "create", p.Record.RecordID(), err)
		return
	}
	res.s.recordMutation(res.entity.Name, "create", outcomeOK)
	res.logger.Info("record created", "id", p.Record.RecordID(), "actor", p.Audit.Actor)
	respondRecord(w, http.StatusCreated, res.entity.Name, p.Record, res.entity.Title+" created successfully.")
}

func (res *resource[T, PT]) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := res.pathID(w, r)
	if !ok {
		return
	}
	p, ok := res.decode(w, r, "update")
	if !ok {
		return
	}
	if got := p.Record.RecordID(); got != 0 && got != id {
		res.s.recordMutation(res.entity.Name, "update", outcomeRejected)
		respondError(w, http.StatusBadRequest, fmt.Sprintf("%s id %d in body does not match %d in path.", res.entity.Title, got, id))
		return
	}
	if strings.TrimSpace(p.Audit.Reason) == "" {
		res.reject(w, "update", model.NewValidationError(model.FieldError{Field: "reason", Message: "for change is required"}))
		return
	}
	if err := p.Record.Validate(); err != nil {
		res.reject(w, "update", err)
		return
	}
	PT(&p.Record).SetRecordID(id)
	if err := res.repo.Update(r.Context(), &p.Record, p.Audit); err != nil {
		res.storeError(w, r, "update", id, err)
		return
	}
	res.s.recordMutation(res.entity.Name, "update", outcomeOK)
	res.logger.Info("record updated", "id", id, "actor", p.Audit.Actor, "reason", p.Audit.Reason)
	respondRecord(w, http.StatusOK, res.entity.Name, p.Record, res.entity.Title+" updated successfully.")
}

func (res *resource[T, PT]) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := res.pathID(w, r)
	if !ok {
		return
	}
	actor := strings.TrimSpace(r.URL.Query().Get("actor"))
	if actor == "" {
		res.s.recordMutation(res.entity.Name, "delete", outcomeRejected)
		respondError(w, http.StatusBadRequest, "Actor is required.")
		return
	}
	audit := model.Audit{Actor: actor, AuditOn: res.s.now().UTC()}
	if err := res.repo.Delete(r.Context(), id, audit); err != nil {
		res.storeError(w, r, "delete", id, err)
		return
	}
	res.s.recordMutation(res.entity.Name, "delete", outcomeOK)
	res.logger.Info("record deleted", "id", id, "actor", actor)
	respondMessages(w, http.StatusOK, msg(model.LevelSuccess, res.entity.Title+" deleted successfully."))
}

// decode reads a mutation payload and checks the audit actor.
func (res *resource[T, PT]) decode(w http.ResponseWriter, r *http.Request, action string) (model.Payload[T], bool) {
	var p model.Payload[T]
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		res.s.recordMutation(res.entity.Name, action, outcomeRejected)
		respondError(w, http.StatusBadRequest, "Invalid JSON body: "+err.Error())
		return p, false
	}
	if strings.TrimSpace(p.Audit.Actor) == "" {
		res.s.recordMutation(res.entity.Name, action, outcomeRejected)
		respondError(w, http.StatusBadRequest, "Actor is required.")
		return p, false
	}
	if p.Audit.AuditOn.IsZero() {
		p.Audit.AuditOn = res.s.now().UTC()
	}
	return p, true
}

func (res *resource[T, PT]) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("Invalid %s id.", res.entity.Title))
		return 0, false
	}
	return id, true
}

func (res *resource[T, PT]) reject(w http.ResponseWriter, action string, err error) {
	res.s.recordMutation(res.entity.Name, action, outcomeRejected)
	var ve *model.ValidationError
	if errors.As(err, &ve) {
		respondValidation(w, ve)
		return
	}
	respondError(w, http.StatusBadRequest, err.Error())
}

// storeError maps repository errors to business-error envelopes.
func (res *resource[T, PT]) storeError(w http.ResponseWriter, r *http.Request, action string, id int64, err error) {
	title := res.entity.Title
	switch {
	case errors.Is(err, store.ErrNotFound):
		res.s.recordMutation(res.entity.Name, action, outcomeRejected)
		respondError(w, http.StatusNotFound, fmt.Sprintf("%s %d not found.", title, id))
	case errors.Is(err, store.ErrDuplicate):
		res.s.recordMutation(res.entity.Name, action, outcomeRejected)
		respondError(w, http.StatusConflict, sentence(strings.TrimPrefix(err.Error(), store.ErrDuplicate.Error()+": ")))
	case errors.Is(err, store.ErrInUse):
		res.s.recordMutation(res.entity.Name, action, outcomeRejected)
		respondMessages(w, http.StatusConflict,
			msg(model.LevelError, fmt.Sprintf("%s %d is still in use and cannot be deleted.", title, id)),
			msg(model.LevelWarning, "Remove the records that reference it first."))
	case errors.Is(err, store.ErrReference):
		res.s.recordMutation(res.entity.Name, action, outcomeRejected)
		respondError(w, http.StatusUnprocessableEntity, sentence(strings.TrimPrefix(err.Error(), store.ErrReference.Error()+": ")+" does not exist"))
	default:
		res.s.recordMutation(res.entity.Name, action, outcomeFailed)
		res.internal(w, r, action, err)
	}
}

func (res *resource[T, PT]) internal(w http.ResponseWriter, r *http.Request, action string, err error) {
	res.logger.Error(action+" failed", "error", err, "request_id", RequestIDFromContext(r.Context()))
	respondError(w, http.StatusInternalServerError, "Internal server error.")
}

func (s *Server) recordMutation(entity, action, outcome string) {
	if s.metrics != nil {
		s.metrics.RecordMutation(entity, action, outcome)
	}
}

func intParam(v string, def int) (int, error) {
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}

// sentence capitalises s and ends it with a full stop.
func sentence(s string) string {
	if s == "" {
		return s
	}
	s = strings.ToUpper(s[:1]) + s[1:]
	if !strings.HasSuffix(s, ".") {
		s += "."
	}
	return s
}
