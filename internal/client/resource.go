package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/me/mdconsole/internal/listflow"
	"github.com/me/mdconsole/pkg/model"
)

// Resource binds one entity's REST endpoints to the workflow collaborator
// contracts: Fetch is a listflow.FetchFunc, Create and Update are
// listflow.SaveFuncs and Delete is a listflow.DeleteFunc.
type Resource[T model.Record] struct {
	client *Client
	entity model.Entity
}

// NewResource creates the binding for entity e.
func NewResource[T model.Record](c *Client, e model.Entity) *Resource[T] {
	return &Resource[T]{client: c, entity: e}
}

// Entity returns the bound entity.
func (r *Resource[T]) Entity() model.Entity {
	return r.entity
}

func (r *Resource[T]) path() string {
	return "/api/v1/" + r.entity.Plural
}

func (r *Resource[T]) itemPath(id int64) string {
	return r.path() + "/" + strconv.FormatInt(id, 10)
}

// Fetch loads one page. Blank search text is omitted from the query.
func (r *Resource[T]) Fetch(ctx context.Context, pageNumber, pageSize int, search string) (model.Page[T], error) {
	q := url.Values{}
	q.Set("pageNumber", strconv.Itoa(pageNumber))
	q.Set("pageSize", strconv.Itoa(pageSize))
	if s := strings.TrimSpace(search); s != "" {
		q.Set("searchText", s)
	}
	resp, err := r.client.do(ctx, http.MethodGet, r.path(), q, nil)
	if err != nil {
		return model.Page[T]{}, fmt.Errorf("list %s: %w", r.entity.Plural, err)
	}
	page, err := model.DecodePage[T](resp.Body, r.entity.Plural)
	if err != nil {
		return model.Page[T]{}, r.decodeErr("list", resp, err)
	}
	return page, nil
}

// Get loads one record. A business error (e.g. not found) comes back in
// the header with a nil Record.
func (r *Resource[T]) Get(ctx context.Context, id int64) (model.Result[T], error) {
	resp, err := r.client.do(ctx, http.MethodGet, r.itemPath(id), nil, nil)
	if err != nil {
		return model.Result[T]{}, fmt.Errorf("get %s %d: %w", r.entity.Name, id, err)
	}
	res, err := model.DecodeResult[T](resp.Body, r.entity.Name)
	if err != nil {
		return model.Result[T]{}, r.decodeErr("get", resp, err)
	}
	return res, nil
}

// Create posts a new record.
func (r *Resource[T]) Create(ctx context.Context, p model.Payload[T]) (model.Result[T], error) {
	resp, err := r.client.do(ctx, http.MethodPost, r.path(), nil, p)
	if err != nil {
		return model.Result[T]{}, fmt.Errorf("create %s: %w", r.entity.Name, err)
	}
	res, err := model.DecodeResult[T](resp.Body, r.entity.Name)
	if err != nil {
		return model.Result[T]{}, r.decodeErr("create", resp, err)
	}
	return res, nil
}

// Update puts the record identified by p.Record.RecordID().
func (r *Resource[T]) Update(ctx context.Context, p model.Payload[T]) (model.Result[T], error) {
	id := p.Record.RecordID()
	if id <= 0 {
		return model.Result[T]{}, model.NewValidationError(model.FieldError{Field: r.entity.Name + "Id", Message: "is required for update"})
	}
	resp, err := r.client.do(ctx, http.MethodPut, r.itemPath(id), nil, p)
	if err != nil {
		return model.Result[T]{}, fmt.Errorf("update %s %d: %w", r.entity.Name, id, err)
	}
	res, err := model.DecodeResult[T](resp.Body, r.entity.Name)
	if err != nil {
		return model.Result[T]{}, r.decodeErr("update", resp, err)
	}
	return res, nil
}

// Delete removes the record named by req.
func (r *Resource[T]) Delete(ctx context.Context, req listflow.DeleteRequest) (model.Envelope, error) {
	q := url.Values{}
	if req.Actor != "" {
		q.Set("actor", req.Actor)
	}
	resp, err := r.client.do(ctx, http.MethodDelete, r.itemPath(req.ID), q, nil)
	if err != nil {
		return model.Envelope{}, fmt.Errorf("delete %s %d: %w", r.entity.Name, req.ID, err)
	}
	env, err := model.DecodeEnvelope(resp.Body)
	if err != nil {
		return model.Envelope{}, r.decodeErr("delete", resp, err)
	}
	return env, nil
}

// decodeErr prefers a StatusError when an error status came back without
// an envelope.
func (r *Resource[T]) decodeErr(op string, resp *response, err error) error {
	if resp.Status >= 400 && errors.Is(err, model.ErrContract) {
		return fmt.Errorf("%s %s: %w", op, r.entity.Plural, &StatusError{Code: resp.Status, Body: string(resp.Body)})
	}
	return fmt.Errorf("%s %s: %w", op, r.entity.Plural, err)
}
