package store

import (
	"context"
	"errors"

	"github.com/me/mdconsole/pkg/model"
)

// Sentinel errors returned (wrapped) by repositories. The server maps them
// to business-error envelopes.
var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("duplicate record")
	ErrInUse     = errors.New("record is still referenced")
	ErrReference = errors.New("referenced record does not exist")
)

// Repository is the persistence contract for one master-data entity.
type Repository[T model.Record] interface {
	// List returns one page of records matching opts.Search and the total
	// number of matches.
	List(ctx context.Context, opts model.ListOptions) ([]T, int, error)
	// Get returns nil, nil when id does not exist.
	Get(ctx context.Context, id int64) (*T, error)
	// Create inserts rec and sets its id and stamp.
	Create(ctx context.Context, rec *T, audit model.Audit) error
	// Update replaces the record with rec's id and refreshes its stamp.
	Update(ctx context.Context, rec *T, audit model.Audit) error
	Delete(ctx context.Context, id int64, audit model.Audit) error
}

// Store defines the persistence layer for master data.
type Store interface {
	Designations() Repository[model.Designation]
	Plants() Repository[model.Plant]
	PlantAssignments() Repository[model.PlantAssignment]
	Documents() Repository[model.Document]

	// Lifecycle
	Close() error
	Migrate(ctx context.Context) error
}
