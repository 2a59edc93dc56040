package listflow

import (
	"context"
	"log/slog"
	"time"

	"github.com/me/mdconsole/internal/logging"
	"github.com/me/mdconsole/pkg/model"
)

// ScreenConfig wires the collaborators of one list screen.
type ScreenConfig[T model.Record] struct {
	Entity   model.Entity
	Fetch    FetchFunc[T]
	Delete   DeleteFunc
	Notifier Notifier
	Identity Identity
	Clock    Clock
	Logger   *slog.Logger
	Observer FetchObserver
	Query    model.Query   // initial query; zero value means model.DefaultQuery
	Debounce time.Duration // zero means DefaultDebounce
}

// Screen bundles the query controller, fetch cycle and delete flow that
// every master-data list screen is made of.
type Screen[T model.Record] struct {
	Entity model.Entity
	Query  *QueryController
	List   *Lister[T]
	Delete *DeleteFlow[T]
}

// NewScreen wires a list screen. Call Start to issue the first fetch.
func NewScreen[T model.Record](cfg ScreenConfig[T]) *Screen[T] {
	if cfg.Clock == nil {
		cfg.Clock = RealClock()
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Discard()
	}
	q := cfg.Query
	if q.PageSize == 0 {
		q.PageSize = model.DefaultPageSize
	}
	qc := NewQueryController(cfg.Clock,
		WithInitialQuery(q),
		WithDebounce(cfg.Debounce),
		WithQueryLogger(cfg.Logger.With("entity", cfg.Entity.Name)),
	)
	lister := NewLister(cfg.Fetch, cfg.Notifier, cfg.Logger,
		WithEntity(cfg.Entity.Plural),
		WithObserver(cfg.Observer),
	)
	lister.Bind(qc)
	var del *DeleteFlow[T]
	if cfg.Delete != nil {
		del = NewDeleteFlow[T](cfg.Entity, cfg.Delete, lister, cfg.Notifier, cfg.Identity, cfg.Logger)
	}
	return &Screen[T]{Entity: cfg.Entity, Query: qc, List: lister, Delete: del}
}

// Start issues the initial fetch.
func (s *Screen[T]) Start(ctx context.Context) {
	s.List.Start(ctx)
}

// Close stops pending timers. In-flight fetches are left to finish.
func (s *Screen[T]) Close() {
	s.Query.Close()
}
