package listflow

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/me/mdconsole/internal/logging"
	"github.com/me/mdconsole/pkg/model"
)

// FetchFunc loads one page. pageNumber is 1-based; search may be empty.
type FetchFunc[T any] func(ctx context.Context, pageNumber, pageSize int, search string) (model.Page[T], error)

// Fetch outcomes reported to a FetchObserver.
const (
	OutcomeOK             = "ok"
	OutcomeBusinessError  = "business_error"
	OutcomeTransportError = "transport_error"
	OutcomeStale          = "stale"
)

// FetchObserver is notified of every completed fetch.
type FetchObserver interface {
	ObserveFetch(entity, outcome string, elapsed time.Duration)
}

// ListState is a snapshot of what a list screen renders.
type ListState[T any] struct {
	Query      model.Query
	Items      []T
	TotalCount int
	Loading    bool
	Generation uint64
}

// TotalPages returns the page count for the current page size.
func (s ListState[T]) TotalPages() int {
	return model.TotalPages(s.TotalCount, s.Query.PageSize)
}

// Lister runs the fetch cycle of a list screen. Every query change or
// Refresh issues exactly one fetch tagged with a new generation; a response
// is applied only if its generation is still the latest, so the visible
// state always reflects the most recently issued request.
type Lister[T any] struct {
	mu        sync.Mutex
	fetch     FetchFunc[T]
	notifier  Notifier
	logger    *slog.Logger
	observer  FetchObserver
	entity    string
	ctx       context.Context
	started   bool
	gen       uint64
	state     ListState[T]
	listeners []func(ListState[T])
	inflight  int
	idle      *sync.Cond

	// emitMu orders listener calls; snapshots older than lastEmitted are
	// dropped so listeners never see a superseded result last.
	emitMu      sync.Mutex
	lastEmitted uint64
}

// ListerOption configures a Lister.
type ListerOption func(*listerConfig)

type listerConfig struct {
	observer FetchObserver
	entity   string
	query    model.Query
}

// WithObserver reports fetch outcomes to o.
func WithObserver(o FetchObserver) ListerOption {
	return func(c *listerConfig) { c.observer = o }
}

// WithEntity labels logs and metrics with the entity name.
func WithEntity(name string) ListerOption {
	return func(c *listerConfig) { c.entity = name }
}

// WithQuery sets the query used by Start.
func WithQuery(q model.Query) ListerOption {
	return func(c *listerConfig) { c.query = q }
}

// NewLister creates a Lister. Nothing is fetched until Start.
func NewLister[T any](fetch FetchFunc[T], n Notifier, logger *slog.Logger, opts ...ListerOption) *Lister[T] {
	cfg := listerConfig{query: model.DefaultQuery()}
	for _, opt := range opts {
		opt(&cfg)
	}
	if logger == nil {
		logger = logging.Discard()
	}
	l := &Lister[T]{
		fetch:    fetch,
		notifier: n,
		logger:   logger.With("component", "lister", "entity", cfg.entity),
		observer: cfg.observer,
		entity:   cfg.entity,
		ctx:      context.Background(),
		state:    ListState[T]{Query: cfg.query, Items: []T{}},
	}
	l.idle = sync.NewCond(&l.mu)
	return l
}

// Bind makes qc the source of this lister's query: the current query is
// adopted and every later change triggers a fetch once started.
func (l *Lister[T]) Bind(qc *QueryController) {
	l.mu.Lock()
	l.state.Query = qc.Query()
	l.mu.Unlock()
	qc.OnChange(l.SetQuery)
}

// Start issues the initial fetch. ctx is passed to every fetch made by this
// lister and should live as long as the screen.
func (l *Lister[T]) Start(ctx context.Context) {
	l.mu.Lock()
	l.ctx = ctx
	l.started = true
	l.mu.Unlock()
	l.issue()
}

// SetQuery replaces the query and re-fetches.
func (l *Lister[T]) SetQuery(q model.Query) {
	l.mu.Lock()
	l.state.Query = q
	started := l.started
	l.mu.Unlock()
	if started {
		l.issue()
	}
}

// Refresh re-fetches the current query without changing it.
func (l *Lister[T]) Refresh() {
	l.issue()
}

// OnChange registers fn to run after every state change. Calls are
// serialised in generation order; fn must not call back into the Lister.
func (l *Lister[T]) OnChange(fn func(ListState[T])) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.listeners = append(l.listeners, fn)
}

// State returns a snapshot of the current list state.
func (l *Lister[T]) State() ListState[T] {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.snapshotLocked()
}

// Wait blocks until no fetch is in flight. Fetches issued while waiting
// are waited for too.
func (l *Lister[T]) Wait() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for l.inflight > 0 {
		l.idle.Wait()
	}
}

func (l *Lister[T]) issue() {
	l.mu.Lock()
	l.gen++
	gen := l.gen
	q := l.state.Query
	ctx := l.ctx
	l.state.Loading = true
	l.state.Generation = gen
	snap := l.snapshotLocked()
	listeners := l.listeners
	l.inflight++
	l.mu.Unlock()

	l.logger.Debug("fetch issued", "generation", gen, "page", q.PageNumber(), "size", q.PageSize, "search", q.Search)
	l.emit(listeners, snap)
	go l.run(ctx, gen, q)
}

func (l *Lister[T]) run(ctx context.Context, gen uint64, q model.Query) {
	defer l.finish()
	start := time.Now()
	page, err := l.call(ctx, q)
	elapsed := time.Since(start)

	l.mu.Lock()
	if gen != l.gen {
		latest := l.gen
		l.mu.Unlock()
		l.logger.Debug("stale response discarded", "generation", gen, "latest", latest)
		l.observe(OutcomeStale, elapsed)
		return
	}

	var outcome string
	switch {
	case err != nil:
		outcome = OutcomeTransportError
	case !page.Header.OK():
		outcome = OutcomeBusinessError
	default:
		outcome = OutcomeOK
		items := page.Items
		if items == nil {
			items = []T{}
		}
		if len(items) > q.PageSize {
			l.logger.Warn("server returned more rows than requested", "rows", len(items), "page_size", q.PageSize)
			items = items[:q.PageSize]
		}
		l.state.Items = items
		l.state.TotalCount = page.Total
	}
	l.state.Loading = false
	snap := l.snapshotLocked()
	listeners := l.listeners
	l.mu.Unlock()

	l.observe(outcome, elapsed)
	switch outcome {
	case OutcomeTransportError:
		l.logger.Error("fetch failed", "generation", gen, "page", q.PageNumber(), "search", q.Search, "error", err)
		l.notifier.Notify(model.LevelError, GenericFailureText)
	case OutcomeBusinessError:
		l.logger.Warn("fetch rejected", "generation", gen, "error_count", page.Header.ErrorCount)
		DispatchHeader(l.notifier, page.Header)
	default:
		l.logger.Debug("fetch applied", "generation", gen, "rows", len(snap.Items), "total", snap.TotalCount)
	}
	l.emit(listeners, snap)
}

// call invokes the fetch collaborator, turning a panic into an error so the
// loading flag is always cleared.
func (l *Lister[T]) call(ctx context.Context, q model.Query) (page model.Page[T], err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("fetch panicked: %v", r)
		}
	}()
	return l.fetch(ctx, q.PageNumber(), q.PageSize, q.Search)
}

func (l *Lister[T]) finish() {
	l.mu.Lock()
	l.inflight--
	if l.inflight == 0 {
		l.idle.Broadcast()
	}
	l.mu.Unlock()
}

func (l *Lister[T]) observe(outcome string, elapsed time.Duration) {
	if l.observer != nil {
		l.observer.ObserveFetch(l.entity, outcome, elapsed)
	}
}

func (l *Lister[T]) snapshotLocked() ListState[T] {
	s := l.state
	s.Items = append([]T(nil), l.state.Items...)
	if s.Items == nil {
		s.Items = []T{}
	}
	return s
}

func (l *Lister[T]) emit(listeners []func(ListState[T]), s ListState[T]) {
	l.emitMu.Lock()
	defer l.emitMu.Unlock()
	if s.Generation < l.lastEmitted {
		l.logger.Debug("stale snapshot not emitted", "generation", s.Generation, "latest", l.lastEmitted)
		return
	}
	l.lastEmitted = s.Generation
	for _, fn := range listeners {
		fn(s)
	}
}
