package listflow

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/me/mdconsole/internal/logging"
	"github.com/me/mdconsole/pkg/model"
)

// DefaultDebounce is the quiet period search text must stay unchanged
// before it is committed to the query.
const DefaultDebounce = 500 * time.Millisecond

// QueryController owns the search text, page index and page size of one
// list screen and derives the canonical model.Query from them.
//
// Search text goes through a debounce state machine:
//
//	IDLE --SetSearchText--> PENDING(deadline) --quiet period--> COMMITTED
//	PENDING --SetSearchText--> PENDING(new deadline)
//
// Committing resets the page index to 0. Listeners registered with OnChange
// run after every change of the canonical query and nothing else.
type QueryController struct {
	mu        sync.Mutex
	clock     Clock
	quiet     time.Duration
	logger    *slog.Logger
	raw       string
	query     model.Query
	state     model.DebounceState
	deadline  time.Time
	timer     Timer
	seq       uint64
	listeners []func(model.Query)
}

// QueryOption configures a QueryController.
type QueryOption func(*QueryController)

// WithDebounce overrides the 500 ms quiet period.
func WithDebounce(d time.Duration) QueryOption {
	return func(c *QueryController) {
		if d > 0 {
			c.quiet = d
		}
	}
}

// WithInitialQuery seeds the controller, e.g. from command-line flags.
func WithInitialQuery(q model.Query) QueryOption {
	return func(c *QueryController) {
		if q.PageSize <= 0 {
			q.PageSize = model.DefaultPageSize
		}
		if q.Page < 0 {
			q.Page = 0
		}
		c.query = q
		c.raw = q.Search
	}
}

// WithQueryLogger sets the logger used for debounce tracing.
func WithQueryLogger(logger *slog.Logger) QueryOption {
	return func(c *QueryController) {
		c.logger = logger
	}
}

// NewQueryController creates a controller with the default query.
func NewQueryController(clock Clock, opts ...QueryOption) *QueryController {
	c := &QueryController{
		clock:  clock,
		quiet:  DefaultDebounce,
		logger: logging.Discard(),
		query:  model.DefaultQuery(),
		state:  model.DebounceIdle,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "query")
	return c
}

// OnChange registers fn to run after every change of the canonical query.
func (c *QueryController) OnChange(fn func(model.Query)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

// Query returns the canonical query tuple.
func (c *QueryController) Query() model.Query {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.query
}

// SearchText returns the raw, possibly uncommitted, search text.
func (c *QueryController) SearchText() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.raw
}

// DebounceState returns the current debounce state.
func (c *QueryController) DebounceState() model.DebounceState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SetSearchText updates the raw text and (re)starts the debounce timer.
// It never changes the query by itself.
func (c *QueryController) SetSearchText(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.raw = text
	if c.timer != nil {
		c.timer.Stop()
	}
	c.seq++
	seq := c.seq
	c.state = model.DebouncePending
	c.deadline = c.clock.Now().Add(c.quiet)
	c.timer = c.clock.AfterFunc(c.quiet, func() { c.elapse(seq) })
	c.logger.Debug("debounce pending", "text", text, "deadline", c.deadline)
}

// elapse runs when a debounce timer fires. A timer that was superseded but
// could not be stopped in time carries an old seq and is ignored.
func (c *QueryController) elapse(seq uint64) {
	c.mu.Lock()
	if seq != c.seq || c.state != model.DebouncePending {
		c.mu.Unlock()
		return
	}
	q, changed := c.commitLocked()
	listeners := c.listeners
	c.mu.Unlock()

	if changed {
		notifyQuery(listeners, q)
	}
}

// Flush commits pending search text immediately.
func (c *QueryController) Flush() {
	c.mu.Lock()
	if c.state != model.DebouncePending {
		c.mu.Unlock()
		return
	}
	if c.timer != nil {
		c.timer.Stop()
	}
	c.seq++
	q, changed := c.commitLocked()
	listeners := c.listeners
	c.mu.Unlock()

	if changed {
		notifyQuery(listeners, q)
	}
}

func (c *QueryController) commitLocked() (model.Query, bool) {
	c.state = model.DebounceCommitted
	c.timer = nil
	next := c.query
	next.Search = c.raw
	next.Page = 0
	if next == c.query {
		c.logger.Debug("debounce committed without change", "search", c.raw)
		return c.query, false
	}
	c.query = next
	c.logger.Debug("debounce committed", "search", next.Search)
	return next, true
}

// SetPage sets the 0-based page index.
func (c *QueryController) SetPage(page int) error {
	if page < 0 {
		return model.NewValidationError(model.FieldError{Field: "page", Message: fmt.Sprintf("must be >= 0, got %d", page)})
	}
	c.update(func(q *model.Query) { q.Page = page })
	return nil
}

// SetPageSize sets the page size and resets the page index to 0.
func (c *QueryController) SetPageSize(size int) error {
	if size <= 0 || size > model.MaxPageSize {
		return model.NewValidationError(model.FieldError{Field: "pageSize", Message: fmt.Sprintf("must be between 1 and %d, got %d", model.MaxPageSize, size)})
	}
	c.update(func(q *model.Query) {
		q.PageSize = size
		q.Page = 0
	})
	return nil
}

// Close stops any pending debounce timer without committing.
func (c *QueryController) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.seq++
	if c.state == model.DebouncePending {
		c.state = model.DebounceIdle
	}
}

func (c *QueryController) update(fn func(*model.Query)) {
	c.mu.Lock()
	next := c.query
	fn(&next)
	if next == c.query {
		c.mu.Unlock()
		return
	}
	c.query = next
	listeners := c.listeners
	c.mu.Unlock()

	notifyQuery(listeners, next)
}

func notifyQuery(listeners []func(model.Query), q model.Query) {
	for _, fn := range listeners {
		fn(q)
	}
}
