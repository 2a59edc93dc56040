package listflow

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/me/mdconsole/pkg/model"
)

// fakeClock fires timers synchronously from Advance.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	clock   *fakeClock
	at      time.Time
	f       func()
	stopped bool
	fired   bool
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, at: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.fired || t.stopped {
		return false
	}
	t.stopped = true
	return true
}

// Advance moves time forward and runs every timer that became due.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	var due []*fakeTimer
	for _, t := range c.timers {
		if !t.fired && !t.stopped && !t.at.After(c.now) {
			t.fired = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()

	sort.Slice(due, func(i, j int) bool { return due[i].at.Before(due[j].at) })
	for _, t := range due {
		t.f()
	}
}

type note struct {
	level model.MessageLevel
	text  string
}

type recorder struct {
	mu    sync.Mutex
	notes []note
}

func (r *recorder) Notify(level model.MessageLevel, text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notes = append(r.notes, note{level, text})
}

func (r *recorder) all() []note {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]note(nil), r.notes...)
}

func (r *recorder) count(level model.MessageLevel) int {
	n := 0
	for _, nt := range r.all() {
		if nt.level == level {
			n++
		}
	}
	return n
}

type navigation struct {
	path  string
	state any
}

type navRecorder struct {
	mu    sync.Mutex
	calls []navigation
}

func (n *navRecorder) Navigate(path string, state any) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, navigation{path, state})
}

func (n *navRecorder) all() []navigation {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]navigation(nil), n.calls...)
}

// fetchCall is one invocation of a gatedFetch; the test resolves it by
// sending on reply.
type fetchCall struct {
	page, size int
	search     string
	reply      chan fetchReply
}

type fetchReply struct {
	page model.Page[model.Designation]
	err  error
}

// gatedFetch hands every call to the test through calls and blocks until
// the test replies, so resolution order is fully controlled.
type gatedFetch struct {
	calls chan *fetchCall
}

func newGatedFetch() *gatedFetch {
	return &gatedFetch{calls: make(chan *fetchCall, 16)}
}

func (g *gatedFetch) fetch(_ context.Context, page, size int, search string) (model.Page[model.Designation], error) {
	c := &fetchCall{page: page, size: size, search: search, reply: make(chan fetchReply, 1)}
	g.calls <- c
	r := <-c.reply
	return r.page, r.err
}

func (g *gatedFetch) next() *fetchCall {
	select {
	case c := <-g.calls:
		return c
	case <-time.After(2 * time.Second):
		panic("no fetch issued")
	}
}

func okPage(total int, items ...model.Designation) model.Page[model.Designation] {
	if items == nil {
		items = []model.Designation{}
	}
	return model.Page[model.Designation]{Items: items, Total: total}
}

// countingRefresher records Refresh calls.
type countingRefresher struct {
	mu sync.Mutex
	n  int
}

func (c *countingRefresher) Refresh() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n++
}

func (c *countingRefresher) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}

var testIdentity = StaticIdentity{Name: "qa.lead", Sig: "QL-2026"}
