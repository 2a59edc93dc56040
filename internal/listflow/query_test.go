package listflow

import (
	"testing"
	"time"

	"github.com/me/mdconsole/pkg/model"
)

func TestQueryController_DebounceCoalesces(t *testing.T) {
	clock := newFakeClock()
	qc := NewQueryController(clock)
	var changes []model.Query
	qc.OnChange(func(q model.Query) { changes = append(changes, q) })

	for _, text := range []string{"o", "op", "ope", "oper"} {
		qc.SetSearchText(text)
		clock.Advance(100 * time.Millisecond)
	}
	if len(changes) != 0 {
		t.Fatalf("query changed during typing: %+v", changes)
	}
	if qc.SearchText() != "oper" {
		t.Errorf("SearchText = %q, want raw text updated immediately", qc.SearchText())
	}
	if qc.DebounceState() != model.DebouncePending {
		t.Errorf("state = %s, want PENDING", qc.DebounceState())
	}

	clock.Advance(400 * time.Millisecond)
	if len(changes) != 1 {
		t.Fatalf("changes = %d, want 1", len(changes))
	}
	if changes[0].Search != "oper" {
		t.Errorf("committed search = %q, want %q", changes[0].Search, "oper")
	}
	if qc.DebounceState() != model.DebounceCommitted {
		t.Errorf("state = %s, want COMMITTED", qc.DebounceState())
	}

	clock.Advance(5 * time.Second)
	if len(changes) != 1 {
		t.Errorf("superseded timers fired: %d changes", len(changes))
	}
}

func TestQueryController_CommitResetsPage(t *testing.T) {
	clock := newFakeClock()
	qc := NewQueryController(clock)
	if err := qc.SetPage(3); err != nil {
		t.Fatal(err)
	}
	qc.SetSearchText("plant")
	if got := qc.Query().Page; got != 3 {
		t.Errorf("page reset before commit: %d", got)
	}
	clock.Advance(DefaultDebounce)
	q := qc.Query()
	if q.Page != 0 || q.Search != "plant" {
		t.Errorf("query = %+v, want page 0 search plant", q)
	}
}

func TestQueryController_SameTextNoChange(t *testing.T) {
	clock := newFakeClock()
	qc := NewQueryController(clock)
	calls := 0
	qc.OnChange(func(model.Query) { calls++ })

	qc.SetSearchText("x")
	qc.SetSearchText("")
	clock.Advance(DefaultDebounce)
	if calls != 0 {
		t.Errorf("committing unchanged search triggered %d changes", calls)
	}
}

func TestQueryController_SetPageAndSize(t *testing.T) {
	qc := NewQueryController(newFakeClock(), WithInitialQuery(model.Query{Search: "a", PageSize: 25}))
	var changes []model.Query
	qc.OnChange(func(q model.Query) { changes = append(changes, q) })

	if err := qc.SetPage(2); err != nil {
		t.Fatal(err)
	}
	if q := qc.Query(); q.Page != 2 || q.Search != "a" || q.PageSize != 25 {
		t.Errorf("after SetPage: %+v", q)
	}
	if err := qc.SetPage(2); err != nil {
		t.Fatal(err)
	}
	if err := qc.SetPageSize(50); err != nil {
		t.Fatal(err)
	}
	if q := qc.Query(); q.Page != 0 || q.PageSize != 50 {
		t.Errorf("after SetPageSize: %+v", q)
	}
	if len(changes) != 2 {
		t.Errorf("changes = %d, want 2 (repeat SetPage is a no-op)", len(changes))
	}

	if err := qc.SetPage(-1); !model.IsValidation(err) {
		t.Errorf("SetPage(-1) = %v, want validation error", err)
	}
	if err := qc.SetPageSize(0); !model.IsValidation(err) {
		t.Errorf("SetPageSize(0) = %v, want validation error", err)
	}
}

func TestQueryController_FlushAndClose(t *testing.T) {
	clock := newFakeClock()
	qc := NewQueryController(clock, WithDebounce(time.Second))
	calls := 0
	qc.OnChange(func(model.Query) { calls++ })

	qc.SetSearchText("now")
	qc.Flush()
	if calls != 1 || qc.Query().Search != "now" {
		t.Fatalf("Flush did not commit: calls=%d query=%+v", calls, qc.Query())
	}
	clock.Advance(time.Second)
	if calls != 1 {
		t.Errorf("timer fired after Flush: calls=%d", calls)
	}

	qc.SetSearchText("later")
	qc.Close()
	clock.Advance(time.Second)
	if calls != 1 || qc.Query().Search != "now" {
		t.Errorf("Close did not cancel pending commit: calls=%d query=%+v", calls, qc.Query())
	}
	if qc.DebounceState() != model.DebounceIdle {
		t.Errorf("state = %s, want IDLE", qc.DebounceState())
	}
}
