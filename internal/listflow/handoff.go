package listflow

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/me/mdconsole/pkg/model"
)

// HandoffStore persists selection handoffs between screens, keyed by
// workflow name. Read returns nil when nothing (unexpired) is stored.
type HandoffStore interface {
	Persist(ctx context.Context, key string, h *model.Handoff) error
	Read(ctx context.Context, key string) (*model.Handoff, error)
	Clear(ctx context.Context, key string) error
}

// NoSelectionError is returned when an edit screen opens without a handoff.
type NoSelectionError struct {
	Key string
}

func (e *NoSelectionError) Error() string {
	return fmt.Sprintf("no record selected for %s", e.Key)
}

// Select writes rec as the handoff for key and navigates to route,
// passing the record along as navigation state.
func Select[T model.Record](ctx context.Context, store HandoffStore, nav Navigator, key, route string, e model.Entity, rec T, now time.Time) error {
	h, err := model.NewHandoff(key, e, rec, now)
	if err != nil {
		return err
	}
	if err := store.Persist(ctx, key, h); err != nil {
		return fmt.Errorf("persist handoff %s: %w", key, err)
	}
	if nav != nil {
		nav.Navigate(route, rec)
	}
	return nil
}

// ReadSelection restores the record stored under key. The handoff stays in
// the store so the destination can be reopened until it is cleared.
func ReadSelection[T model.Record](ctx context.Context, store HandoffStore, key string) (T, error) {
	var zero T
	h, err := store.Read(ctx, key)
	if err != nil {
		return zero, fmt.Errorf("read handoff %s: %w", key, err)
	}
	if h == nil {
		return zero, &NoSelectionError{Key: key}
	}
	return model.DecodeHandoff[T](h)
}

// MemoryHandoffs is an in-process HandoffStore for workflows that do not
// need to survive a restart.
type MemoryHandoffs struct {
	mu    sync.Mutex
	clock Clock
	items map[string]*model.Handoff
}

// NewMemoryHandoffs creates an empty store.
func NewMemoryHandoffs(clock Clock) *MemoryHandoffs {
	if clock == nil {
		clock = RealClock()
	}
	return &MemoryHandoffs{clock: clock, items: make(map[string]*model.Handoff)}
}

func (m *MemoryHandoffs) Persist(_ context.Context, key string, h *model.Handoff) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *h
	m.items[key] = &cp
	return nil
}

func (m *MemoryHandoffs) Read(_ context.Context, key string) (*model.Handoff, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.items[key]
	if !ok {
		return nil, nil
	}
	if h.IsExpired(m.clock.Now()) {
		delete(m.items, key)
		return nil, nil
	}
	cp := *h
	return &cp, nil
}

func (m *MemoryHandoffs) Clear(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, key)
	return nil
}
