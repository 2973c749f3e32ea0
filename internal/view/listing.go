// Package view implements the listing/detail and form-backed editor
// controllers shared by the blog, shop, and gallery surfaces. Controllers are
// pure state machines over injected collaborators; HTTP handlers adapt their
// rendered view-models onto the wire.
package view

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Phase enumerates the listing controller states.
type Phase string

const (
	PhaseIdle    Phase = "idle"
	PhaseListing Phase = "listing"
	PhaseDetail  Phase = "detail"
	PhaseError   Phase = "error"
)

// DismissTrigger identifies how a detail view was dismissed.
type DismissTrigger string

const (
	DismissControl DismissTrigger = "control"
	DismissOverlay DismissTrigger = "overlay"
	DismissEscape  DismissTrigger = "escape"
)

// Loader fetches the full record set, newest first.
type Loader[T any] func(ctx context.Context) ([]T, error)

// ControllerConfig wires a listing controller to its collaborators.
type ControllerConfig[T any] struct {
	// Load fetches records ordered by creation time descending.
	Load Loader[T]
	// Key extracts the unique cache key of a record.
	Key func(T) string
	// CleanupDelay defers clearing of the dismissed detail snapshot so a
	// closing animation is not visually truncated. Zero clears immediately.
	CleanupDelay time.Duration
}

// Controller renders a record listing and drills into one detail view at a
// time. All methods are safe for concurrent use; callers guarantee
// single-flight on Load by construction (initial load plus post-mutation
// refreshes).
type Controller[T any] struct {
	cfg ControllerConfig[T]

	mu       sync.Mutex
	phase    Phase
	records  []T
	index    map[string]int
	selected int
	residual *T
	loadErr  error
	clearGen int
}

// NewController validates the wiring and returns a controller in the idle
// phase. Missing collaborators fail here rather than deep inside an
// interaction path.
func NewController[T any](cfg ControllerConfig[T]) (*Controller[T], error) {
	if cfg.Load == nil {
		return nil, errors.New("view: listing controller requires a loader")
	}
	if cfg.Key == nil {
		return nil, errors.New("view: listing controller requires a key function")
	}
	return &Controller[T]{cfg: cfg, phase: PhaseIdle, selected: -1}, nil
}

// Load fetches all records and replaces the cache. On failure the cache keeps
// its last good state and the controller enters the error phase until the
// next successful Load.
func (c *Controller[T]) Load(ctx context.Context) error {
	records, err := c.cfg.Load(ctx)
	c.mu.Lock()
	defer c.mu.Unlock()

	if err != nil {
		c.phase = PhaseError
		c.loadErr = err
		return err
	}

	index := make(map[string]int, len(records))
	for i, record := range records {
		index[c.cfg.Key(record)] = i
	}

	c.records = records
	c.index = index
	c.phase = PhaseListing
	c.loadErr = nil
	c.selected = -1
	c.residual = nil
	return nil
}

// Select switches to the detail view of the record with the given key. A key
// absent from the cache is a no-op, which absorbs activations raced against a
// re-fetch.
func (c *Controller[T]) Select(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.phase != PhaseListing && c.phase != PhaseDetail {
		return false
	}
	i, ok := c.index[key]
	if !ok {
		return false
	}

	c.phase = PhaseDetail
	c.selected = i
	c.residual = nil
	c.clearGen++
	return true
}

// Next advances the detail view to the adjacent record, wrapping at the end.
func (c *Controller[T]) Next() bool {
	return c.step(1)
}

// Previous moves the detail view to the preceding record, wrapping at the start.
func (c *Controller[T]) Previous() bool {
	return c.step(-1)
}

func (c *Controller[T]) step(delta int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.phase != PhaseDetail || len(c.records) == 0 {
		return false
	}
	n := len(c.records)
	c.selected = ((c.selected+delta)%n + n) % n
	return true
}

// Close returns to the listing phase. The detail snapshot is retained as a
// residual until the cleanup delay elapses, then cleared unless a new
// selection supersedes it.
func (c *Controller[T]) Close() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.phase != PhaseDetail {
		return false
	}

	record := c.records[c.selected]
	c.phase = PhaseListing
	c.selected = -1
	c.clearGen++

	if c.cfg.CleanupDelay <= 0 {
		c.residual = nil
		return true
	}

	c.residual = &record
	gen := c.clearGen
	time.AfterFunc(c.cfg.CleanupDelay, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.clearGen == gen {
			c.residual = nil
		}
	})
	return true
}

// Dismiss maps an external dismissal trigger onto Close. Triggers are only
// honoured while a detail view is active.
func (c *Controller[T]) Dismiss(trigger DismissTrigger) bool {
	switch trigger {
	case DismissControl, DismissOverlay, DismissEscape:
		return c.Close()
	default:
		return false
	}
}

// Remove drops the record with the given key from the cache without a
// re-fetch. Used after a confirmed delete succeeds.
func (c *Controller[T]) Remove(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	i, ok := c.index[key]
	if !ok {
		return false
	}

	c.records = append(c.records[:i], c.records[i+1:]...)
	c.index = make(map[string]int, len(c.records))
	for j, record := range c.records {
		c.index[c.cfg.Key(record)] = j
	}

	switch {
	case c.phase != PhaseDetail:
	case c.selected == i:
		c.phase = PhaseListing
		c.selected = -1
	case c.selected > i:
		c.selected--
	}
	return true
}

// Entry is one summary row of the rendered listing.
type Entry[T any] struct {
	Key    string
	Record T
}

// Detail is the expanded view of the selected record, carrying the adjacent
// keys so navigation needs no controller round-trip to know its neighbours.
type Detail[T any] struct {
	Key         string
	Index       int
	Record      T
	NextKey     string
	PreviousKey string
}

// Model is the rendered view-model of the controller's current state.
type Model[T any] struct {
	Phase    Phase
	Entries  []Entry[T]
	Detail   *Detail[T]
	Residual *T
	Err      error
}

// Render produces a snapshot view-model. It never mutates controller state.
func (c *Controller[T]) Render() Model[T] {
	c.mu.Lock()
	defer c.mu.Unlock()

	model := Model[T]{Phase: c.phase, Err: c.loadErr}

	model.Entries = make([]Entry[T], 0, len(c.records))
	for _, record := range c.records {
		model.Entries = append(model.Entries, Entry[T]{Key: c.cfg.Key(record), Record: record})
	}

	if c.phase == PhaseDetail && c.selected >= 0 && c.selected < len(c.records) {
		n := len(c.records)
		record := c.records[c.selected]
		model.Detail = &Detail[T]{
			Key:         c.cfg.Key(record),
			Index:       c.selected,
			Record:      record,
			NextKey:     c.cfg.Key(c.records[(c.selected+1)%n]),
			PreviousKey: c.cfg.Key(c.records[((c.selected-1)%n+n)%n]),
		}
	}
	if c.residual != nil {
		residual := *c.residual
		model.Residual = &residual
	}
	return model
}

// Lookup returns the cached record for the given key.
func (c *Controller[T]) Lookup(key string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero T
	i, ok := c.index[key]
	if !ok {
		return zero, false
	}
	return c.records[i], true
}

// Len reports the cache size.
func (c *Controller[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.records)
}
