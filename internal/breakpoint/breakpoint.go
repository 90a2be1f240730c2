// Package breakpoint classifies viewport widths and tells subscribers when
// the viewport crosses into another breakpoint.
//
// A Watcher is an ordinary value owned by whoever composes the application.
// Resize events come from an injected channel, so there is no global state
// and tests drive it with plain ints.
package breakpoint

import (
	"context"
	"log/slog"
	"sync"
)

// Breakpoint is a responsive layout class.
type Breakpoint string

const (
	XS Breakpoint = "xs"
	SM Breakpoint = "sm"
	MD Breakpoint = "md"
	LG Breakpoint = "lg"
	XL Breakpoint = "xl"
)

// Lower bounds in pixels, widest first.
var thresholds = []struct {
	min int
	bp  Breakpoint
}{
	{1200, XL},
	{992, LG},
	{768, MD},
	{576, SM},
}

// Classify returns the breakpoint of a viewport width.
func Classify(width int) Breakpoint {
	for _, t := range thresholds {
		if width >= t.min {
			return t.bp
		}
	}
	return XS
}

// Change is published once per transition. Old is empty for the initial
// event published by Start.
type Change struct {
	Old Breakpoint
	New Breakpoint
}

// Watcher tracks the current breakpoint and publishes transitions.
// Safe for concurrent use; subscribers run on the goroutine that observed
// the width, outside the watcher's lock.
type Watcher struct {
	mu          sync.Mutex
	current     Breakpoint
	nextID      int
	subscribers map[int]func(Change)
	order       []int
	callbacks   []func()
	logger      *slog.Logger
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithLogger sets the logger for transitions. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(w *Watcher) {
		w.logger = l
	}
}

// NewWatcher creates a watcher for a viewport that is initialWidth wide.
func NewWatcher(initialWidth int, opts ...Option) *Watcher {
	w := &Watcher{
		current:     Classify(initialWidth),
		subscribers: make(map[int]func(Change)),
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Current returns the breakpoint of the last observed width.
func (w *Watcher) Current() Breakpoint {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current
}

// Subscribe registers fn for transitions and returns a function that
// removes it again. Unsubscribing twice is harmless.
func (w *Watcher) Subscribe(fn func(Change)) (unsubscribe func()) {
	w.mu.Lock()
	defer w.mu.Unlock()

	id := w.nextID
	w.nextID++
	w.subscribers[id] = fn
	w.order = append(w.order, id)

	return func() {
		w.mu.Lock()
		defer w.mu.Unlock()
		if _, ok := w.subscribers[id]; !ok {
			return
		}
		delete(w.subscribers, id)
		for i, o := range w.order {
			if o == id {
				w.order = append(w.order[:i], w.order[i+1:]...)
				break
			}
		}
	}
}

// AddCallback registers a function run on every transition, before the
// subscribers receive the Change.
func (w *Watcher) AddCallback(fn func()) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.callbacks = append(w.callbacks, fn)
}

// Start publishes the current breakpoint once, with an empty Old.
// Callbacks do not run: they belong to transitions only.
func (w *Watcher) Start() {
	w.mu.Lock()
	change := Change{New: w.current}
	w.mu.Unlock()

	w.publish(change, false)
}

// Observe records a new viewport width. It publishes a Change and reports
// true only when the width falls into a different breakpoint.
func (w *Watcher) Observe(width int) bool {
	next := Classify(width)

	w.mu.Lock()
	if next == w.current {
		w.mu.Unlock()
		return false
	}
	change := Change{Old: w.current, New: next}
	w.current = next
	w.mu.Unlock()

	w.logger.Debug("breakpoint changed", "old", change.Old, "new", change.New, "width", width)
	w.publish(change, true)
	return true
}

// Run observes widths from resizes until ctx is cancelled or the channel
// is closed.
func (w *Watcher) Run(ctx context.Context, resizes <-chan int) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case width, ok := <-resizes:
			if !ok {
				return nil
			}
			w.Observe(width)
		}
	}
}

func (w *Watcher) publish(change Change, transition bool) {
	w.mu.Lock()
	var callbacks []func()
	if transition {
		callbacks = append(callbacks, w.callbacks...)
	}
	subs := make([]func(Change), 0, len(w.order))
	for _, id := range w.order {
		subs = append(subs, w.subscribers[id])
	}
	w.mu.Unlock()

	for _, fn := range callbacks {
		fn()
	}
	for _, fn := range subs {
		fn(change)
	}
}
