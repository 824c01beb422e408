// Package history implements a linear undo/redo timeline.
//
// A History holds an ordered, never empty sequence of values and a cursor
// into it. Pushing a value discards everything after the cursor (the redo
// branch) before appending; undo and redo only move the cursor.
//
// History is not safe for concurrent use. Owners serialize access.
package history

// Option configures a History.
type Option func(*options)

type options struct {
	capacity int
}

// WithCapacity bounds the timeline length. Once a push makes the timeline
// longer than n, the oldest entries are evicted. Values below 2 are ignored,
// leaving the timeline unbounded.
func WithCapacity(n int) Option {
	return func(o *options) {
		if n >= 2 {
			o.capacity = n
		}
	}
}

type History[T any] struct {
	initial  T
	timeline []T
	cursor   int
	capacity int
}

// New returns a History whose timeline is [initial] with the cursor at 0.
func New[T any](initial T, opts ...Option) *History[T] {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	return &History[T]{
		initial:  initial,
		timeline: []T{initial},
		cursor:   0,
		capacity: o.capacity,
	}
}

// Push makes v the current entry, discarding any redo branch.
func (h *History[T]) Push(v T) {
	// Clear the tail so discarded entries can be collected even though the
	// backing array is reused.
	var zero T
	for i := h.cursor + 1; i < len(h.timeline); i++ {
		h.timeline[i] = zero
	}

	h.timeline = append(h.timeline[:h.cursor+1], v)
	h.cursor = len(h.timeline) - 1

	if h.capacity > 0 && len(h.timeline) > h.capacity {
		evict := len(h.timeline) - h.capacity
		h.timeline = append([]T(nil), h.timeline[evict:]...)
		h.cursor -= evict
	}
}

// Undo moves the cursor one entry back and returns the new current entry.
// It returns false, leaving the cursor untouched, at the start of the timeline.
func (h *History[T]) Undo() (T, bool) {
	if !h.CanUndo() {
		return h.Current(), false
	}
	h.cursor--
	return h.Current(), true
}

// Redo moves the cursor one entry forward and returns the new current entry.
// It returns false, leaving the cursor untouched, at the end of the timeline.
func (h *History[T]) Redo() (T, bool) {
	if !h.CanRedo() {
		return h.Current(), false
	}
	h.cursor++
	return h.Current(), true
}

// Current returns the entry under the cursor.
func (h *History[T]) Current() T {
	return h.timeline[h.cursor]
}

// Reset pushes the initial value. Prior entries stay reachable through Undo.
func (h *History[T]) Reset() {
	h.Push(h.initial)
}

func (h *History[T]) CanUndo() bool {
	return h.cursor > 0
}

func (h *History[T]) CanRedo() bool {
	return h.cursor < len(h.timeline)-1
}

func (h *History[T]) Cursor() int {
	return h.cursor
}

func (h *History[T]) Len() int {
	return len(h.timeline)
}

// Entries returns a copy of the timeline.
func (h *History[T]) Entries() []T {
	out := make([]T, len(h.timeline))
	copy(out, h.timeline)
	return out
}
