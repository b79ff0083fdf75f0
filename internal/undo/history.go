// Package undo keeps a linear, forward-only history of editor snapshots.
package undo

// History is a stack of prior states. There is no redo.
type History[T any] struct {
	entries []T
	limit   int
}

// New returns a history that keeps at most limit entries. A limit of zero or
// less means unlimited.
func New[T any](limit int) *History[T] {
	return &History[T]{limit: limit}
}

// Push records state as the most recent entry, dropping the oldest one when
// the limit is reached.
func (h *History[T]) Push(state T) {
	h.entries = append(h.entries, state)
	if h.limit > 0 && len(h.entries) > h.limit {
		var zero T
		h.entries[0] = zero
		h.entries = h.entries[1:]
	}
}

// Undo pops the most recent entry. ok is false when the history is empty.
func (h *History[T]) Undo() (state T, ok bool) {
	if len(h.entries) == 0 {
		return state, false
	}
	last := len(h.entries) - 1
	state = h.entries[last]
	var zero T
	h.entries[last] = zero
	h.entries = h.entries[:last]
	return state, true
}

// CanUndo reports whether Undo would return an entry.
func (h *History[T]) CanUndo() bool {
	return len(h.entries) > 0
}

// Len returns the number of recorded entries.
func (h *History[T]) Len() int {
	return len(h.entries)
}

// Clear drops every entry.
func (h *History[T]) Clear() {
	clear(h.entries)
	h.entries = h.entries[:0]
}
