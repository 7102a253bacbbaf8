package engine

// Window is a fixed-capacity buffer of the most recent items. Pushing into a
// full window evicts the oldest item.
type Window[T any] struct {
	items []T
	start int
	size  int
}

func NewWindow[T any](capacity int) *Window[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Window[T]{items: make([]T, capacity)}
}

func (w *Window[T]) Push(item T) {
	if w.size < len(w.items) {
		w.items[(w.start+w.size)%len(w.items)] = item
		w.size++
		return
	}
	w.items[w.start] = item
	w.start = (w.start + 1) % len(w.items)
}

func (w *Window[T]) Len() int { return w.size }

func (w *Window[T]) Cap() int { return len(w.items) }

func (w *Window[T]) Full() bool { return w.size == len(w.items) }

// Items returns the buffered items ordered oldest to newest. The returned
// slice is a copy.
func (w *Window[T]) Items() []T {
	out := make([]T, w.size)
	for i := 0; i < w.size; i++ {
		out[i] = w.items[(w.start+i)%len(w.items)]
	}
	return out
}

// Last returns the newest item.
func (w *Window[T]) Last() (T, bool) {
	var zero T
	if w.size == 0 {
		return zero, false
	}
	return w.items[(w.start+w.size-1)%len(w.items)], true
}
