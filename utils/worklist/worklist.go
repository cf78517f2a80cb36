package worklist

// Worklist is a FIFO queue in which every element is enqueued at most once
// over the lifetime of the worklist.
type Worklist[T comparable] struct {
	queue []T
	seen  map[T]struct{}
}

// New creates a worklist holding the given elements, in order.
func New[T comparable](start ...T) *Worklist[T] {
	w := &Worklist[T]{seen: make(map[T]struct{}, len(start))}
	for _, el := range start {
		w.Add(el)
	}
	return w
}

// Start runs do on start and every element added while processing.
func Start[T comparable](start T, do func(next T, add func(el T))) {
	New(start).Drain(do)
}

// StartV is Start with a preloaded queue. Duplicates are ignored.
func StartV[T comparable](start []T, do func(next T, add func(el T))) {
	New(start...).Drain(do)
}

// Add enqueues el and reports whether it was new.
func (w *Worklist[T]) Add(el T) bool {
	if w.seen == nil {
		w.seen = make(map[T]struct{})
	}
	if _, ok := w.seen[el]; ok {
		return false
	}
	w.seen[el] = struct{}{}
	w.queue = append(w.queue, el)
	return true
}

// Next dequeues the oldest element.
func (w *Worklist[T]) Next() (el T, ok bool) {
	if len(w.queue) == 0 {
		return el, false
	}
	el = w.queue[0]
	var zero T
	w.queue[0] = zero
	w.queue = w.queue[1:]
	return el, true
}

// Len is the number of elements waiting.
func (w *Worklist[T]) Len() int {
	return len(w.queue)
}

// Seen checks whether el was ever added.
func (w *Worklist[T]) Seen(el T) bool {
	_, ok := w.seen[el]
	return ok
}

// Drain processes elements until none are left. do may add more.
func (w *Worklist[T]) Drain(do func(next T, add func(el T))) {
	add := func(el T) { w.Add(el) }
	for el, ok := w.Next(); ok; el, ok = w.Next() {
		do(el, add)
	}
}
