// Package ringbuf provides a fixed-capacity ring buffer used for bounded histories.
package ringbuf

// Ring is a fixed-capacity FIFO buffer. When full, Push overwrites the oldest
// element. A Ring is not safe for concurrent use; owners lock around it.
type Ring[T any] struct {
	buf   []T
	start int
	size  int
}

// New creates a ring with the given capacity. Capacities below 1 are raised to 1.
func New[T any](capacity int) *Ring[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Ring[T]{buf: make([]T, capacity)}
}

// Push appends v, evicting the oldest element when the ring is full.
func (r *Ring[T]) Push(v T) {
	if r.size < len(r.buf) {
		r.buf[(r.start+r.size)%len(r.buf)] = v
		r.size++
		return
	}
	r.buf[r.start] = v
	r.start = (r.start + 1) % len(r.buf)
}

// Len returns the number of stored elements.
func (r *Ring[T]) Len() int { return r.size }

// Cap returns the ring capacity.
func (r *Ring[T]) Cap() int { return len(r.buf) }

// At returns the i-th element counting from the oldest. It panics when i is out of range.
func (r *Ring[T]) At(i int) T {
	if i < 0 || i >= r.size {
		panic("ringbuf: index out of range")
	}
	return r.buf[(r.start+i)%len(r.buf)]
}

// Latest returns the newest element and whether the ring is non-empty.
func (r *Ring[T]) Latest() (T, bool) {
	var zero T
	if r.size == 0 {
		return zero, false
	}
	return r.At(r.size - 1), true
}

// Slice returns a copy of the contents, oldest first.
func (r *Ring[T]) Slice() []T {
	return r.Last(r.size)
}

// Last returns a copy of the newest n elements, oldest first.
func (r *Ring[T]) Last(n int) []T {
	if n > r.size {
		n = r.size
	}
	if n <= 0 {
		return nil
	}
	out := make([]T, n)
	offset := r.size - n
	for i := 0; i < n; i++ {
		out[i] = r.At(offset + i)
	}
	return out
}

// Reset empties the ring without releasing its storage.
func (r *Ring[T]) Reset() {
	var zero T
	for i := range r.buf {
		r.buf[i] = zero
	}
	r.start = 0
	r.size = 0
}
