package recorder

import "sync"

// Ring keeps the most recent entries up to a fixed capacity.
// It is safe for concurrent use.
type Ring[T any] struct {
	entries  []T
	capacity uint64
	written  uint64
	mu       sync.RWMutex
}

// NewRing creates a ring with the given capacity.
func NewRing[T any](capacity uint64) *Ring[T] {
	if capacity == 0 {
		panic("capacity must be greater than 0")
	}

	return &Ring[T]{
		entries:  make([]T, capacity),
		capacity: capacity,
	}
}

// Add appends an entry, dropping the oldest one when the ring is full.
func (r *Ring[T]) Add(entry T) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries[r.written%r.capacity] = entry
	r.written++
}

// Last returns up to n of the most recent entries, oldest first.
func (r *Ring[T]) Last(n uint64) []T {
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := min(n, r.lenLocked())
	result := make([]T, count)

	start := r.written - count
	for i := uint64(0); i < count; i++ {
		result[i] = r.entries[(start+i)%r.capacity]
	}

	return result
}

// Len returns the number of entries currently held.
func (r *Ring[T]) Len() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lenLocked()
}

func (r *Ring[T]) lenLocked() uint64 {
	return min(r.written, r.capacity)
}

// Cap returns the capacity of the ring.
func (r *Ring[T]) Cap() uint64 {
	return r.capacity
}
