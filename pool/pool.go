// Package pool provides a bounded, typed object pool. Acquisition is
// lock-free in the common case (a buffered channel used as a free list);
// returns are best-effort and silently drop the instance when the pool is
// already at capacity.
package pool

// Resettable is implemented by any type a Pool can recycle. ResetForPool
// must clear any state that would otherwise leak between borrowers (slice
// lengths, map contents, pointers to now-stale data) and is always called
// before an instance re-enters the free list.
type Resettable interface {
	ResetForPool()
}

// Pool is a bounded typed pool of T. The zero value is not usable; use New.
type Pool[T Resettable] struct {
	free    chan T
	newFunc func() T
}

// New creates a Pool with room for at most capacity idle instances.
// newFunc is called to produce a fresh T whenever the free list is empty.
func New[T Resettable](capacity int, newFunc func() T) *Pool[T] {
	if capacity <= 0 {
		capacity = 1
	}
	return &Pool[T]{
		free:    make(chan T, capacity),
		newFunc: newFunc,
	}
}

// Get returns an idle instance if one is available, otherwise a freshly
// constructed one. The caller owns the returned value until it calls Put.
func (p *Pool[T]) Get() T {
	select {
	case x := <-p.free:
		return x
	default:
		return p.newFunc()
	}
}

// Put resets x and returns it to the free list. If the list is full, x is
// dropped (and, if it also implements io.Closer-like cleanup, that is the
// caller's responsibility before calling Put — ResetForPool is for reuse
// bookkeeping, not resource release).
func (p *Pool[T]) Put(x T) {
	x.ResetForPool()
	select {
	case p.free <- x:
	default:
	}
}

// Len reports the number of idle instances currently held. Intended for
// tests and metrics, not for capacity decisions (it races with concurrent
// Get/Put).
func (p *Pool[T]) Len() int { return len(p.free) }
