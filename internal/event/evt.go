// Package event provides the synchronous observer registry the brokers
// fan events out with. Delivery is ordered and happens on the caller's
// goroutine; all registration and triggering is expected to run on the
// single engine-loop goroutine, so there is no locking here.
package event

// Handle identifies a registered listener so it can be removed.
type Handle int

type listener[T any] struct {
	handle Handle
	fn     func(T)
}

// Evt is a typed event stream. The zero value is ready to use.
type Evt[T any] struct {
	next      Handle
	listeners []listener[T]
}

// On registers fn to be invoked on every trigger, in registration order.
func (e *Evt[T]) On(fn func(T)) Handle {
	e.next++
	e.listeners = append(e.listeners, listener[T]{handle: e.next, fn: fn})
	return e.next
}

// Off removes a previously registered listener. Unknown handles are ignored.
func (e *Evt[T]) Off(h Handle) {
	for i, l := range e.listeners {
		if l.handle == h {
			// copy rather than splice in place so an in-flight Trigger
			// keeps delivering to its own snapshot
			out := make([]listener[T], 0, len(e.listeners)-1)
			out = append(out, e.listeners[:i]...)
			out = append(out, e.listeners[i+1:]...)
			e.listeners = out
			return
		}
	}
}

// Trigger invokes every registered listener with v, synchronously and in
// registration order. Listeners registered or removed during delivery take
// effect on the next trigger.
func (e *Evt[T]) Trigger(v T) {
	snapshot := e.listeners
	for _, l := range snapshot {
		l.fn(v)
	}
}
