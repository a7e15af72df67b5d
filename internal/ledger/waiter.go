package ledger

// waiter is a one-shot completion signal with two states: armed and signaled.
// A ledger holds at most one armed waiter; a new one is created per wait.
type waiter struct {
	done     chan struct{}
	signaled bool
}

func newWaiter() *waiter {
	return &waiter{done: make(chan struct{})}
}

// signal fires the waiter once. Callers hold the owning ledger's lock.
func (w *waiter) signal() {
	if w.signaled {
		return
	}
	w.signaled = true
	close(w.done)
}
