package dispatch

import "sync"

// cancelToken is handed to a MessageHandler alongside a request's context.
// Cancellation is advisory: the handler observes it at its own checkpoints,
// there is no preemptive termination.
type cancelToken struct {
	once sync.Once
	done chan struct{}
}

func newCancelToken() *cancelToken {
	return &cancelToken{done: make(chan struct{})}
}

func (c *cancelToken) cancel() {
	c.once.Do(func() { close(c.done) })
}

// Cancelled reports whether cancellation has been requested.
func (c *cancelToken) Cancelled() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// Done returns a channel closed when cancellation is requested.
func (c *cancelToken) Done() <-chan struct{} {
	return c.done
}
