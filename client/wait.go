package client

import "sync"

// oneshot is a future resolved at most once. Waiters select on done() and
// read err() afterwards; later resolve calls are no-ops.
type oneshot struct {
	once sync.Once
	ch   chan struct{}
	res  error
}

func newOneshot() *oneshot {
	return &oneshot{ch: make(chan struct{})}
}

func (o *oneshot) resolve(err error) {
	o.once.Do(func() {
		o.res = err
		close(o.ch)
	})
}

func (o *oneshot) done() <-chan struct{} {
	return o.ch
}

// err returns the resolution; only valid after done() is closed.
func (o *oneshot) err() error {
	return o.res
}
