package client

import "sync"

// callbackList is an ordered set of listeners. Registration returns an
// unregister func; dispatch walks listeners in registration order.
type callbackList[T any] struct {
	mu   sync.Mutex
	next int
	subs []callbackEntry[T]
}

type callbackEntry[T any] struct {
	id int
	fn func(T)
}

func (l *callbackList[T]) add(fn func(T)) func() {
	l.mu.Lock()
	id := l.next
	l.next++
	l.subs = append(l.subs, callbackEntry[T]{id: id, fn: fn})
	l.mu.Unlock()

	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		for i, sub := range l.subs {
			if sub.id == id {
				l.subs = append(l.subs[:i], l.subs[i+1:]...)
				return
			}
		}
	}
}

func (l *callbackList[T]) dispatch(v T) {
	l.mu.Lock()
	subs := make([]callbackEntry[T], len(l.subs))
	copy(subs, l.subs)
	l.mu.Unlock()

	for _, sub := range subs {
		sub.fn(v)
	}
}
