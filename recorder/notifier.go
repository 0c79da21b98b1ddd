package recorder

import (
	"context"
	"sync"
)

// Notifier fans out published items to subscribers.
// Publishing never blocks: items are dropped for subscribers that do not keep up.
type Notifier[T any] struct {
	subscribers map[<-chan T]chan T
	bufferSize  int
	closed      bool
	done        chan struct{}
	mu          sync.RWMutex
}

// NewNotifier creates a notifier with the given buffer size per subscriber.
func NewNotifier[T any](bufferSize int) *Notifier[T] {
	return &Notifier[T]{
		subscribers: make(map[<-chan T]chan T),
		bufferSize:  bufferSize,
		done:        make(chan struct{}),
	}
}

// Subscribe returns a channel receiving published items until ctx is done or the notifier is closed.
func (n *Notifier[T]) Subscribe(ctx context.Context) <-chan T {
	n.mu.Lock()
	defer n.mu.Unlock()

	ch := make(chan T, n.bufferSize)
	if n.closed {
		close(ch)
		return ch
	}
	n.subscribers[ch] = ch

	go func() {
		select {
		case <-ctx.Done():
			n.unsubscribe(ch)
		case <-n.done:
		}
	}()

	return ch
}

func (n *Notifier[T]) unsubscribe(ch <-chan T) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if sub, ok := n.subscribers[ch]; ok {
		delete(n.subscribers, ch)
		close(sub)
	}
}

// Publish sends item to all current subscribers.
func (n *Notifier[T]) Publish(item T) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	if n.closed {
		return
	}
	for _, ch := range n.subscribers {
		select {
		case ch <- item:
		default:
			// Subscriber is full, drop
		}
	}
}

// Close closes all subscriber channels. Later publishes are ignored.
func (n *Notifier[T]) Close() {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.closed {
		return
	}
	n.closed = true
	close(n.done)
	for key, ch := range n.subscribers {
		close(ch)
		delete(n.subscribers, key)
	}
}
