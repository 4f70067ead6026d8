package memory

import (
	"context"
	"sync"

	"github.com/emperorhan/terra-sync/internal/store"
)

const subscriberBuffer = 64

// Notifier is an in-process store.Notifier. A subscriber whose buffer is
// full misses the change rather than blocking the publisher.
type Notifier struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]chan store.Change
}

var _ store.Notifier = (*Notifier)(nil)

func NewNotifier() *Notifier {
	return &Notifier{subs: make(map[int]chan store.Change)}
}

func (n *Notifier) Publish(_ context.Context, change store.Change) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, ch := range n.subs {
		select {
		case ch <- change:
		default:
		}
	}
	return nil
}

func (n *Notifier) Subscribe(ctx context.Context) (<-chan store.Change, error) {
	ch := make(chan store.Change, subscriberBuffer)

	n.mu.Lock()
	id := n.nextID
	n.nextID++
	n.subs[id] = ch
	n.mu.Unlock()

	go func() {
		<-ctx.Done()
		n.mu.Lock()
		delete(n.subs, id)
		close(ch)
		n.mu.Unlock()
	}()
	return ch, nil
}
