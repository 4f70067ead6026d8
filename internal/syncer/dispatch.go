package syncer

import (
	"context"
	"sync"

	"github.com/emperorhan/terra-sync/internal/domain/model"
	"golang.org/x/sync/semaphore"
)

// dispatcher is the worker set behind Run. slots bounds concurrent workers,
// workers is drained on shutdown and refreshes holds at most one pending
// batch refresh request.
type dispatcher struct {
	slots     *semaphore.Weighted
	workers   sync.WaitGroup
	refreshes chan struct{}

	mu sync.Mutex
	// inflight maps a parcel being synced to whether another pass was
	// requested while it ran.
	inflight map[model.TokenID]bool
}

func newDispatcher(maxParallel int) *dispatcher {
	if maxParallel <= 0 {
		maxParallel = defaultMaxParallel
	}
	return &dispatcher{
		slots:     semaphore.NewWeighted(int64(maxParallel)),
		refreshes: make(chan struct{}, 1),
		inflight:  make(map[model.TokenID]bool),
	}
}

// spawn runs fn on a worker once a slot is free. It gives up when ctx ends
// first.
func (d *dispatcher) spawn(ctx context.Context, fn func()) {
	if err := d.slots.Acquire(ctx, 1); err != nil {
		return
	}
	d.workers.Add(1)
	go func() {
		defer d.workers.Done()
		defer d.slots.Release(1)
		fn()
	}()
}

// claim marks id as in flight. It returns false when a worker already owns
// id, in which case that worker runs one more pass.
func (d *dispatcher) claim(id model.TokenID) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, busy := d.inflight[id]; busy {
		d.inflight[id] = true
		return false
	}
	d.inflight[id] = false
	return true
}

// again reports whether the owner of id must run another pass, releasing id
// when it does not.
func (d *dispatcher) again(id model.TokenID) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.inflight[id] {
		d.inflight[id] = false
		return true
	}
	delete(d.inflight, id)
	return false
}

func (d *dispatcher) requestRefresh() {
	select {
	case d.refreshes <- struct{}{}:
	default:
	}
}
