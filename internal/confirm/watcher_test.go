package confirm

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/emperorhan/terra-sync/internal/chain"
	"github.com/emperorhan/terra-sync/internal/domain/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const hashA = "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"

type fakeReceipts struct {
	mu       sync.Mutex
	pending  int // polls answered with "not mined" before the receipt appears
	errs     []error
	receipt  *chain.Receipt
	polls    atomic.Int32
	lastHash string
}

func (f *fakeReceipts) Receipt(_ context.Context, txHash string) (*chain.Receipt, error) {
	f.polls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastHash = txHash
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		return nil, err
	}
	if f.pending > 0 {
		f.pending--
		return nil, nil
	}
	return f.receipt, nil
}

type fakeSyncer struct {
	err   error
	calls atomic.Int32
	ids   chan model.TokenID
}

func (f *fakeSyncer) SyncParcel(_ context.Context, id model.TokenID) error {
	f.calls.Add(1)
	if f.ids != nil {
		f.ids <- id
	}
	return f.err
}

type fakeMarkers struct {
	removed chan model.TokenID
	err     error
}

func (f *fakeMarkers) RemovePendingMarker(_ context.Context, id model.TokenID) error {
	f.removed <- id
	return f.err
}

func newWatcher(r *fakeReceipts, s *fakeSyncer, m *fakeMarkers, opts ...Option) *Watcher {
	opts = append([]Option{WithPollInterval(5 * time.Millisecond)}, opts...)
	return New(r, s, m, model.NetworkFoundry, nil, opts...)
}

func waitRemoved(t *testing.T, m *fakeMarkers) model.TokenID {
	t.Helper()
	select {
	case id := <-m.removed:
		return id
	case <-time.After(2 * time.Second):
		t.Fatal("marker was not removed")
		return -1
	}
}

func TestWatch_SuccessSyncsAndClearsMarker(t *testing.T) {
	t.Parallel()
	receipts := &fakeReceipts{pending: 2, receipt: &chain.Receipt{TxHash: hashA, BlockNumber: 12, Succeeded: true}}
	syncer := &fakeSyncer{}
	markers := &fakeMarkers{removed: make(chan model.TokenID, 1)}
	w := newWatcher(receipts, syncer, markers)
	defer w.Stop()

	w.Watch(context.Background(), hashA, 3)

	assert.Equal(t, model.TokenID(3), waitRemoved(t, markers))
	assert.Equal(t, int32(1), syncer.calls.Load())
	assert.GreaterOrEqual(t, receipts.polls.Load(), int32(3))
}

func TestWatch_FailingReadStillClearsMarker(t *testing.T) {
	t.Parallel()
	receipts := &fakeReceipts{receipt: &chain.Receipt{TxHash: hashA, Succeeded: true}}
	syncer := &fakeSyncer{err: errors.New("rpc unavailable")}
	markers := &fakeMarkers{removed: make(chan model.TokenID, 1)}
	w := newWatcher(receipts, syncer, markers)
	defer w.Stop()

	w.Watch(context.Background(), hashA, 9)

	assert.Equal(t, model.TokenID(9), waitRemoved(t, markers))
	assert.Equal(t, int32(1), syncer.calls.Load())
}

func TestWatch_RevertedStillResyncs(t *testing.T) {
	t.Parallel()
	receipts := &fakeReceipts{receipt: &chain.Receipt{TxHash: hashA, Succeeded: false}}
	syncer := &fakeSyncer{}
	markers := &fakeMarkers{removed: make(chan model.TokenID, 1)}
	w := newWatcher(receipts, syncer, markers)
	defer w.Stop()

	w.Watch(context.Background(), hashA, 4)

	assert.Equal(t, model.TokenID(4), waitRemoved(t, markers))
	assert.Equal(t, int32(1), syncer.calls.Load())
}

func TestWatch_ProcessesHashOnce(t *testing.T) {
	t.Parallel()
	receipts := &fakeReceipts{receipt: &chain.Receipt{TxHash: hashA, Succeeded: true}}
	syncer := &fakeSyncer{}
	markers := &fakeMarkers{removed: make(chan model.TokenID, 4)}
	w := newWatcher(receipts, syncer, markers)
	defer w.Stop()

	w.Watch(context.Background(), hashA, 1)
	waitRemoved(t, markers)

	require.Eventually(t, func() bool {
		_, busy := w.watching.Load(hashA)
		return !busy
	}, time.Second, 5*time.Millisecond)

	w.Watch(context.Background(), hashA, 1)
	w.Watch(context.Background(), "0xAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA", 1)
	w.Stop()

	assert.Equal(t, int32(1), syncer.calls.Load())
	assert.Empty(t, markers.removed)
}

func TestWatch_ConcurrentDuplicateWatchesCollapse(t *testing.T) {
	t.Parallel()
	receipts := &fakeReceipts{pending: 3, receipt: &chain.Receipt{TxHash: hashA, Succeeded: true}}
	syncer := &fakeSyncer{}
	markers := &fakeMarkers{removed: make(chan model.TokenID, 4)}
	w := newWatcher(receipts, syncer, markers)

	for i := 0; i < 5; i++ {
		w.Watch(context.Background(), hashA, 2)
	}
	waitRemoved(t, markers)
	w.Stop()

	assert.Equal(t, int32(1), syncer.calls.Load())
}

func TestWatch_TransientErrorsKeepPolling(t *testing.T) {
	t.Parallel()
	receipts := &fakeReceipts{
		errs:    []error{errors.New("connection refused"), errors.New("request timed out")},
		receipt: &chain.Receipt{TxHash: hashA, Succeeded: true},
	}
	syncer := &fakeSyncer{}
	markers := &fakeMarkers{removed: make(chan model.TokenID, 1)}
	w := newWatcher(receipts, syncer, markers)
	defer w.Stop()

	w.Watch(context.Background(), hashA, 6)

	assert.Equal(t, model.TokenID(6), waitRemoved(t, markers))
	assert.Equal(t, int32(3), receipts.polls.Load())
}

func TestWatch_TerminalErrorStopsWithoutClearing(t *testing.T) {
	t.Parallel()
	receipts := &fakeReceipts{errs: []error{errors.New("invalid params: bad hash")}}
	syncer := &fakeSyncer{}
	markers := &fakeMarkers{removed: make(chan model.TokenID, 1)}
	w := newWatcher(receipts, syncer, markers)

	w.Watch(context.Background(), hashA, 6)
	require.Eventually(t, func() bool {
		_, busy := w.watching.Load(hashA)
		return !busy
	}, time.Second, 5*time.Millisecond)
	w.Stop()

	assert.Equal(t, int32(1), receipts.polls.Load())
	assert.Zero(t, syncer.calls.Load())
	assert.Empty(t, markers.removed)
}

func TestWatch_TimeoutLeavesMarker(t *testing.T) {
	t.Parallel()
	receipts := &fakeReceipts{pending: 1 << 20}
	syncer := &fakeSyncer{}
	markers := &fakeMarkers{removed: make(chan model.TokenID, 1)}
	w := newWatcher(receipts, syncer, markers, WithTimeout(40*time.Millisecond))

	w.Watch(context.Background(), hashA, 5)
	require.Eventually(t, func() bool {
		_, busy := w.watching.Load(hashA)
		return !busy
	}, time.Second, 5*time.Millisecond)
	w.Stop()

	assert.Zero(t, syncer.calls.Load())
	assert.Empty(t, markers.removed)
}

func TestWatch_NotBoundToCallerContext(t *testing.T) {
	t.Parallel()
	receipts := &fakeReceipts{pending: 3, receipt: &chain.Receipt{TxHash: hashA, Succeeded: true}}
	syncer := &fakeSyncer{}
	markers := &fakeMarkers{removed: make(chan model.TokenID, 1)}
	w := newWatcher(receipts, syncer, markers)
	defer w.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	w.Watch(ctx, hashA, 8)
	cancel()

	assert.Equal(t, model.TokenID(8), waitRemoved(t, markers))
}

func TestStop_AbandonsWatches(t *testing.T) {
	t.Parallel()
	receipts := &fakeReceipts{pending: 1 << 20}
	markers := &fakeMarkers{removed: make(chan model.TokenID, 1)}
	w := newWatcher(receipts, &fakeSyncer{}, markers)

	w.Watch(context.Background(), hashA, 1)
	done := make(chan struct{})
	go func() {
		w.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return")
	}
	assert.Empty(t, markers.removed)

	w.Watch(context.Background(), hashA, 1)
	_, busy := w.watching.Load(hashA)
	assert.False(t, busy, "a stopped watcher starts nothing")
}
