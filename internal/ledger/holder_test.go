package ledger_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tiliavir/hamster-panel/internal/ledger"
	"github.com/Tiliavir/hamster-panel/internal/model"
)

type fakeSource struct {
	mu      sync.Mutex
	records []model.RawRecord
	err     error
	calls   atomic.Int32
	gate    chan struct{}

	inflight atomic.Int32
	peak     atomic.Int32
}

func (f *fakeSource) GetTodaysFacts(ctx context.Context) ([]model.RawRecord, error) {
	f.calls.Add(1)
	n := f.inflight.Add(1)
	defer f.inflight.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}
	// Answer with the state as of the call, like a daemon would.
	f.mu.Lock()
	records, err := f.records, f.err
	f.mu.Unlock()
	if f.gate != nil {
		<-f.gate
	}
	return records, err
}

func (f *fakeSource) set(records []model.RawRecord, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records, f.err = records, err
}

func TestLedgerStartsEmpty(t *testing.T) {
	l := ledger.New(&fakeSource{})
	snap := l.Snapshot()
	require.NotNil(t, snap)
	assert.Empty(t, snap.Facts)
}

func TestLedgerRefreshInstallsSnapshot(t *testing.T) {
	src := &fakeSource{records: []model.RawRecord{record(1, 100, 0, "Coding")}}
	fixed := time.Date(2026, 2, 27, 9, 0, 0, 0, time.UTC)
	l := ledger.New(src, ledger.WithLocation(time.UTC), ledger.WithClock(func() time.Time { return fixed }))

	snap, err := l.Refresh(context.Background())
	require.NoError(t, err)
	assert.Len(t, snap.Facts, 1)
	assert.Same(t, snap, l.Snapshot())
	assert.Equal(t, fixed, snap.FetchedAt)

	select {
	case got := <-l.Changes():
		assert.Same(t, snap, got)
	default:
		t.Fatal("expected a change notification")
	}
}

func TestLedgerKeepsSnapshotOnFailure(t *testing.T) {
	src := &fakeSource{records: []model.RawRecord{record(1, 100, 0, "Coding")}}
	l := ledger.New(src)
	first, err := l.Refresh(context.Background())
	require.NoError(t, err)

	boom := errors.New("bus gone")
	src.set(nil, boom)
	snap, err := l.Refresh(context.Background())
	require.ErrorIs(t, err, boom)
	assert.Same(t, first, snap)
	assert.Same(t, first, l.Snapshot())
}

func TestLedgerChangesKeepsLatest(t *testing.T) {
	src := &fakeSource{records: []model.RawRecord{record(1, 100, 0, "Coding")}}
	l := ledger.New(src)

	_, err := l.Refresh(context.Background())
	require.NoError(t, err)
	src.set([]model.RawRecord{record(1, 100, 200, "Coding"), record(2, 200, 0, "Mail")}, nil)
	latest, err := l.Refresh(context.Background())
	require.NoError(t, err)

	got := <-l.Changes()
	assert.Same(t, latest, got)
	select {
	case <-l.Changes():
		t.Fatal("expected only the latest snapshot to be queued")
	default:
	}
}

func TestLedgerRefreshDoesNotOverlap(t *testing.T) {
	src := &fakeSource{records: []model.RawRecord{record(1, 100, 0, "Coding")}, gate: make(chan struct{})}
	l := ledger.New(src)

	var wg sync.WaitGroup
	results := make([]*ledger.Snapshot, 5)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			snap, err := l.Refresh(context.Background())
			assert.NoError(t, err)
			results[i] = snap
		}(i)
	}
	// Let the callers pile up on the in-flight fetch before releasing it.
	require.Eventually(t, func() bool { return src.calls.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(src.gate)
	wg.Wait()

	assert.Equal(t, int32(1), src.peak.Load())
	// The first fetch plus one more shared by everyone queued behind it.
	assert.LessOrEqual(t, src.calls.Load(), int32(len(results)))
	for _, snap := range results {
		require.NotNil(t, snap)
		assert.Len(t, snap.Facts, 1)
	}
}

func TestLedgerRefreshAfterChangeSeesChange(t *testing.T) {
	src := &fakeSource{gate: make(chan struct{})}
	l := ledger.New(src)

	first := make(chan *ledger.Snapshot, 1)
	go func() {
		snap, _ := l.Refresh(context.Background())
		first <- snap
	}()
	require.Eventually(t, func() bool { return src.calls.Load() == 1 }, time.Second, time.Millisecond)

	// The daemon accepts a command while the first fetch is still out.
	src.set([]model.RawRecord{record(1, 100, 0, "Coding")}, nil)
	after := make(chan *ledger.Snapshot, 1)
	go func() {
		snap, err := l.Refresh(context.Background())
		assert.NoError(t, err)
		after <- snap
	}()
	close(src.gate)

	assert.Empty(t, (<-first).Facts)
	snap := <-after
	_, open := ledger.CurrentActivity(snap)
	assert.True(t, open, "refresh issued after the change must fetch again")
	assert.Equal(t, int32(2), src.calls.Load())
	assert.Same(t, snap, l.Snapshot())
}

func TestLedgerCancelledWaiterLeavesFetchAlone(t *testing.T) {
	src := &fakeSource{records: []model.RawRecord{record(1, 100, 0, "Coding")}, gate: make(chan struct{})}
	l := ledger.New(src)

	first := make(chan error, 1)
	go func() {
		_, err := l.Refresh(context.Background())
		first <- err
	}()
	require.Eventually(t, func() bool { return src.calls.Load() == 1 }, time.Second, time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := l.Refresh(ctx)
	require.ErrorIs(t, err, context.Canceled)

	close(src.gate)
	require.NoError(t, <-first)
	assert.Len(t, l.Snapshot().Facts, 1)
	assert.Equal(t, int32(1), src.calls.Load())
}

func TestLedgerRunRefreshesOnNotify(t *testing.T) {
	src := &fakeSource{records: []model.RawRecord{record(1, 100, 0, "Coding")}}
	l := ledger.New(src)
	notify := make(chan struct{})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- l.Run(ctx, time.Hour, notify) }()

	require.Eventually(t, func() bool { return src.calls.Load() == 1 }, time.Second, time.Millisecond)
	notify <- struct{}{}
	require.Eventually(t, func() bool { return src.calls.Load() == 2 }, time.Second, time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}
