package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/pricespy/internal/model"
)

func TestHandle_CompletesWithEventsAndSnapshot(t *testing.T) {
	f := &stubFetcher{pages: map[int][]model.RawRecord{
		1: pageRecords(1, 2),
		2: pageRecords(2, 1),
	}}

	var finishedID string
	h := Start(context.Background(), New(f), 3, func(_ context.Context, runID string, res *Result) (string, error) {
		finishedID = runID
		return "results/out.csv", nil
	})

	var events []model.ProgressEvent
	for ev := range h.Events() {
		events = append(events, ev)
	}

	res, err := h.Wait()
	require.NoError(t, err)
	assert.Len(t, res.Dataset, 3)
	assert.Equal(t, h.ID(), finishedID)

	require.Len(t, events, 3, "one event per attempted page")
	for i, ev := range events {
		assert.Equal(t, i+1, ev.Current)
		assert.Equal(t, 3, ev.Total)
	}

	snap := h.Snapshot()
	assert.False(t, h.Running())
	assert.False(t, snap.IsRunning)
	assert.Equal(t, model.RunStatusComplete, snap.Status)
	assert.Equal(t, 100, snap.Progress)
	assert.Equal(t, 3, snap.CurrentPage)
	assert.Equal(t, "results/out.csv", snap.ResultFile)
	require.NotNil(t, snap.Stats)
	assert.Equal(t, 3, snap.Stats.Count)
	assert.NotNil(t, snap.FinishedAt)
	assert.NotEmpty(t, snap.Logs)
}

func TestHandle_NoData(t *testing.T) {
	f := &stubFetcher{pages: map[int][]model.RawRecord{}}
	called := false
	h := Start(context.Background(), New(f), 2, func(context.Context, string, *Result) (string, error) {
		called = true
		return "", nil
	})

	res, err := h.Wait()
	assert.Nil(t, res)
	assert.True(t, errors.Is(err, ErrNoData))
	assert.False(t, called, "finish only runs on data")
	assert.Equal(t, model.RunStatusEmpty, h.Snapshot().Status)
}

func TestHandle_FinishFailureKeepsResult(t *testing.T) {
	f := &stubFetcher{pages: map[int][]model.RawRecord{1: pageRecords(1, 1)}}
	h := Start(context.Background(), New(f), 1, func(context.Context, string, *Result) (string, error) {
		return "", errors.New("disk full")
	})

	res, err := h.Wait()
	require.Error(t, err)
	require.NotNil(t, res)
	snap := h.Snapshot()
	assert.Equal(t, model.RunStatusFailed, snap.Status)
	assert.Equal(t, "disk full", snap.Error)
	require.NotNil(t, snap.Stats)
	assert.Equal(t, 1, snap.Stats.Count)
}

func TestHandle_CancelledRunFails(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	finished := false
	h := Start(ctx, New(&cancelingFetcher{cancel: cancel, cancelAt: 2}), 5,
		func(context.Context, string, *Result) (string, error) {
			finished = true
			return "out.csv", nil
		})

	_, err := h.Wait()
	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, finished, "partial data is not exported")

	snap := h.Snapshot()
	assert.Equal(t, model.RunStatusFailed, snap.Status)
	assert.Empty(t, snap.ResultFile)
	assert.NotEmpty(t, snap.Error)
}

func TestHandle_SnapshotIsACopy(t *testing.T) {
	f := &stubFetcher{pages: map[int][]model.RawRecord{1: pageRecords(1, 1)}}
	h := Start(context.Background(), New(f), 1, nil)
	_, err := h.Wait()
	require.NoError(t, err)

	snap := h.Snapshot()
	snap.Logs[0] = "mutated"
	snap.Stats.Count = 99
	again := h.Snapshot()
	assert.NotEqual(t, "mutated", again.Logs[0])
	assert.Equal(t, 1, again.Stats.Count)
}

func TestCoordinator_RejectsConcurrentRun(t *testing.T) {
	gate := make(chan struct{})
	f := &stubFetcher{gate: gate, pages: map[int][]model.RawRecord{1: pageRecords(1, 1)}}
	c := NewCoordinator(func(Options) (*Pipeline, error) { return New(f), nil })

	opts := Options{PageCount: 1, MaxRetries: 1}
	h, err := c.Start(context.Background(), opts, nil)
	require.NoError(t, err)
	assert.True(t, c.Busy())
	assert.Same(t, h, c.Current())

	_, err = c.Start(context.Background(), opts, nil)
	assert.True(t, errors.Is(err, ErrRunInProgress))

	close(gate)
	_, err = h.Wait()
	require.NoError(t, err)
	assert.False(t, c.Busy())

	h2, err := c.Start(context.Background(), opts, nil)
	require.NoError(t, err)
	assert.NotEqual(t, h.ID(), h2.ID())
	_, _ = h2.Wait()
}

func TestCoordinator_ValidatesBeforeStarting(t *testing.T) {
	c := NewCoordinator(nil)
	_, err := c.Start(context.Background(), Options{PageCount: 60, MaxRetries: 3}, nil)
	assert.True(t, errors.Is(err, ErrInvalidPageCount))
	assert.Nil(t, c.Current())
	assert.False(t, c.Busy())
}

func TestCoordinator_SnapshotWhileRunning(t *testing.T) {
	gate := make(chan struct{})
	f := &stubFetcher{gate: gate, pages: map[int][]model.RawRecord{1: pageRecords(1, 1)}}
	c := NewCoordinator(func(Options) (*Pipeline, error) { return New(f), nil })

	h, err := c.Start(context.Background(), Options{PageCount: 2, MaxRetries: 1}, nil)
	require.NoError(t, err)

	select {
	case ev := <-h.Events():
		assert.Equal(t, 1, ev.Current)
	case <-time.After(5 * time.Second):
		t.Fatal("no progress event")
	}
	snap := h.Snapshot()
	assert.True(t, snap.IsRunning)
	assert.Equal(t, 1, snap.CurrentPage)
	assert.Equal(t, 50, snap.Progress)

	close(gate)
	_, err = h.Wait()
	require.NoError(t, err)
}
