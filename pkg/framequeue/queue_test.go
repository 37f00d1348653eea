package framequeue

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/ccalmels/opengl-player/pkg/frame"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFrame(ts int64) *frame.Frame {
	return &frame.Frame{
		Timestamp:   ts,
		Width:       2,
		Height:      2,
		PixelFormat: frame.PixelFormatYUV420P,
	}
}

func TestPushBlocksWhileFull(t *testing.T) {
	ctx := context.Background()
	q := New(0)
	require.Equal(t, DefaultCapacity, q.Capacity())

	for ts := int64(0); ts < DefaultCapacity; ts++ {
		require.True(t, q.Push(ctx, newFrame(ts)))
	}
	require.Equal(t, DefaultCapacity, q.Len(ctx))

	pushed := make(chan bool)
	go func() {
		pushed <- q.Push(ctx, newFrame(DefaultCapacity))
	}()

	select {
	case <-pushed:
		t.Fatal("Push returned while the queue was full")
	case <-time.After(50 * time.Millisecond):
	}
	require.Equal(t, DefaultCapacity, q.Len(ctx))

	f := q.PopLatestDue(ctx, 0)
	require.NotNil(t, f)
	require.Equal(t, int64(0), f.Timestamp)

	select {
	case ok := <-pushed:
		require.True(t, ok)
	case <-time.After(time.Second):
		t.Fatal("Push did not return after a frame was popped")
	}
	require.Equal(t, DefaultCapacity, q.Len(ctx))
}

func TestPopLatestDueDropsStaleFrames(t *testing.T) {
	ctx := context.Background()
	q := New(4)
	for _, ts := range []int64{10, 20, 30, 40} {
		require.True(t, q.Push(ctx, newFrame(ts)))
	}

	f := q.PopLatestDue(ctx, 25)
	require.NotNil(t, f)
	assert.Equal(t, int64(20), f.Timestamp)
	assert.Equal(t, 2, q.Len(ctx))
	assert.Equal(t, Stats{Pushed: 4, Popped: 2, Dropped: 1}, q.Stats())

	assert.Nil(t, q.PopLatestDue(ctx, 25))
	assert.Equal(t, Stats{Pushed: 4, Popped: 2, Dropped: 1}, q.Stats())

	f = q.PopLatestDue(ctx, 30)
	require.NotNil(t, f)
	assert.Equal(t, int64(30), f.Timestamp)
	assert.Equal(t, uint64(1), q.Stats().Dropped)
}

func TestPopLatestDueNeverReturnsFutureFrames(t *testing.T) {
	ctx := context.Background()
	rng := rand.New(rand.NewSource(0))
	q := New(8)

	var ts int64
	for round := 0; round < 200; round++ {
		for q.Len(ctx) < q.Capacity() {
			ts += int64(rng.Intn(3))
			require.True(t, q.Push(ctx, newFrame(ts)))
		}
		deadline := ts - int64(rng.Intn(10))
		front := q.Front(ctx)
		f := q.PopLatestDue(ctx, deadline)
		if f == nil {
			require.Greater(t, front.Timestamp, deadline)
			continue
		}
		require.LessOrEqual(t, f.Timestamp, deadline)
		if next := q.Front(ctx); next != nil {
			require.Greater(t, next.Timestamp, deadline)
		}
	}
}

func TestStopReleasesBlockedPush(t *testing.T) {
	ctx := context.Background()
	q := New(1)
	require.True(t, q.Push(ctx, newFrame(0)))

	pushed := make(chan bool)
	go func() {
		pushed <- q.Push(ctx, newFrame(1))
	}()
	time.Sleep(10 * time.Millisecond)

	q.Stop(ctx)
	select {
	case ok := <-pushed:
		require.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("Push was not released by Stop")
	}

	require.False(t, q.Push(ctx, newFrame(2)))
	require.True(t, q.IsStopped(ctx))
	require.False(t, q.IsStoppedAndEmpty(ctx))

	f := q.PopLatestDue(ctx, 100)
	require.NotNil(t, f)
	require.Equal(t, int64(0), f.Timestamp)
	require.True(t, q.IsStoppedAndEmpty(ctx))
}

func TestStopReleasesWaitForFirst(t *testing.T) {
	ctx := context.Background()
	q := New(0)

	result := make(chan bool)
	go func() {
		result <- q.WaitForFirst(ctx)
	}()
	time.Sleep(10 * time.Millisecond)

	q.Stop(ctx)
	q.Stop(ctx)
	select {
	case hasFrame := <-result:
		require.False(t, hasFrame)
	case <-time.After(time.Second):
		t.Fatal("WaitForFirst was not released by Stop")
	}
}

func TestWaitForFirst(t *testing.T) {
	ctx := context.Background()
	q := New(0)

	result := make(chan bool)
	go func() {
		result <- q.WaitForFirst(ctx)
	}()
	require.True(t, q.Push(ctx, newFrame(7)))

	select {
	case hasFrame := <-result:
		require.True(t, hasFrame)
	case <-time.After(time.Second):
		t.Fatal("WaitForFirst was not released by Push")
	}
	require.Equal(t, int64(7), q.Front(ctx).Timestamp)
	require.Equal(t, 1, q.Len(ctx))
}

func TestContextCancellation(t *testing.T) {
	ctx, cancelFn := context.WithCancel(context.Background())
	q := New(1)
	require.True(t, q.Push(ctx, newFrame(0)))

	pushed := make(chan bool)
	go func() {
		pushed <- q.Push(ctx, newFrame(1))
	}()
	cancelFn()

	select {
	case ok := <-pushed:
		require.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("Push was not released by the context cancellation")
	}
	require.False(t, q.IsStopped(context.Background()))
}

func TestDrain(t *testing.T) {
	ctx := context.Background()
	q := New(0)
	require.True(t, q.Push(ctx, newFrame(0)))
	require.True(t, q.Push(ctx, newFrame(1)))
	q.Stop(ctx)

	require.Equal(t, 2, q.Drain(ctx))
	require.True(t, q.IsStoppedAndEmpty(ctx))
	require.Equal(t, 0, q.Drain(ctx))
}
