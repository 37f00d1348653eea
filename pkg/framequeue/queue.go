package framequeue

import (
	"context"
	"sync/atomic"

	"github.com/ccalmels/opengl-player/pkg/frame"
	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/xaionaro-go/xsync"
)

const (
	DefaultCapacity = 3
)

// Queue is a bounded FIFO of frames between exactly one producer and
// exactly one consumer.
//
// Frames are kept in the order they were pushed, which is expected to be
// non-decreasing timestamp order.
type Queue struct {
	locker     xsync.Mutex
	capacity   int
	frames     []*frame.Frame
	isStopped  bool
	changeChan chan struct{}

	pushedCount  atomic.Uint64
	poppedCount  atomic.Uint64
	droppedCount atomic.Uint64
}

type Stats struct {
	Pushed  uint64
	Popped  uint64
	Dropped uint64
}

func New(capacity uint) *Queue {
	if capacity == 0 {
		capacity = DefaultCapacity
	}
	return &Queue{
		capacity:   int(capacity),
		frames:     make([]*frame.Frame, 0, capacity),
		changeChan: make(chan struct{}),
	}
}

func (q *Queue) Capacity() int {
	return q.capacity
}

func (q *Queue) Len(ctx context.Context) int {
	return xsync.DoR1(ctx, &q.locker, func() int {
		return len(q.frames)
	})
}

func (q *Queue) Stats() Stats {
	return Stats{
		Pushed:  q.pushedCount.Load(),
		Popped:  q.poppedCount.Load(),
		Dropped: q.droppedCount.Load(),
	}
}

// notifyLocked wakes up everybody waiting for a change of the queue.
func (q *Queue) notifyLocked() {
	var oldChan chan struct{}
	q.changeChan, oldChan = make(chan struct{}), q.changeChan
	close(oldChan)
}

// Push appends the frame, blocking while the queue is full.
//
// It returns false if the queue was stopped before or while waiting (or if
// ctx was cancelled); in this case the ownership of the frame stays with
// the caller.
func (q *Queue) Push(
	ctx context.Context,
	f *frame.Frame,
) bool {
	logger.Tracef(ctx, "Push(ctx, %s)", f)
	defer logger.Tracef(ctx, "/Push(ctx, %s)", f)

	for {
		var (
			pushed   bool
			rejected bool
			waitChan <-chan struct{}
		)
		q.locker.Do(ctx, func() {
			switch {
			case q.isStopped:
				rejected = true
			case len(q.frames) < q.capacity:
				q.frames = append(q.frames, f)
				q.pushedCount.Add(1)
				q.notifyLocked()
				pushed = true
			default:
				waitChan = q.changeChan
			}
		})
		switch {
		case pushed:
			return true
		case rejected:
			return false
		}

		select {
		case <-ctx.Done():
			logger.Debugf(ctx, "Push: context is closed: %v", ctx.Err())
			return false
		case <-waitChan:
		}
	}
}

// PopLatestDue never blocks. It pops every frame due at deadline (that is
// with Timestamp <= deadline) and returns the latest of them, discarding
// the earlier ones. It returns nil if no frame is due yet.
func (q *Queue) PopLatestDue(
	ctx context.Context,
	deadline int64,
) *frame.Frame {
	logger.Tracef(ctx, "PopLatestDue(ctx, %d)", deadline)
	defer logger.Tracef(ctx, "/PopLatestDue(ctx, %d)", deadline)

	var (
		result *frame.Frame
		popped int
	)
	q.locker.Do(ctx, func() {
		for len(q.frames) > 0 && q.frames[0].Timestamp <= deadline {
			if result != nil {
				result.Release(ctx)
			}
			result = q.frames[0]
			q.frames[0] = nil
			q.frames = q.frames[1:]
			popped++
		}
		if popped > 0 {
			q.notifyLocked()
		}
	})
	if popped == 0 {
		return nil
	}

	dropped := popped - 1
	q.poppedCount.Add(uint64(popped))
	q.droppedCount.Add(uint64(dropped))
	logger.Tracef(ctx, "dropped %d frames", dropped)
	if dropped > 0 {
		logger.Debugf(ctx, "dropped %d stale frames, presenting %s (deadline: %d)", dropped, result, deadline)
	}
	return result
}

// Front returns the oldest queued frame without removing it. The frame is
// still owned by the queue and stays valid until it is popped, so only the
// consumer may call it.
func (q *Queue) Front(ctx context.Context) *frame.Frame {
	return xsync.DoR1(ctx, &q.locker, func() *frame.Frame {
		if len(q.frames) == 0 {
			return nil
		}
		return q.frames[0]
	})
}

// WaitForFirst blocks until at least one frame is queued or the queue is
// stopped, and returns whether a frame is queued.
func (q *Queue) WaitForFirst(ctx context.Context) bool {
	logger.Debugf(ctx, "WaitForFirst")
	defer logger.Debugf(ctx, "/WaitForFirst")

	for {
		var (
			hasFrame  bool
			isStopped bool
			waitChan  <-chan struct{}
		)
		q.locker.Do(ctx, func() {
			hasFrame = len(q.frames) > 0
			isStopped = q.isStopped
			waitChan = q.changeChan
		})
		if hasFrame {
			return true
		}
		if isStopped {
			return false
		}

		select {
		case <-ctx.Done():
			logger.Debugf(ctx, "WaitForFirst: context is closed: %v", ctx.Err())
			return false
		case <-waitChan:
		}
	}
}

// Stop marks the queue as stopped and releases all the blocked callers.
// Frames that are already queued stay available for popping.
func (q *Queue) Stop(ctx context.Context) {
	q.locker.Do(ctx, func() {
		if q.isStopped {
			return
		}
		logger.Debugf(ctx, "stopping the frame queue with %d frames left", len(q.frames))
		q.isStopped = true
		q.notifyLocked()
	})
}

func (q *Queue) IsStopped(ctx context.Context) bool {
	return xsync.DoR1(ctx, &q.locker, func() bool {
		return q.isStopped
	})
}

// IsStoppedAndEmpty reports the end of playback: nothing will ever be
// popped from the queue again.
func (q *Queue) IsStoppedAndEmpty(ctx context.Context) bool {
	return xsync.DoR1(ctx, &q.locker, func() bool {
		return q.isStopped && len(q.frames) == 0
	})
}

// Drain removes and releases all the queued frames, returning how many
// were released.
func (q *Queue) Drain(ctx context.Context) int {
	frames := xsync.DoR1(ctx, &q.locker, func() []*frame.Frame {
		frames := q.frames
		q.frames = make([]*frame.Frame, 0, q.capacity)
		if len(frames) > 0 {
			q.notifyLocked()
		}
		return frames
	})
	for _, f := range frames {
		f.Release(ctx)
	}
	return len(frames)
}
