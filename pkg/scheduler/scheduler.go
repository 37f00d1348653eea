package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/ccalmels/opengl-player/pkg/clock"
	"github.com/ccalmels/opengl-player/pkg/frame"
	"github.com/facebookincubator/go-belt/tool/logger"
)

// FrameSource is the consumer side of a frame queue.
type FrameSource interface {
	PopLatestDue(ctx context.Context, deadline int64) *frame.Frame
}

// Scheduler maps the wall-clock time elapsed since the first frame was
// displayed onto the decoder time base, and pulls the frame that is due.
//
// It never sleeps: it is polled once per render tick.
type Scheduler struct {
	clock          clock.Clock
	timeBase       frame.Rational
	startedAt      time.Time
	firstTimestamp int64
	isStarted      bool
}

func New(
	clk clock.Clock,
	timeBase frame.Rational,
) (*Scheduler, error) {
	if !timeBase.IsValid() {
		return nil, fmt.Errorf("invalid time base: %v", timeBase)
	}
	if clk == nil {
		clk = clock.Get()
	}
	return &Scheduler{
		clock:    clk,
		timeBase: timeBase,
	}, nil
}

// Start captures the current wall-clock time as the moment the frame with
// the given timestamp is due. A frame without a timestamp starts the
// timeline at zero.
func (s *Scheduler) Start(firstTimestamp int64) {
	if firstTimestamp == frame.NoTimestamp {
		firstTimestamp = 0
	}
	s.startedAt = s.clock.Now()
	s.firstTimestamp = firstTimestamp
	s.isStarted = true
}

func (s *Scheduler) Started() bool {
	return s.isStarted
}

func (s *Scheduler) TimeBase() frame.Rational {
	return s.timeBase
}

// Elapsed returns the wall-clock time elapsed since Start.
func (s *Scheduler) Elapsed() time.Duration {
	if !s.isStarted {
		return 0
	}
	return s.clock.Since(s.startedAt)
}

// Deadline returns the latest timestamp (in the decoder time base) that
// is allowed to be on screen right now.
func (s *Scheduler) Deadline() int64 {
	return DeadlineFor(s.Elapsed().Milliseconds(), s.timeBase, s.firstTimestamp)
}

// Next returns the frame that should be displayed at this tick, or nil
// if there is nothing new to display.
func (s *Scheduler) Next(
	ctx context.Context,
	source FrameSource,
) *frame.Frame {
	if !s.isStarted {
		logger.Errorf(ctx, "the scheduler is not started")
		return nil
	}
	deadline := s.Deadline()
	logger.Tracef(ctx, "deadline: %d (elapsed: %v)", deadline, s.Elapsed())
	return source.PopLatestDue(ctx, deadline)
}

// DeadlineFor rounds down, so a frame is never due before the wall clock
// reaches its timestamp.
func DeadlineFor(
	elapsedMS int64,
	timeBase frame.Rational,
	firstTimestamp int64,
) int64 {
	return frame.RescaleRnd(elapsedMS, frame.Millisecond, timeBase, frame.RoundDown) + firstTimestamp
}
