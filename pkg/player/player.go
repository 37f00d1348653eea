package player

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/ccalmels/opengl-player/pkg/clock"
	"github.com/ccalmels/opengl-player/pkg/decoder"
	"github.com/ccalmels/opengl-player/pkg/framequeue"
	"github.com/ccalmels/opengl-player/pkg/gpu"
	"github.com/ccalmels/opengl-player/pkg/scheduler"
	"github.com/ccalmels/opengl-player/pkg/shader"
	"github.com/ccalmels/opengl-player/pkg/surface"
	"github.com/facebookincubator/go-belt/tool/experimental/errmon"
	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/hashicorp/go-multierror"
	"github.com/xaionaro-go/observability"
)

// ErrNoFrames means the stream ended before producing any frame.
var ErrNoFrames = errors.New("the stream ended before producing any frame")

type StepResult int

const (
	StepResultUndefined = StepResult(iota)

	// StepResultIdle means no new frame was due; nothing was drawn.
	StepResultIdle

	// StepResultPresented means a new frame was drawn and presented.
	StepResultPresented

	// StepResultSkipped means the due frame could not be uploaded.
	StepResultSkipped

	// StepResultEnded means the stream is over and all frames are consumed.
	StepResultEnded
)

func (r StepResult) String() string {
	switch r {
	case StepResultUndefined:
		return "undefined"
	case StepResultIdle:
		return "idle"
	case StepResultPresented:
		return "presented"
	case StepResultSkipped:
		return "skipped"
	case StepResultEnded:
		return "ended"
	default:
		return fmt.Sprintf("unknown_step_result_%d", int(r))
	}
}

type Stats struct {
	framequeue.Stats
	Presented uint64
	Skipped   uint64
}

// Player connects the decode producer to the GPU: it owns the frame queue
// and the render side of the pipeline.
//
// All the methods except Stats must be called from the render thread.
type Player struct {
	Config       Config
	Input        decoder.Input
	GPU          gpu.Context
	Programs     shader.Programs
	Capabilities *gpu.Capabilities

	queue        *framequeue.Queue
	producer     *decoder.Producer
	producerDone   chan struct{}
	producerErr    error
	cancelProducer context.CancelFunc
	scheduler    *scheduler.Scheduler
	surface      *surface.Surface
	isClosed     bool

	presentedCount atomic.Uint64
	skippedCount   atomic.Uint64
}

func New(
	ctx context.Context,
	input decoder.Input,
	gpuCtx gpu.Context,
	programs shader.Programs,
	opts ...Option,
) *Player {
	cfg := Options(opts).Config(ctx)
	if cfg.Clock == nil {
		cfg.Clock = clock.Get()
	}
	q := framequeue.New(cfg.QueueCapacity)
	return &Player{
		Config:       cfg,
		Input:        input,
		GPU:          gpuCtx,
		Programs:     programs,
		Capabilities: gpu.NewCapabilities(gpuCtx),
		queue:        q,
		producer:     decoder.NewProducer(input, q, cfg.HardwarePreference, cfg.Metrics),
	}
}

func (p *Player) Stats() Stats {
	return Stats{
		Stats:     p.queue.Stats(),
		Presented: p.presentedCount.Load(),
		Skipped:   p.skippedCount.Load(),
	}
}

// Start launches the decode producer, waits for the first frame and
// prepares the surface for it.
func (p *Player) Start(ctx context.Context) (_err error) {
	logger.Debugf(ctx, "Start")
	defer func() { logger.Debugf(ctx, "/Start: %v", _err) }()

	if p.producerDone != nil {
		return fmt.Errorf("the player is already started")
	}

	p.producerDone = make(chan struct{})
	producerCtx, cancelProducer := context.WithCancel(ctx)
	p.cancelProducer = cancelProducer
	observability.Go(producerCtx, func(ctx context.Context) {
		defer close(p.producerDone)
		err := p.producer.Run(ctx)
		if err != nil && ctx.Err() != nil && errors.Is(err, ctx.Err()) {
			logger.Debugf(ctx, "the decoding is interrupted: %v", err)
			return
		}
		p.producerErr = err
		if err != nil {
			logger.Errorf(ctx, "the decoding stopped: %v", err)
			errmon.ObserveErrorCtx(ctx, err)
			return
		}
		logger.Debugf(ctx, "the decoding finished")
	})

	if !p.queue.WaitForFirst(ctx) {
		if err := ctx.Err(); err != nil {
			return err
		}
		<-p.producerDone
		if p.producerErr != nil {
			return fmt.Errorf("%w: %w", ErrNoFrames, p.producerErr)
		}
		return ErrNoFrames
	}
	first := p.queue.Front(ctx)

	streamIndex, err := p.Input.VideoStreamIndex(ctx)
	if err != nil {
		return fmt.Errorf("unable to get the video stream index: %w", err)
	}
	p.scheduler, err = scheduler.New(p.Config.Clock, p.Input.TimeBase(streamIndex))
	if err != nil {
		return fmt.Errorf("unable to initialize the scheduler: %w", err)
	}

	p.surface, err = surface.New(ctx, p.GPU, p.Capabilities, p.Programs, first)
	if err != nil {
		return fmt.Errorf("unable to initialize the surface for %s: %w", first, err)
	}

	p.scheduler.Start(first.Timestamp)
	logger.Infof(ctx, "started playback at timestamp %d (time base %s)", first.Timestamp, p.scheduler.TimeBase())
	return nil
}

// Step runs a single render tick.
func (p *Player) Step(ctx context.Context) (StepResult, error) {
	if p.surface == nil {
		return StepResultUndefined, fmt.Errorf("the player is not started")
	}

	if p.queue.IsStoppedAndEmpty(ctx) {
		return StepResultEnded, nil
	}

	droppedBefore := p.queue.Stats().Dropped
	f := p.scheduler.Next(ctx, p.queue)
	p.Config.Metrics.FramesDropped(p.queue.Stats().Dropped - droppedBefore)
	p.Config.Metrics.SetQueueLength(p.queue.Len(ctx))
	if f == nil {
		return StepResultIdle, nil
	}
	defer f.Release(ctx)

	err := p.surface.Update(ctx, f)
	var errSkipped surface.ErrFrameSkipped
	switch {
	case err == nil:
	case errors.As(err, &errSkipped):
		logger.Warnf(ctx, "%v", err)
		p.skippedCount.Add(1)
		p.Config.Metrics.FrameSkipped()
		return StepResultSkipped, nil
	default:
		return StepResultUndefined, fmt.Errorf("unable to update the surface with %s: %w", f, err)
	}

	if err := p.draw(ctx); err != nil {
		return StepResultUndefined, err
	}
	p.presentedCount.Add(1)
	p.Config.Metrics.FramePresented()
	logger.Tracef(ctx, "presented %s", f)
	return StepResultPresented, nil
}

func (p *Player) draw(ctx context.Context) error {
	if err := p.surface.Bind(ctx, p.Config.BaseTextureUnit); err != nil {
		return fmt.Errorf("unable to bind the surface: %w", err)
	}
	if err := p.GPU.DrawQuad(ctx); err != nil {
		return fmt.Errorf("unable to draw: %w", err)
	}
	if err := p.GPU.Present(ctx); err != nil {
		return fmt.Errorf("unable to present: %w", err)
	}
	return nil
}

// Run plays the stream until it ends or ctx is cancelled; both are a
// normal end of playback. The player is closed on return.
func (p *Player) Run(ctx context.Context) (_err error) {
	logger.Debugf(ctx, "Run")
	defer func() { logger.Debugf(ctx, "/Run: %v", _err) }()

	defer func() {
		if err := p.Close(ctx); err != nil {
			_err = multierror.Append(_err, err).ErrorOrNil()
		}
	}()

	if err := p.Start(ctx); err != nil {
		if errors.Is(err, context.Canceled) && ctx.Err() != nil {
			logger.Infof(ctx, "the playback is interrupted before the first frame")
			return nil
		}
		return err
	}

	ticker := p.Config.Clock.Ticker(p.Config.RefreshInterval)
	defer ticker.Stop()

	for {
		result, err := p.Step(ctx)
		if err != nil {
			return err
		}
		if result == StepResultEnded {
			logger.Infof(ctx, "the end of the stream is reached")
			return nil
		}

		select {
		case <-ctx.Done():
			logger.Infof(ctx, "the playback is interrupted: %v", ctx.Err())
			return nil
		case <-ticker.C:
		}
	}
}

// Close stops the producer (interrupting a blocked read), waits for it to
// exit and releases the queued frames and the GPU resources.
func (p *Player) Close(ctx context.Context) error {
	logger.Debugf(ctx, "Close")
	defer logger.Debugf(ctx, "/Close")

	if p.isClosed {
		return nil
	}
	p.isClosed = true

	p.queue.Stop(ctx)
	if p.producerDone != nil {
		p.cancelProducer()
		<-p.producerDone
	}
	if count := p.queue.Drain(ctx); count > 0 {
		logger.Debugf(ctx, "released %d frames which were never presented", count)
	}

	if p.surface == nil {
		return nil
	}
	if err := p.surface.Destroy(ctx); err != nil {
		return fmt.Errorf("unable to destroy the surface: %w", err)
	}
	return nil
}

// ProducerError returns the reason the decoding stopped; it is only
// meaningful after Close.
func (p *Player) ProducerError() error {
	return p.producerErr
}
