package decoder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"

	"github.com/ccalmels/opengl-player/pkg/frame"
	"github.com/ccalmels/opengl-player/pkg/metrics"
	"github.com/facebookincubator/go-belt/tool/logger"
)

// Producer decodes the video stream of an input into a frame sink.
type Producer struct {
	Input              Input
	Sink               FrameSink
	HardwarePreference []HardwareDeviceKind
	Metrics            *metrics.Metrics

	decodedCount  atomic.Uint64
	lastTimestamp int64
	lastDuration  int64
	hasTimestamp  bool
}

func NewProducer(
	input Input,
	sink FrameSink,
	hwPreference []HardwareDeviceKind,
	m *metrics.Metrics,
) *Producer {
	return &Producer{
		Input:              input,
		Sink:               sink,
		HardwarePreference: hwPreference,
		Metrics:            m,
	}
}

func (p *Producer) DecodedCount() uint64 {
	return p.decodedCount.Load()
}

// Run decodes until the input is exhausted or an error happens. The sink
// is stopped exactly once whatever the reason of the exit is (including
// a panic). A nil error means the end of the stream was reached.
func (p *Producer) Run(ctx context.Context) (_err error) {
	logger.Debugf(ctx, "Run")
	defer func() { logger.Debugf(ctx, "/Run: %v", _err) }()
	defer p.Sink.Stop(ctx)

	streamIndex, err := p.Input.VideoStreamIndex(ctx)
	if err != nil {
		return fmt.Errorf("unable to find the video stream: %w", err)
	}

	dec, err := p.Input.NewDecoder(ctx, p.HardwarePreference, streamIndex)
	if err != nil {
		return ErrDecoderUnavailable{StreamIndex: streamIndex, Err: err}
	}
	defer func() {
		if err := dec.Close(); err != nil {
			logger.Errorf(ctx, "unable to close the decoder: %v", err)
		}
	}()
	logger.Infof(ctx, "decoding stream #%d (hardware device: %s)", streamIndex, dec.HardwareDeviceKind())

	for {
		pkt, err := p.Input.ReadPacket(ctx)
		switch {
		case err == nil:
		case errors.Is(err, io.EOF):
			logger.Debugf(ctx, "the input is exhausted, flushing the decoder")
			return p.flush(ctx, dec)
		default:
			return fmt.Errorf("unable to read a packet: %w", err)
		}

		if pkt.StreamIndex() != streamIndex {
			pkt.Release()
			continue
		}

		err = dec.SendPacket(ctx, pkt)
		pkt.Release()
		if err != nil {
			return fmt.Errorf("unable to send a packet to the decoder: %w", err)
		}

		if err := p.receiveFrames(ctx, dec); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
	}
}

func (p *Producer) flush(ctx context.Context, dec Decoder) error {
	if err := dec.SendPacket(ctx, nil); err != nil {
		return fmt.Errorf("unable to flush the decoder: %w", err)
	}
	err := p.receiveFrames(ctx, dec)
	switch {
	case err == nil, errors.Is(err, io.EOF):
		return nil
	default:
		return err
	}
}

// receiveFrames pushes all the frames the decoder has ready.
func (p *Producer) receiveFrames(ctx context.Context, dec Decoder) error {
	for {
		f, err := dec.ReceiveFrame(ctx)
		switch {
		case err == nil:
		case errors.Is(err, ErrNeedMoreInput):
			return nil
		case errors.Is(err, io.EOF):
			return io.EOF
		default:
			return fmt.Errorf("unable to receive a frame: %w", err)
		}

		p.decodedCount.Add(1)
		p.Metrics.FrameDecoded(f.PixelFormat.String())
		p.fillTimestamp(ctx, f)
		if !p.push(ctx, f) {
			return ErrPushRejected
		}
	}
}

// fillTimestamp gives a frame without a presentation time the timestamp
// following the previous frame, so that the queue only holds frames the
// scheduler can order.
func (p *Producer) fillTimestamp(ctx context.Context, f *frame.Frame) {
	if f.Timestamp != frame.NoTimestamp {
		p.lastTimestamp, p.lastDuration, p.hasTimestamp = f.Timestamp, f.Duration, true
		return
	}

	switch {
	case !p.hasTimestamp:
		f.Timestamp = 0
	case p.lastDuration > 0:
		f.Timestamp = p.lastTimestamp + p.lastDuration
	default:
		f.Timestamp = p.lastTimestamp + 1
	}
	logger.Tracef(ctx, "the frame has no timestamp, using %d", f.Timestamp)
	p.lastTimestamp, p.lastDuration, p.hasTimestamp = f.Timestamp, f.Duration, true
}

func (p *Producer) push(ctx context.Context, f *frame.Frame) bool {
	if p.Sink.Push(ctx, f) {
		return true
	}
	logger.Debugf(ctx, "%s was rejected, stopping", f)
	f.Release(ctx)
	return false
}
