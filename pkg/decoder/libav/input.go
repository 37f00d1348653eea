package libav

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/asticode/go-astiav"
	"github.com/asticode/go-astikit"
	"github.com/ccalmels/opengl-player/pkg/decoder"
	"github.com/ccalmels/opengl-player/pkg/frame"
	"github.com/facebookincubator/go-belt/tool/logger"
)

// StdinURL makes libav read the standard input.
const StdinURL = "pipe:0"

type CustomOption struct {
	Key   string
	Value string
}

type InputConfig struct {
	// CustomOptions are passed to the demuxer.
	CustomOptions []CustomOption

	// ThreadCount is the decoder thread count; zero lets libav decide.
	ThreadCount int

	// PlaneAlignment is the row alignment of the software frames copied
	// out of libav; zero means 1 (tightly packed rows).
	PlaneAlignment int

	// HardwareDevice is the device to open for hardware decoding (for
	// example "/dev/dri/renderD128"); empty means the default one.
	HardwareDevice string
}

// Input is a demuxer opened with libavformat.
type Input struct {
	*astikit.Closer
	FormatContext *astiav.FormatContext
	Dictionary    *astiav.Dictionary
	Config        InputConfig

	// interrupt aborts the blocking libav I/O of the format context; it
	// stays in effect for the rest of the input's life.
	interrupt func()
}

var _ decoder.Input = (*Input)(nil)

func NewInputFromURL(
	ctx context.Context,
	url string,
	cfg InputConfig,
) (_ret *Input, _err error) {
	logger.Debugf(ctx, "NewInputFromURL(ctx, '%s', %#+v)", url, cfg)
	defer func() { logger.Debugf(ctx, "/NewInputFromURL(ctx, '%s', %#+v): %v", url, cfg, _err) }()

	if url == "" {
		return nil, fmt.Errorf("the provided URL is empty")
	}

	input := &Input{
		Closer: astikit.NewCloser(),
		Config: cfg,
	}
	defer func() {
		if _err != nil {
			_ = input.Close()
		}
	}()

	interrupter := astiav.NewIOInterrupter()
	if freer, ok := any(interrupter).(interface{ Free() }); ok {
		input.Closer.Add(freer.Free)
	}
	input.interrupt = interrupter.Interrupt

	input.FormatContext = astiav.AllocFormatContext()
	if input.FormatContext == nil {
		return nil, fmt.Errorf("unable to allocate a format context")
	}
	input.Closer.Add(input.FormatContext.Free)
	input.FormatContext.SetIOInterrupter(interrupter)

	stopInterrupting := context.AfterFunc(ctx, input.interrupt)
	defer stopInterrupting()

	if len(cfg.CustomOptions) > 0 {
		input.Dictionary = astiav.NewDictionary()
		input.Closer.Add(input.Dictionary.Free)

		for _, opt := range cfg.CustomOptions {
			logger.Debugf(ctx, "input.Dictionary['%s'] = '%s'", opt.Key, opt.Value)
			if err := input.Dictionary.Set(opt.Key, opt.Value, 0); err != nil {
				return nil, fmt.Errorf("unable to set option '%s': %w", opt.Key, err)
			}
		}
	}

	if err := input.FormatContext.OpenInput(url, nil, input.Dictionary); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("the opening of '%s' is interrupted: %w", url, ctx.Err())
		}
		return nil, fmt.Errorf("unable to open input by URL '%s': %w", url, err)
	}
	input.Closer.Add(input.FormatContext.CloseInput)

	if err := input.FormatContext.FindStreamInfo(nil); err != nil {
		return nil, fmt.Errorf("unable to get stream info: %w", err)
	}
	return input, nil
}

func (i *Input) stream(streamIndex int) (*astiav.Stream, error) {
	streams := i.FormatContext.Streams()
	if streamIndex < 0 || streamIndex >= len(streams) {
		return nil, fmt.Errorf("stream #%d does not exist (there are %d streams)", streamIndex, len(streams))
	}
	return streams[streamIndex], nil
}

// VideoStreamIndex returns the first video stream of the input.
func (i *Input) VideoStreamIndex(ctx context.Context) (int, error) {
	for _, stream := range i.FormatContext.Streams() {
		if stream.CodecParameters().MediaType() != astiav.MediaTypeVideo {
			logger.Tracef(ctx, "stream #%d is not a video stream, skipping", stream.Index())
			continue
		}
		return stream.Index(), nil
	}
	return -1, fmt.Errorf("the input has no video stream")
}

func (i *Input) TimeBase(streamIndex int) frame.Rational {
	stream, err := i.stream(streamIndex)
	if err != nil {
		return frame.Rational{}
	}
	tb := stream.TimeBase()
	return frame.Rational{Num: int64(tb.Num()), Den: int64(tb.Den())}
}

// ReadPacket reads the next packet; a blocked read is aborted when ctx is
// done, and the input cannot be read anymore after that.
func (i *Input) ReadPacket(ctx context.Context) (decoder.Packet, error) {
	stopInterrupting := context.AfterFunc(ctx, i.interrupt)
	defer stopInterrupting()

	pkt := packetPool.Get()
	if err := i.FormatContext.ReadFrame(pkt); err != nil {
		packetPool.Put(pkt)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if errors.Is(err, astiav.ErrEof) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("unable to read a packet: %w", err)
	}
	return &packet{Packet: pkt}, nil
}

func (i *Input) NewDecoder(
	ctx context.Context,
	hwPreference []decoder.HardwareDeviceKind,
	streamIndex int,
) (decoder.Decoder, error) {
	stream, err := i.stream(streamIndex)
	if err != nil {
		return nil, err
	}
	return newDecoder(ctx, i, stream, hwPreference)
}

type packet struct {
	*astiav.Packet
}

func (p *packet) Release() {
	if p.Packet == nil {
		return
	}
	packetPool.Put(p.Packet)
	p.Packet = nil
}
