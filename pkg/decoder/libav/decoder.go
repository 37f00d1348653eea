package libav

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/asticode/go-astiav"
	"github.com/ccalmels/opengl-player/pkg/decoder"
	"github.com/ccalmels/opengl-player/pkg/frame"
	"github.com/facebookincubator/go-belt/tool/logger"
)

// Decoder decodes a single video stream with libavcodec.
type Decoder struct {
	codec                 *astiav.Codec
	codecContext          *astiav.CodecContext
	hardwareDeviceContext *astiav.HardwareDeviceContext
	hardwarePixelFormat   astiav.PixelFormat
	hardwareDeviceKind    decoder.HardwareDeviceKind
	inputStream           *astiav.Stream
	inputFrame            *astiav.Frame
	planeAlignment        int
	frameDuration         int64
}

var _ decoder.Decoder = (*Decoder)(nil)

func hardwareDeviceTypeName(kind decoder.HardwareDeviceKind) string {
	switch kind {
	case decoder.HardwareDeviceKindVAAPI:
		return "vaapi"
	case decoder.HardwareDeviceKindCUDA:
		return "cuda"
	}
	return ""
}

func newDecoder(
	ctx context.Context,
	input *Input,
	stream *astiav.Stream,
	hwPreference []decoder.HardwareDeviceKind,
) (*Decoder, error) {
	if stream.CodecParameters().MediaType() != astiav.MediaTypeVideo {
		return nil, fmt.Errorf("stream #%d is not a video stream", stream.Index())
	}

	for _, kind := range hwPreference {
		d, err := newHardwareDecoder(ctx, input, stream, kind)
		if err == nil {
			return d, nil
		}
		logger.Warnf(ctx, "unable to initialize a %s decoder for video stream #%d: %v", kind, stream.Index(), err)
	}

	d, err := newSoftwareDecoder(ctx, input, stream)
	if err != nil {
		return nil, fmt.Errorf("unable to initialize a software decoder for video stream #%d: %w", stream.Index(), err)
	}
	return d, nil
}

func (i *Input) allocDecoder(stream *astiav.Stream) (*Decoder, error) {
	d := &Decoder{
		inputStream:    stream,
		planeAlignment: i.Config.PlaneAlignment,
	}
	if d.planeAlignment <= 0 {
		d.planeAlignment = 1
	}

	d.codec = astiav.FindDecoder(stream.CodecParameters().CodecID())
	if d.codec == nil {
		return nil, fmt.Errorf("unable to find a codec using codec ID %v", stream.CodecParameters().CodecID())
	}

	if d.codecContext = astiav.AllocCodecContext(d.codec); d.codecContext == nil {
		return nil, fmt.Errorf("unable to allocate codec context")
	}

	if err := stream.CodecParameters().ToCodecContext(d.codecContext); err != nil {
		d.codecContext.Free()
		return nil, fmt.Errorf("CodecParameters().ToCodecContext(...) returned error: %w", err)
	}
	frameRate := i.FormatContext.GuessFrameRate(stream, nil)
	d.codecContext.SetFramerate(frameRate)
	d.frameDuration = frameDuration(
		frame.Rational{Num: int64(frameRate.Num()), Den: int64(frameRate.Den())},
		i.TimeBase(stream.Index()),
	)
	if i.Config.ThreadCount > 0 {
		d.codecContext.SetThreadCount(i.Config.ThreadCount)
	}
	return d, nil
}

func newHardwareDecoder(
	ctx context.Context,
	input *Input,
	stream *astiav.Stream,
	kind decoder.HardwareDeviceKind,
) (_ret *Decoder, _err error) {
	hardwareDeviceType := astiav.FindHardwareDeviceTypeByName(hardwareDeviceTypeName(kind))
	if hardwareDeviceType == astiav.HardwareDeviceTypeNone {
		return nil, fmt.Errorf("the hardware device type '%s' is not known to libav", kind)
	}

	d, err := input.allocDecoder(stream)
	if err != nil {
		return nil, err
	}
	defer func() {
		if _err != nil {
			_ = d.Close()
		}
	}()
	d.hardwareDeviceKind = kind

	d.hardwarePixelFormat = astiav.PixelFormatNone
	for _, p := range d.codec.HardwareConfigs() {
		if p.MethodFlags().Has(astiav.CodecHardwareConfigMethodFlagHwDeviceCtx) && p.HardwareDeviceType() == hardwareDeviceType {
			d.hardwarePixelFormat = p.PixelFormat()
			break
		}
	}
	if d.hardwarePixelFormat == astiav.PixelFormatNone {
		return nil, fmt.Errorf("codec '%s' does not support hardware device type '%s'", d.codec.Name(), kind)
	}

	d.hardwareDeviceContext, err = astiav.CreateHardwareDeviceContext(
		hardwareDeviceType,
		input.Config.HardwareDevice,
		nil,
		0,
	)
	if err != nil {
		return nil, fmt.Errorf("unable to create hardware device context: %w", err)
	}

	d.codecContext.SetHardwareDeviceContext(d.hardwareDeviceContext)
	d.codecContext.SetPixelFormatCallback(func(pfs []astiav.PixelFormat) astiav.PixelFormat {
		for _, pf := range pfs {
			if pf == d.hardwarePixelFormat {
				return pf
			}
		}

		logger.Errorf(ctx, "the decoder does not offer pixel format %s", d.hardwarePixelFormat)
		return astiav.PixelFormatNone
	})

	if err := d.codecContext.Open(d.codec, nil); err != nil {
		return nil, fmt.Errorf("unable to open codec context: %w", err)
	}
	d.inputFrame = framePool.Get()
	return d, nil
}

func newSoftwareDecoder(
	_ context.Context,
	input *Input,
	stream *astiav.Stream,
) (_ret *Decoder, _err error) {
	d, err := input.allocDecoder(stream)
	if err != nil {
		return nil, err
	}
	defer func() {
		if _err != nil {
			_ = d.Close()
		}
	}()

	if err := d.codecContext.Open(d.codec, nil); err != nil {
		return nil, fmt.Errorf("unable to open codec context: %w", err)
	}
	d.inputFrame = framePool.Get()
	return d, nil
}

func (d *Decoder) HardwareDeviceKind() decoder.HardwareDeviceKind {
	return d.hardwareDeviceKind
}

func (d *Decoder) Close() error {
	if d.inputFrame != nil {
		framePool.Put(d.inputFrame)
		d.inputFrame = nil
	}
	if d.codecContext != nil {
		d.codecContext.Free()
		d.codecContext = nil
	}
	if d.hardwareDeviceContext != nil {
		d.hardwareDeviceContext.Free()
		d.hardwareDeviceContext = nil
	}
	return nil
}

func (d *Decoder) SendPacket(
	ctx context.Context,
	pkt decoder.Packet,
) error {
	var avPacket *astiav.Packet
	if pkt != nil {
		p, ok := pkt.(*packet)
		if !ok {
			return fmt.Errorf("unexpected packet type %T", pkt)
		}
		avPacket = p.Packet
	}
	if err := d.codecContext.SendPacket(avPacket); err != nil {
		if avPacket == nil && errors.Is(err, astiav.ErrEof) {
			return nil
		}
		return fmt.Errorf("unable to send packet to the decoder: %w", err)
	}
	return nil
}

func (d *Decoder) ReceiveFrame(ctx context.Context) (*frame.Frame, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	err := d.codecContext.ReceiveFrame(d.inputFrame)
	switch {
	case err == nil:
	case errors.Is(err, astiav.ErrEof):
		return nil, io.EOF
	case errors.Is(err, astiav.ErrEagain):
		return nil, decoder.ErrNeedMoreInput
	default:
		return nil, fmt.Errorf("unable to receive a frame: %w", err)
	}
	defer d.inputFrame.Unref()

	var f *frame.Frame
	if d.hardwareDeviceKind != decoder.HardwareDeviceKindNone && d.inputFrame.PixelFormat() == d.hardwarePixelFormat {
		f, err = d.wrapHardwareFrame(d.inputFrame)
	} else {
		f, err = copySoftwareFrame(d.inputFrame, d.planeAlignment)
	}
	if err != nil {
		return nil, err
	}
	f.Duration = d.frameDuration
	return f, nil
}
