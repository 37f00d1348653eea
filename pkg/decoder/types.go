package decoder

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ccalmels/opengl-player/pkg/frame"
)

var (
	// ErrNeedMoreInput is returned by Decoder.ReceiveFrame when the decoder
	// needs another packet to produce a frame.
	ErrNeedMoreInput = errors.New("the decoder needs more input")

	// ErrPushRejected means the frame queue was stopped by the consumer.
	ErrPushRejected = errors.New("the frame was rejected by the queue")
)

type ErrDecoderUnavailable struct {
	StreamIndex int
	Err         error
}

func (e ErrDecoderUnavailable) Error() string {
	return fmt.Sprintf("no usable decoder for stream #%d: %v", e.StreamIndex, e.Err)
}

func (e ErrDecoderUnavailable) Unwrap() error {
	return e.Err
}

type HardwareDeviceKind int

const (
	HardwareDeviceKindNone = HardwareDeviceKind(iota)
	HardwareDeviceKindVAAPI
	HardwareDeviceKindCUDA
)

// DefaultHardwarePreference is the order hardware devices are tried in.
var DefaultHardwarePreference = []HardwareDeviceKind{
	HardwareDeviceKindVAAPI,
	HardwareDeviceKindCUDA,
}

func (k HardwareDeviceKind) String() string {
	switch k {
	case HardwareDeviceKindNone:
		return "none"
	case HardwareDeviceKindVAAPI:
		return "vaapi"
	case HardwareDeviceKindCUDA:
		return "cuda"
	default:
		return fmt.Sprintf("unknown_hardware_device_kind_%d", int(k))
	}
}

func ParseHardwareDeviceKind(s string) (HardwareDeviceKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none", "software":
		return HardwareDeviceKindNone, nil
	case "vaapi":
		return HardwareDeviceKindVAAPI, nil
	case "cuda":
		return HardwareDeviceKindCUDA, nil
	}
	return HardwareDeviceKindNone, fmt.Errorf("unknown hardware device kind '%s'", s)
}

// ParseHardwarePreference parses a comma-separated list of hardware device
// kinds; "none" disables hardware decoding and cannot be combined with
// other kinds.
func ParseHardwarePreference(s string) ([]HardwareDeviceKind, error) {
	var (
		result   []HardwareDeviceKind
		disabled bool
	)
	for _, item := range strings.Split(s, ",") {
		if strings.TrimSpace(item) == "" {
			continue
		}
		kind, err := ParseHardwareDeviceKind(item)
		if err != nil {
			return nil, err
		}
		if kind == HardwareDeviceKindNone {
			disabled = true
			continue
		}
		result = append(result, kind)
	}
	if disabled && len(result) > 0 {
		return nil, fmt.Errorf("'%s': hardware decoding cannot be both disabled and preferred", s)
	}
	return result, nil
}

type Packet interface {
	StreamIndex() int
	Release()
}

// Input is an opened media source.
type Input interface {
	VideoStreamIndex(ctx context.Context) (int, error)
	TimeBase(streamIndex int) frame.Rational

	// ReadPacket returns io.EOF when the input is exhausted.
	ReadPacket(ctx context.Context) (Packet, error)

	// NewDecoder tries the hardware devices in the given order and falls
	// back to software decoding if none of them is usable.
	NewDecoder(ctx context.Context, hwPreference []HardwareDeviceKind, streamIndex int) (Decoder, error)

	Close() error
}

type Decoder interface {
	// SendPacket submits a packet; a nil packet starts flushing.
	SendPacket(ctx context.Context, pkt Packet) error

	// ReceiveFrame returns ErrNeedMoreInput if another packet is needed and
	// io.EOF if the decoder is fully flushed.
	ReceiveFrame(ctx context.Context) (*frame.Frame, error)

	HardwareDeviceKind() HardwareDeviceKind
	Close() error
}

// FrameSink is the producer side of a frame queue.
type FrameSink interface {
	Push(ctx context.Context, f *frame.Frame) bool
	Stop(ctx context.Context)
}
