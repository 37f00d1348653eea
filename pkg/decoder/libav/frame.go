package libav

import (
	"context"
	"fmt"

	"github.com/asticode/go-astiav"
	"github.com/ccalmels/opengl-player/pkg/frame"
)

func pixelFormatFromAstiav(pf astiav.PixelFormat) frame.PixelFormat {
	switch pf {
	case astiav.PixelFormatYuv420P, astiav.PixelFormatYuvj420P:
		return frame.PixelFormatYUV420P
	case astiav.PixelFormatNv12:
		return frame.PixelFormatNV12
	case astiav.PixelFormatVaapi:
		return frame.PixelFormatVAAPI
	case astiav.PixelFormatCuda:
		return frame.PixelFormatCUDA
	case astiav.PixelFormatNone:
		return frame.PixelFormatUndefined
	default:
		return frame.PixelFormatUnsupported
	}
}

func alignUp(v, align int) int {
	if align <= 1 {
		return v
	}
	return (v + align - 1) / align * align
}

// planeLayout returns the planes of an image buffer filled the way
// av_image_copy_to_buffer does: consecutive planes with rows aligned
// to align bytes.
func planeLayout(
	f *frame.Frame,
	buf []byte,
	align int,
) ([]frame.Plane, error) {
	planeCount := f.PixelFormat.PlaneCount()
	planes := make([]frame.Plane, 0, planeCount)
	offset := 0
	for idx := 0; idx < planeCount; idx++ {
		widthBytes, height := f.PlaneSize(idx)
		stride := alignUp(widthBytes, align)
		size := stride * height
		if offset+size > len(buf) {
			return nil, fmt.Errorf("plane #%d does not fit into the buffer: %d+%d > %d", idx, offset, size, len(buf))
		}
		planes = append(planes, frame.Plane{
			Data:   buf[offset : offset+size : offset+size],
			Stride: stride,
			Height: height,
		})
		offset += size
	}
	return planes, nil
}

// frameTimestamp is the presentation time of src, or the DTS of the packet
// it was decoded from when libav could not tell; frame.NoTimestamp if none
// of them is known.
func frameTimestamp(src *astiav.Frame) int64 {
	if pts := src.Pts(); pts != frame.NoTimestamp {
		return pts
	}
	return src.PktDts()
}

// frameDuration is the length of one frame at the given frame rate in
// units of timeBase; zero if the frame rate is unknown.
func frameDuration(frameRate, timeBase frame.Rational) int64 {
	if !frameRate.IsValid() || !timeBase.IsValid() {
		return 0
	}
	d := frame.Rescale(1, frame.Rational{Num: frameRate.Den, Den: frameRate.Num}, timeBase)
	if d < 1 {
		return 1
	}
	return d
}

// copySoftwareFrame copies the image out of a libav frame into a frame
// owned by Go memory.
func copySoftwareFrame(
	src *astiav.Frame,
	align int,
) (*frame.Frame, error) {
	f := &frame.Frame{
		Timestamp:   frameTimestamp(src),
		Width:       src.Width(),
		Height:      src.Height(),
		PixelFormat: pixelFormatFromAstiav(src.PixelFormat()),
	}
	if f.PixelFormat == frame.PixelFormatUnsupported {
		return f, nil
	}

	size, err := src.ImageBufferSize(align)
	if err != nil {
		return nil, fmt.Errorf("unable to get the image buffer size: %w", err)
	}
	buf := make([]byte, size)
	if _, err := src.ImageCopyToBuffer(buf, align); err != nil {
		return nil, fmt.Errorf("unable to copy the image: %w", err)
	}

	f.Planes, err = planeLayout(f, buf, align)
	if err != nil {
		return nil, err
	}
	return f, nil
}

// hardwareSurface keeps a reference to a decoder-owned hardware frame.
type hardwareSurface struct {
	ref            *astiav.Frame
	deviceContext  *astiav.HardwareDeviceContext
	planeAlignment int
}

var (
	_ frame.HardwareSurface = (*hardwareSurface)(nil)
	_ frame.HostTransferer  = (*hardwareSurface)(nil)
)

func (d *Decoder) wrapHardwareFrame(src *astiav.Frame) (*frame.Frame, error) {
	ref := framePool.Get()
	if err := ref.Ref(src); err != nil {
		framePool.Put(ref)
		return nil, fmt.Errorf("unable to reference the hardware frame: %w", err)
	}
	return &frame.Frame{
		Timestamp:   frameTimestamp(src),
		Width:       src.Width(),
		Height:      src.Height(),
		PixelFormat: pixelFormatFromAstiav(src.PixelFormat()),
		Hardware: &hardwareSurface{
			ref:            ref,
			deviceContext:  d.hardwareDeviceContext,
			planeAlignment: d.planeAlignment,
		},
	}, nil
}

func (s *hardwareSurface) DeviceContext() any {
	return s.deviceContext
}

func (s *hardwareSurface) Release() error {
	if s.ref == nil {
		return nil
	}
	framePool.Put(s.ref)
	s.ref = nil
	return nil
}

func (s *hardwareSurface) TransferToHost(ctx context.Context) (*frame.Frame, error) {
	if s.ref == nil {
		return nil, fmt.Errorf("the hardware frame is already released")
	}

	softwareFrame := framePool.Get()
	defer framePool.Put(softwareFrame)

	if err := s.ref.TransferHardwareData(softwareFrame); err != nil {
		return nil, fmt.Errorf("transferring hardware data failed: %w", err)
	}
	softwareFrame.SetPts(s.ref.Pts())

	return copySoftwareFrame(softwareFrame, s.planeAlignment)
}
