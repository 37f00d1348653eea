package frame

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/facebookincubator/go-belt/tool/experimental/errmon"
)

// Plane is one row-padded plane of a software frame.
type Plane struct {
	Data   []byte
	Stride int
	Height int
}

// NoTimestamp marks a frame the decoder gave no presentation time to.
const NoTimestamp = int64(math.MinInt64)

// Frame is a single decoded video image.
//
// A Frame is created by the decoder, owned by the frame queue while queued
// and owned by the render loop after it is popped. Whoever owns the frame
// last calls Release.
type Frame struct {
	Timestamp int64

	// Duration is the display duration in time base units, zero if unknown.
	Duration int64

	Width       int
	Height      int
	PixelFormat PixelFormat

	// Planes is set for software pixel formats.
	Planes []Plane

	// Hardware is set for hardware pixel formats.
	Hardware HardwareSurface

	releaseOnce sync.Once
}

func (f *Frame) String() string {
	if f == nil {
		return "<nil>"
	}
	return fmt.Sprintf("frame{ts:%d %dx%d %s}", f.Timestamp, f.Width, f.Height, f.PixelFormat)
}

// Release frees the hardware surface reference (if any). Calling it
// more than once is a no-op.
func (f *Frame) Release(ctx context.Context) {
	if f == nil {
		return
	}
	f.releaseOnce.Do(func() {
		f.Planes = nil
		if f.Hardware == nil {
			return
		}
		if err := f.Hardware.Release(); err != nil {
			errmon.ObserveErrorCtx(ctx, fmt.Errorf("unable to release the hardware surface of %s: %w", f, err))
		}
	})
}

// Validate checks the frame is internally consistent for its pixel format.
func (f *Frame) Validate() error {
	if f.Width <= 0 || f.Height <= 0 {
		return fmt.Errorf("invalid frame dimensions %dx%d", f.Width, f.Height)
	}

	switch {
	case f.PixelFormat.IsHardware():
		if f.Hardware == nil {
			return fmt.Errorf("a %s frame has no hardware surface", f.PixelFormat)
		}
		return nil
	case f.PixelFormat == PixelFormatUnsupported, f.PixelFormat == PixelFormatUndefined:
		return nil
	}

	if len(f.Planes) != f.PixelFormat.PlaneCount() {
		return fmt.Errorf("a %s frame is expected to have %d planes, but has %d", f.PixelFormat, f.PixelFormat.PlaneCount(), len(f.Planes))
	}
	for idx, plane := range f.Planes {
		wantWidth, wantHeight := f.PlaneSize(idx)
		if plane.Stride < wantWidth {
			return fmt.Errorf("plane #%d: stride %d is less than the row width %d", idx, plane.Stride, wantWidth)
		}
		if plane.Height < wantHeight {
			return fmt.Errorf("plane #%d: height %d is less than %d", idx, plane.Height, wantHeight)
		}
		if len(plane.Data) < plane.Stride*plane.Height {
			return fmt.Errorf("plane #%d: has %d bytes, expected at least %d", idx, len(plane.Data), plane.Stride*plane.Height)
		}
	}
	return nil
}

// PlaneSize returns the logical row width in bytes and the height of
// the given plane, chroma subsampling taken into account.
func (f *Frame) PlaneSize(planeIdx int) (widthBytes, height int) {
	if planeIdx == 0 {
		return f.Width, f.Height
	}
	chromaWidth := (f.Width + 1) / 2
	chromaHeight := (f.Height + 1) / 2
	switch f.PixelFormat {
	case PixelFormatNV12:
		return chromaWidth * 2, chromaHeight
	default:
		return chromaWidth, chromaHeight
	}
}
