package surface

import (
	"fmt"

	"github.com/ccalmels/opengl-player/pkg/frame"
)

// ErrUnsupportedPixelFormat means no surface can display the frame.
type ErrUnsupportedPixelFormat struct {
	PixelFormat frame.PixelFormat
}

func (e ErrUnsupportedPixelFormat) Error() string {
	return fmt.Sprintf("no renderable surface supports pixel format %v", e.PixelFormat)
}

// ErrFormatChanged means the stream produced a frame incompatible with the
// surface built from its first frame.
type ErrFormatChanged struct {
	Description string
}

func (e ErrFormatChanged) Error() string {
	return fmt.Sprintf("the stream format changed: %s", e.Description)
}

// ErrFrameSkipped means the frame could not be uploaded, but the surface
// is still usable for the next frames.
type ErrFrameSkipped struct {
	Timestamp int64
	Err       error
}

func (e ErrFrameSkipped) Error() string {
	return fmt.Sprintf("skipped the frame with timestamp %d: %v", e.Timestamp, e.Err)
}

func (e ErrFrameSkipped) Unwrap() error {
	return e.Err
}

func skipped(f *frame.Frame, format string, args ...any) error {
	return ErrFrameSkipped{
		Timestamp: f.Timestamp,
		Err:       fmt.Errorf(format, args...),
	}
}
