package surface

import (
	"context"
	"fmt"

	"github.com/ccalmels/opengl-player/pkg/frame"
	"github.com/dustin/go-humanize"
	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/gogpu/gputypes"
)

type softwarePlanar struct{}

func (*softwarePlanar) kind() Kind { return KindSoftwarePlanar }

type softwareSemiplanar struct{}

func (*softwareSemiplanar) kind() Kind { return KindSoftwareSemiplanar }

type planeGeometry struct {
	stride int
	height int
}

func (s *Surface) planeFormats() []gputypes.TextureFormat {
	switch s.selection.Kind {
	case KindSoftwarePlanar:
		return []gputypes.TextureFormat{
			gputypes.TextureFormatR8Unorm,
			gputypes.TextureFormatR8Unorm,
			gputypes.TextureFormatR8Unorm,
		}
	default:
		return []gputypes.TextureFormat{
			gputypes.TextureFormatR8Unorm,
			gputypes.TextureFormatRG8Unorm,
		}
	}
}

func bytesPerTexel(format gputypes.TextureFormat) int {
	if format == gputypes.TextureFormatRG8Unorm {
		return 2
	}
	return 1
}

// updateSoftware uploads a software frame, transferring it from the
// device first if the surface falls back from a hardware format.
func (s *Surface) updateSoftware(
	ctx context.Context,
	f *frame.Frame,
) error {
	if s.selection.HostTransfer {
		transferer, ok := f.Hardware.(frame.HostTransferer)
		if !ok {
			return skipped(f, "the hardware surface cannot be transferred to the host memory")
		}
		hostFrame, err := transferer.TransferToHost(ctx)
		if err != nil {
			return skipped(f, "unable to transfer the frame to the host memory: %w", err)
		}
		defer hostFrame.Release(ctx)
		if want := s.selection.SourceFormat.NativeSoftwareFormat(); hostFrame.PixelFormat != want {
			return ErrFormatChanged{
				Description: fmt.Sprintf("expected a %s frame after the host transfer, but got %s", want, hostFrame.PixelFormat),
			}
		}
		hostFrame.Timestamp = f.Timestamp
		f = hostFrame
	}

	if err := f.Validate(); err != nil {
		return skipped(f, "invalid frame: %w", err)
	}

	formats := s.planeFormats()
	if len(f.Planes) != len(formats) {
		return ErrFormatChanged{
			Description: fmt.Sprintf("expected %d planes, but got %d", len(formats), len(f.Planes)),
		}
	}

	if len(s.textures) == 0 {
		if err := s.allocateSoftwareTextures(ctx, f, formats); err != nil {
			return err
		}
	}
	if err := s.checkGeometry(f); err != nil {
		return err
	}

	for idx, plane := range f.Planes {
		if err := s.gpuCtx.UpdateTexture(ctx, s.textures[idx], plane.Data, plane.Stride); err != nil {
			return skipped(f, "unable to update the texture of plane #%d: %w", idx, err)
		}
	}
	return nil
}

func (s *Surface) allocateSoftwareTextures(
	ctx context.Context,
	f *frame.Frame,
	formats []gputypes.TextureFormat,
) (_err error) {
	defer func() {
		if _err != nil {
			if err := s.deleteTextures(ctx); err != nil {
				logger.Errorf(ctx, "unable to clean up the textures: %v", err)
			}
		}
	}()

	var total uint64
	for idx, plane := range f.Planes {
		bpp := bytesPerTexel(formats[idx])
		if plane.Stride%bpp != 0 {
			return fmt.Errorf("the stride %d of plane #%d is not a multiple of %d", plane.Stride, idx, bpp)
		}
		desc := textureDescriptor(fmt.Sprintf("plane%d", idx), plane.Stride/bpp, plane.Height, formats[idx])
		if err := s.createTexture(ctx, desc); err != nil {
			return err
		}
		s.geometry = append(s.geometry, planeGeometry{stride: plane.Stride, height: plane.Height})
		total += uint64(plane.Stride * plane.Height)
	}
	s.width, s.height = f.Width, f.Height
	s.aspectScale = float32(f.Width) / float32(f.Planes[0].Stride)
	logger.Debugf(ctx, "allocated %d textures for %dx%d frames (%s, aspect scale %f)", len(s.textures), f.Width, f.Height, humanize.IBytes(total), s.aspectScale)
	return nil
}

func (s *Surface) checkGeometry(f *frame.Frame) error {
	if f.Width != s.width || f.Height != s.height {
		return ErrFormatChanged{
			Description: fmt.Sprintf("the frame size changed from %dx%d to %dx%d", s.width, s.height, f.Width, f.Height),
		}
	}
	for idx, plane := range f.Planes {
		g := s.geometry[idx]
		if plane.Stride != g.stride || plane.Height != g.height {
			return ErrFormatChanged{
				Description: fmt.Sprintf("plane #%d changed from stride %d height %d to stride %d height %d", idx, g.stride, g.height, plane.Stride, plane.Height),
			}
		}
	}
	return nil
}
