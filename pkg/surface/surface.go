package surface

import (
	"context"
	"fmt"

	"github.com/ccalmels/opengl-player/pkg/frame"
	"github.com/ccalmels/opengl-player/pkg/gpu"
	"github.com/ccalmels/opengl-player/pkg/shader"
	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/gogpu/gputypes"
	"github.com/hashicorp/go-multierror"
)

const (
	UniformScale = "u_scale"
)

// variant is one of *softwarePlanar, *softwareSemiplanar, *vaapiZeroCopy
// and *cudaZeroCopy.
type variant interface {
	kind() Kind
}

// Surface holds the GPU state needed to draw the frames of a stream.
// It belongs to the render thread.
type Surface struct {
	gpuCtx    gpu.Context
	selection Selection
	variant   variant

	program     gpu.ProgramID
	samplers    []string
	textures    []gpu.TextureID
	geometry    []planeGeometry
	width       int
	height      int
	aspectScale float32
}

// New chooses the surface kind from the first frame of the stream and
// prepares the GPU objects for it. The frame itself is not uploaded.
func New(
	ctx context.Context,
	gpuCtx gpu.Context,
	caps *gpu.Capabilities,
	programs shader.Programs,
	first *frame.Frame,
) (_ret *Surface, _err error) {
	logger.Debugf(ctx, "New(ctx, %s)", first)
	defer func() { logger.Debugf(ctx, "/New(ctx, %s): %v", first, _err) }()

	selection, err := Select(ctx, caps, first)
	if err != nil {
		return nil, err
	}

	src, err := programs.Get(selection.Kind.ProgramName())
	if err != nil {
		return nil, err
	}

	s := &Surface{
		gpuCtx:      gpuCtx,
		selection:   selection,
		samplers:    src.Samplers,
		aspectScale: 1,
	}
	defer func() {
		if _err != nil {
			if err := s.Destroy(ctx); err != nil {
				logger.Errorf(ctx, "unable to destroy the partially initialized surface: %v", err)
			}
		}
	}()

	s.program, err = gpuCtx.CompileProgram(ctx, src)
	if err != nil {
		return nil, fmt.Errorf("unable to build the shader program for %s: %w", selection.Kind, err)
	}

	switch selection.Kind {
	case KindSoftwarePlanar:
		s.variant = &softwarePlanar{}
	case KindSoftwareSemiplanar:
		s.variant = &softwareSemiplanar{}
	case KindVAAPIZeroCopy:
		if err := s.allocateNV12Textures(ctx, first.Width, first.Height); err != nil {
			return nil, err
		}
		s.variant = &vaapiZeroCopy{interop: caps.VAAPI(ctx)}
	case KindCUDAZeroCopy:
		if err := s.allocateNV12Textures(ctx, first.Width, first.Height); err != nil {
			return nil, err
		}
		s.variant = &cudaZeroCopy{interop: caps.CUDA(ctx)}
	default:
		return nil, fmt.Errorf("internal error: unexpected surface kind %s", selection.Kind)
	}

	logger.Infof(ctx, "selected the %s surface for %s frames (host transfer: %t)", selection.Kind, selection.SourceFormat, selection.HostTransfer)
	return s, nil
}

func (s *Surface) Kind() Kind {
	return s.selection.Kind
}

func (s *Surface) Selection() Selection {
	return s.selection
}

// AspectScale is the fraction of the texture width that contains image
// data (logical width / stride).
func (s *Surface) AspectScale() float32 {
	return s.aspectScale
}

func (s *Surface) Textures() []gpu.TextureID {
	return s.textures
}

// Update uploads the frame into the surface textures. The caller still
// owns the frame.
//
// An ErrFrameSkipped error means only this frame is lost; any other error
// means the surface cannot be used for this stream anymore.
func (s *Surface) Update(
	ctx context.Context,
	f *frame.Frame,
) error {
	logger.Tracef(ctx, "Update(ctx, %s)", f)
	defer logger.Tracef(ctx, "/Update(ctx, %s)", f)

	if f.PixelFormat != s.selection.SourceFormat {
		return ErrFormatChanged{
			Description: fmt.Sprintf("the surface accepts %s frames, but received a %s frame", s.selection.SourceFormat, f.PixelFormat),
		}
	}

	switch v := s.variant.(type) {
	case *softwarePlanar:
		return s.updateSoftware(ctx, f)
	case *softwareSemiplanar:
		return s.updateSoftware(ctx, f)
	case *vaapiZeroCopy:
		return v.update(ctx, s, f)
	case *cudaZeroCopy:
		return v.update(ctx, s, f)
	default:
		return fmt.Errorf("internal error: unexpected surface variant %T", v)
	}
}

// Bind makes the surface program current and binds the plane textures to
// the texture units starting at baseUnit.
func (s *Surface) Bind(
	ctx context.Context,
	baseUnit int,
) error {
	switch v := s.variant.(type) {
	case *softwarePlanar, *softwareSemiplanar, *vaapiZeroCopy, *cudaZeroCopy:
	default:
		return fmt.Errorf("internal error: unexpected surface variant %T", v)
	}
	if len(s.textures) == 0 {
		return fmt.Errorf("the surface has no content yet")
	}
	if len(s.textures) != len(s.samplers) {
		return fmt.Errorf("internal error: %d textures for %d samplers", len(s.textures), len(s.samplers))
	}

	if err := s.gpuCtx.UseProgram(ctx, s.program); err != nil {
		return fmt.Errorf("unable to use the %s program: %w", s.selection.Kind, err)
	}
	for idx, tex := range s.textures {
		unit := baseUnit + idx
		if err := s.gpuCtx.BindTexture(ctx, unit, tex); err != nil {
			return fmt.Errorf("unable to bind texture #%d to unit %d: %w", tex, unit, err)
		}
		if err := s.gpuCtx.SetUniformInt(ctx, s.samplers[idx], int32(unit)); err != nil {
			return fmt.Errorf("unable to set the sampler '%s': %w", s.samplers[idx], err)
		}
	}
	if err := s.gpuCtx.SetUniformVec2(ctx, UniformScale, s.aspectScale, 1); err != nil {
		return fmt.Errorf("unable to set the aspect correction: %w", err)
	}
	return nil
}

// Destroy releases all the GPU resources of the surface.
func (s *Surface) Destroy(ctx context.Context) error {
	logger.Debugf(ctx, "Destroy")
	defer logger.Debugf(ctx, "/Destroy")

	var mErr *multierror.Error
	if v, ok := s.variant.(*cudaZeroCopy); ok {
		if err := v.unregister(ctx); err != nil {
			mErr = multierror.Append(mErr, err)
		}
	}
	if err := s.deleteTextures(ctx); err != nil {
		mErr = multierror.Append(mErr, err)
	}
	if s.program != gpu.ProgramIDInvalid {
		if err := s.gpuCtx.DeleteProgram(ctx, s.program); err != nil {
			mErr = multierror.Append(mErr, fmt.Errorf("unable to delete the program: %w", err))
		}
		s.program = gpu.ProgramIDInvalid
	}
	return mErr.ErrorOrNil()
}

func (s *Surface) deleteTextures(ctx context.Context) error {
	var mErr *multierror.Error
	for _, tex := range s.textures {
		if err := s.gpuCtx.DeleteTexture(ctx, tex); err != nil {
			mErr = multierror.Append(mErr, fmt.Errorf("unable to delete texture #%d: %w", tex, err))
		}
	}
	s.textures = nil
	s.geometry = nil
	return mErr.ErrorOrNil()
}

func textureDescriptor(
	label string,
	width, height int,
	format gputypes.TextureFormat,
) gputypes.TextureDescriptor {
	return gputypes.TextureDescriptor{
		Label: label,
		Size: gputypes.Extent3D{
			Width:              uint32(width),
			Height:             uint32(height),
			DepthOrArrayLayers: 1,
		},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        format,
		Usage:         gputypes.TextureUsageTextureBinding | gputypes.TextureUsageCopyDst,
	}
}

func (s *Surface) createTexture(
	ctx context.Context,
	desc gputypes.TextureDescriptor,
) error {
	tex, err := s.gpuCtx.CreateTexture(ctx, desc)
	if err != nil {
		return fmt.Errorf("unable to create texture '%s': %w", desc.Label, err)
	}
	s.textures = append(s.textures, tex)
	return nil
}

// allocateNV12Textures creates the luma and the interleaved chroma
// textures of the logical frame size (the zero-copy paths have no padding).
func (s *Surface) allocateNV12Textures(
	ctx context.Context,
	width, height int,
) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("invalid frame size %dx%d", width, height)
	}
	s.width, s.height = width, height
	if err := s.createTexture(ctx, textureDescriptor("y", width, height, gputypes.TextureFormatR8Unorm)); err != nil {
		return err
	}
	return s.createTexture(ctx, textureDescriptor("uv", (width+1)/2, (height+1)/2, gputypes.TextureFormatRG8Unorm))
}
