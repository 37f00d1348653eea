package surface

import (
	"context"
	"fmt"

	"github.com/ccalmels/opengl-player/pkg/frame"
	"github.com/ccalmels/opengl-player/pkg/gpu"
	"github.com/facebookincubator/go-belt/tool/experimental/errmon"
	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/hashicorp/go-multierror"
)

type cudaZeroCopy struct {
	interop gpu.CUDAInterop

	// registrations are bound to the decoder device context of the first
	// frame and are kept until the surface is destroyed.
	registrations []gpu.CUDARegistration
}

func (*cudaZeroCopy) kind() Kind { return KindCUDAZeroCopy }

func (v *cudaZeroCopy) register(
	ctx context.Context,
	s *Surface,
	deviceContext any,
) error {
	for _, tex := range s.textures {
		reg, err := v.interop.RegisterTexture(ctx, deviceContext, tex)
		if err != nil {
			if uErr := v.unregister(ctx); uErr != nil {
				logger.Errorf(ctx, "unable to unregister the textures: %v", uErr)
			}
			return fmt.Errorf("unable to register texture #%d: %w", tex, err)
		}
		v.registrations = append(v.registrations, reg)
	}
	return nil
}

func (v *cudaZeroCopy) unregister(ctx context.Context) error {
	var mErr *multierror.Error
	for _, reg := range v.registrations {
		if err := reg.Unregister(ctx); err != nil {
			mErr = multierror.Append(mErr, fmt.Errorf("unable to unregister a texture: %w", err))
		}
	}
	v.registrations = nil
	return mErr.ErrorOrNil()
}

// update runs a complete export/sync/map/copy/unmap/release cycle: the
// device pointers are only valid for this frame.
func (v *cudaZeroCopy) update(
	ctx context.Context,
	s *Surface,
	f *frame.Frame,
) error {
	if f.Width != s.width || f.Height != s.height {
		return ErrFormatChanged{
			Description: fmt.Sprintf("the frame size changed from %dx%d to %dx%d", s.width, s.height, f.Width, f.Height),
		}
	}

	exporter, ok := f.Hardware.(frame.DevicePlanesExporter)
	if !ok {
		return skipped(f, "the hardware surface does not expose device pointers")
	}
	planes, release, err := exporter.ExportDevicePlanes(ctx)
	if err != nil {
		return skipped(f, "unable to export the surface: %w", err)
	}
	defer func() {
		if release == nil {
			return
		}
		if err := release(); err != nil {
			errmon.ObserveErrorCtx(ctx, fmt.Errorf("unable to release the exported surface: %w", err))
		}
	}()
	if len(planes) != len(s.textures) {
		return skipped(f, "expected %d planes, but got %d", len(s.textures), len(planes))
	}

	if syncer, ok := f.Hardware.(frame.Syncer); ok {
		if err := syncer.Sync(ctx); err != nil {
			return skipped(f, "unable to sync the surface: %w", err)
		}
	}

	if v.registrations == nil {
		if err := v.register(ctx, s, f.Hardware.DeviceContext()); err != nil {
			return skipped(f, "%w", err)
		}
	}

	for idx, reg := range v.registrations {
		arr, err := reg.Map(ctx)
		if err != nil {
			return skipped(f, "unable to map texture #%d: %w", s.textures[idx], err)
		}
		defer func() {
			if err := arr.Unmap(ctx); err != nil {
				errmon.ObserveErrorCtx(ctx, fmt.Errorf("unable to unmap texture #%d: %w", s.textures[idx], err))
			}
		}()
		if err := arr.CopyFrom(ctx, planes[idx]); err != nil {
			return skipped(f, "unable to copy plane #%d: %w", idx, err)
		}
	}
	return nil
}
