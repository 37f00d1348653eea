package surface

import (
	"context"
	"fmt"

	"github.com/ccalmels/opengl-player/pkg/frame"
	"github.com/ccalmels/opengl-player/pkg/gpu"
	"github.com/facebookincubator/go-belt/tool/experimental/errmon"
)

func fourcc(a, b, c, d byte) uint32 {
	return uint32(a) | uint32(b)<<8 | uint32(c)<<16 | uint32(d)<<24
}

var (
	DRMFormatR8   = fourcc('R', '8', ' ', ' ')
	DRMFormatGR88 = fourcc('G', 'R', '8', '8')
)

type vaapiZeroCopy struct {
	interop gpu.VAAPIInterop
}

func (*vaapiZeroCopy) kind() Kind { return KindVAAPIZeroCopy }

// dmaBufPlanes flattens the exported layers into the luma and chroma
// planes. A single composed NV12 layer is split into R8 and GR88 planes.
func dmaBufPlanes(
	desc *frame.DRMPrimeDescriptor,
	width, height int,
) ([]gpu.DMABufImport, error) {
	var result []gpu.DMABufImport
	for _, layer := range desc.Layers {
		for _, plane := range layer.Planes {
			if plane.ObjectIndex < 0 || plane.ObjectIndex >= len(desc.Objects) {
				return nil, fmt.Errorf("plane refers to object #%d, but there are %d objects", plane.ObjectIndex, len(desc.Objects))
			}
			result = append(result, gpu.DMABufImport{
				DRMFormat: layer.DRMFormat,
				Object:    desc.Objects[plane.ObjectIndex],
				Plane:     plane,
			})
		}
	}
	if len(result) != 2 {
		return nil, fmt.Errorf("expected 2 planes (NV12), but got %d", len(result))
	}
	if len(desc.Layers) == 1 {
		result[0].DRMFormat = DRMFormatR8
		result[1].DRMFormat = DRMFormatGR88
	}
	result[0].Width, result[0].Height = width, height
	result[1].Width, result[1].Height = (width+1)/2, (height+1)/2
	return result, nil
}

// update runs a complete export/sync/import/destroy/release cycle: the
// exported descriptors are only valid for this frame.
func (v *vaapiZeroCopy) update(
	ctx context.Context,
	s *Surface,
	f *frame.Frame,
) error {
	if f.Width != s.width || f.Height != s.height {
		return ErrFormatChanged{
			Description: fmt.Sprintf("the frame size changed from %dx%d to %dx%d", s.width, s.height, f.Width, f.Height),
		}
	}

	exporter, ok := f.Hardware.(frame.DRMPrimeExporter)
	if !ok {
		return skipped(f, "the hardware surface cannot be exported")
	}
	desc, err := exporter.ExportDRMPrime(ctx)
	if err != nil {
		return skipped(f, "unable to export the surface: %w", err)
	}
	defer func() {
		if err := desc.Close(); err != nil {
			errmon.ObserveErrorCtx(ctx, fmt.Errorf("unable to close the exported surface: %w", err))
		}
	}()

	if syncer, ok := f.Hardware.(frame.Syncer); ok {
		if err := syncer.Sync(ctx); err != nil {
			return skipped(f, "unable to sync the surface: %w", err)
		}
	}

	planes, err := dmaBufPlanes(desc, f.Width, f.Height)
	if err != nil {
		return skipped(f, "unexpected surface layout: %w", err)
	}

	for idx, plane := range planes {
		img, err := v.interop.ImportDMABuf(ctx, s.textures[idx], plane)
		if err != nil {
			return skipped(f, "unable to import plane #%d: %w", idx, err)
		}
		defer func() {
			if err := img.Destroy(ctx); err != nil {
				errmon.ObserveErrorCtx(ctx, fmt.Errorf("unable to destroy the external image of plane #%d: %w", idx, err))
			}
		}()
	}
	return nil
}
