package surface

import (
	"context"
	"fmt"

	"github.com/ccalmels/opengl-player/pkg/frame"
	"github.com/ccalmels/opengl-player/pkg/gpu"
	"github.com/ccalmels/opengl-player/pkg/shader"
	"github.com/facebookincubator/go-belt/tool/logger"
)

type Kind int

const (
	KindUndefined = Kind(iota)
	KindSoftwarePlanar
	KindSoftwareSemiplanar
	KindVAAPIZeroCopy
	KindCUDAZeroCopy
)

func (k Kind) String() string {
	switch k {
	case KindUndefined:
		return "<undefined>"
	case KindSoftwarePlanar:
		return "software-planar"
	case KindSoftwareSemiplanar:
		return "software-semiplanar"
	case KindVAAPIZeroCopy:
		return "vaapi-zero-copy"
	case KindCUDAZeroCopy:
		return "cuda-zero-copy"
	default:
		return fmt.Sprintf("unknown_kind_%d", int(k))
	}
}

func (k Kind) ProgramName() string {
	switch k {
	case KindSoftwarePlanar:
		return shader.ProgramPlanar
	case KindSoftwareSemiplanar, KindVAAPIZeroCopy, KindCUDAZeroCopy:
		return shader.ProgramSemiplanar
	}
	return ""
}

// Selection is the outcome of choosing a surface for a frame format.
type Selection struct {
	Kind Kind

	// SourceFormat is the pixel format of the frames the surface accepts.
	SourceFormat frame.PixelFormat

	// HostTransfer means hardware frames are copied into host memory and
	// uploaded as software frames of SourceFormat.NativeSoftwareFormat().
	HostTransfer bool
}

func softwareKind(pf frame.PixelFormat) (Kind, bool) {
	switch pf {
	case frame.PixelFormatYUV420P:
		return KindSoftwarePlanar, true
	case frame.PixelFormatNV12:
		return KindSoftwareSemiplanar, true
	}
	return KindUndefined, false
}

// Select chooses the surface kind for the frame. Hardware interop is
// probed (once per capabilities instance) only for hardware frames.
func Select(
	ctx context.Context,
	caps *gpu.Capabilities,
	f *frame.Frame,
) (Selection, error) {
	if kind, ok := softwareKind(f.PixelFormat); ok {
		return Selection{Kind: kind, SourceFormat: f.PixelFormat}, nil
	}

	var zeroCopyKind Kind
	switch f.PixelFormat {
	case frame.PixelFormatVAAPI:
		_, canExport := f.Hardware.(frame.DRMPrimeExporter)
		switch {
		case !canExport:
			logger.Infof(ctx, "the decoder surfaces cannot be exported as DRM PRIME, VAAPI zero-copy is not possible")
		case caps.VAAPI(ctx) != nil:
			zeroCopyKind = KindVAAPIZeroCopy
		}
	case frame.PixelFormatCUDA:
		_, canExport := f.Hardware.(frame.DevicePlanesExporter)
		switch {
		case !canExport:
			logger.Infof(ctx, "the decoder surfaces do not expose device pointers, CUDA zero-copy is not possible")
		case caps.CUDA(ctx) != nil:
			zeroCopyKind = KindCUDAZeroCopy
		}
	default:
		return Selection{}, ErrUnsupportedPixelFormat{PixelFormat: f.PixelFormat}
	}
	if zeroCopyKind != KindUndefined {
		return Selection{Kind: zeroCopyKind, SourceFormat: f.PixelFormat}, nil
	}

	if _, ok := f.Hardware.(frame.HostTransferer); !ok {
		return Selection{}, ErrUnsupportedPixelFormat{PixelFormat: f.PixelFormat}
	}
	kind, ok := softwareKind(f.PixelFormat.NativeSoftwareFormat())
	if !ok {
		return Selection{}, ErrUnsupportedPixelFormat{PixelFormat: f.PixelFormat}
	}
	logger.Warnf(ctx, "falling back to the host memory transfer of %s frames (%s)", f.PixelFormat, kind)
	return Selection{
		Kind:         kind,
		SourceFormat: f.PixelFormat,
		HostTransfer: true,
	}, nil
}
