package gpu

import (
	"context"

	"github.com/ccalmels/opengl-player/pkg/frame"
)

const (
	ExtensionEGLImageDMABufImport = "EGL_EXT_image_dma_buf_import"
	ExtensionOESEGLImage          = "GL_OES_EGL_image"
	ExtensionNVCUDAInterop        = "GL_NV_cuda_interop"
)

var (
	VAAPIRequiredExtensions = []string{
		ExtensionEGLImageDMABufImport,
		ExtensionOESEGLImage,
	}
	CUDARequiredExtensions = []string{
		ExtensionNVCUDAInterop,
	}
)

// DMABufImport describes one plane of an exported DRM PRIME surface.
type DMABufImport struct {
	Width     int
	Height    int
	DRMFormat uint32
	Object    frame.DRMObject
	Plane     frame.DRMPlane
}

// VAAPIInterop imports dma-buf planes into textures.
type VAAPIInterop interface {
	Init(ctx context.Context) error

	// ImportDMABuf creates a transient external image from the plane and
	// attaches it to the texture. The image must be destroyed before the
	// underlying file descriptors are closed.
	ImportDMABuf(ctx context.Context, tex TextureID, plane DMABufImport) (ExternalImage, error)
}

type ExternalImage interface {
	Destroy(ctx context.Context) error
}

// CUDAInterop shares textures with a CUDA device context.
type CUDAInterop interface {
	Init(ctx context.Context) error

	// RegisterTexture registers the texture for access from the given CUDA
	// device context. A registration is long-lived and must be unregistered
	// before the texture is deleted.
	RegisterTexture(ctx context.Context, deviceContext any, tex TextureID) (CUDARegistration, error)
}

type CUDARegistration interface {
	Map(ctx context.Context) (MappedArray, error)
	Unregister(ctx context.Context) error
}

type MappedArray interface {
	CopyFrom(ctx context.Context, plane frame.DevicePlane) error
	Unmap(ctx context.Context) error
}
