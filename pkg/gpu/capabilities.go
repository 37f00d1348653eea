package gpu

import (
	"context"
	"sync"

	"github.com/facebookincubator/go-belt/tool/logger"
)

// Capabilities is the result of probing the interop support of a GPU
// context. Each backend is probed at most once, on first use.
type Capabilities struct {
	gpuCtx Context

	vaapiOnce sync.Once
	vaapi     VAAPIInterop
	cudaOnce  sync.Once
	cuda      CUDAInterop
}

func NewCapabilities(gpuCtx Context) *Capabilities {
	return &Capabilities{
		gpuCtx: gpuCtx,
	}
}

func (c *Capabilities) hasExtensions(ctx context.Context, names []string) bool {
	for _, name := range names {
		if !HasExtension(c.gpuCtx, name) {
			logger.Debugf(ctx, "extension '%s' is not available", name)
			return false
		}
	}
	return true
}

// VAAPI returns the initialized VAAPI interop, or nil if it is not available.
func (c *Capabilities) VAAPI(ctx context.Context) VAAPIInterop {
	c.vaapiOnce.Do(func() {
		if !c.hasExtensions(ctx, VAAPIRequiredExtensions) {
			logger.Infof(ctx, "VAAPI zero-copy is not available: missing extensions")
			return
		}
		interop := c.gpuCtx.VAAPIInterop()
		if interop == nil {
			logger.Infof(ctx, "VAAPI zero-copy is not available: not implemented by the GPU context")
			return
		}
		if err := interop.Init(ctx); err != nil {
			logger.Warnf(ctx, "VAAPI zero-copy is not available: unable to initialize: %v", err)
			return
		}
		c.vaapi = interop
	})
	return c.vaapi
}

// CUDA returns the initialized CUDA interop, or nil if it is not available.
func (c *Capabilities) CUDA(ctx context.Context) CUDAInterop {
	c.cudaOnce.Do(func() {
		if !c.hasExtensions(ctx, CUDARequiredExtensions) {
			logger.Infof(ctx, "CUDA zero-copy is not available: missing extensions")
			return
		}
		interop := c.gpuCtx.CUDAInterop()
		if interop == nil {
			logger.Infof(ctx, "CUDA zero-copy is not available: not implemented by the GPU context")
			return
		}
		if err := interop.Init(ctx); err != nil {
			logger.Warnf(ctx, "CUDA zero-copy is not available: unable to initialize: %v", err)
			return
		}
		c.cuda = interop
	})
	return c.cuda
}
