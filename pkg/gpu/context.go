package gpu

import (
	"context"
	"fmt"

	"github.com/gogpu/gputypes"
)

type TextureID uint32
type ProgramID uint32

const (
	TextureIDInvalid = TextureID(0)
	ProgramIDInvalid = ProgramID(0)
)

// FullScreenQuad is the triangle strip covering the whole viewport.
var FullScreenQuad = [8]float32{
	1, 1,
	1, -1,
	-1, 1,
	-1, -1,
}

// ProgramSource is a not-yet-compiled shader program.
type ProgramSource struct {
	Name           string
	VertexSource   string
	FragmentSource string

	// Samplers are the names of the sampler uniforms, in the order of the
	// texture units they are bound to.
	Samplers []string
}

// Context is a current 2D-texture-capable GPU context. It is not safe
// for concurrent use: it belongs to the render thread.
type Context interface {
	Extensions() []string

	CreateTexture(ctx context.Context, desc gputypes.TextureDescriptor) (TextureID, error)
	UpdateTexture(ctx context.Context, tex TextureID, data []byte, bytesPerRow int) error
	DeleteTexture(ctx context.Context, tex TextureID) error
	BindTexture(ctx context.Context, unit int, tex TextureID) error

	CompileProgram(ctx context.Context, src ProgramSource) (ProgramID, error)
	UseProgram(ctx context.Context, prog ProgramID) error
	DeleteProgram(ctx context.Context, prog ProgramID) error
	SetUniformInt(ctx context.Context, name string, value int32) error
	SetUniformVec2(ctx context.Context, name string, x, y float32) error

	// DrawQuad draws FullScreenQuad as a 4-vertex triangle strip.
	DrawQuad(ctx context.Context) error
	Present(ctx context.Context) error

	// VAAPIInterop returns nil if the context has no dma-buf import support.
	VAAPIInterop() VAAPIInterop
	// CUDAInterop returns nil if the context has no CUDA interop support.
	CUDAInterop() CUDAInterop
}

func HasExtension(gpuCtx Context, name string) bool {
	for _, ext := range gpuCtx.Extensions() {
		if ext == name {
			return true
		}
	}
	return false
}

type ErrCompile struct {
	Program string
	Stage   string
	Log     string
}

func (e ErrCompile) Error() string {
	return fmt.Sprintf("unable to compile the %s stage of program '%s': %s", e.Stage, e.Program, e.Log)
}

type ErrLink struct {
	Program string
	Log     string
}

func (e ErrLink) Error() string {
	return fmt.Sprintf("unable to link program '%s': %s", e.Program, e.Log)
}
