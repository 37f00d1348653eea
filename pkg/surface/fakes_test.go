package surface

import (
	"context"
	"fmt"
	"testing"

	"github.com/ccalmels/opengl-player/pkg/frame"
	"github.com/ccalmels/opengl-player/pkg/gpu"
	"github.com/ccalmels/opengl-player/pkg/gpu/softgpu"
	"github.com/ccalmels/opengl-player/pkg/shader"
	"github.com/stretchr/testify/require"
)

type eventLog []string

func (l *eventLog) add(format string, args ...any) {
	*l = append(*l, fmt.Sprintf(format, args...))
}

// interopGPU is a software GPU context which also pretends to support
// the hardware interop extensions.
type interopGPU struct {
	*softgpu.GPU
	extensions []string
	vaapi      *fakeVAAPI
	cuda       *fakeCUDA
	log        *eventLog
}

func (g *interopGPU) Extensions() []string {
	return g.extensions
}

func (g *interopGPU) VAAPIInterop() gpu.VAAPIInterop {
	if g.vaapi == nil {
		return nil
	}
	return g.vaapi
}

func (g *interopGPU) CUDAInterop() gpu.CUDAInterop {
	if g.cuda == nil {
		return nil
	}
	return g.cuda
}

func (g *interopGPU) DeleteTexture(ctx context.Context, tex gpu.TextureID) error {
	g.log.add("delete-texture:%d", tex)
	return g.GPU.DeleteTexture(ctx, tex)
}

func newSoftGPU(t *testing.T, width, height int) *softgpu.GPU {
	g, err := softgpu.New(softgpu.Config{Width: width, Height: height}, nil)
	require.NoError(t, err)
	return g
}

func newInteropGPU(t *testing.T, width, height int) *interopGPU {
	log := &eventLog{}
	g := &interopGPU{
		GPU: newSoftGPU(t, width, height),
		extensions: append(
			append([]string{}, gpu.VAAPIRequiredExtensions...),
			gpu.CUDARequiredExtensions...,
		),
		log: log,
	}
	g.vaapi = &fakeVAAPI{gpu: g.GPU, log: log, memory: map[int][]byte{}, failImportPlane: -1}
	g.cuda = &fakeCUDA{gpu: g.GPU, log: log, memory: map[uintptr][]byte{}}
	return g
}

func loadPrograms(t *testing.T) shader.Programs {
	fs, err := shader.Defaults()
	require.NoError(t, err)
	programs, err := shader.Load(context.Background(), fs)
	require.NoError(t, err)
	return programs
}

type fakeVAAPI struct {
	gpu             *softgpu.GPU
	log             *eventLog
	memory          map[int][]byte
	initCount       int
	initErr         error
	failImportPlane int
	importCount     int
}

func (v *fakeVAAPI) Init(ctx context.Context) error {
	v.initCount++
	return v.initErr
}

func (v *fakeVAAPI) ImportDMABuf(
	ctx context.Context,
	tex gpu.TextureID,
	plane gpu.DMABufImport,
) (gpu.ExternalImage, error) {
	idx := v.importCount
	v.importCount++
	v.log.add("import:%d", idx)
	if idx == v.failImportPlane {
		return nil, fmt.Errorf("import failed")
	}
	mem, ok := v.memory[plane.Object.FD]
	if !ok {
		return nil, fmt.Errorf("unknown fd %d", plane.Object.FD)
	}
	if err := v.gpu.UpdateTexture(ctx, tex, mem[plane.Plane.Offset:], int(plane.Plane.Pitch)); err != nil {
		return nil, err
	}
	return &fakeExternalImage{log: v.log, idx: idx}, nil
}

type fakeExternalImage struct {
	log *eventLog
	idx int
}

func (img *fakeExternalImage) Destroy(ctx context.Context) error {
	img.log.add("destroy:%d", img.idx)
	return nil
}

// fakeVAAPISurface is an NV12 surface exported as a single composed layer.
type fakeVAAPISurface struct {
	log       *eventLog
	fd        int
	pitch     int
	yPlane    []byte
	exportErr error
	hostFrame *frame.Frame
	released  bool
}

func (s *fakeVAAPISurface) DeviceContext() any { return "va-display" }

func (s *fakeVAAPISurface) Release() error {
	s.released = true
	return nil
}

func (s *fakeVAAPISurface) ExportDRMPrime(ctx context.Context) (*frame.DRMPrimeDescriptor, error) {
	s.log.add("export")
	if s.exportErr != nil {
		return nil, s.exportErr
	}
	return &frame.DRMPrimeDescriptor{
		Objects: []frame.DRMObject{{FD: s.fd}},
		Layers: []frame.DRMLayer{{
			DRMFormat: fourcc('N', 'V', '1', '2'),
			Planes: []frame.DRMPlane{
				{ObjectIndex: 0, Offset: 0, Pitch: uint32(s.pitch)},
				{ObjectIndex: 0, Offset: uint32(len(s.yPlane)), Pitch: uint32(s.pitch)},
			},
		}},
		CloseFunc: func() error {
			s.log.add("close")
			return nil
		},
	}, nil
}

func (s *fakeVAAPISurface) Sync(ctx context.Context) error {
	s.log.add("sync")
	return nil
}

func (s *fakeVAAPISurface) TransferToHost(ctx context.Context) (*frame.Frame, error) {
	if s.hostFrame == nil {
		return nil, fmt.Errorf("transfer failed")
	}
	return s.hostFrame, nil
}

// transferOnlySurface is a hardware surface without any zero-copy export.
type transferOnlySurface struct {
	hostFrame *frame.Frame
}

func (*transferOnlySurface) DeviceContext() any { return nil }
func (*transferOnlySurface) Release() error     { return nil }
func (s *transferOnlySurface) TransferToHost(ctx context.Context) (*frame.Frame, error) {
	if s.hostFrame == nil {
		return nil, fmt.Errorf("transfer failed")
	}
	return s.hostFrame, nil
}

type fakeCUDA struct {
	gpu       *softgpu.GPU
	log       *eventLog
	memory    map[uintptr][]byte
	initCount int
}

func (c *fakeCUDA) Init(ctx context.Context) error {
	c.initCount++
	return nil
}

func (c *fakeCUDA) RegisterTexture(
	ctx context.Context,
	deviceContext any,
	tex gpu.TextureID,
) (gpu.CUDARegistration, error) {
	c.log.add("register:%d:%v", tex, deviceContext)
	return &fakeRegistration{cuda: c, tex: tex}, nil
}

type fakeRegistration struct {
	cuda *fakeCUDA
	tex  gpu.TextureID
}

func (r *fakeRegistration) Map(ctx context.Context) (gpu.MappedArray, error) {
	r.cuda.log.add("map:%d", r.tex)
	return &fakeMappedArray{reg: r}, nil
}

func (r *fakeRegistration) Unregister(ctx context.Context) error {
	r.cuda.log.add("unregister:%d", r.tex)
	return nil
}

type fakeMappedArray struct {
	reg *fakeRegistration
}

func (a *fakeMappedArray) CopyFrom(ctx context.Context, plane frame.DevicePlane) error {
	mem, ok := a.reg.cuda.memory[plane.Pointer]
	if !ok {
		return fmt.Errorf("invalid device pointer %x", plane.Pointer)
	}
	return a.reg.cuda.gpu.UpdateTexture(ctx, a.reg.tex, mem, plane.Pitch)
}

func (a *fakeMappedArray) Unmap(ctx context.Context) error {
	a.reg.cuda.log.add("unmap:%d", a.reg.tex)
	return nil
}

type fakeCUDASurface struct {
	log    *eventLog
	planes []frame.DevicePlane
}

func (s *fakeCUDASurface) DeviceContext() any { return "cuda-ctx" }
func (s *fakeCUDASurface) Release() error     { return nil }

func (s *fakeCUDASurface) ExportDevicePlanes(ctx context.Context) ([]frame.DevicePlane, func() error, error) {
	s.log.add("export")
	return s.planes, func() error {
		s.log.add("release")
		return nil
	}, nil
}

func (s *fakeCUDASurface) Sync(ctx context.Context) error {
	s.log.add("sync")
	return nil
}

// newNV12 returns an NV12 frame filled with the given values; the padding
// bytes (between width and stride) of the luma plane are set to padY.
func newNV12(width, height, stride int, y, u, v, padY byte) *frame.Frame {
	yPlane := make([]byte, stride*height)
	for row := 0; row < height; row++ {
		for col := 0; col < stride; col++ {
			if col < width {
				yPlane[row*stride+col] = y
			} else {
				yPlane[row*stride+col] = padY
			}
		}
	}
	chromaHeight := (height + 1) / 2
	uvPlane := make([]byte, stride*chromaHeight)
	for idx := 0; idx+1 < len(uvPlane); idx += 2 {
		uvPlane[idx] = u
		uvPlane[idx+1] = v
	}
	return &frame.Frame{
		Width:       width,
		Height:      height,
		PixelFormat: frame.PixelFormatNV12,
		Planes: []frame.Plane{
			{Data: yPlane, Stride: stride, Height: height},
			{Data: uvPlane, Stride: stride, Height: chromaHeight},
		},
	}
}

func newYUV420P(width, height, stride int, y, u, v, padY byte) *frame.Frame {
	f := newNV12(width, height, stride, y, u, v, padY)
	chromaStride := stride / 2
	chromaHeight := (height + 1) / 2
	uPlane := make([]byte, chromaStride*chromaHeight)
	vPlane := make([]byte, chromaStride*chromaHeight)
	for idx := range uPlane {
		uPlane[idx] = u
		vPlane[idx] = v
	}
	f.PixelFormat = frame.PixelFormatYUV420P
	f.Planes = []frame.Plane{
		f.Planes[0],
		{Data: uPlane, Stride: chromaStride, Height: chromaHeight},
		{Data: vPlane, Stride: chromaStride, Height: chromaHeight},
	}
	return f
}
