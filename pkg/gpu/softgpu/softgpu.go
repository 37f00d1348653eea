// Package softgpu is an in-memory implementation of gpu.Context.
//
// Textures live in Go memory, programs are bound by name to CPU fragment
// kernels and the quad is rasterized into an *image.RGBA.
package softgpu

import (
	"context"
	"fmt"
	"image"

	"github.com/ccalmels/opengl-player/pkg/gpu"
	"github.com/dustin/go-humanize"
	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/gogpu/gputypes"
)

// Presenter receives every presented framebuffer. The image is reused by
// the next draw, so it must be copied if it is retained.
type Presenter interface {
	Present(ctx context.Context, img *image.RGBA) error
}

type Config struct {
	Width      int
	Height     int
	Extensions []string
}

type GPU struct {
	config    Config
	presenter Presenter

	textures      map[gpu.TextureID]*texture
	programs      map[gpu.ProgramID]*program
	nextTextureID gpu.TextureID
	nextProgramID gpu.ProgramID
	units         map[int]gpu.TextureID
	current       *program

	framebuffer  *image.RGBA
	drawCount    uint64
	presentCount uint64
}

var _ gpu.Context = (*GPU)(nil)

func New(
	cfg Config,
	presenter Presenter,
) (*GPU, error) {
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("invalid viewport size %dx%d", cfg.Width, cfg.Height)
	}
	return &GPU{
		config:      cfg,
		presenter:   presenter,
		textures:    map[gpu.TextureID]*texture{},
		programs:    map[gpu.ProgramID]*program{},
		units:       map[int]gpu.TextureID{},
		framebuffer: image.NewRGBA(image.Rect(0, 0, cfg.Width, cfg.Height)),
	}, nil
}

func (g *GPU) Extensions() []string {
	return g.config.Extensions
}

func (g *GPU) VAAPIInterop() gpu.VAAPIInterop {
	return nil
}

func (g *GPU) CUDAInterop() gpu.CUDAInterop {
	return nil
}

func (g *GPU) Framebuffer() *image.RGBA {
	return g.framebuffer
}

func (g *GPU) TextureCount() int {
	return len(g.textures)
}

func (g *GPU) DrawCount() uint64 {
	return g.drawCount
}

func (g *GPU) PresentCount() uint64 {
	return g.presentCount
}

func (g *GPU) CreateTexture(
	ctx context.Context,
	desc gputypes.TextureDescriptor,
) (gpu.TextureID, error) {
	if desc.Dimension != gputypes.TextureDimension2D {
		return gpu.TextureIDInvalid, fmt.Errorf("only 2D textures are supported")
	}
	bpp, err := bytesPerTexel(desc.Format)
	if err != nil {
		return gpu.TextureIDInvalid, err
	}
	width, height := int(desc.Size.Width), int(desc.Size.Height)
	if width <= 0 || height <= 0 {
		return gpu.TextureIDInvalid, fmt.Errorf("invalid texture size %dx%d", width, height)
	}

	g.nextTextureID++
	id := g.nextTextureID
	g.textures[id] = &texture{
		label:  desc.Label,
		width:  width,
		height: height,
		bpp:    bpp,
		data:   make([]byte, width*height*bpp),
	}
	logger.Debugf(ctx, "created texture #%d '%s' %dx%d (%s)", id, desc.Label, width, height, humanize.IBytes(uint64(width*height*bpp)))
	return id, nil
}

func (g *GPU) getTexture(id gpu.TextureID) (*texture, error) {
	tex, ok := g.textures[id]
	if !ok {
		return nil, fmt.Errorf("texture #%d does not exist", id)
	}
	return tex, nil
}

func (g *GPU) UpdateTexture(
	ctx context.Context,
	id gpu.TextureID,
	data []byte,
	bytesPerRow int,
) error {
	tex, err := g.getTexture(id)
	if err != nil {
		return err
	}
	rowSize := tex.width * tex.bpp
	if bytesPerRow < rowSize {
		return fmt.Errorf("bytes per row %d is less than the texture row size %d", bytesPerRow, rowSize)
	}
	if len(data) < bytesPerRow*(tex.height-1)+rowSize {
		return fmt.Errorf("not enough data to update texture #%d: %d bytes", id, len(data))
	}
	for y := 0; y < tex.height; y++ {
		copy(tex.data[y*rowSize:(y+1)*rowSize], data[y*bytesPerRow:])
	}
	return nil
}

func (g *GPU) DeleteTexture(
	ctx context.Context,
	id gpu.TextureID,
) error {
	if _, err := g.getTexture(id); err != nil {
		return err
	}
	delete(g.textures, id)
	for unit, boundID := range g.units {
		if boundID == id {
			delete(g.units, unit)
		}
	}
	return nil
}

func (g *GPU) BindTexture(
	ctx context.Context,
	unit int,
	id gpu.TextureID,
) error {
	if _, err := g.getTexture(id); err != nil {
		return err
	}
	g.units[unit] = id
	return nil
}

func (g *GPU) Present(ctx context.Context) error {
	g.presentCount++
	if g.presenter == nil {
		return nil
	}
	return g.presenter.Present(ctx, g.framebuffer)
}
