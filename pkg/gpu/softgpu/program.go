package softgpu

import (
	"context"
	"fmt"
	"image/color"
	"strings"

	"github.com/ccalmels/opengl-player/pkg/gpu"
	"github.com/facebookincubator/go-belt/tool/logger"
)

const (
	UniformScale = "u_scale"
)

// kernel computes the color of a fragment from the textures bound to the
// program samplers (in the order of gpu.ProgramSource.Samplers).
type kernel func(samplers []*texture, u, v float64) color.RGBA

var kernels = map[string]struct {
	samplerCount int
	fn           kernel
}{
	"planar":     {3, planarKernel},
	"semiplanar": {2, semiplanarKernel},
}

type program struct {
	source gpu.ProgramSource
	kernel kernel
	ints   map[string]int32
	vec2s  map[string][2]float32
}

func (g *GPU) CompileProgram(
	ctx context.Context,
	src gpu.ProgramSource,
) (gpu.ProgramID, error) {
	logger.Debugf(ctx, "CompileProgram(ctx, '%s')", src.Name)
	defer logger.Debugf(ctx, "/CompileProgram(ctx, '%s')", src.Name)

	if strings.TrimSpace(src.VertexSource) == "" {
		return gpu.ProgramIDInvalid, gpu.ErrCompile{Program: src.Name, Stage: "vertex", Log: "empty source"}
	}
	if strings.TrimSpace(src.FragmentSource) == "" {
		return gpu.ProgramIDInvalid, gpu.ErrCompile{Program: src.Name, Stage: "fragment", Log: "empty source"}
	}

	k, ok := kernels[src.Name]
	if !ok {
		return gpu.ProgramIDInvalid, gpu.ErrLink{Program: src.Name, Log: "no fragment kernel with this name"}
	}
	if len(src.Samplers) != k.samplerCount {
		return gpu.ProgramIDInvalid, gpu.ErrLink{
			Program: src.Name,
			Log:     fmt.Sprintf("expected %d samplers, got %d", k.samplerCount, len(src.Samplers)),
		}
	}
	for _, name := range src.Samplers {
		if !strings.Contains(src.FragmentSource, name) {
			return gpu.ProgramIDInvalid, gpu.ErrLink{Program: src.Name, Log: fmt.Sprintf("sampler '%s' is not declared", name)}
		}
	}

	g.nextProgramID++
	g.programs[g.nextProgramID] = &program{
		source: src,
		kernel: k.fn,
		ints:   map[string]int32{},
		vec2s:  map[string][2]float32{},
	}
	return g.nextProgramID, nil
}

func (g *GPU) UseProgram(
	ctx context.Context,
	id gpu.ProgramID,
) error {
	prog, ok := g.programs[id]
	if !ok {
		return fmt.Errorf("program #%d does not exist", id)
	}
	g.current = prog
	return nil
}

func (g *GPU) DeleteProgram(
	ctx context.Context,
	id gpu.ProgramID,
) error {
	prog, ok := g.programs[id]
	if !ok {
		return fmt.Errorf("program #%d does not exist", id)
	}
	if g.current == prog {
		g.current = nil
	}
	delete(g.programs, id)
	return nil
}

func (g *GPU) SetUniformInt(
	ctx context.Context,
	name string,
	value int32,
) error {
	if g.current == nil {
		return fmt.Errorf("no program is in use")
	}
	g.current.ints[name] = value
	return nil
}

func (g *GPU) SetUniformVec2(
	ctx context.Context,
	name string,
	x, y float32,
) error {
	if g.current == nil {
		return fmt.Errorf("no program is in use")
	}
	g.current.vec2s[name] = [2]float32{x, y}
	return nil
}

func (g *GPU) DrawQuad(ctx context.Context) error {
	prog := g.current
	if prog == nil {
		return fmt.Errorf("no program is in use")
	}

	samplers := make([]*texture, 0, len(prog.source.Samplers))
	for _, name := range prog.source.Samplers {
		unit, ok := prog.ints[name]
		if !ok {
			return fmt.Errorf("sampler uniform '%s' is not set", name)
		}
		id, ok := g.units[int(unit)]
		if !ok {
			return fmt.Errorf("no texture is bound to unit %d (sampler '%s')", unit, name)
		}
		tex, err := g.getTexture(id)
		if err != nil {
			return err
		}
		samplers = append(samplers, tex)
	}

	scale, ok := prog.vec2s[UniformScale]
	if !ok {
		scale = [2]float32{1, 1}
	}

	bounds := g.framebuffer.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	for y := 0; y < height; y++ {
		// the image's first row is at the top of the viewport
		v := (float64(y) + 0.5) / float64(height) * float64(scale[1])
		for x := 0; x < width; x++ {
			u := (float64(x) + 0.5) / float64(width) * float64(scale[0])
			g.framebuffer.SetRGBA(x, y, prog.kernel(samplers, u, v))
		}
	}
	g.drawCount++
	return nil
}

func planarKernel(samplers []*texture, u, v float64) color.RGBA {
	y := samplers[0].sample(u, v)[0]
	cb := samplers[1].sample(u, v)[0]
	cr := samplers[2].sample(u, v)[0]
	r, g, b := color.YCbCrToRGB(y, cb, cr)
	return color.RGBA{R: r, G: g, B: b, A: 0xff}
}

func semiplanarKernel(samplers []*texture, u, v float64) color.RGBA {
	y := samplers[0].sample(u, v)[0]
	uv := samplers[1].sample(u, v)
	r, g, b := color.YCbCrToRGB(y, uv[0], uv[1])
	return color.RGBA{R: r, G: g, B: b, A: 0xff}
}
