package softgpu

import (
	"fmt"
	"math"

	"github.com/gogpu/gputypes"
)

type texture struct {
	label  string
	width  int
	height int
	bpp    int
	data   []byte
}

func bytesPerTexel(format gputypes.TextureFormat) (int, error) {
	switch format {
	case gputypes.TextureFormatR8Unorm:
		return 1, nil
	case gputypes.TextureFormatRG8Unorm:
		return 2, nil
	case gputypes.TextureFormatRGBA8Unorm:
		return 4, nil
	default:
		return 0, fmt.Errorf("texture format %v is not supported", format)
	}
}

// TexelColumn returns the texel column sampled (nearest) at the texture
// coordinate u after the horizontal scale is applied.
func TexelColumn(u, scale float32, width int) int {
	return texelIndex(float64(u)*float64(scale), width)
}

func texelIndex(coord float64, size int) int {
	idx := int(math.Floor(coord * float64(size)))
	if idx < 0 {
		return 0
	}
	if idx >= size {
		return size - 1
	}
	return idx
}

func (t *texture) sample(u, v float64) []byte {
	x := texelIndex(u, t.width)
	y := texelIndex(v, t.height)
	offset := (y*t.width + x) * t.bpp
	return t.data[offset : offset+t.bpp]
}
