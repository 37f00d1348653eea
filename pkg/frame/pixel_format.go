package frame

import (
	"fmt"
)

type PixelFormat int

const (
	PixelFormatUndefined = PixelFormat(iota)
	PixelFormatYUV420P
	PixelFormatNV12
	PixelFormatVAAPI
	PixelFormatCUDA
	PixelFormatUnsupported
)

func (pf PixelFormat) String() string {
	switch pf {
	case PixelFormatUndefined:
		return "<undefined>"
	case PixelFormatYUV420P:
		return "yuv420p"
	case PixelFormatNV12:
		return "nv12"
	case PixelFormatVAAPI:
		return "vaapi"
	case PixelFormatCUDA:
		return "cuda"
	case PixelFormatUnsupported:
		return "unsupported"
	default:
		return fmt.Sprintf("unknown_pixel_format_%d", int(pf))
	}
}

func (pf PixelFormat) IsHardware() bool {
	switch pf {
	case PixelFormatVAAPI, PixelFormatCUDA:
		return true
	}
	return false
}

// PlaneCount returns the amount of in-memory planes a software frame
// of this format carries; hardware and unsupported formats carry none.
func (pf PixelFormat) PlaneCount() int {
	switch pf {
	case PixelFormatYUV420P:
		return 3
	case PixelFormatNV12:
		return 2
	}
	return 0
}

// NativeSoftwareFormat returns the host memory layout a hardware surface
// of this format is transferred into.
func (pf PixelFormat) NativeSoftwareFormat() PixelFormat {
	switch pf {
	case PixelFormatVAAPI, PixelFormatCUDA:
		return PixelFormatNV12
	case PixelFormatYUV420P, PixelFormatNV12:
		return pf
	}
	return PixelFormatUnsupported
}
