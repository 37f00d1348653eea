package frame

import (
	"context"
)

// HardwareSurface is a device-resident decoded image.
//
// The optional capabilities (HostTransferer, DRMPrimeExporter,
// DevicePlanesExporter, Syncer) are discovered with type assertions.
type HardwareSurface interface {
	DeviceContext() any
	Release() error
}

// HostTransferer copies a hardware surface into host memory, producing a
// software frame of PixelFormat.NativeSoftwareFormat().
type HostTransferer interface {
	TransferToHost(ctx context.Context) (*Frame, error)
}

// Syncer waits until the decoder finished writing into the surface.
type Syncer interface {
	Sync(ctx context.Context) error
}

// DRMPrimeExporter exports a VAAPI surface as a set of dma-buf descriptors.
// The returned descriptor is valid only until it is closed.
type DRMPrimeExporter interface {
	ExportDRMPrime(ctx context.Context) (*DRMPrimeDescriptor, error)
}

// DevicePlanesExporter exposes the device pointers of a CUDA surface.
// The returned planes are valid until the release function is called.
type DevicePlanesExporter interface {
	ExportDevicePlanes(ctx context.Context) ([]DevicePlane, func() error, error)
}

type DRMObject struct {
	FD       int
	Size     uint64
	Modifier uint64
}

type DRMPlane struct {
	ObjectIndex int
	Offset      uint32
	Pitch       uint32
}

type DRMLayer struct {
	// DRMFormat is a DRM fourcc, e.g. 'R8  ' for a luma plane.
	DRMFormat uint32
	Planes    []DRMPlane
}

type DRMPrimeDescriptor struct {
	Objects []DRMObject
	Layers  []DRMLayer

	// CloseFunc closes the exported file descriptors.
	CloseFunc func() error
}

func (d *DRMPrimeDescriptor) Close() error {
	if d == nil || d.CloseFunc == nil {
		return nil
	}
	closeFunc := d.CloseFunc
	d.CloseFunc = nil
	return closeFunc()
}

// DevicePlane is a pitched plane in device memory.
type DevicePlane struct {
	Pointer    uintptr
	Pitch      int
	WidthBytes int
	Height     int
}
