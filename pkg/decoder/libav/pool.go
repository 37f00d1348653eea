package libav

import (
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/asticode/go-astiav"
)

// avObject is a libav-allocated object: Unref drops the referenced buffers
// and Free releases the object itself.
type avObject interface {
	*astiav.Packet | *astiav.Frame
	Unref()
	Free()
}

// recyclePool recycles libav objects between reads and decodes; the
// objects the GC collects from the pool are freed by a finalizer.
type recyclePool[T avObject] struct {
	pool        sync.Pool
	outstanding atomic.Int64
}

func newRecyclePool[T avObject](alloc func() T) *recyclePool[T] {
	p := &recyclePool[T]{}
	p.pool.New = func() any {
		obj := alloc()
		runtime.SetFinalizer(obj, func(obj T) { obj.Free() })
		return obj
	}
	return p
}

func (p *recyclePool[T]) Get() T {
	p.outstanding.Add(1)
	return p.pool.Get().(T)
}

// Put unrefs obj and makes it available for reuse. obj must not be used
// by the caller afterwards.
func (p *recyclePool[T]) Put(obj T) {
	obj.Unref()
	p.outstanding.Add(-1)
	p.pool.Put(obj)
}

// Outstanding is the amount of objects taken and not yet returned.
func (p *recyclePool[T]) Outstanding() int64 {
	return p.outstanding.Load()
}

var (
	packetPool = newRecyclePool(astiav.AllocPacket)
	framePool  = newRecyclePool(astiav.AllocFrame)
)
