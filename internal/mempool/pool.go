// Package mempool recycles the scratch buffers of the per-pixel passes so
// that parallel workers do not allocate a full frame of state per image.
package mempool

import (
	"sync"
)

// Pool hands out zeroed []T buffers grouped by size class.
type Pool[T any] struct {
	pools sync.Map // size class (int) -> *sync.Pool of []T
}

// Shared pools for the element types the image passes use.
var (
	float32Pool Pool[float32]
	int32Pool   Pool[int32]
	boolPool    Pool[bool]
)

// sizeClass rounds n up to a multiple of 1024 to reduce churn.
func sizeClass(n int) int {
	const step = 1024
	if n <= step {
		return step
	}
	return (n + step - 1) / step * step
}

func (p *Pool[T]) pool(cls int) *sync.Pool {
	if sp, ok := p.pools.Load(cls); ok {
		return sp.(*sync.Pool) //nolint:forcetypeassert // only *sync.Pool is stored
	}
	sp, _ := p.pools.LoadOrStore(cls, &sync.Pool{New: func() any { return make([]T, cls) }})
	return sp.(*sync.Pool) //nolint:forcetypeassert // only *sync.Pool is stored
}

// Get returns a zeroed buffer of length n. Return it with Put when done.
func (p *Pool[T]) Get(n int) []T {
	cls := sizeClass(n)
	buf, ok := p.pool(cls).Get().([]T)
	if !ok || cap(buf) < cls {
		buf = make([]T, cls)
	}
	buf = buf[:n]
	clear(buf)
	return buf
}

// Put returns buf to the pool. Nil and foreign-sized slices are dropped.
func (p *Pool[T]) Put(buf []T) {
	if cap(buf) == 0 || cap(buf) != sizeClass(cap(buf)) {
		return
	}
	p.pool(cap(buf)).Put(buf[:cap(buf)]) //nolint:staticcheck // slices are the pooled unit
}

// GetFloat32 returns a zeroed []float32 of length n.
func GetFloat32(n int) []float32 { return float32Pool.Get(n) }

// PutFloat32 recycles a buffer from GetFloat32. It is safe to pass nil.
func PutFloat32(buf []float32) { float32Pool.Put(buf) }

// GetInt32 returns a zeroed []int32 of length n.
func GetInt32(n int) []int32 { return int32Pool.Get(n) }

// PutInt32 recycles a buffer from GetInt32. It is safe to pass nil.
func PutInt32(buf []int32) { int32Pool.Put(buf) }

// GetBool returns a zeroed []bool of length n.
func GetBool(n int) []bool { return boolPool.Get(n) }

// PutBool recycles a buffer from GetBool. It is safe to pass nil.
func PutBool(buf []bool) { boolPool.Put(buf) }
