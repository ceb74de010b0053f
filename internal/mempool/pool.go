package mempool

import (
	"sync"
)

// Sized pools for the scratch buffers used by the filters (float64 accumulators
// and int32 label maps).

var (
	float64Pools sync.Map // key: size class (int), value: *sync.Pool
	int32Pools   sync.Map // key: size class (int), value: *sync.Pool
)

// sizeClass rounds n up to the next multiple of 1024.
func sizeClass(n int) int {
	const step = 1024
	if n <= step {
		return step
	}
	return (n + step - 1) / step * step
}

func pool[T any](pools *sync.Map, cls int) *sync.Pool {
	pAny, _ := pools.LoadOrStore(cls, &sync.Pool{New: func() any { return make([]T, cls) }})
	return pAny.(*sync.Pool)
}

func get[T any](pools *sync.Map, n int) []T {
	cls := sizeClass(n)
	buf, ok := pool[T](pools, cls).Get().([]T)
	if !ok || cap(buf) < cls {
		buf = make([]T, cls)
	}
	buf = buf[:n]
	clear(buf)
	return buf
}

func put[T any](pools *sync.Map, buf []T) {
	if buf == nil {
		return
	}
	cls := sizeClass(cap(buf))
	if cls != cap(buf) {
		// Not one of ours; dropping it keeps size classes exact.
		return
	}
	pool[T](pools, cls).Put(buf[:cap(buf)]) //nolint:staticcheck
}

// GetFloat64 returns a zeroed []float64 of length n. Return it with PutFloat64.
func GetFloat64(n int) []float64 { return get[float64](&float64Pools, n) }

// PutFloat64 returns a buffer to the pool. It is safe to pass a nil slice.
func PutFloat64(buf []float64) { put(&float64Pools, buf) }

// GetInt32 returns a zeroed []int32 of length n. Return it with PutInt32.
func GetInt32(n int) []int32 { return get[int32](&int32Pools, n) }

// PutInt32 returns a buffer to the pool. It is safe to pass a nil slice.
func PutInt32(buf []int32) { put(&int32Pools, buf) }
