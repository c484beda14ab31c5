// Copyright 2019 Intel Corporation.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package allocators provides placement of shared hot objects at
// cache line boundaries so that objects used by different cores never
// share a cache line.
package allocators

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/cpu"
)

// CacheLineSize is size of cache line on current architecture.
const CacheLineSize = uintptr(unsafe.Sizeof(cpu.CacheLinePad{}))

// CacheAligned owns exactly one value of T which is placed at
// address multiple of CacheLineSize. The value doesn't move during
// its lifetime. Copying CacheAligned copies reference to the same
// value, use Clone explicitly to document sharing.
type CacheAligned[T any] struct {
	ptr *T
	// buf keeps backing storage reachable.
	buf []T
}

// Allocate moves v into new cache aligned storage.
func Allocate[T any](v T) CacheAligned[T] {
	var zero T
	size := unsafe.Sizeof(zero)
	if size == 0 {
		// All zero sized values share one address, nothing to align.
		buf := make([]T, 1)
		buf[0] = v
		return CacheAligned[T]{ptr: &buf[0], buf: buf}
	}
	// Go allocator places objects in size classes aligned to their
	// size, so growing request eventually gives aligned address.
	// Heap objects never move, alignment holds for the whole lifetime.
	n := int((CacheLineSize + size - 1) / size)
	for {
		buf := make([]T, n)
		if uintptr(unsafe.Pointer(&buf[0]))%CacheLineSize == 0 {
			buf[0] = v
			return CacheAligned[T]{ptr: &buf[0], buf: buf[:1:1]}
		}
		n++
	}
}

// Get returns pointer to owned value.
func (c CacheAligned[T]) Get() *T {
	return c.ptr
}

// Clone returns new reference to the same value.
func (c CacheAligned[T]) Clone() CacheAligned[T] {
	return c
}

// Addr returns address of owned value.
func (c CacheAligned[T]) Addr() uintptr {
	return uintptr(unsafe.Pointer(c.ptr))
}

// IsNil reports whether value was never allocated.
func (c CacheAligned[T]) IsNil() bool {
	return c.ptr == nil
}

func (c CacheAligned[T]) String() string {
	if c.ptr == nil {
		return "CacheAligned(nil)"
	}
	return fmt.Sprintf("CacheAligned(%#x, %v)", c.Addr(), *c.ptr)
}
