package alloc

import (
	"sync/atomic"
	"unsafe"
)

// CountingAllocator wraps an inner allocator with cumulative statistics.
type CountingAllocator struct {
	inner          Allocator
	totalAllocated atomic.Uint64
	totalFreed     atomic.Uint64
	allocCount     atomic.Uint64
	freeCount      atomic.Uint64
	failCount      atomic.Uint64
}

// NewCounting wraps inner with statistics collection.
func NewCounting(inner Allocator) *CountingAllocator {
	return &CountingAllocator{inner: inner}
}

// Realloc implements the Allocator contract.
func (c *CountingAllocator) Realloc(ptr unsafe.Pointer, oldSize, newSize uintptr) unsafe.Pointer {
	p := c.inner.Realloc(ptr, oldSize, newSize)
	switch {
	case newSize == 0:
		if ptr != nil {
			c.freeCount.Add(1)
			c.totalFreed.Add(uint64(oldSize))
		}
	case p == nil:
		c.failCount.Add(1)
	case ptr == nil:
		c.allocCount.Add(1)
		c.totalAllocated.Add(uint64(newSize))
	default:
		c.allocCount.Add(1)
		c.freeCount.Add(1)
		c.totalAllocated.Add(uint64(newSize))
		c.totalFreed.Add(uint64(oldSize))
	}
	return p
}

// Stats returns the cumulative counters.
func (c *CountingAllocator) Stats() Stats {
	s := Stats{
		TotalAllocated: c.totalAllocated.Load(),
		TotalFreed:     c.totalFreed.Load(),
		AllocCount:     c.allocCount.Load(),
		FreeCount:      c.freeCount.Load(),
		FailCount:      c.failCount.Load(),
	}
	s.BytesInUse = s.TotalAllocated - s.TotalFreed
	return s
}
