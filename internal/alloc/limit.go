package alloc

import (
	"sync"
	"unsafe"
)

// LimitAllocator enforces a byte budget over an inner allocator.
// Requests that would push usage past the limit fail; frees always
// succeed, per the contract. Tests use it to force allocation failure
// and exercise emergency collection.
type LimitAllocator struct {
	mu    sync.Mutex
	inner Allocator
	limit uintptr
	used  uintptr
}

// NewLimit wraps inner with a byte budget.
func NewLimit(inner Allocator, limit uintptr) *LimitAllocator {
	return &LimitAllocator{inner: inner, limit: limit}
}

// Realloc implements the Allocator contract.
func (l *LimitAllocator) Realloc(ptr unsafe.Pointer, oldSize, newSize uintptr) unsafe.Pointer {
	l.mu.Lock()
	defer l.mu.Unlock()
	if newSize > oldSize && l.used+newSize-oldSize > l.limit {
		return nil
	}
	p := l.inner.Realloc(ptr, oldSize, newSize)
	if newSize == 0 {
		l.used -= oldSize
		return nil
	}
	if p != nil {
		l.used += newSize - oldSize
	}
	return p
}

// SetLimit adjusts the byte budget.
func (l *LimitAllocator) SetLimit(limit uintptr) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.limit = limit
}

// Used returns the bytes currently accounted against the budget.
func (l *LimitAllocator) Used() uintptr {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.used
}
