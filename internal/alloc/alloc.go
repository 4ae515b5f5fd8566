// Package alloc defines the pluggable raw-memory contract the collector
// allocates through, plus the stock backends: a page-backed system
// allocator, a byte-budget limiter and a statistics wrapper. The
// contract is a single realloc-style entry point so an embedding host
// can route every byte through its own allocator.
package alloc

import "unsafe"

// Allocator is the pluggable allocator contract.
//
//	Realloc(nil, 0, n)  -> allocate n bytes (nil means failure)
//	Realloc(p, n, 0)    -> free p; must always succeed, returns nil
//	Realloc(p, n, m)    -> resize p from n to m bytes
//
// The caller-supplied old size is authoritative: implementations never
// query block sizes independently.
type Allocator interface {
	Realloc(ptr unsafe.Pointer, oldSize, newSize uintptr) unsafe.Pointer
}

// Stats reports cumulative allocator activity.
type Stats struct {
	TotalAllocated uint64 `json:"totalAllocated"`
	TotalFreed     uint64 `json:"totalFreed"`
	AllocCount     uint64 `json:"allocCount"`
	FreeCount      uint64 `json:"freeCount"`
	FailCount      uint64 `json:"failCount"`
	BytesInUse     uint64 `json:"bytesInUse"`
}
