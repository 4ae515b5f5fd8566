package alloc

import (
	"sync"
	"unsafe"
)

// pageThreshold is the block size from which the system allocator asks
// the OS for whole page mappings instead of Go-managed buffers.
const pageThreshold = 64 << 10

// SystemAllocator is the stock backend: small blocks come from pinned
// Go-managed buffers, large blocks from anonymous page mappings where
// the platform supports them. Safe for use by multiple heaps.
type SystemAllocator struct {
	mu     sync.Mutex
	blocks map[unsafe.Pointer][]byte // pins every live block
	mapped map[unsafe.Pointer]bool   // blocks backed by page mappings
}

// NewSystem creates a system allocator.
func NewSystem() *SystemAllocator {
	return &SystemAllocator{
		blocks: make(map[unsafe.Pointer][]byte),
		mapped: make(map[unsafe.Pointer]bool),
	}
}

// Realloc implements the Allocator contract.
func (s *SystemAllocator) Realloc(ptr unsafe.Pointer, oldSize, newSize uintptr) unsafe.Pointer {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case newSize == 0:
		s.free(ptr)
		return nil
	case ptr == nil:
		return s.alloc(newSize)
	default:
		np := s.alloc(newSize)
		if np == nil {
			return nil
		}
		n := oldSize
		if newSize < n {
			n = newSize
		}
		copy(s.blocks[np][:n], s.blocks[ptr][:n])
		s.free(ptr)
		return np
	}
}

func (s *SystemAllocator) alloc(n uintptr) unsafe.Pointer {
	var buf []byte
	mapped := false
	if n >= pageThreshold {
		if b, ok := mapPages(int(n)); ok {
			buf, mapped = b, true
		}
	}
	if buf == nil {
		buf = make([]byte, n)
	}
	if len(buf) == 0 {
		return nil
	}
	p := unsafe.Pointer(&buf[0])
	s.blocks[p] = buf
	if mapped {
		s.mapped[p] = true
	}
	return p
}

func (s *SystemAllocator) free(p unsafe.Pointer) {
	if p == nil {
		return
	}
	buf, ok := s.blocks[p]
	if !ok {
		return
	}
	delete(s.blocks, p)
	if s.mapped[p] {
		delete(s.mapped, p)
		unmapPages(buf)
	}
}

// Live returns the number of outstanding blocks, for tests.
func (s *SystemAllocator) Live() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.blocks)
}
