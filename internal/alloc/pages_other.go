//go:build !unix

package alloc

// Platforms without anonymous mappings fall back to Go-managed buffers.

func mapPages(n int) ([]byte, bool) { return nil, false }

func unmapPages(b []byte) {}
