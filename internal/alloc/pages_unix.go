//go:build unix

package alloc

import "golang.org/x/sys/unix"

// mapPages obtains an anonymous read-write mapping of at least n bytes.
func mapPages(n int) ([]byte, bool) {
	b, err := unix.Mmap(-1, 0, n,
		unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return nil, false
	}
	return b, true
}

// unmapPages releases a mapping returned by mapPages.
func unmapPages(b []byte) {
	_ = unix.Munmap(b)
}
