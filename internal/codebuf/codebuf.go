// Package codebuf owns the writable code region that later becomes
// executable, per spec.md §6 "Emit buffer: the implementer must
// expose a contiguous writable region that becomes executable after
// a cache-flush."
package codebuf

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Region is an mmap'd buffer that starts out read/write and is
// switched to read/exec by Finalize. The translator writes into it
// through Bytes() while a block is open, then calls Finalize once
// and never writes again.
type Region struct {
	mem      []byte
	len      int
	final    bool
	baseAddr uintptr
}

// New allocates a region of at least size bytes, rounded up to the
// host page size.
func New(size int) (*Region, error) {
	if size <= 0 {
		size = 1
	}
	mem, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return nil, fmt.Errorf("codebuf: mmap %d bytes: %w", size, err)
	}
	return &Region{mem: mem, len: len(mem), baseAddr: uintptr(unsafe.Pointer(&mem[0]))}, nil
}

// Bytes returns the writable backing slice. Valid only before
// Finalize.
func (r *Region) Bytes() []byte {
	if r.final {
		panic("codebuf: Bytes called after Finalize")
	}
	return r.mem
}

// Addr returns the base address of the region, valid after Finalize
// (used to compute absolute branch targets for chaining).
func (r *Region) Addr() uintptr { return r.baseAddr }

// Finalize makes the region executable and read-only. The caller
// must already have written all instructions and performed any
// required instruction-cache synchronization via the host's
// cache-flush primitive before entering the region.
func (r *Region) Finalize() error {
	if r.final {
		return nil
	}
	if err := unix.Mprotect(r.mem, unix.PROT_READ|unix.PROT_EXEC); err != nil {
		return fmt.Errorf("codebuf: mprotect exec: %w", err)
	}
	r.final = true
	return nil
}

// Close releases the region's pages.
func (r *Region) Close() error {
	if r.mem == nil {
		return nil
	}
	err := unix.Munmap(r.mem)
	r.mem = nil
	return err
}
