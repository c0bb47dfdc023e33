// Package sim is the simulated architecture port: the stand-in for
// sys/kern/src/arch/arm_m.rs. It cannot trap on a real Cortex-M MPU from a
// hosted Go binary, so it runs each task as a goroutine under a strict
// token handoff (only the scheduler's chosen task ever touches
// internal/kernel at a time, mirroring the kernel's non-reentrant model)
// and backs every declared memory region with a real mmap'd mapping
// whose protection bits are flipped with mprotect as control moves
// between tasks, the way gvisor's systrap platform backs a sentry
// address space with host mappings
// (pkg/sentry/platform/systrap/subprocess.go).
package sim

import (
	"fmt"
	"runtime/debug"

	"golang.org/x/sys/unix"

	"github.com/oxidecomputer/hubris-go/internal/abi"
)

// region is one mmap'd backing for a compile-time region descriptor. The
// null region (index 0) is never mapped; bounds always rejects it.
type region struct {
	attrs abi.RegionAttrs
	size  uint32
	data  []byte // nil for the null region
}

// AddressSpace owns the host mappings standing in for a booted image's MPU
// regions. There is exactly one AddressSpace per running simulator, shared
// by every task: mprotect is used to grant or revoke a region's
// *host-memory* protection as the scheduler's token moves between tasks,
// so that a task which somehow retained a raw pointer into another task's
// region (impossible through the syscall ABI, but not through a bug in the
// simulator's own Context plumbing) still faults exactly like real MPU
// hardware would.
type AddressSpace struct {
	regions []region
}

// NewAddressSpace mmaps one anonymous, zero-filled page-rounded mapping
// per non-null region. Regions are never resized or unmapped once booted:
// the configuration image is immutable for the life of the process.
func NewAddressSpace(regions []abi.Region) (*AddressSpace, error) {
	as := &AddressSpace{regions: make([]region, len(regions))}
	for i, r := range regions {
		as.regions[i].attrs = r.Attrs
		as.regions[i].size = r.Size
		if i == 0 || r.Size == 0 {
			continue
		}
		data, err := unix.Mmap(-1, 0, int(r.Size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
		if err != nil {
			as.unmapAll()
			return nil, fmt.Errorf("sim: mmap region %d (%d bytes): %w", i, r.Size, err)
		}
		as.regions[i].data = data
	}
	return as, nil
}

func (as *AddressSpace) unmapAll() {
	for _, r := range as.regions {
		if r.data != nil {
			_ = unix.Munmap(r.data)
		}
	}
}

// Close releases every mapping. Called once at simulator shutdown.
func (as *AddressSpace) Close() { as.unmapAll() }

// activate grants host protection matching attrs to every region in
// owned, and revokes all access (PROT_NONE) to every other mapped region,
// emulating the Cortex-M MPU reprogramming arm_m.rs performs on every
// context switch. Called by the Driver's dispatch loop immediately before
// handing the token to a task.
func (as *AddressSpace) activate(owned []int) error {
	own := make(map[int]bool, len(owned))
	for _, idx := range owned {
		own[idx] = true
	}
	for i := range as.regions {
		r := &as.regions[i]
		if r.data == nil {
			continue
		}
		prot := unix.PROT_NONE
		if own[i] {
			prot = protFor(r.attrs)
		}
		if err := unix.Mprotect(r.data, prot); err != nil {
			return fmt.Errorf("sim: mprotect region %d: %w", i, err)
		}
	}
	return nil
}

func protFor(a abi.RegionAttrs) int {
	prot := unix.PROT_NONE
	if a.Read {
		prot |= unix.PROT_READ
	}
	if a.Write {
		prot |= unix.PROT_WRITE
	}
	if a.Execute {
		prot |= unix.PROT_EXEC
	}
	return prot
}

// Read copies length bytes at offset out of region index into dst,
// failing with a software MemoryAccess fault if the range escapes the
// region's declared bounds — the same bounds check real MPU hardware
// performs before the access ever reaches physical memory.
func (as *AddressSpace) Read(index int, offset, length uint32, dst []byte) (int, *abi.Fault) {
	r, ok := as.bounds(index, offset, length)
	if !ok {
		return 0, outOfBoundsFault(index, offset)
	}
	n := copy(dst, r)
	return n, nil
}

// Write is Read's inverse, additionally rejecting the access if the
// region was not declared writable.
func (as *AddressSpace) Write(index int, offset, length uint32, src []byte) (int, *abi.Fault) {
	if index < 0 || index >= len(as.regions) || !as.regions[index].attrs.Write {
		return 0, outOfBoundsFault(index, offset)
	}
	r, ok := as.bounds(index, offset, length)
	if !ok {
		return 0, outOfBoundsFault(index, offset)
	}
	n := copy(r, src)
	return n, nil
}

func (as *AddressSpace) bounds(index int, offset, length uint32) ([]byte, bool) {
	if index < 0 || index >= len(as.regions) {
		return nil, false
	}
	r := as.regions[index]
	if r.data == nil {
		return nil, false
	}
	end := uint64(offset) + uint64(length)
	if end > uint64(len(r.data)) {
		return nil, false
	}
	return r.data[offset:end], true
}

func outOfBoundsFault(index int, offset uint32) *abi.Fault {
	addr := offset
	return &abi.Fault{Source: abi.FaultMemoryAccess, Address: &addr}
}

// touchRaw performs an unchecked byte access against the host mapping,
// used only by tests that want to exercise the real mprotect-revoked path
// (as opposed to AddressSpace's own software bounds check) end to end.
// debug.SetPanicOnFault converts the resulting SIGSEGV into a recoverable
// runtime error instead of killing the process, the hosted-Go equivalent
// of systrap's ptrace-trap-to-fault-code translation.
func touchRaw(b []byte, at int) (val byte, faulted bool) {
	old := debug.SetPanicOnFault(true)
	defer debug.SetPanicOnFault(old)
	defer func() {
		if recover() != nil {
			faulted = true
		}
	}()
	return b[at], false
}
