package sim

import (
	"testing"

	"github.com/oxidecomputer/hubris-go/internal/abi"
)

func testRegions() []abi.Region {
	return []abi.Region{
		{}, // null
		{Base: 0, Size: 4096, Attrs: abi.RegionAttrs{Read: true, Write: true}},
		{Base: 0, Size: 4096, Attrs: abi.RegionAttrs{Read: true}},
	}
}

func TestAddressSpaceReadWriteRoundTrip(t *testing.T) {
	as, err := NewAddressSpace(testRegions())
	if err != nil {
		t.Fatalf("NewAddressSpace: %v", err)
	}
	defer as.Close()

	if err := as.activate([]int{1}); err != nil {
		t.Fatalf("activate: %v", err)
	}

	n, fault := as.Write(1, 10, 3, []byte{1, 2, 3})
	if fault != nil || n != 3 {
		t.Fatalf("write failed: n=%d fault=%v", n, fault)
	}
	buf := make([]byte, 3)
	n, fault = as.Read(1, 10, 3, buf)
	if fault != nil || n != 3 || buf[0] != 1 || buf[2] != 3 {
		t.Fatalf("read mismatch: n=%d buf=%v fault=%v", n, buf, fault)
	}
}

func TestAddressSpaceOutOfBoundsFaults(t *testing.T) {
	as, err := NewAddressSpace(testRegions())
	if err != nil {
		t.Fatalf("NewAddressSpace: %v", err)
	}
	defer as.Close()

	_, fault := as.Read(1, 4000, 200, make([]byte, 200))
	if fault == nil || fault.Source != abi.FaultMemoryAccess {
		t.Fatalf("expected a memory access fault, got %v", fault)
	}
}

func TestAddressSpaceWriteRejectedOnReadOnlyRegion(t *testing.T) {
	as, err := NewAddressSpace(testRegions())
	if err != nil {
		t.Fatalf("NewAddressSpace: %v", err)
	}
	defer as.Close()

	_, fault := as.Write(2, 0, 4, []byte{1, 2, 3, 4})
	if fault == nil {
		t.Fatalf("expected a fault writing a read-only region")
	}
}

// TestActivateRevokesOtherRegions exercises the real mprotect-backed path:
// once region 2 is deactivated in favor of region 1, a raw touch of
// region 2's host mapping must fault, proving the mprotect call actually
// took effect rather than the kernel's software bounds check alone.
func TestActivateRevokesOtherRegions(t *testing.T) {
	as, err := NewAddressSpace(testRegions())
	if err != nil {
		t.Fatalf("NewAddressSpace: %v", err)
	}
	defer as.Close()

	if err := as.activate([]int{1, 2}); err != nil {
		t.Fatalf("activate both: %v", err)
	}
	if _, faulted := touchRaw(as.regions[2].data, 0); faulted {
		t.Fatalf("region 2 should be readable while owned")
	}

	if err := as.activate([]int{1}); err != nil {
		t.Fatalf("activate region 1 only: %v", err)
	}
	if _, faulted := touchRaw(as.regions[2].data, 0); !faulted {
		t.Fatalf("region 2 should fault once mprotect has revoked it")
	}
}
