package kernel

import (
	"bytes"
	"testing"

	"github.com/oxidecomputer/hubris-go/internal/abi"
)

// Scenario 3: borrow lifetime.
func TestBorrowLifetime(t *testing.T) {
	k := newTestKernel(t, 2)
	a, b := k.tasks[0], k.tasks[1]

	k.Recv(b, 0, 0, nil)

	rw := make([]byte, 16)
	ro := []byte("hello")
	leases := []Lease{
		{Base: 0, Length: 16, Attrs: abi.LeaseAttrs{Write: true}, Data: rw},
		{Base: 16, Length: 5, Attrs: abi.LeaseAttrs{Write: false}, Data: append([]byte(nil), ro...)},
	}
	k.Send(a, b.ID(), 0, nil, 0, leases)

	status, attrs, length := k.BorrowInfo(b, a.ID(), 0)
	if status != BorrowOK || !attrs.Write || length != 16 {
		t.Fatalf("lease 0 info wrong: status=%v attrs=%+v length=%d", status, attrs, length)
	}
	status, attrs, length = k.BorrowInfo(b, a.ID(), 1)
	if status != BorrowOK || attrs.Write || length != 5 {
		t.Fatalf("lease 1 info wrong: status=%v attrs=%+v length=%d", status, attrs, length)
	}

	buf := make([]byte, 3)
	status, n := k.BorrowRead(b, a.ID(), 1, 2, buf)
	if status != BorrowOK || n != 3 || !bytes.Equal(buf, []byte("llo")) {
		t.Fatalf("borrow_read wrong: status=%v n=%d buf=%q", status, n, buf)
	}

	status, _ = k.BorrowWrite(b, a.ID(), 1, 0, []byte("xyz"))
	if status != BorrowAccessViolation {
		t.Fatalf("expected access violation writing a read-only lease, got %v", status)
	}

	status, n = k.BorrowWrite(b, a.ID(), 0, 4, []byte{0xFF, 0xFF})
	if status != BorrowOK || n != 2 {
		t.Fatalf("borrow_write to RW lease failed: status=%v n=%d", status, n)
	}
	if rw[4] != 0xFF || rw[5] != 0xFF {
		t.Fatalf("borrow_write did not mutate lender's backing bytes: %v", rw[:6])
	}
}

func TestBorrowDefectWhenLenderNotReplyWaiting(t *testing.T) {
	k := newTestKernel(t, 2)
	a, b := k.tasks[0], k.tasks[1]

	status, _, _ := k.BorrowInfo(b, a.ID(), 0)
	if status != BorrowDefect {
		t.Fatalf("expected defect when lender never sent, got %v", status)
	}

	k.Recv(b, 0, 0, nil)
	k.Send(a, b.ID(), 0, nil, 0, []Lease{{Base: 0, Length: 4, Data: make([]byte, 4)}})
	k.Fault(a, abi.Fault{Source: abi.FaultPanic})

	status, _, _ = k.BorrowInfo(b, a.ID(), 0)
	if status != BorrowDefect {
		t.Fatalf("expected defect when lender faulted out from under the server, got %v", status)
	}
	if b.State.Kind != Runnable {
		t.Fatalf("B must not be faulted by a dead lender's borrow attempt, got %s", b.State.Kind)
	}
}

func TestLeaseOutOfRangeFaultsSender(t *testing.T) {
	k := newTestKernel(t, 2)
	a, b := k.tasks[0], k.tasks[1]

	k.Recv(b, 0, 0, nil)
	k.Send(a, b.ID(), 0, nil, 0, []Lease{{Base: 0, Length: 0x20000, Data: make([]byte, 4)}})

	if a.State.Kind != Faulted {
		t.Fatalf("sender with an out-of-range lease should fault, got %s", a.State.Kind)
	}
	if a.State.Fault.Source != abi.FaultSyscallUsage || a.State.Fault.Usage != abi.LeaseOutOfRange {
		t.Fatalf("unexpected fault: %+v", a.State.Fault)
	}
}
