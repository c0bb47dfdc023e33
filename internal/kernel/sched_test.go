package kernel

import "testing"

// Scenario 6: priority preemption via interrupt-driven notification.
func TestIRQPreemption(t *testing.T) {
	k := newTestKernel(t, 3)
	h, l := k.tasks[1], k.tasks[2] // priority 1 (higher) and 2 (lower)
	k.tasks[0].State = StoppedState() // supervisor not competing for this scenario

	k.irqOwner[5] = h.Index
	k.irqBits[5] = 0x4
	k.irqEnabled[5] = true

	k.Recv(h, 0, 0x4, nil) // H: open recv, enabled for bit 0x4
	l.State = RunnableState()
	k.current = l.Index

	needsSwitch := k.HandleIRQ(5, int(l.Descriptor.Priority))
	if !needsSwitch {
		t.Fatalf("IRQ for a higher-priority blocked task must request a context switch")
	}
	if h.State.Kind != Runnable {
		t.Fatalf("H should have woken Runnable, got %s", h.State.Kind)
	}
	if h.PendingRecv == nil || h.PendingRecv.Operation != 0x4 {
		t.Fatalf("H's recv outcome wrong: %+v", h.PendingRecv)
	}

	next, ok := k.Reschedule()
	if !ok || next != h.Index {
		t.Fatalf("scheduler should pick H after the IRQ, got %v ok=%v", next, ok)
	}

	// L only resumes once H blocks again.
	k.Recv(h, 0, 0, nil)
	next, ok = k.Reschedule()
	if !ok || next != l.Index {
		t.Fatalf("scheduler should fall back to L once H blocks, got %v ok=%v", next, ok)
	}
}

func TestPickTieBreaksByHint(t *testing.T) {
	k := newTestKernel(t, 4)
	// Make tasks 1..3 all the same priority so the hint decides the tie.
	k.tasks[1].Descriptor.Priority = 5
	k.tasks[2].Descriptor.Priority = 5
	k.tasks[3].Descriptor.Priority = 5
	k.tasks[0].State = StoppedState()

	next, ok := k.Pick(2)
	if !ok || next != 2 {
		t.Fatalf("expected hint 2 to win its own tie, got %v ok=%v", next, ok)
	}
	next, ok = k.Pick(3)
	if !ok || next != 3 {
		t.Fatalf("expected hint 3 to win, got %v ok=%v", next, ok)
	}
}

func TestIrqControlRejectsUnownedIRQ(t *testing.T) {
	k := newTestKernel(t, 2)
	k.irqOwner[9] = k.tasks[1].Index
	if err := k.IRQControl(k.tasks[0], 9, true); err == 0 {
		t.Fatalf("task 0 does not own IRQ 9 and must be rejected")
	}
	if err := k.IRQControl(k.tasks[1], 9, true); err != 0 {
		t.Fatalf("owner should be able to enable its own IRQ, got %v", err)
	}
	if !k.IRQEnabled(9) {
		t.Fatalf("IRQ 9 should now be enabled")
	}
}
