package kernel

import (
	"testing"

	"github.com/oxidecomputer/hubris-go/internal/abi"
)

// Scenario 4: timer + notification race.
func TestTimerWakesWithKernelOrigin(t *testing.T) {
	k := newTestKernel(t, 1)
	a := k.tasks[0]

	k.SetTimer(a, true, k.Now()+2, 0x00010000)
	out, blocked := k.Recv(a, 0, 0x00010000, nil)
	if !blocked {
		t.Fatalf("recv should block until the deadline arrives")
	}

	k.Tick() // tick 1: not due yet
	if a.State.Kind != InRecv {
		t.Fatalf("task woke too early: %s", a.State.Kind)
	}
	k.Tick() // tick 2: due
	if a.State.Kind != Runnable {
		t.Fatalf("task should have woken after 2 ticks, got %s", a.State.Kind)
	}
	if a.PendingRecv == nil || a.PendingRecv.Sender != abi.KernelID || a.PendingRecv.Operation != 0x00010000 {
		t.Fatalf("unexpected wake outcome: %+v", a.PendingRecv)
	}
	_, deadline, _ := k.GetTimer(a)
	if deadline != nil {
		t.Fatalf("deadline should be cleared after firing, got %v", *deadline)
	}
	_ = out
}

func TestSetTimerInThePastFiresImmediately(t *testing.T) {
	k := newTestKernel(t, 1)
	a := k.tasks[0]
	k.Tick()
	k.Tick()

	k.SetTimer(a, true, k.Now(), 0x1) // deadline <= now
	if a.Pending&0x1 == 0 {
		t.Fatalf("a deadline at or before now must post immediately")
	}
	_, deadline, _ := k.GetTimer(a)
	if deadline != nil {
		t.Fatalf("an immediately-fired deadline must not be armed")
	}
}

func TestTickMonotonic(t *testing.T) {
	k := newTestKernel(t, 1)
	a := k.tasks[0]
	prev, _, _ := k.GetTimer(a)
	for i := 0; i < 5; i++ {
		k.Tick()
		now, _, _ := k.GetTimer(a)
		if now < prev {
			t.Fatalf("tick counter went backwards: %d -> %d", prev, now)
		}
		prev = now
	}
}

func TestDisableTimerDisarms(t *testing.T) {
	k := newTestKernel(t, 1)
	a := k.tasks[0]
	k.SetTimer(a, true, k.Now()+10, 0x2)
	k.SetTimer(a, false, 0, 0)
	_, deadline, _ := k.GetTimer(a)
	if deadline != nil {
		t.Fatalf("disabling a timer should disarm it")
	}
	for i := 0; i < 20; i++ {
		k.Tick()
	}
	if a.Pending != 0 {
		t.Fatalf("a disarmed timer must never post")
	}
}
